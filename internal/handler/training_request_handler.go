package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oets-school/oets-api/internal/models"
	"github.com/oets-school/oets-api/internal/service"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
	"github.com/oets-school/oets-api/pkg/response"
)

// TrainingRequestHandler wires HTTP endpoints to the training request service.
type TrainingRequestHandler struct {
	service *service.TrainingRequestService
}

// NewTrainingRequestHandler creates a new handler.
func NewTrainingRequestHandler(svc *service.TrainingRequestService) *TrainingRequestHandler {
	return &TrainingRequestHandler{service: svc}
}

// Create godoc
// @Summary Submit training request
// @Description Submit an individual or group training inquiry
// @Tags TrainingRequests
// @Accept json
// @Produce json
// @Param payload body models.CreateTrainingRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /training-requests [post]
func (h *TrainingRequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid training request payload"))
		return
	}

	request, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, request)
}

// List godoc
// @Summary List training requests
// @Description Back-office listing, optionally filtered by status (admin only)
// @Tags TrainingRequests
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /training-requests [get]
func (h *TrainingRequestHandler) List(c *gin.Context) {
	requests, pagination, err := h.service.List(c.Request.Context(),
		models.TrainingRequestStatus(c.Query("status")),
		queryInt(c, "page", 1), queryInt(c, "page_size", 20))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get training request
// @Tags TrainingRequests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /training-requests/{id} [get]
func (h *TrainingRequestHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

// UpdateStatus godoc
// @Summary Process training request
// @Description Record the admin verdict; PROCESSED and REJECTED are terminal
// @Tags TrainingRequests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.TrainingRequestStatusUpdate true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /training-requests/{id}/status [put]
func (h *TrainingRequestHandler) UpdateStatus(c *gin.Context) {
	var req models.TrainingRequestStatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	request, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

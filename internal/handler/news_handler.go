package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oets-school/oets-api/internal/models"
	"github.com/oets-school/oets-api/internal/service"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
	"github.com/oets-school/oets-api/pkg/response"
)

// NewsHandler wires HTTP endpoints to the news service.
type NewsHandler struct {
	service *service.NewsService
}

// NewNewsHandler creates a new handler.
func NewNewsHandler(svc *service.NewsService) *NewsHandler {
	return &NewsHandler{service: svc}
}

// List godoc
// @Summary List news
// @Tags News
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /news [get]
func (h *NewsHandler) List(c *gin.Context) {
	items, pagination, err := h.service.List(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "page_size", 20))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get news item
// @Tags News
// @Produce json
// @Param id path string true "News ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /news/{id} [get]
func (h *NewsHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Publish news
// @Description Publish a news item (admin only)
// @Tags News
// @Accept json
// @Produce json
// @Param payload body models.CreateNewsRequest true "News payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /news [post]
func (h *NewsHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateNewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid news payload"))
		return
	}

	item, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, item)
}

// Update godoc
// @Summary Update news
// @Tags News
// @Accept json
// @Produce json
// @Param id path string true "News ID"
// @Param payload body models.UpdateNewsRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /news/{id} [put]
func (h *NewsHandler) Update(c *gin.Context) {
	var req models.UpdateNewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid news payload"))
		return
	}

	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete news
// @Tags News
// @Produce json
// @Param id path string true "News ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /news/{id} [delete]
func (h *NewsHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

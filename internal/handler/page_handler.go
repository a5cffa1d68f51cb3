package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oets-school/oets-api/internal/models"
	"github.com/oets-school/oets-api/internal/service"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
	"github.com/oets-school/oets-api/pkg/response"
)

// PageHandler wires HTTP endpoints to the page service.
type PageHandler struct {
	service *service.PageService
}

// NewPageHandler creates a new handler.
func NewPageHandler(svc *service.PageService) *PageHandler {
	return &PageHandler{service: svc}
}

// List godoc
// @Summary List pages
// @Description Public callers see visible pages only; admins see all
// @Tags Pages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pages [get]
func (h *PageHandler) List(c *gin.Context) {
	pages, err := h.service.List(c.Request.Context(), isAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, pages, nil)
}

// Get godoc
// @Summary Get page by slug
// @Description Hidden pages behave as missing for non-admin callers
// @Tags Pages
// @Produce json
// @Param slug path string true "Page slug"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pages/{slug} [get]
func (h *PageHandler) Get(c *gin.Context) {
	page, err := h.service.GetBySlug(c.Request.Context(), c.Param("slug"), isAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, page, nil)
}

// Create godoc
// @Summary Create page
// @Description Create a CMS page (admin only)
// @Tags Pages
// @Accept json
// @Produce json
// @Param payload body models.CreatePageRequest true "Page payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pages [post]
func (h *PageHandler) Create(c *gin.Context) {
	var req models.CreatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid page payload"))
		return
	}

	page, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, page)
}

// Update godoc
// @Summary Update page
// @Tags Pages
// @Accept json
// @Produce json
// @Param id path string true "Page ID"
// @Param payload body models.UpdatePageRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pages/{id} [put]
func (h *PageHandler) Update(c *gin.Context) {
	var req models.UpdatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid page payload"))
		return
	}

	page, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, page, nil)
}

// Delete godoc
// @Summary Delete page
// @Tags Pages
// @Produce json
// @Param id path string true "Page ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pages/{id} [delete]
func (h *PageHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func isAdmin(c *gin.Context) bool {
	claims := claimsFromContext(c)
	return claims != nil && claims.Role == models.RoleAdmin
}

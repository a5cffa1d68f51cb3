package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oets-school/oets-api/internal/models"
	"github.com/oets-school/oets-api/internal/service"
	appErrors "github.com/oets-school/oets-api/pkg/errors"
	"github.com/oets-school/oets-api/pkg/response"
)

// DocumentHandler wires HTTP endpoints to the document service.
type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// Upload godoc
// @Summary Upload enrollment document
// @Description Attach a CV or motivation letter to a pending enrollment (multipart/form-data)
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param enrollment_id formData string true "Enrollment ID"
// @Param type formData string true "Document type (CV or MOTIVATION_LETTER)"
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	enrollmentID := c.PostForm("enrollment_id")
	docType := c.PostForm("type")
	if enrollmentID == "" || docType == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "enrollment_id and type are required"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	document, err := h.service.Upload(c.Request.Context(), service.UploadInput{
		EnrollmentID: enrollmentID,
		Type:         models.DocumentType(docType),
		FileName:     header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		SizeBytes:    header.Size,
		Reader:       file,
	}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, document)
}

// Get godoc
// @Summary Get document metadata
// @Description Returns metadata with a time-limited signed download URL
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, info, nil)
}

// Download godoc
// @Summary Download document
// @Description Streams the file; access is granted by the signed token, not the session
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "download token required"))
		return
	}

	document, file, err := h.service.Open(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+document.FileName+`"`)
	c.Header("Content-Type", document.MimeType)
	c.DataFromReader(http.StatusOK, document.SizeBytes, document.MimeType, file, nil)
}

// Delete godoc
// @Summary Delete document
// @Description Students delete their own while the enrollment is pending; admins any
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

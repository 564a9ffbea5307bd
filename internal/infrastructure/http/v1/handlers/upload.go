package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/apperror"
	"autoerp/internal/domain/upload"
)

const logoField = "logo"

type UploadService interface {
	SaveLogo(ctx context.Context, r io.Reader) (*upload.Logo, error)
	LogoPath(ctx context.Context) (path string, contentType string, err error)
}

// UploadHandler serves /api/upload.
type UploadHandler struct {
	*BaseHandler
	service UploadService
}

func NewUploadHandler(base *BaseHandler, service UploadService) *UploadHandler {
	return &UploadHandler{BaseHandler: base, service: service}
}

// SaveLogo handles POST /upload/logo (multipart field "logo").
func (h *UploadHandler) SaveLogo(c *gin.Context) {
	fh, err := c.FormFile(logoField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			h.Error(c, apperror.NewValidation("no file provided").WithCode("FILE_REQUIRED").WithDetail("field", logoField))
			return
		}
		h.Error(c, apperror.NewValidation("invalid multipart body").WithCause(err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	defer f.Close()

	logo, err := h.service.SaveLogo(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, logo)
}

// GetLogo handles GET /upload/logo
func (h *UploadHandler) GetLogo(c *gin.Context) {
	path, contentType, err := h.service.LogoPath(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "private, max-age=300")
	c.File(path)
}

package handler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/einsatzpix/gallery-api/internal/dto"
	"github.com/einsatzpix/gallery-api/internal/models"
	"github.com/einsatzpix/gallery-api/internal/service"
	appErrors "github.com/einsatzpix/gallery-api/pkg/errors"
	"github.com/einsatzpix/gallery-api/pkg/response"
)

type photoService interface {
	Upload(ctx context.Context, upload service.PhotoUpload, meta dto.UploadPhotoRequest, clientIP string) (*models.Photo, error)
	List() []models.Photo
	Download(id string) (*service.PhotoDownload, error)
}

// PhotoHandler manages the gallery HTTP endpoints.
type PhotoHandler struct {
	service photoService
}

// NewPhotoHandler constructs the handler.
func NewPhotoHandler(service photoService) *PhotoHandler {
	return &PhotoHandler{service: service}
}

// Upload godoc
// @Summary Upload a photo
// @Tags Photos
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image file"
// @Param mission_number formData string false "Mission number"
// @Param mission_desc formData string false "Mission description"
// @Success 200 {object} response.Envelope
// @Router /upload [post]
func (h *PhotoHandler) Upload(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "photo service not configured"))
		return
	}
	var req dto.UploadPhotoRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid upload payload"))
		return
	}

	upload := service.PhotoUpload{ContentLength: c.Request.ContentLength}
	if fileHeader, err := c.FormFile("file"); err == nil {
		src, openErr := fileHeader.Open()
		if openErr != nil {
			response.Error(c, appErrors.Wrap(openErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
			return
		}
		defer src.Close() //nolint:errcheck
		upload.Filename = fileHeader.Filename
		upload.Size = fileHeader.Size
		upload.Content = src
	}

	photo, err := h.service.Upload(c.Request.Context(), upload, req, clientIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Photo(c, photo)
}

// List godoc
// @Summary List all photos, most recent first
// @Tags Photos
// @Produce json
// @Success 200 {array} models.Photo
// @Router /photos [get]
func (h *PhotoHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "photo service not configured"))
		return
	}
	response.JSON(c, http.StatusOK, h.service.List())
}

// Download godoc
// @Summary Download the original file for a photo
// @Tags Photos
// @Produce octet-stream
// @Param id path string true "Photo ID"
// @Success 200 {file} binary
// @Router /download/{id} [get]
func (h *PhotoHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "photo service not configured"))
		return
	}
	result, err := h.service.Download(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, "application/octet-stream", result.File, nil)
}

// clientIdentity resolves the best-effort caller address used for quota
// accounting: first entry of X-Forwarded-For when present, otherwise the
// direct connection address.
func clientIdentity(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil && host != "" {
		return host
	}
	if c.Request.RemoteAddr != "" {
		return c.Request.RemoteAddr
	}
	return "0.0.0.0"
}

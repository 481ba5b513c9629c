package videos

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidvault/backend/pkg/response"
)

// Handler handles video HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a videos handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Upload handles POST /videos (multipart, field "file", optional "description").
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	description := c.PostForm("description")

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.BadRequest(c, "failed to read uploaded file")
		return
	}
	defer f.Close()

	video, err := h.svc.Ingest(c.Request.Context(), fileHeader.Filename, description, contentType, f)
	if err != nil {
		var ingestErr *IngestError
		if errors.As(err, &ingestErr) {
			switch ingestErr.Kind {
			case IngestPayloadTooLarge:
				response.PayloadTooLarge(c, "uploaded file exceeds the maximum allowed size")
			case IngestStorageFailed:
				response.BadRequest(c, "failed to store video content")
			case IngestMetadataFailed:
				response.BadRequest(c, "failed to record video metadata")
			default:
				response.BadRequest(c, "failed to ingest video")
			}
			return
		}
		h.logger.Warn("upload aborted", zap.Error(err), zap.String("filename", fileHeader.Filename))
		response.BadRequest(c, "failed to read upload")
		return
	}
	response.Created(c, video)
}

// GetByID handles GET /videos/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	video, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Video not found")
			return
		}
		h.logger.Error("get video failed", zap.Error(err), zap.String("id", id.String()))
		response.Internal(c, "failed to fetch video")
		return
	}
	response.OK(c, video)
}

// Download handles GET /videos/:id/content, streaming the stored object.
func (h *Handler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	v, body, contentType, err := h.svc.OpenContent(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Video not found")
			return
		}
		h.logger.Error("open video content failed", zap.Error(err), zap.String("id", id.String()))
		response.Internal(c, "failed to fetch video content")
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, v.FileSize, contentType, body, nil)
}

// List handles GET /videos.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list videos failed", zap.Error(err))
		response.Internal(c, "failed to list videos")
		return
	}
	response.OK(c, list)
}

// Search handles GET /search?q=. An empty or unmatched query is not an error.
func (h *Handler) Search(c *gin.Context) {
	list, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.logger.Error("search videos failed", zap.Error(err), zap.String("q", c.Query("q")))
		response.Internal(c, "failed to search videos")
		return
	}
	response.OK(c, list)
}

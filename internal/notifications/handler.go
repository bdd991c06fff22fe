package notifications

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-sub009/pkg/response"
)

// Handler handles notification log HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByVideo handles GET /api/videos/:id/notifications.
func (h *Handler) ListByVideo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	list, err := h.repo.ListByVideo(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err), zap.String("video_id", id.String()))
		response.Internal(c, "failed to list notifications")
		return
	}
	response.OK(c, list)
}

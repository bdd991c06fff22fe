package courses

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-sub009/pkg/response"
)

// Handler handles course HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a courses handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/courses.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list courses failed", zap.Error(err))
		response.Internal(c, "failed to list courses")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /api/courses/:id.
func (h *Handler) GetByID(c *gin.Context) {
	course, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Internal(c, "failed to load course")
		return
	}
	if course == nil {
		response.NotFound(c, "course not found")
		return
	}
	response.OK(c, course)
}

// ListLessons handles GET /api/courses/:id/lessons.
func (h *Handler) ListLessons(c *gin.Context) {
	list, err := h.repo.ListLessons(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Internal(c, "failed to list lessons")
		return
	}
	response.OK(c, list)
}

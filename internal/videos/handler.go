package videos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-sub009/config"
	"github.com/danribes/mystic-ecom-sub009/internal/middleware"
	"github.com/danribes/mystic-ecom-sub009/internal/models"
	"github.com/danribes/mystic-ecom-sub009/internal/stream"
	"github.com/danribes/mystic-ecom-sub009/pkg/cache"
	"github.com/danribes/mystic-ecom-sub009/pkg/response"
	"github.com/danribes/mystic-ecom-sub009/pkg/storage"
)

// allowedExtensions is the upload filename whitelist.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".flv":  true,
}

// Store is the video persistence surface the handlers need.
type Store interface {
	Create(ctx context.Context, v *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.Video, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Video, error)
	HasActiveForLesson(ctx context.Context, courseID, lessonID string) (bool, error)
	ApplyReconcile(ctx context.Context, v *models.Video) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Provider is the streaming-provider surface the handlers need.
type Provider interface {
	IssueUploadTicket(ctx context.Context, opts stream.TicketOptions) (*stream.UploadTicket, error)
	DeleteAsset(ctx context.Context, uid string) error
}

// LessonChecker verifies that a (course, lesson) pair exists.
type LessonChecker interface {
	LessonExists(ctx context.Context, courseID, lessonID string) (bool, error)
}

// UploadRequest is the body for POST /api/videos/upload.
type UploadRequest struct {
	Filename    string `json:"filename"`
	FileSize    int64  `json:"fileSize"`
	CourseID    string `json:"courseId"`
	LessonID    string `json:"lessonId"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UploadTicketResponse is the intake success body.
type UploadTicketResponse struct {
	TusURL    string    `json:"tusUrl"`
	VideoID   string    `json:"videoId"`   // provider asset id
	DBVideoID uuid.UUID `json:"dbVideoId"` // internal record id
	ExpiresAt time.Time `json:"expiresAt"`
}

// Handler handles video HTTP endpoints (intake, listing, delete, archive download).
type Handler struct {
	store    Store
	lessons  LessonChecker
	provider Provider
	cache    *cache.Cache
	s3       *storage.S3 // optional; nil disables archive downloads
	cfg      config.ProviderConfig
	logger   *zap.Logger
}

// NewHandler creates a videos handler.
func NewHandler(store Store, lessons LessonChecker, provider Provider, videoCache *cache.Cache, cfg config.ProviderConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, lessons: lessons, provider: provider, cache: videoCache, cfg: cfg, logger: logger}
}

// SetArchiveStorage enables presigned archive downloads.
func (h *Handler) SetArchiveStorage(s3 *storage.S3) { h.s3 = s3 }

// Upload handles POST /api/videos/upload. Validates locally, requests a
// direct-upload ticket from the provider, then records a provisional row.
func (h *Handler) Upload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if msg := h.validateUpload(req); msg != "" {
		response.BadRequest(c, msg)
		return
	}

	ctx := c.Request.Context()
	ok, err := h.lessons.LessonExists(ctx, req.CourseID, req.LessonID)
	if err != nil {
		h.logger.Error("lesson lookup failed", zap.Error(err), zap.String("course_id", req.CourseID))
		response.Internal(c, "failed to verify lesson")
		return
	}
	if !ok {
		response.NotFound(c, "course or lesson not found")
		return
	}
	active, err := h.store.HasActiveForLesson(ctx, req.CourseID, req.LessonID)
	if err != nil {
		response.Internal(c, "failed to check existing videos")
		return
	}
	if active {
		response.Conflict(c, "lesson already has a pending or ready video")
		return
	}

	uploaderID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	now := time.Now()
	expiry := now.Add(time.Duration(h.cfg.UploadTTLMinutes) * time.Minute)

	ticket, err := h.provider.IssueUploadTicket(ctx, stream.TicketOptions{
		MaxDurationSeconds: h.cfg.MaxDurationSeconds,
		Expiry:             expiry,
		Creator:            uploaderID.String(),
		Meta: map[string]string{
			"courseId": req.CourseID,
			"lessonId": req.LessonID,
			"title":    req.Title,
		},
	})
	if err != nil {
		h.logger.Error("upload ticket request failed", zap.Error(err), zap.String("course_id", req.CourseID), zap.String("lesson_id", req.LessonID))
		response.BadGateway(c, "upload provider unavailable")
		return
	}

	meta, _ := json.Marshal(models.UploadMetadata{
		Filename:   req.Filename,
		FileSize:   req.FileSize,
		UploadedBy: uploaderID,
		UploadedAt: now,
	})
	video := &models.Video{
		ProviderVideoID: ticket.ProviderVideoID,
		CourseID:        req.CourseID,
		LessonID:        req.LessonID,
		Title:           req.Title,
		Description:     req.Description,
		Metadata:        meta,
		Status:          models.VideoStatusQueued,
	}
	if err := h.store.Create(ctx, video); err != nil {
		// Ticket is already issued and cannot be revoked cheaply; the asset
		// becomes an orphan the worker sweep reconciles against.
		h.logger.Error("create video record failed", zap.Error(err), zap.String("provider_video_id", ticket.ProviderVideoID))
		response.Internal(c, "failed to save video record")
		return
	}

	h.logger.Info("upload ticket issued",
		zap.String("video_id", video.ID.String()),
		zap.String("provider_video_id", ticket.ProviderVideoID),
		zap.String("course_id", req.CourseID),
		zap.String("lesson_id", req.LessonID))
	response.Created(c, UploadTicketResponse{
		TusURL:    ticket.URL,
		VideoID:   ticket.ProviderVideoID,
		DBVideoID: video.ID,
		ExpiresAt: expiry,
	})
}

func (h *Handler) validateUpload(req UploadRequest) string {
	switch {
	case req.Filename == "":
		return "filename is required"
	case req.FileSize <= 0:
		return "fileSize is required"
	case req.CourseID == "":
		return "courseId is required"
	case req.LessonID == "":
		return "lessonId is required"
	case req.Title == "":
		return "title is required"
	}
	ext := strings.ToLower(path.Ext(req.Filename))
	if !allowedExtensions[ext] {
		return fmt.Sprintf("file type %q is not allowed", ext)
	}
	if req.FileSize > h.cfg.MaxUploadBytes {
		return fmt.Sprintf("fileSize exceeds maximum of %d bytes", h.cfg.MaxUploadBytes)
	}
	return ""
}

// GetByID handles GET /api/videos/:id. Serves from the advisory cache when warm.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	if v, ok := h.cache.GetVideo(c.Request.Context(), id); ok {
		response.OK(c, v)
		return
	}
	v, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load video")
		return
	}
	if v == nil {
		response.NotFound(c, "video not found")
		return
	}
	h.cache.SetVideo(c.Request.Context(), v)
	response.OK(c, v)
}

// ListByCourse handles GET /api/courses/:id/videos.
func (h *Handler) ListByCourse(c *gin.Context) {
	courseID := c.Param("id")
	if courseID == "" {
		response.BadRequest(c, "invalid course id")
		return
	}
	if list, ok := h.cache.GetCourseVideos(c.Request.Context(), courseID); ok {
		response.OK(c, list)
		return
	}
	list, err := h.store.ListByCourse(c.Request.Context(), courseID)
	if err != nil {
		h.logger.Error("list videos failed", zap.Error(err), zap.String("course_id", courseID))
		response.Internal(c, "failed to list videos")
		return
	}
	h.cache.SetCourseVideos(c.Request.Context(), courseID, list)
	response.OK(c, list)
}

// Delete handles DELETE /api/videos/:id. Removes the provider asset first so
// no row outlives its asset, then the record, then purges cache entries.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	ctx := c.Request.Context()
	v, err := h.store.GetByID(ctx, id)
	if err != nil {
		response.Internal(c, "failed to load video")
		return
	}
	if v == nil {
		response.NotFound(c, "video not found")
		return
	}
	if err := h.provider.DeleteAsset(ctx, v.ProviderVideoID); err != nil && !errors.Is(err, stream.ErrAssetNotFound) {
		h.logger.Error("provider delete failed", zap.Error(err), zap.String("provider_video_id", v.ProviderVideoID))
		response.BadGateway(c, "failed to delete provider asset")
		return
	}
	if err := h.store.Delete(ctx, id); err != nil {
		response.Internal(c, "failed to delete video")
		return
	}
	if h.s3 != nil && v.ArchiveKey != "" {
		if err := h.s3.DeleteObject(ctx, h.s3.ArchiveBucket(), v.ArchiveKey); err != nil {
			// Record is gone; an orphaned archive object is only a storage leak.
			h.logger.Warn("archive object delete failed", zap.Error(err), zap.String("archive_key", v.ArchiveKey))
		}
	}
	h.cache.Purge(ctx, v.ID, v.CourseID)
	h.logger.Info("video deleted", zap.String("video_id", id.String()), zap.String("provider_video_id", v.ProviderVideoID))
	response.NoContent(c)
}

// ArchiveDownloadURL handles GET /api/videos/:id/archive-url. Returns a
// presigned S3 URL for the archived source file of a ready video.
func (h *Handler) ArchiveDownloadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "archive storage not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	v, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load video")
		return
	}
	if v == nil {
		response.NotFound(c, "video not found")
		return
	}
	if v.Status != models.VideoStatusReady || v.ArchiveKey == "" {
		response.BadRequest(c, "video archive not available")
		return
	}
	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.ArchiveBucket(), v.ArchiveKey, expire)
	if err != nil {
		h.logger.Error("presign archive download failed", zap.Error(err), zap.String("video_id", id.String()))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(expire.Seconds())})
}

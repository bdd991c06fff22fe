package videos

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-sub009/internal/models"
	"github.com/danribes/mystic-ecom-sub009/internal/stream"
	"github.com/danribes/mystic-ecom-sub009/pkg/queue"
	"github.com/danribes/mystic-ecom-sub009/pkg/response"
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "X-Signature"

// Enqueuer is the job-queue surface for post-commit side effects.
type Enqueuer interface {
	EnqueueArchive(ctx context.Context, payload queue.ArchivePayload) error
	EnqueueNotify(ctx context.Context, payload queue.NotifyPayload) error
	EnqueueCachePurge(ctx context.Context, payload queue.CachePurgePayload) error
}

// WebhookHandler receives signed status notifications from the streaming provider.
type WebhookHandler struct {
	store  Store
	queue  Enqueuer
	secret string
	logger *zap.Logger
}

// NewWebhookHandler creates a webhook handler. An empty secret disables
// signature verification; every unverified delivery is logged as degraded.
func NewWebhookHandler(store Store, q Enqueuer, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{store: store, queue: q, secret: secret, logger: logger}
}

// HandleNotification handles POST /api/webhooks/video-provider.
//
// Signature verification runs over the raw body before any parsing or DB
// access. Unknown provider ids are acknowledged with 200 so the provider
// stops retrying a permanently orphaned notification.
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}

	if h.secret != "" {
		if err := stream.VerifySignature(raw, c.GetHeader(SignatureHeader), h.secret); err != nil {
			h.logger.Warn("webhook signature rejected", zap.Error(err), zap.String("client_ip", c.ClientIP()))
			response.Unauthorized(c, "invalid webhook signature")
			return
		}
	} else {
		h.logger.Warn("webhook signature verification disabled (no secret configured)")
	}

	var ev stream.WebhookEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		response.BadRequest(c, "invalid payload: "+err.Error())
		return
	}
	if ev.UID == "" {
		response.BadRequest(c, "uid required")
		return
	}

	ctx := c.Request.Context()
	v, err := h.store.GetByProviderID(ctx, ev.UID)
	if err != nil {
		h.logger.Error("video lookup failed", zap.Error(err), zap.String("uid", ev.UID))
		response.Internal(c, "failed to load video")
		return
	}
	if v == nil {
		h.logger.Info("webhook for unknown video ignored", zap.String("uid", ev.UID), zap.String("state", ev.Status.State))
		c.JSON(http.StatusOK, response.Body{Success: true, Data: gin.H{"status": "ignored"}})
		return
	}

	prevStatus := v.Status
	merged := Reconcile(*v, ev)
	if err := h.store.ApplyReconcile(ctx, &merged); err != nil {
		h.logger.Error("reconcile update failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		response.Internal(c, "failed to update video")
		return
	}

	if merged.Status == models.VideoStatusError {
		h.logger.Error("video processing failed",
			zap.String("video_id", v.ID.String()),
			zap.String("uid", ev.UID),
			zap.String("reason", merged.ErrorMessage))
	}

	h.enqueueSideEffects(ctx, &merged, prevStatus)

	h.logger.Info("webhook reconciled",
		zap.String("video_id", v.ID.String()),
		zap.String("uid", ev.UID),
		zap.String("from", prevStatus),
		zap.String("to", merged.Status),
		zap.Int("progress", merged.ProcessingProgress))
	response.OK(c, gin.H{"video_id": v.ID, "status": merged.Status})
}

// enqueueSideEffects schedules post-commit work. Each job is idempotent and
// individually retryable; enqueue failures must not fail the webhook response.
func (h *WebhookHandler) enqueueSideEffects(ctx context.Context, v *models.Video, prevStatus string) {
	if err := h.queue.EnqueueCachePurge(ctx, queue.CachePurgePayload{VideoID: v.ID, CourseID: v.CourseID}); err != nil {
		h.logger.Warn("enqueue cache purge failed", zap.Error(err), zap.String("video_id", v.ID.String()))
	}
	if v.Status == prevStatus || !models.IsTerminalVideoStatus(v.Status) {
		return
	}
	if err := h.queue.EnqueueNotify(ctx, queue.NotifyPayload{
		VideoID:      v.ID,
		CourseID:     v.CourseID,
		LessonID:     v.LessonID,
		Event:        v.Status,
		Title:        v.Title,
		ErrorMessage: v.ErrorMessage,
	}); err != nil {
		h.logger.Warn("enqueue notify failed", zap.Error(err), zap.String("video_id", v.ID.String()))
	}
	if v.Status == models.VideoStatusReady {
		if err := h.queue.EnqueueArchive(ctx, queue.ArchivePayload{
			VideoID:         v.ID,
			ProviderVideoID: v.ProviderVideoID,
			CourseID:        v.CourseID,
		}); err != nil {
			h.logger.Warn("enqueue archive failed", zap.Error(err), zap.String("video_id", v.ID.String()))
		}
	}
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-sub009/internal/models"
	"github.com/danribes/mystic-ecom-sub009/internal/notifications"
	"github.com/danribes/mystic-ecom-sub009/internal/stream"
	"github.com/danribes/mystic-ecom-sub009/internal/videos"
	"github.com/danribes/mystic-ecom-sub009/pkg/cache"
	"github.com/danribes/mystic-ecom-sub009/pkg/queue"
	"github.com/danribes/mystic-ecom-sub009/pkg/storage"
)

// Processor runs post-reconciliation side effects off the Redis queue:
// cache purges, notification logging, and S3 archival of ready videos.
type Processor struct {
	videoRepo  *videos.Repository
	notifyRepo *notifications.Repository
	s3         *storage.S3
	cache      *cache.Cache
	provider   *stream.Client
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewProcessor creates a side-effect processor. s3 may be nil; archive jobs
// are then skipped with a warning instead of retried.
func NewProcessor(videoRepo *videos.Repository, notifyRepo *notifications.Repository, s3 *storage.S3, videoCache *cache.Cache, provider *stream.Client, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		videoRepo:  videoRepo,
		notifyRepo: notifyRepo,
		s3:         s3,
		cache:      videoCache,
		provider:   provider,
		queue:      q,
		logger:     logger,
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeCachePurge:
		return p.processCachePurge(ctx, job)
	case queue.JobTypeVideoNotify:
		return p.processNotify(ctx, job)
	case queue.JobTypeVideoArchive:
		return p.processArchive(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processCachePurge(ctx context.Context, job *queue.Job) error {
	var payload queue.CachePurgePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	p.cache.Purge(ctx, payload.VideoID, payload.CourseID)
	return nil
}

func (p *Processor) processNotify(ctx context.Context, job *queue.Job) error {
	var payload queue.NotifyPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	exists, err := p.notifyRepo.ExistsForVideoEvent(ctx, payload.VideoID, payload.Event)
	if err != nil {
		return fmt.Errorf("check existing notification: %w", err)
	}
	if exists {
		return nil
	}

	subject := fmt.Sprintf("Video %q is ready", payload.Title)
	body := fmt.Sprintf("The video for lesson %s/%s finished processing.", payload.CourseID, payload.LessonID)
	if payload.Event == models.VideoStatusError {
		subject = fmt.Sprintf("Video %q failed processing", payload.Title)
		body = fmt.Sprintf("The video for lesson %s/%s failed: %s", payload.CourseID, payload.LessonID, payload.ErrorMessage)
	}
	n := &models.NotificationLog{
		VideoID:   payload.VideoID,
		CourseID:  payload.CourseID,
		Event:     payload.Event,
		Recipient: "instructors",
		Subject:   subject,
		Body:      body,
		Status:    models.NotificationStatusPending,
	}
	if err := p.notifyRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("log notification: %w", err)
	}
	p.logger.Info("notification logged", zap.String("video_id", payload.VideoID.String()), zap.String("event", payload.Event))
	return nil
}

func (p *Processor) processArchive(ctx context.Context, job *queue.Job) error {
	if p.s3 == nil {
		p.logger.Warn("archive skipped, S3 not configured", zap.String("job_id", job.ID))
		return nil
	}
	var payload queue.ArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	v, err := p.videoRepo.GetByID(ctx, payload.VideoID)
	if err != nil {
		return fmt.Errorf("load video: %w", err)
	}
	if v == nil {
		p.logger.Warn("archive job for deleted video", zap.String("video_id", payload.VideoID.String()))
		return nil
	}
	if v.ArchiveKey != "" {
		return nil // already archived
	}

	downloadURL, err := p.provider.CreateDownload(ctx, payload.ProviderVideoID)
	if err != nil {
		return fmt.Errorf("create download: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	key := storage.ArchiveKey(payload.CourseID, payload.VideoID.String())
	url, err := p.s3.Upload(ctx, p.s3.ArchiveBucket(), key, contentType, resp.Body, resp.ContentLength)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.videoRepo.SetArchiveResult(ctx, payload.VideoID, url, key); err != nil {
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("video archived", zap.String("video_id", payload.VideoID.String()), zap.String("archive_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}

// RunSweep periodically reconciles stale queued records whose upload ticket
// TTL has passed without any webhook, by polling the provider directly.
func (p *Processor) RunSweep(ctx context.Context, interval, ticketTTL time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweepOnce(ctx, ticketTTL)
		}
	}
}

func (p *Processor) sweepOnce(ctx context.Context, ticketTTL time.Duration) {
	stale, err := p.videoRepo.ListStaleQueued(ctx, ticketTTL)
	if err != nil {
		p.logger.Warn("stale sweep query failed", zap.Error(err))
		return
	}
	for _, v := range stale {
		asset, err := p.provider.GetAsset(ctx, v.ProviderVideoID)
		if err != nil {
			if errors.Is(err, stream.ErrAssetNotFound) {
				if err := p.videoRepo.SetError(ctx, v.ID, "upload ticket expired before upload completed"); err != nil {
					p.logger.Warn("mark expired failed", zap.Error(err), zap.String("video_id", v.ID.String()))
				}
				continue
			}
			p.logger.Warn("asset poll failed", zap.Error(err), zap.String("provider_video_id", v.ProviderVideoID))
			continue
		}
		merged := videos.Reconcile(v, videos.EventFromAsset(asset))
		if merged.Status == v.Status && merged.ProcessingProgress == v.ProcessingProgress {
			continue
		}
		if err := p.videoRepo.ApplyReconcile(ctx, &merged); err != nil {
			p.logger.Warn("sweep reconcile failed", zap.Error(err), zap.String("video_id", v.ID.String()))
			continue
		}
		p.cache.Purge(ctx, v.ID, v.CourseID)
		p.logger.Info("stale video reconciled from provider poll",
			zap.String("video_id", v.ID.String()),
			zap.String("from", v.Status),
			zap.String("to", merged.Status))
	}
}

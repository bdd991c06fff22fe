package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueVideos is the Redis list key for video side-effect jobs.
	QueueVideos = "worker:videos"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeVideoArchive JobType = "video_archive"
	JobTypeVideoNotify  JobType = "video_notify"
	JobTypeCachePurge   JobType = "cache_purge"
)

// ArchivePayload is the payload for archiving a ready video's source to S3.
type ArchivePayload struct {
	VideoID         uuid.UUID `json:"video_id"`
	ProviderVideoID string    `json:"provider_video_id"`
	CourseID        string    `json:"course_id"`
}

// NotifyPayload is the payload for a video ready/error notification.
type NotifyPayload struct {
	VideoID      uuid.UUID `json:"video_id"`
	CourseID     string    `json:"course_id"`
	LessonID     string    `json:"lesson_id"`
	Event        string    `json:"event"` // "ready" or "error"
	Title        string    `json:"title"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// CachePurgePayload is the payload for purging cached video entries.
type CachePurgePayload struct {
	VideoID  uuid.UUID `json:"video_id"`
	CourseID string    `json:"course_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func (q *Queue) enqueue(ctx context.Context, typ JobType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueVideos, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(typ)))
	return nil
}

// EnqueueArchive enqueues a video archive job.
func (q *Queue) EnqueueArchive(ctx context.Context, payload ArchivePayload) error {
	return q.enqueue(ctx, JobTypeVideoArchive, payload)
}

// EnqueueNotify enqueues a video notification job.
func (q *Queue) EnqueueNotify(ctx context.Context, payload NotifyPayload) error {
	return q.enqueue(ctx, JobTypeVideoNotify, payload)
}

// EnqueueCachePurge enqueues a cache purge job.
func (q *Queue) EnqueueCachePurge(ctx context.Context, payload CachePurgePayload) error {
	return q.enqueue(ctx, JobTypeCachePurge, payload)
}

// Dequeue blocks until a job is available or ctx is done. Returns job and queue name.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueVideos).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueVideos, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

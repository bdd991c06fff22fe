// Package cache is an advisory Redis cache for video metadata.
// Cache failures never surface to callers: reads fall through to the
// database and writes/purges are logged and dropped.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-sub009/internal/models"
)

const (
	keyVideo      = "video:"         // video:{id}
	keyCourseList = "course_videos:" // course_videos:{course_id}
	defaultTTL    = 5 * time.Minute
)

// Cache caches video lookups in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a video cache. A nil client disables caching entirely.
func New(client *redis.Client, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, ttl: defaultTTL, logger: logger}
}

// GetVideo returns a cached video, or (nil, false) on miss or any cache error.
func (c *Cache) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, keyVideo+id.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("video cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var v models.Video
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("video cache decode failed", zap.Error(err))
		return nil, false
	}
	return &v, true
}

// SetVideo stores a video. Errors are logged and dropped.
func (c *Cache) SetVideo(ctx context.Context, v *models.Video) {
	if c == nil || c.client == nil || v == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyVideo+v.ID.String(), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("video cache set failed", zap.Error(err))
	}
}

// GetCourseVideos returns a cached course video list, or (nil, false) on miss or error.
func (c *Cache) GetCourseVideos(ctx context.Context, courseID string) ([]models.Video, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, keyCourseList+courseID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("course cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var list []models.Video
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

// SetCourseVideos stores a course video list. Errors are logged and dropped.
func (c *Cache) SetCourseVideos(ctx context.Context, courseID string, list []models.Video) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyCourseList+courseID, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("course cache set failed", zap.Error(err))
	}
}

// Purge drops the cached entries for a video and its course list.
func (c *Cache) Purge(ctx context.Context, videoID uuid.UUID, courseID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, keyVideo+videoID.String(), keyCourseList+courseID).Err(); err != nil {
		c.logger.Warn("cache purge failed", zap.Error(err),
			zap.String("video_id", videoID.String()), zap.String("course_id", courseID))
	}
}

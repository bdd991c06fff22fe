package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danribes/mystic-ecom-sub009/internal/models"
)

// Repository handles notification log persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a notification log row.
func (r *Repository) Create(ctx context.Context, n *models.NotificationLog) error {
	const q = `INSERT INTO notification_logs (id, video_id, course_id, event, recipient, subject, body, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NULLIF($6,''), $7)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, n.VideoID, n.CourseID, n.Event, n.Recipient, n.Subject, n.Body, n.Status).
		Scan(&n.ID, &n.CreatedAt)
}

// ExistsForVideoEvent reports whether a notification was already logged for
// this video/event pair; used to keep notify jobs idempotent under retries.
func (r *Repository) ExistsForVideoEvent(ctx context.Context, videoID uuid.UUID, event string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM notification_logs WHERE video_id = $1 AND event = $2)`
	var exists bool
	err := r.pool.QueryRow(ctx, q, videoID, event).Scan(&exists)
	return exists, err
}

// ListByVideo returns all notifications logged for a video.
func (r *Repository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]models.NotificationLog, error) {
	const q = `SELECT id, video_id, course_id, event, recipient, subject, COALESCE(body,''), status, created_at
		FROM notification_logs WHERE video_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.NotificationLog
	for rows.Next() {
		var n models.NotificationLog
		if err := rows.Scan(&n.ID, &n.VideoID, &n.CourseID, &n.Event, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

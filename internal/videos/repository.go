package videos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danribes/mystic-ecom-sub009/internal/models"
)

const videoColumns = `id, provider_video_id, course_id, lesson_id, title, COALESCE(description,''), metadata,
	status, processing_progress, COALESCE(duration,0), COALESCE(thumbnail_url,''), COALESCE(playback_hls_url,''),
	COALESCE(playback_dash_url,''), COALESCE(error_message,''), COALESCE(archive_url,''), COALESCE(archive_key,''),
	created_at, updated_at`

// Repository handles video persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.ProviderVideoID, &v.CourseID, &v.LessonID, &v.Title, &v.Description, &v.Metadata,
		&v.Status, &v.ProcessingProgress, &v.Duration, &v.ThumbnailURL, &v.PlaybackHLSURL,
		&v.PlaybackDASHURL, &v.ErrorMessage, &v.ArchiveURL, &v.ArchiveKey, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a new video record (provisional row at ticket issuance).
func (r *Repository) Create(ctx context.Context, v *models.Video) error {
	const q = `INSERT INTO videos (id, provider_video_id, course_id, lesson_id, title, description, metadata, status, processing_progress)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NULLIF($5,''), $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, v.ProviderVideoID, v.CourseID, v.LessonID, v.Title, v.Description, v.Metadata, v.Status, v.ProcessingProgress).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

// GetByID returns a video by internal id, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	v, err := scanVideo(r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// GetByProviderID returns a video by provider id, or (nil, nil) when absent.
func (r *Repository) GetByProviderID(ctx context.Context, providerID string) (*models.Video, error) {
	v, err := scanVideo(r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE provider_video_id = $1`, providerID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// ListByCourse returns all videos for a course, lesson order.
func (r *Repository) ListByCourse(ctx context.Context, courseID string) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+videoColumns+` FROM videos WHERE course_id = $1 ORDER BY lesson_id, created_at`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// HasActiveForLesson reports whether the lesson already has a ready-or-pending video.
func (r *Repository) HasActiveForLesson(ctx context.Context, courseID, lessonID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM videos
		WHERE course_id = $1 AND lesson_id = $2 AND status IN ('queued','inprogress','ready'))`
	var exists bool
	err := r.pool.QueryRow(ctx, q, courseID, lessonID).Scan(&exists)
	return exists, err
}

// ApplyReconcile persists a reconciled record with a single full-field update.
// The status CASE refuses regression out of a terminal state even if a
// concurrent delivery won the race between our read and this write.
func (r *Repository) ApplyReconcile(ctx context.Context, v *models.Video) error {
	const q = `UPDATE videos SET
		status = CASE WHEN status IN ('ready','error') AND $2 NOT IN ('ready','error') THEN status ELSE $2 END,
		processing_progress = $3,
		duration = NULLIF($4, 0::double precision),
		thumbnail_url = NULLIF($5, ''),
		playback_hls_url = NULLIF($6, ''),
		playback_dash_url = NULLIF($7, ''),
		error_message = NULLIF($8, ''),
		updated_at = NOW()
		WHERE id = $1
		RETURNING status, updated_at`
	return r.pool.QueryRow(ctx, q, v.ID, v.Status, v.ProcessingProgress, v.Duration,
		v.ThumbnailURL, v.PlaybackHLSURL, v.PlaybackDASHURL, v.ErrorMessage).
		Scan(&v.Status, &v.UpdatedAt)
}

// SetArchiveResult records the S3 archive location for a video.
func (r *Repository) SetArchiveResult(ctx context.Context, id uuid.UUID, archiveURL, archiveKey string) error {
	const q = `UPDATE videos SET archive_url = $1, archive_key = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, archiveURL, archiveKey, id)
	return err
}

// SetError marks a video failed with a message (used by the stale sweep).
func (r *Repository) SetError(ctx context.Context, id uuid.UUID, msg string) error {
	const q = `UPDATE videos SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3 AND status NOT IN ('ready','error')`
	_, err := r.pool.Exec(ctx, q, models.VideoStatusError, msg, id)
	return err
}

// Delete removes a video record after its provider asset is gone.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	return err
}

// ListStaleQueued returns queued videos older than the given age (ticket TTL
// passed without a single webhook); candidates for the reconciliation sweep.
func (r *Repository) ListStaleQueued(ctx context.Context, olderThan time.Duration) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE status = 'queued' AND created_at < NOW() - make_interval(secs => $1) ORDER BY created_at LIMIT 100`,
		olderThan.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

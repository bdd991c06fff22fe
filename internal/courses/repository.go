package courses

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danribes/mystic-ecom-sub009/internal/models"
)

// Repository handles course and lesson persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a courses repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a course by id, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Course, error) {
	const q = `SELECT id, title, COALESCE(description,''), published, created_at, updated_at FROM courses WHERE id = $1`
	var c models.Course
	err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Title, &c.Description, &c.Published, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all courses, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Course, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, COALESCE(description,''), published, created_at, updated_at FROM courses ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Published, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// LessonExists reports whether the (course, lesson) pair exists.
func (r *Repository) LessonExists(ctx context.Context, courseID, lessonID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM lessons WHERE course_id = $1 AND id = $2)`
	var exists bool
	err := r.pool.QueryRow(ctx, q, courseID, lessonID).Scan(&exists)
	return exists, err
}

// ListLessons returns the lessons of a course in position order.
func (r *Repository) ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, course_id, title, position, created_at FROM lessons WHERE course_id = $1 ORDER BY position`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Lesson
	for rows.Next() {
		var l models.Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Title, &l.Position, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

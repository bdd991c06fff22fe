package models

import "time"

// Course is a purchasable learning course. Video assets attach to its lessons.
type Course struct {
	ID          string    `json:"id"` // slug, e.g. "tarot-fundamentals"
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Lesson is one unit of a course; at most one ready-or-pending video per lesson.
type Lesson struct {
	ID        string    `json:"id"` // slug, unique within course
	CourseID  string    `json:"course_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

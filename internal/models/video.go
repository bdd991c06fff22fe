package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// VideoStatus represents the video processing lifecycle.
const (
	VideoStatusQueued     = "queued"
	VideoStatusInProgress = "inprogress"
	VideoStatusReady      = "ready"
	VideoStatusError      = "error"
)

// IsTerminalVideoStatus reports whether a status admits no further transitions.
func IsTerminalVideoStatus(status string) bool {
	return status == VideoStatusReady || status == VideoStatusError
}

// Video is one lesson's video asset (provider-hosted, metadata here).
type Video struct {
	ID                 uuid.UUID       `json:"id"`
	ProviderVideoID    string          `json:"provider_video_id"`
	CourseID           string          `json:"course_id"`
	LessonID           string          `json:"lesson_id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
	Status             string          `json:"status"`
	ProcessingProgress int             `json:"processing_progress"`
	Duration           float64         `json:"duration,omitempty"` // seconds; 0 = not yet reported
	ThumbnailURL       string          `json:"thumbnail_url,omitempty"`
	PlaybackHLSURL     string          `json:"playback_hls_url,omitempty"`
	PlaybackDASHURL    string          `json:"playback_dash_url,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	ArchiveURL         string          `json:"archive_url,omitempty"`
	ArchiveKey         string          `json:"archive_key,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// UploadMetadata is the upload context stored in Video.Metadata.
type UploadMetadata struct {
	Filename   string    `json:"filename"`
	FileSize   int64     `json:"file_size"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

package entity

import (
	"time"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// GenerationJob is a single icon generation request. Status moves
// pending -> processing -> completed|failed and never leaves a terminal state.
type GenerationJob struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"job_id"`
	AnonSessionID  string     `gorm:"not null;type:uuid;index" json:"anon_session_id"`
	SourceImageURL string     `gorm:"not null" json:"source_image_url"`
	StyleType      StyleType  `gorm:"not null;type:text" json:"style_type"`
	Status         JobStatus  `gorm:"not null;type:text" json:"status"`
	ResultImageURL *string    `json:"result_image_url"`
	ErrorMessage   *string    `json:"error_message"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

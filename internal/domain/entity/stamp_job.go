package entity

import (
	"time"

	"gorm.io/datatypes"
)

// MaxStampsPerRequest caps a single batch, which is also the daily quota.
const MaxStampsPerRequest = 40

// LineStampBatchJob tracks a batch of labeled sticker generations. Progress is
// a coarse 0-100 signal updated as items reach a terminal state.
type LineStampBatchJob struct {
	ID                string                      `gorm:"primaryKey;type:uuid" json:"job_id"`
	AnonSessionID     string                      `gorm:"not null;type:uuid;index" json:"anon_session_id"`
	ImageURL          string                      `gorm:"not null" json:"image_url"`
	Texts             datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"texts"`
	StampCount        int                         `gorm:"not null" json:"stamp_count"`
	IncludeMainAndTab bool                        `gorm:"not null" json:"include_main_and_tab"`
	Status            JobStatus                   `gorm:"not null;type:text" json:"status"`
	Progress          int                         `gorm:"not null;default:0" json:"progress"`
	MainImageURL      *string                     `json:"main_image_url"`
	TabImageURL       *string                     `json:"tab_image_url"`
	ArchiveURL        *string                     `json:"archive_url"`
	ErrorMessage      *string                     `json:"error_message"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

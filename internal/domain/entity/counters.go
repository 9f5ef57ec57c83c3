package entity

import "time"

// RateLimitCounter is the per-client sliding counter. Keyed by a one-way hash
// of the client address so raw addresses are never persisted. Rows decay
// naturally: the count resets to 1 once the window has elapsed.
type RateLimitCounter struct {
	IPHash        string    `gorm:"primaryKey;column:ip_hash"`
	RequestCount  int       `gorm:"not null"`
	LastRequestAt time.Time `gorm:"not null"`
}

func (RateLimitCounter) TableName() string { return "rate_limits" }

// DailyQuotaCounter holds one row per (session, UTC day). Concurrent
// first-writers race on creation; the loser re-reads and updates.
type DailyQuotaCounter struct {
	AnonSessionID   string    `gorm:"primaryKey;type:uuid"`
	Date            string    `gorm:"primaryKey;type:date"`
	GeneratedCount  int       `gorm:"not null"`
	LastGeneratedAt time.Time `gorm:"not null"`
}

func (DailyQuotaCounter) TableName() string { return "generated_stamp_counts" }

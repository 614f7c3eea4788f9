package domain

import "time"

// EntryStatus represents the lifecycle state of a queue entry
type EntryStatus string

const (
	StatusScheduled EntryStatus = "scheduled"
	StatusPublished EntryStatus = "published"
	StatusFailed    EntryStatus = "failed"
	StatusCancelled EntryStatus = "cancelled"
)

// QuotaStatuses are the entry statuses counted toward daily/hourly quotas.
// Failed and cancelled entries free their slot once marked as such.
var QuotaStatuses = []EntryStatus{StatusScheduled, StatusPublished}

// Priority represents publication priority of a queue entry
type Priority string

const (
	PriorityHigh    Priority = "high"
	PriorityDefault Priority = "default"
	PriorityLow     Priority = "low"
)

// QueueEntry represents one scheduled/attempted/completed publication
type QueueEntry struct {
	ID           int64             `json:"id"`
	ArticleID    int64             `json:"article_id"`
	PlatformID   int64             `json:"platform_id"`
	Priority     Priority          `json:"priority"`
	Status       EntryStatus       `json:"status"`
	ScheduledAt  time.Time         `json:"scheduled_at"`
	Attempts     int               `json:"attempts"`
	MaxAttempts  int               `json:"max_attempts"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Exhausted reports whether the entry ran out of retry attempts
func (e *QueueEntry) Exhausted() bool {
	return e.Attempts >= e.MaxAttempts
}

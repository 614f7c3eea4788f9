package domain

import "time"

// Platform represents an external publication destination
type Platform struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArticleStatus represents the denormalized publication state of an article
type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticleScheduled ArticleStatus = "scheduled"
	ArticlePublished ArticleStatus = "published"
)

// Article holds the denormalized scheduling fields maintained alongside the queue.
// Content, translations and generation metadata live outside this system.
type Article struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Status      ArticleStatus `json:"status"`
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

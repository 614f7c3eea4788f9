package repository

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pubplan/pubplan/pkg/domain"
)

// intListSQL is a JSON array of integers for SQL operations
type intListSQL []int

// Value implements driver.Valuer for database storage
func (l intListSQL) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for database retrieval
func (l *intListSQL) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		*l = nil
		return nil
	}

	return json.Unmarshal(data, l)
}

// metaSQL is a JSON object of string pairs for SQL operations
type metaSQL map[string]string

// Value implements driver.Valuer for database storage
func (m metaSQL) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval
func (m *metaSQL) Scan(value interface{}) error {
	if value == nil {
		*m = metaSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return json.Unmarshal([]byte("{}"), m)
	}

	return json.Unmarshal(data, m)
}

// platformSQL represents a platform for SQL operations
type platformSQL struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	URL       string    `db:"url"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// scheduleSQL represents a platform schedule override for SQL operations,
// nullable columns inherit global defaults
type scheduleSQL struct {
	ID                   int64      `db:"id"`
	PlatformID           int64      `db:"platform_id"`
	Active               bool       `db:"active"`
	ArticlesPerDay       *int       `db:"articles_per_day"`
	MaxPerHour           *int       `db:"max_per_hour"`
	ActiveHours          intListSQL `db:"active_hours"`
	ActiveDays           intListSQL `db:"active_days"`
	MinIntervalMinutes   *int       `db:"min_interval_minutes"`
	Timezone             *string    `db:"timezone"`
	PauseOnError         *bool      `db:"pause_on_error"`
	MaxErrorsBeforePause *int       `db:"max_errors_before_pause"`
	RandomizeTime        *bool      `db:"randomize_time"`
	RandomizeRangeMin    *int       `db:"randomize_range_minutes"`
	AvoidHourEdges       *bool      `db:"avoid_hour_edges"`
	EdgeMarginMinutes    *int       `db:"edge_margin_minutes"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

// entrySQL represents a publication queue entry for SQL operations
type entrySQL struct {
	ID           int64     `db:"id"`
	ArticleID    int64     `db:"article_id"`
	PlatformID   int64     `db:"platform_id"`
	Priority     string    `db:"priority"`
	Status       string    `db:"status"`
	ScheduledAt  time.Time `db:"scheduled_at"`
	Attempts     int       `db:"attempts"`
	MaxAttempts  int       `db:"max_attempts"`
	ErrorMessage string    `db:"error_message"`
	Metadata     metaSQL   `db:"metadata"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// articleSQL represents an article's denormalized scheduling fields
type articleSQL struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Status      string     `db:"status"`
	ScheduledAt *time.Time `db:"scheduled_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (p *platformSQL) toDomain() *domain.Platform {
	return &domain.Platform{
		ID:        p.ID,
		Name:      p.Name,
		URL:       p.URL,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (s *scheduleSQL) toDomain() *domain.ScheduleOverride {
	return &domain.ScheduleOverride{
		ID:                   s.ID,
		PlatformID:           s.PlatformID,
		Active:               s.Active,
		ArticlesPerDay:       s.ArticlesPerDay,
		MaxPerHour:           s.MaxPerHour,
		ActiveHours:          s.ActiveHours,
		ActiveDays:           s.ActiveDays,
		MinIntervalMinutes:   s.MinIntervalMinutes,
		Timezone:             s.Timezone,
		PauseOnError:         s.PauseOnError,
		MaxErrorsBeforePause: s.MaxErrorsBeforePause,
		RandomizeTime:        s.RandomizeTime,
		RandomizeRangeMin:    s.RandomizeRangeMin,
		AvoidHourEdges:       s.AvoidHourEdges,
		EdgeMarginMinutes:    s.EdgeMarginMinutes,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func (e *entrySQL) toDomain() *domain.QueueEntry {
	return &domain.QueueEntry{
		ID:           e.ID,
		ArticleID:    e.ArticleID,
		PlatformID:   e.PlatformID,
		Priority:     domain.Priority(e.Priority),
		Status:       domain.EntryStatus(e.Status),
		ScheduledAt:  e.ScheduledAt,
		Attempts:     e.Attempts,
		MaxAttempts:  e.MaxAttempts,
		ErrorMessage: e.ErrorMessage,
		Metadata:     e.Metadata,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func (a *articleSQL) toDomain() *domain.Article {
	return &domain.Article{
		ID:          a.ID,
		Title:       a.Title,
		Status:      domain.ArticleStatus(a.Status),
		ScheduledAt: a.ScheduledAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

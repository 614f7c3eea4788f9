package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pubplan/pubplan/pkg/domain"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// PlatformRepository handles platform and schedule-override database operations
type PlatformRepository struct {
	db *sqlx.DB
}

// NewPlatformRepository creates a new platform repository
func NewPlatformRepository(db *sqlx.DB) *PlatformRepository {
	return &PlatformRepository{db: db}
}

// CreatePlatform inserts a new platform
func (r *PlatformRepository) CreatePlatform(ctx context.Context, platform *domain.Platform) error {
	query := `INSERT INTO platforms (name, url) VALUES (?, ?)`
	result, err := r.db.ExecContext(ctx, query, platform.Name, platform.URL)
	if err != nil {
		return fmt.Errorf("create platform: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	platform.ID = id
	return nil
}

// GetPlatform retrieves a platform by ID
func (r *PlatformRepository) GetPlatform(ctx context.Context, id int64) (*domain.Platform, error) {
	var p platformSQL
	err := r.db.GetContext(ctx, &p, "SELECT * FROM platforms WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("platform %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get platform: %w", err)
	}
	return p.toDomain(), nil
}

// GetPlatforms retrieves all platforms ordered by name
func (r *PlatformRepository) GetPlatforms(ctx context.Context) ([]*domain.Platform, error) {
	var rows []platformSQL
	err := r.db.SelectContext(ctx, &rows, "SELECT * FROM platforms ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("get platforms: %w", err)
	}

	platforms := make([]*domain.Platform, len(rows))
	for i := range rows {
		platforms[i] = rows[i].toDomain()
	}
	return platforms, nil
}

// GetOverride retrieves the schedule override for a platform, nil if none exists
func (r *PlatformRepository) GetOverride(ctx context.Context, platformID int64) (*domain.ScheduleOverride, error) {
	var s scheduleSQL
	err := r.db.GetContext(ctx, &s, "SELECT * FROM platform_schedules WHERE platform_id = ?", platformID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule override: %w", err)
	}
	return s.toDomain(), nil
}

// SaveOverride inserts or replaces the schedule override for a platform
func (r *PlatformRepository) SaveOverride(ctx context.Context, override *domain.ScheduleOverride) error {
	rec := &scheduleSQL{
		PlatformID:           override.PlatformID,
		Active:               override.Active,
		ArticlesPerDay:       override.ArticlesPerDay,
		MaxPerHour:           override.MaxPerHour,
		ActiveHours:          override.ActiveHours,
		ActiveDays:           override.ActiveDays,
		MinIntervalMinutes:   override.MinIntervalMinutes,
		Timezone:             override.Timezone,
		PauseOnError:         override.PauseOnError,
		MaxErrorsBeforePause: override.MaxErrorsBeforePause,
		RandomizeTime:        override.RandomizeTime,
		RandomizeRangeMin:    override.RandomizeRangeMin,
		AvoidHourEdges:       override.AvoidHourEdges,
		EdgeMarginMinutes:    override.EdgeMarginMinutes,
	}

	query := `
		INSERT INTO platform_schedules (
			platform_id, active, articles_per_day, max_per_hour, active_hours,
			active_days, min_interval_minutes, timezone, pause_on_error,
			max_errors_before_pause, randomize_time, randomize_range_minutes,
			avoid_hour_edges, edge_margin_minutes
		) VALUES (
			:platform_id, :active, :articles_per_day, :max_per_hour, :active_hours,
			:active_days, :min_interval_minutes, :timezone, :pause_on_error,
			:max_errors_before_pause, :randomize_time, :randomize_range_minutes,
			:avoid_hour_edges, :edge_margin_minutes
		)
		ON CONFLICT(platform_id) DO UPDATE SET
			active = excluded.active,
			articles_per_day = excluded.articles_per_day,
			max_per_hour = excluded.max_per_hour,
			active_hours = excluded.active_hours,
			active_days = excluded.active_days,
			min_interval_minutes = excluded.min_interval_minutes,
			timezone = excluded.timezone,
			pause_on_error = excluded.pause_on_error,
			max_errors_before_pause = excluded.max_errors_before_pause,
			randomize_time = excluded.randomize_time,
			randomize_range_minutes = excluded.randomize_range_minutes,
			avoid_hour_edges = excluded.avoid_hour_edges,
			edge_margin_minutes = excluded.edge_margin_minutes,
			updated_at = CURRENT_TIMESTAMP
	`
	result, err := sqlx.NamedExecContext(ctx, r.db, query, rec)
	if err != nil {
		return fmt.Errorf("save schedule override: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil && override.ID == 0 {
		override.ID = id
	}
	return nil
}

// SetOverrideActive flips the active flag on an existing override
func (r *PlatformRepository) SetOverrideActive(ctx context.Context, platformID int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE platform_schedules SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE platform_id = ?",
		active, platformID)
	if err != nil {
		return fmt.Errorf("set override active: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("schedule override for platform %d: %w", platformID, ErrNotFound)
	}
	return nil
}

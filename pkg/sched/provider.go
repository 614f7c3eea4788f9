package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/pubplan/pubplan/pkg/domain"
)

// PlatformStore provides platform records and schedule overrides
type PlatformStore interface {
	GetPlatform(ctx context.Context, id int64) (*domain.Platform, error)
	GetOverride(ctx context.Context, platformID int64) (*domain.ScheduleOverride, error)
}

// Provider resolves effective per-platform scheduling configuration by
// overlaying the platform override onto global defaults. Resolution is a pure
// read, nothing is cached across calls since overrides can change between
// requests.
type Provider struct {
	defaults  domain.ScheduleConfig
	platforms PlatformStore
}

// NewProvider creates a config provider with the given global defaults
func NewProvider(defaults domain.ScheduleConfig, platforms PlatformStore) *Provider {
	return &Provider{defaults: defaults, platforms: platforms}
}

// Resolve returns the effective schedule config for a platform. Unknown
// platforms are a fatal configuration error, no silent fallback.
func (p *Provider) Resolve(ctx context.Context, platformID int64) (domain.ScheduleConfig, error) {
	if _, err := p.platforms.GetPlatform(ctx, platformID); err != nil {
		return domain.ScheduleConfig{}, fmt.Errorf("resolve schedule config: %w", err)
	}

	cfg := p.defaults
	cfg.ActiveHours = append([]int(nil), p.defaults.ActiveHours...)
	cfg.ActiveDays = append([]int(nil), p.defaults.ActiveDays...)

	override, err := p.platforms.GetOverride(ctx, platformID)
	if err != nil {
		return domain.ScheduleConfig{}, fmt.Errorf("resolve schedule config: %w", err)
	}
	if override == nil {
		return cfg, nil
	}

	// field-level merge, only explicitly set override fields replace defaults
	if override.ArticlesPerDay != nil {
		cfg.ArticlesPerDay = *override.ArticlesPerDay
	}
	if override.MaxPerHour != nil {
		cfg.MaxPerHour = *override.MaxPerHour
	}
	if override.ActiveHours != nil {
		cfg.ActiveHours = append([]int(nil), override.ActiveHours...)
	}
	if override.ActiveDays != nil {
		cfg.ActiveDays = append([]int(nil), override.ActiveDays...)
	}
	if override.MinIntervalMinutes != nil {
		cfg.MinIntervalMinutes = *override.MinIntervalMinutes
	}
	if override.Timezone != nil {
		loc, err := time.LoadLocation(*override.Timezone)
		if err != nil {
			return domain.ScheduleConfig{}, fmt.Errorf("platform %d timezone %q: %w", platformID, *override.Timezone, err)
		}
		cfg.Timezone = *override.Timezone
		cfg.Location = loc
	}
	if override.PauseOnError != nil {
		cfg.PauseOnError = *override.PauseOnError
	}
	if override.MaxErrorsBeforePause != nil {
		cfg.MaxErrorsBeforePause = *override.MaxErrorsBeforePause
	}
	if override.RandomizeTime != nil {
		cfg.RandomizeTime = *override.RandomizeTime
	}
	if override.RandomizeRangeMin != nil {
		cfg.RandomizeRangeMin = *override.RandomizeRangeMin
	}
	if override.AvoidHourEdges != nil {
		cfg.AvoidHourEdges = *override.AvoidHourEdges
	}
	if override.EdgeMarginMinutes != nil {
		cfg.EdgeMarginMinutes = *override.EdgeMarginMinutes
	}

	if err := cfg.Validate(); err != nil {
		return domain.ScheduleConfig{}, fmt.Errorf("platform %d schedule config: %w", platformID, err)
	}
	return cfg, nil
}

// IsActive reports whether scheduling is enabled for a platform. Platforms
// without an override record are inactive, there is nothing to activate.
func (p *Provider) IsActive(ctx context.Context, platformID int64) (bool, error) {
	override, err := p.platforms.GetOverride(ctx, platformID)
	if err != nil {
		return false, fmt.Errorf("check platform active: %w", err)
	}
	return override != nil && override.Active, nil
}

package domain

import (
	"fmt"
	"time"
)

// ScheduleConfig is the effective per-platform scheduling configuration,
// resolved from global defaults overlaid with a platform override record.
// Immutable once resolved; every scheduling decision is a pure function of
// (config, now, recent history).
type ScheduleConfig struct {
	ArticlesPerDay       int
	MaxPerHour           int
	ActiveHours          []int // hours of day, 0..23, ascending
	ActiveDays           []int // ISO weekdays, 1=Monday..7=Sunday
	MinIntervalMinutes   int
	Timezone             string
	Location             *time.Location
	PauseOnError         bool
	MaxErrorsBeforePause int
	RandomizeTime        bool
	RandomizeRangeMin    int
	AvoidHourEdges       bool
	EdgeMarginMinutes    int
	PreferredHours       map[int]float64 // optional hour weights for daily allocation
}

// MinInterval returns the interval floor as a duration
func (c *ScheduleConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMinutes) * time.Minute
}

// HourActive reports whether the given hour of day is inside the active window
func (c *ScheduleConfig) HourActive(hour int) bool {
	for _, h := range c.ActiveHours {
		if h == hour {
			return true
		}
	}
	return false
}

// DayActive reports whether the given ISO weekday is inside the active window
func (c *ScheduleConfig) DayActive(isoDay int) bool {
	for _, d := range c.ActiveDays {
		if d == isoDay {
			return true
		}
	}
	return false
}

// Validate checks the resolved configuration for basic sanity
func (c *ScheduleConfig) Validate() error {
	if c.ArticlesPerDay < 0 {
		return fmt.Errorf("articles per day must be non-negative, got %d", c.ArticlesPerDay)
	}
	if c.MaxPerHour < 0 {
		return fmt.Errorf("max per hour must be non-negative, got %d", c.MaxPerHour)
	}
	if c.MinIntervalMinutes < 0 {
		return fmt.Errorf("min interval must be non-negative, got %d", c.MinIntervalMinutes)
	}
	for _, h := range c.ActiveHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("active hour %d out of range [0,23]", h)
		}
	}
	for _, d := range c.ActiveDays {
		if d < 1 || d > 7 {
			return fmt.Errorf("active day %d out of range [1,7]", d)
		}
	}
	if c.Location == nil {
		return fmt.Errorf("timezone %q not resolved", c.Timezone)
	}
	return nil
}

// ScheduleOverride is a per-platform override record. Nil fields inherit the
// global default (field-level merge, not all-or-nothing).
type ScheduleOverride struct {
	ID                   int64
	PlatformID           int64
	Active               bool
	ArticlesPerDay       *int
	MaxPerHour           *int
	ActiveHours          []int
	ActiveDays           []int
	MinIntervalMinutes   *int
	Timezone             *string
	PauseOnError         *bool
	MaxErrorsBeforePause *int
	RandomizeTime        *bool
	RandomizeRangeMin    *int
	AvoidHourEdges       *bool
	EdgeMarginMinutes    *int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CheckToggles enables or disables individual throttle checks globally,
// for diagnostics. All checks are enabled in normal operation.
type CheckToggles struct {
	ActiveHours bool
	ActiveDays  bool
	DailyQuota  bool
	HourlyQuota bool
	MinInterval bool
}

// AllChecksEnabled returns toggles with every throttle check turned on
func AllChecksEnabled() CheckToggles {
	return CheckToggles{ActiveHours: true, ActiveDays: true, DailyQuota: true, HourlyQuota: true, MinInterval: true}
}

// CapacitySnapshot is a derived per-platform per-day capacity view, used for
// reporting only. Scheduling decisions use live queries instead.
type CapacitySnapshot struct {
	DailyLimit        int       `json:"daily_limit"`
	PublishedToday    int       `json:"published_today"`
	ScheduledToday    int       `json:"scheduled_today"`
	RemainingCapacity int       `json:"remaining_capacity"`
	Date              time.Time `json:"date"`
}

// StatusReport is a read-only diagnostic snapshot for a platform
type StatusReport struct {
	PlatformID       int64            `json:"platform_id"`
	PlatformName     string           `json:"platform_name"`
	Now              time.Time        `json:"now"`
	Timezone         string           `json:"timezone"`
	SchedulingActive bool             `json:"scheduling_active"`
	InActiveHours    bool             `json:"in_active_hours"`
	InActiveDays     bool             `json:"in_active_days"`
	Capacity         CapacitySnapshot `json:"capacity"`
	CanPublishNow    bool             `json:"can_publish_now"`
	Reason           string           `json:"reason,omitempty"`
	NextSlot         *time.Time       `json:"next_slot,omitempty"`
}

// ISOWeekday returns the ISO 8601 weekday for t, 1=Monday..7=Sunday
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pubplan/pubplan/pkg/domain"
)

// ErrUnsatisfiable means no feasible slot exists within the bounded search
// window, e.g. empty active windows, zero quota or a fully booked horizon
var ErrUnsatisfiable = errors.New("no feasible slot within search window")

// ErrSchedulingDisabled means the platform has no active schedule
var ErrSchedulingDisabled = errors.New("publication disabled for platform")

// maxSearchDays bounds the forward search. Combined with the hourly advance
// this caps the walk at 14 days x 24 hours, the search never loops unboundedly.
const maxSearchDays = 14

// SlotFinder computes the next feasible future instant for a platform, walking
// forward through inactive windows, quota exhaustion and interval constraints
type SlotFinder struct {
	provider *Provider
	gate     *Gate
	history  HistoryStore
	rnd      Rand
}

// NewSlotFinder creates a slot finder with an injected random source for jitter
func NewSlotFinder(provider *Provider, gate *Gate, history HistoryStore, rnd Rand) *SlotFinder {
	if rnd == nil {
		rnd = DefaultRand()
	}
	return &SlotFinder{provider: provider, gate: gate, history: history, rnd: rnd}
}

// withHistory returns a copy bound to another history store (transaction view)
func (f *SlotFinder) withHistory(history HistoryStore) *SlotFinder {
	return &SlotFinder{provider: f.provider, gate: f.gate.withHistory(history), history: history, rnd: f.rnd}
}

// NextSlot returns the next instant at which the platform may accept a
// publication, starting the search at from. The returned instant satisfies all
// throttle checks at computation time; concurrent schedulers can still
// invalidate it before persistence.
func (f *SlotFinder) NextSlot(ctx context.Context, platformID int64, from time.Time) (time.Time, error) {
	active, err := f.provider.IsActive(ctx, platformID)
	if err != nil {
		return time.Time{}, err
	}
	if !active {
		return time.Time{}, fmt.Errorf("platform %d: %w", platformID, ErrSchedulingDisabled)
	}

	cfg, err := f.provider.Resolve(ctx, platformID)
	if err != nil {
		return time.Time{}, err
	}

	if len(cfg.ActiveHours) == 0 || len(cfg.ActiveDays) == 0 || cfg.ArticlesPerDay <= 0 {
		return time.Time{}, fmt.Errorf("platform %d has empty publication windows: %w", platformID, ErrUnsatisfiable)
	}
	if f.gate.toggles.HourlyQuota && cfg.MaxPerHour <= 0 {
		return time.Time{}, fmt.Errorf("platform %d hourly quota is zero: %w", platformID, ErrUnsatisfiable)
	}

	now := from.In(cfg.Location)

	decision, err := f.gate.check(ctx, cfg, platformID, now)
	if err != nil {
		return time.Time{}, err
	}

	last, err := f.history.LastEntry(ctx, platformID, domain.QuotaStatuses)
	if err != nil {
		return time.Time{}, err
	}

	candidate := now
	if !decision.Allowed && last != nil {
		if next := last.ScheduledAt.In(cfg.Location).Add(cfg.MinInterval()); next.After(now) {
			candidate = next
		}
	}

	deadline := now.AddDate(0, 0, maxSearchDays)

	for iter := 0; iter < maxSearchDays*24; iter++ {
		if candidate.After(deadline) {
			return time.Time{}, fmt.Errorf("platform %d: %w", platformID, ErrUnsatisfiable)
		}

		// advance to the next active day, resetting to start of day on change
		if f.gate.toggles.ActiveDays {
			advanced := 0
			for !cfg.DayActive(domain.ISOWeekday(candidate)) {
				candidate = startOfDay(candidate).AddDate(0, 0, 1)
				advanced++
				if advanced > maxSearchDays {
					return time.Time{}, fmt.Errorf("platform %d: %w", platformID, ErrUnsatisfiable)
				}
			}
		}

		// advance hour-by-hour; crossing midnight re-checks the active day
		if f.gate.toggles.ActiveHours && !cfg.HourActive(candidate.Hour()) {
			candidate = startOfHour(candidate).Add(time.Hour)
			continue
		}

		// skip days with exhausted daily quota
		if f.gate.toggles.DailyQuota {
			dayStart := startOfDay(candidate)
			count, err := f.history.CountInRange(ctx, platformID, domain.QuotaStatuses, dayStart, dayStart.AddDate(0, 0, 1))
			if err != nil {
				return time.Time{}, fmt.Errorf("daily quota lookup: %w", err)
			}
			if count >= cfg.ArticlesPerDay {
				candidate = dayStart.AddDate(0, 0, 1)
				continue
			}
		}

		// skip hours with exhausted hourly quota
		if f.gate.toggles.HourlyQuota {
			hourStart := startOfHour(candidate)
			count, err := f.history.CountInRange(ctx, platformID, domain.QuotaStatuses, hourStart, hourStart.Add(time.Hour))
			if err != nil {
				return time.Time{}, fmt.Errorf("hourly quota lookup: %w", err)
			}
			if count >= cfg.MaxPerHour {
				candidate = hourStart.Add(time.Hour)
				continue
			}
		}

		// interval floor against the most recent entry
		if f.gate.toggles.MinInterval && last != nil {
			if next := last.ScheduledAt.In(cfg.Location).Add(cfg.MinInterval()); candidate.Before(next) {
				candidate = next
				continue
			}
		}

		return f.finalize(candidate, cfg), nil
	}

	return time.Time{}, fmt.Errorf("platform %d: %w", platformID, ErrUnsatisfiable)
}

// finalize applies jitter and edge avoidance to a validated candidate. Edge
// avoidance runs after jitter and may partially undo it, edges are the harder
// constraint. The jittered result is clamped to the candidate's hour so the
// active-window guarantee survives.
func (f *SlotFinder) finalize(t time.Time, cfg domain.ScheduleConfig) time.Time {
	slot := t

	if cfg.RandomizeTime && cfg.RandomizeRangeMin > 0 {
		offset := f.rnd.Intn(2*cfg.RandomizeRangeMin+1) - cfg.RandomizeRangeMin
		slot = slot.Add(time.Duration(offset) * time.Minute)

		hourStart := startOfHour(t)
		hourLast := hourStart.Add(59 * time.Minute)
		if slot.Before(hourStart) {
			slot = hourStart
		}
		if slot.After(hourLast) {
			slot = hourLast
		}
	}

	if cfg.AvoidHourEdges && cfg.EdgeMarginMinutes > 0 {
		minute := slot.Minute()
		switch {
		case minute < cfg.EdgeMarginMinutes:
			slot = slot.Add(time.Duration(cfg.EdgeMarginMinutes-minute) * time.Minute)
		case minute > 60-cfg.EdgeMarginMinutes:
			slot = slot.Add(-time.Duration(minute-(60-cfg.EdgeMarginMinutes)) * time.Minute)
		}
	}

	return slot
}

package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/pubplan/pubplan/pkg/domain"
)

// HistoryStore provides the queue history reads throttle decisions depend on
type HistoryStore interface {
	LastEntry(ctx context.Context, platformID int64, statuses []domain.EntryStatus) (*domain.QueueEntry, error)
	CountInRange(ctx context.Context, platformID int64, statuses []domain.EntryStatus, from, to time.Time) (int, error)
}

// Decision is the outcome of a throttle check. Reason explains the first
// failing check so operator dashboards don't have to re-derive the logic.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  string     `json:"reason,omitempty"`
	NextTry *time.Time `json:"next_try,omitempty"`
}

// Gate answers whether a platform may accept a publication at a given instant.
// Checks run as an ordered sequence of independent predicates, short-circuiting
// on the first failure. Order matters for reason clarity, each check has its
// own remediation surfaced to operators.
type Gate struct {
	provider *Provider
	history  HistoryStore
	toggles  domain.CheckToggles
}

// NewGate creates a throttle gate
func NewGate(provider *Provider, history HistoryStore, toggles domain.CheckToggles) *Gate {
	return &Gate{provider: provider, history: history, toggles: toggles}
}

// withHistory returns a copy bound to another history store (transaction view)
func (g *Gate) withHistory(history HistoryStore) *Gate {
	return &Gate{provider: g.provider, history: history, toggles: g.toggles}
}

// CanPublish reports whether the platform may accept a publication at now
func (g *Gate) CanPublish(ctx context.Context, platformID int64, now time.Time) (Decision, error) {
	active, err := g.provider.IsActive(ctx, platformID)
	if err != nil {
		return Decision{}, err
	}
	if !active {
		return Decision{Reason: "publication disabled"}, nil
	}

	cfg, err := g.provider.Resolve(ctx, platformID)
	if err != nil {
		return Decision{}, err
	}

	return g.check(ctx, cfg, platformID, now)
}

// check runs the window, quota and interval checks against a resolved config
func (g *Gate) check(ctx context.Context, cfg domain.ScheduleConfig, platformID int64, now time.Time) (Decision, error) {
	local := now.In(cfg.Location)

	if g.toggles.ActiveHours && !cfg.HourActive(local.Hour()) {
		next, ok := nextActiveHour(cfg, local.Hour())
		if !ok {
			return Decision{Reason: "no active hours configured"}, nil
		}
		return Decision{Reason: fmt.Sprintf("outside active hours, next active hour %02d:00", next)}, nil
	}

	if g.toggles.ActiveDays && !cfg.DayActive(domain.ISOWeekday(local)) {
		next, ok := nextActiveDay(cfg, domain.ISOWeekday(local))
		if !ok {
			return Decision{Reason: "no active days configured"}, nil
		}
		return Decision{Reason: fmt.Sprintf("outside active days, next active day %s", isoDayName(next))}, nil
	}

	if g.toggles.DailyQuota {
		dayStart := startOfDay(local)
		count, err := g.history.CountInRange(ctx, platformID, domain.QuotaStatuses, dayStart, dayStart.AddDate(0, 0, 1))
		if err != nil {
			return Decision{}, fmt.Errorf("daily quota check: %w", err)
		}
		if count >= cfg.ArticlesPerDay {
			return Decision{Reason: fmt.Sprintf("daily quota reached (%d/%d)", count, cfg.ArticlesPerDay)}, nil
		}
	}

	if g.toggles.HourlyQuota {
		hourStart := startOfHour(local)
		count, err := g.history.CountInRange(ctx, platformID, domain.QuotaStatuses, hourStart, hourStart.Add(time.Hour))
		if err != nil {
			return Decision{}, fmt.Errorf("hourly quota check: %w", err)
		}
		if count >= cfg.MaxPerHour {
			return Decision{Reason: fmt.Sprintf("hourly quota reached (%d/%d)", count, cfg.MaxPerHour)}, nil
		}
	}

	if g.toggles.MinInterval {
		last, err := g.history.LastEntry(ctx, platformID, domain.QuotaStatuses)
		if err != nil {
			return Decision{}, fmt.Errorf("interval check: %w", err)
		}
		if last != nil {
			next := last.ScheduledAt.Add(cfg.MinInterval())
			if local.Before(next) {
				nextLocal := next.In(cfg.Location)
				return Decision{
					Reason:  fmt.Sprintf("minimum interval not met, next publication at %s", nextLocal.Format("15:04:05")),
					NextTry: &nextLocal,
				}, nil
			}
		}
	}

	return Decision{Allowed: true}, nil
}

// nextActiveHour finds the closest active hour strictly after the given one,
// wrapping to the first active hour of the next day
func nextActiveHour(cfg domain.ScheduleConfig, hour int) (int, bool) {
	if len(cfg.ActiveHours) == 0 {
		return 0, false
	}
	best, found := 24, false
	first := 24
	for _, h := range cfg.ActiveHours {
		if h < first {
			first = h
		}
		if h > hour && h < best {
			best, found = h, true
		}
	}
	if found {
		return best, true
	}
	return first, true
}

// nextActiveDay finds the closest active ISO day strictly after the given one,
// wrapping around the week
func nextActiveDay(cfg domain.ScheduleConfig, day int) (int, bool) {
	if len(cfg.ActiveDays) == 0 {
		return 0, false
	}
	for offset := 1; offset <= 7; offset++ {
		candidate := (day-1+offset)%7 + 1
		if cfg.DayActive(candidate) {
			return candidate, true
		}
	}
	return 0, false
}

func isoDayName(day int) string {
	names := [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	if day < 1 || day > 7 {
		return "unknown"
	}
	return names[day-1]
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

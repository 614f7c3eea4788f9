package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/pubplan/pubplan/pkg/domain"
	"github.com/pubplan/pubplan/pkg/repository"
)

// Scheduler orchestrates single-item scheduling, transactional batch
// scheduling and rescheduling of failed publications
type Scheduler struct {
	repos       *repository.Repositories
	provider    *Provider
	gate        *Gate
	finder      *SlotFinder
	allocator   *Allocator
	maxAttempts int
	retryDelay  time.Duration
}

// Params holds scheduler dependencies and settings
type Params struct {
	Repos             *repository.Repositories
	Defaults          domain.ScheduleConfig
	Toggles           domain.CheckToggles
	MaxAttempts       int
	RetryDelayMinutes int
	Rand              Rand
}

// NewScheduler creates a scheduler with all collaborators wired
func NewScheduler(p Params) *Scheduler {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 3
	}
	if p.RetryDelayMinutes == 0 {
		p.RetryDelayMinutes = 15
	}
	if p.Rand == nil {
		p.Rand = DefaultRand()
	}

	provider := NewProvider(p.Defaults, p.Repos.Platform)
	gate := NewGate(provider, p.Repos.Queue, p.Toggles)

	return &Scheduler{
		repos:       p.Repos,
		provider:    provider,
		gate:        gate,
		finder:      NewSlotFinder(provider, gate, p.Repos.Queue, p.Rand),
		allocator:   NewAllocator(provider, p.Rand),
		maxAttempts: p.MaxAttempts,
		retryDelay:  time.Duration(p.RetryDelayMinutes) * time.Minute,
	}
}

// CanPublishNow reports whether the platform may accept a publication at now
func (s *Scheduler) CanPublishNow(ctx context.Context, platformID int64, now time.Time) (Decision, error) {
	return s.gate.CanPublish(ctx, platformID, now)
}

// NextSlot computes the next feasible publication instant for a platform
func (s *Scheduler) NextSlot(ctx context.Context, platformID int64, from time.Time) (time.Time, error) {
	return s.finder.NextSlot(ctx, platformID, from)
}

// DailySlots computes the planned slot distribution for a platform and date
func (s *Scheduler) DailySlots(ctx context.Context, platformID int64, date time.Time) ([]time.Time, error) {
	return s.allocator.DailySlots(ctx, platformID, date)
}

// ScheduleItem finds the next slot for the article's platform and persists a
// scheduled queue entry plus the article's denormalized scheduling fields
func (s *Scheduler) ScheduleItem(ctx context.Context, articleID, platformID int64, priority domain.Priority, now time.Time) (*domain.QueueEntry, error) {
	if priority == "" {
		priority = domain.PriorityDefault
	}
	if _, err := s.repos.Article.GetArticle(ctx, articleID); err != nil {
		return nil, fmt.Errorf("schedule item: %w", err)
	}

	slot, err := s.finder.NextSlot(ctx, platformID, now)
	if err != nil {
		return nil, fmt.Errorf("schedule item: %w", err)
	}

	entry := &domain.QueueEntry{
		ArticleID:   articleID,
		PlatformID:  platformID,
		Priority:    priority,
		Status:      domain.StatusScheduled,
		ScheduledAt: slot,
		MaxAttempts: s.maxAttempts,
	}

	err = s.repos.InTransaction(ctx, func(tx *repository.TxRepositories) error {
		if err := tx.Queue.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return tx.Article.UpdateSchedule(ctx, articleID, domain.ArticleScheduled, slot)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule item: %w", err)
	}

	lgr.Printf("[INFO] scheduled article %d on platform %d at %s", articleID, platformID, slot.Format(time.RFC3339))
	return entry, nil
}

// ScheduleBatch schedules all articles in a single all-or-nothing transaction.
// Slot computation for each item observes the entries already written by prior
// items of the same batch, so batch items are mutually interval-respecting.
// Any failure rolls back the entire batch.
func (s *Scheduler) ScheduleBatch(ctx context.Context, articleIDs []int64, platformID int64, priority domain.Priority, now time.Time) ([]*domain.QueueEntry, error) {
	if len(articleIDs) == 0 {
		return nil, nil
	}
	if priority == "" {
		priority = domain.PriorityDefault
	}

	batchID := uuid.New().String()
	entries := make([]*domain.QueueEntry, 0, len(articleIDs))

	err := s.repos.InTransaction(ctx, func(tx *repository.TxRepositories) error {
		finder := s.finder.withHistory(tx.Queue)

		for _, articleID := range articleIDs {
			if _, err := tx.Article.GetArticle(ctx, articleID); err != nil {
				return err
			}

			slot, err := finder.NextSlot(ctx, platformID, now)
			if err != nil {
				return err
			}

			entry := &domain.QueueEntry{
				ArticleID:   articleID,
				PlatformID:  platformID,
				Priority:    priority,
				Status:      domain.StatusScheduled,
				ScheduledAt: slot,
				MaxAttempts: s.maxAttempts,
				Metadata:    map[string]string{"batch_id": batchID},
			}
			if err := tx.Queue.CreateEntry(ctx, entry); err != nil {
				return err
			}
			if err := tx.Article.UpdateSchedule(ctx, articleID, domain.ArticleScheduled, slot); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("schedule batch %s: %w", batchID, err)
	}

	lgr.Printf("[INFO] scheduled batch %s: %d articles on platform %d", batchID, len(entries), platformID)
	return entries, nil
}

// Reschedule computes a fresh slot for an entry starting at now plus the retry
// delay, resets the entry to scheduled and clears its error message. The
// attempt counter is left untouched, the failure handler increments it before
// calling here. Entries out of attempts are never rescheduled.
func (s *Scheduler) Reschedule(ctx context.Context, entryID int64, now time.Time) (*domain.QueueEntry, error) {
	entry, err := s.repos.Queue.GetEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("reschedule: %w", err)
	}
	if entry.Status == domain.StatusFailed && entry.Exhausted() {
		return nil, fmt.Errorf("reschedule entry %d: %d/%d attempts used, left in failed state", entryID, entry.Attempts, entry.MaxAttempts)
	}

	slot, err := s.finder.NextSlot(ctx, entry.PlatformID, now.Add(s.retryDelay))
	if err != nil {
		return nil, fmt.Errorf("reschedule entry %d: %w", entryID, err)
	}

	err = s.repos.InTransaction(ctx, func(tx *repository.TxRepositories) error {
		if err := tx.Queue.UpdateSchedule(ctx, entryID, slot); err != nil {
			return err
		}
		return tx.Article.UpdateSchedule(ctx, entry.ArticleID, domain.ArticleScheduled, slot)
	})
	if err != nil {
		return nil, fmt.Errorf("reschedule entry %d: %w", entryID, err)
	}

	entry.Status = domain.StatusScheduled
	entry.ScheduledAt = slot
	entry.ErrorMessage = ""

	lgr.Printf("[INFO] rescheduled entry %d (article %d) on platform %d to %s",
		entryID, entry.ArticleID, entry.PlatformID, slot.Format(time.RFC3339))
	return entry, nil
}

// StatusReport builds a read-only diagnostic snapshot for a platform
func (s *Scheduler) StatusReport(ctx context.Context, platformID int64, now time.Time) (*domain.StatusReport, error) {
	platform, err := s.repos.Platform.GetPlatform(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("status report: %w", err)
	}

	cfg, err := s.provider.Resolve(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("status report: %w", err)
	}

	active, err := s.provider.IsActive(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("status report: %w", err)
	}

	local := now.In(cfg.Location)

	capacity, err := s.capacitySnapshot(ctx, platformID, cfg, local)
	if err != nil {
		return nil, fmt.Errorf("status report: %w", err)
	}

	decision, err := s.gate.CanPublish(ctx, platformID, now)
	if err != nil {
		return nil, fmt.Errorf("status report: %w", err)
	}

	report := &domain.StatusReport{
		PlatformID:       platformID,
		PlatformName:     platform.Name,
		Now:              local,
		Timezone:         cfg.Timezone,
		SchedulingActive: active,
		InActiveHours:    cfg.HourActive(local.Hour()),
		InActiveDays:     cfg.DayActive(domain.ISOWeekday(local)),
		Capacity:         capacity,
		CanPublishNow:    decision.Allowed,
		Reason:           decision.Reason,
	}

	if active {
		if slot, err := s.finder.NextSlot(ctx, platformID, now); err == nil {
			report.NextSlot = &slot
		}
	}

	return report, nil
}

// capacitySnapshot computes the reporting-only daily capacity view
func (s *Scheduler) capacitySnapshot(ctx context.Context, platformID int64, cfg domain.ScheduleConfig, local time.Time) (domain.CapacitySnapshot, error) {
	dayStart := startOfDay(local)
	dayEnd := dayStart.AddDate(0, 0, 1)

	published, err := s.repos.Queue.CountInRange(ctx, platformID, []domain.EntryStatus{domain.StatusPublished}, dayStart, dayEnd)
	if err != nil {
		return domain.CapacitySnapshot{}, err
	}
	scheduled, err := s.repos.Queue.CountInRange(ctx, platformID, []domain.EntryStatus{domain.StatusScheduled}, dayStart, dayEnd)
	if err != nil {
		return domain.CapacitySnapshot{}, err
	}

	remaining := cfg.ArticlesPerDay - published - scheduled
	if remaining < 0 {
		remaining = 0
	}

	return domain.CapacitySnapshot{
		DailyLimit:        cfg.ArticlesPerDay,
		PublishedToday:    published,
		ScheduledToday:    scheduled,
		RemainingCapacity: remaining,
		Date:              dayStart,
	}, nil
}

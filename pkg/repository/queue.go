package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/pubplan/pubplan/pkg/domain"
)

// QueueRepository handles publication queue database operations. It can be
// bound to a transaction via TxRepositories so batch scheduling reads see the
// batch's own uncommitted writes.
type QueueRepository struct {
	ext sqlx.ExtContext
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{ext: db}
}

// withExt returns a copy bound to the given executor (transaction or db)
func (r *QueueRepository) withExt(ext sqlx.ExtContext) *QueueRepository {
	return &QueueRepository{ext: ext}
}

// CreateEntry inserts a new queue entry, retrying on SQLite lock errors
func (r *QueueRepository) CreateEntry(ctx context.Context, entry *domain.QueueEntry) error {
	rec := &entrySQL{
		ArticleID:    entry.ArticleID,
		PlatformID:   entry.PlatformID,
		Priority:     string(entry.Priority),
		Status:       string(entry.Status),
		ScheduledAt:  entry.ScheduledAt.UTC(),
		Attempts:     entry.Attempts,
		MaxAttempts:  entry.MaxAttempts,
		ErrorMessage: entry.ErrorMessage,
		Metadata:     entry.Metadata,
	}

	query := `
		INSERT INTO publication_queue (
			article_id, platform_id, priority, status, scheduled_at,
			attempts, max_attempts, error_message, metadata
		) VALUES (
			:article_id, :platform_id, :priority, :status, :scheduled_at,
			:attempts, :max_attempts, :error_message, :metadata
		)
	`

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		result, err := sqlx.NamedExecContext(ctx, r.ext, query, rec)
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("create queue entry: %w", err)}
		}

		id, err := result.LastInsertId()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get insert id: %w", err)}
		}
		entry.ID = id
		return nil
	})
}

// GetEntry retrieves a queue entry by ID
func (r *QueueRepository) GetEntry(ctx context.Context, id int64) (*domain.QueueEntry, error) {
	var rec entrySQL
	err := sqlx.GetContext(ctx, r.ext, &rec, "SELECT * FROM publication_queue WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queue entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return rec.toDomain(), nil
}

// LastEntry retrieves the most recent entry for a platform with one of the
// given statuses, ordered by scheduled_at. Returns nil if none exists.
func (r *QueueRepository) LastEntry(ctx context.Context, platformID int64, statuses []domain.EntryStatus) (*domain.QueueEntry, error) {
	query, args, err := sq.Select("*").From("publication_queue").
		Where(sq.Eq{"platform_id": platformID, "status": statusStrings(statuses)}).
		OrderBy("scheduled_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build last entry query: %w", err)
	}

	var rec entrySQL
	err = sqlx.GetContext(ctx, r.ext, &rec, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last entry: %w", err)
	}
	return rec.toDomain(), nil
}

// CountInRange counts entries for a platform with one of the given statuses
// whose scheduled_at falls within [from, to)
func (r *QueueRepository) CountInRange(ctx context.Context, platformID int64, statuses []domain.EntryStatus, from, to time.Time) (int, error) {
	query, args, err := sq.Select("count(*)").From("publication_queue").
		Where(sq.Eq{"platform_id": platformID, "status": statusStrings(statuses)}).
		Where(sq.GtOrEq{"scheduled_at": from.UTC()}).
		Where(sq.Lt{"scheduled_at": to.UTC()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := sqlx.GetContext(ctx, r.ext, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count entries in range: %w", err)
	}
	return count, nil
}

// ListEntries retrieves entries for a platform filtered by status, most recent first
func (r *QueueRepository) ListEntries(ctx context.Context, platformID int64, statuses []domain.EntryStatus, limit int) ([]*domain.QueueEntry, error) {
	builder := sq.Select("*").From("publication_queue").
		Where(sq.Eq{"platform_id": platformID}).
		OrderBy("scheduled_at DESC")
	if len(statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": statusStrings(statuses)})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit)) //nolint:gosec // limit checked positive
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var recs []entrySQL
	if err := sqlx.SelectContext(ctx, r.ext, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	entries := make([]*domain.QueueEntry, len(recs))
	for i := range recs {
		entries[i] = recs[i].toDomain()
	}
	return entries, nil
}

// UpdateSchedule moves an entry to a new slot, resets status to scheduled and
// clears the error message. Attempts are left untouched.
func (r *QueueRepository) UpdateSchedule(ctx context.Context, id int64, scheduledAt time.Time) error {
	query := `
		UPDATE publication_queue
		SET scheduled_at = ?, status = ?, error_message = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		result, err := r.ext.ExecContext(ctx, query, scheduledAt.UTC(), string(domain.StatusScheduled), id)
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("update entry schedule: %w", err)}
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get rows affected: %w", err)}
		}
		if rows == 0 {
			return &criticalError{err: fmt.Errorf("queue entry %d: %w", id, ErrNotFound)}
		}
		return nil
	})
}

// MarkPublished marks an entry as published
func (r *QueueRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.ext.ExecContext(ctx,
		"UPDATE publication_queue SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(domain.StatusPublished), id)
	if err != nil {
		return fmt.Errorf("mark entry published: %w", err)
	}
	return nil
}

// MarkFailed records a publication failure and increments the attempt counter
func (r *QueueRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := r.ext.ExecContext(ctx, `
		UPDATE publication_queue
		SET status = ?, error_message = ?, attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(domain.StatusFailed), errMsg, id)
	if err != nil {
		return fmt.Errorf("mark entry failed: %w", err)
	}
	return nil
}

// CancelEntry marks an entry as cancelled, freeing its quota slot
func (r *QueueRepository) CancelEntry(ctx context.Context, id int64) error {
	_, err := r.ext.ExecContext(ctx,
		"UPDATE publication_queue SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(domain.StatusCancelled), id)
	if err != nil {
		return fmt.Errorf("cancel entry: %w", err)
	}
	return nil
}

func statusStrings(statuses []domain.EntryStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

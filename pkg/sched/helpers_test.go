package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pubplan/pubplan/pkg/domain"
	"github.com/pubplan/pubplan/pkg/repository"
)

// monday is a fixed reference instant, 2025-06-02 is a Monday
var monday = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func testDefaults() domain.ScheduleConfig {
	return domain.ScheduleConfig{
		ArticlesPerDay:     8,
		MaxPerHour:         2,
		ActiveHours:        []int{9, 10, 11, 14, 15, 16, 17},
		ActiveDays:         []int{1, 2, 3, 4, 5},
		MinIntervalMinutes: 30,
		Timezone:           "UTC",
		Location:           time.UTC,
	}
}

func setupSchedTest(t *testing.T) (*repository.Repositories, int64) {
	t.Helper()
	repos, err := repository.NewRepositories(context.Background(), repository.Config{DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, repos.Close())
	})

	p := &domain.Platform{Name: "blog", URL: "https://blog.example.com"}
	require.NoError(t, repos.Platform.CreatePlatform(context.Background(), p))
	return repos, p.ID
}

func activatePlatform(t *testing.T, repos *repository.Repositories, override *domain.ScheduleOverride) {
	t.Helper()
	override.Active = true
	require.NoError(t, repos.Platform.SaveOverride(context.Background(), override))
}

func addQueueEntry(t *testing.T, repos *repository.Repositories, platformID int64, at time.Time, status domain.EntryStatus) *domain.QueueEntry {
	t.Helper()
	ctx := context.Background()

	article := &domain.Article{Title: "article at " + at.Format(time.RFC3339)}
	require.NoError(t, repos.Article.CreateArticle(ctx, article))

	entry := &domain.QueueEntry{
		ArticleID:   article.ID,
		PlatformID:  platformID,
		Priority:    domain.PriorityDefault,
		Status:      status,
		ScheduledAt: at,
		MaxAttempts: 3,
	}
	require.NoError(t, repos.Queue.CreateEntry(ctx, entry))
	return entry
}

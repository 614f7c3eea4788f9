package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubplan/pubplan/pkg/domain"
	"github.com/pubplan/pubplan/pkg/repository"
)

func newTestScheduler(t *testing.T, repos *repository.Repositories, defaults domain.ScheduleConfig) *Scheduler {
	t.Helper()
	return NewScheduler(Params{
		Repos:             repos,
		Defaults:          defaults,
		Toggles:           domain.AllChecksEnabled(),
		MaxAttempts:       3,
		RetryDelayMinutes: 15,
		Rand:              NewRand(1),
	})
}

func createArticle(t *testing.T, repos *repository.Repositories, title string) int64 {
	t.Helper()
	article := &domain.Article{Title: title}
	require.NoError(t, repos.Article.CreateArticle(context.Background(), article))
	return article.ID
}

func TestScheduler_ScheduleItem(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	activatePlatform(t, repos, &domain.ScheduleOverride{PlatformID: platformID})
	scheduler := newTestScheduler(t, repos, testDefaults())
	ctx := context.Background()

	articleID := createArticle(t, repos, "first post")

	entry, err := scheduler.ScheduleItem(ctx, articleID, platformID, domain.PriorityHigh, monday)
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	assert.Equal(t, domain.StatusScheduled, entry.Status)
	assert.Equal(t, domain.PriorityHigh, entry.Priority)
	assert.True(t, entry.ScheduledAt.Equal(monday))

	// both the queue entry and the article's denormalized fields are persisted
	got, err := repos.Queue.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.ScheduledAt.Equal(monday))

	article, err := repos.Article.GetArticle(ctx, articleID)
	require.NoError(t, err)
	assert.Equal(t, domain.ArticleScheduled, article.Status)
	require.NotNil(t, article.ScheduledAt)
	assert.True(t, article.ScheduledAt.Equal(monday))
}

func TestScheduler_ScheduleItem_UnknownArticle(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	activatePlatform(t, repos, &domain.ScheduleOverride{PlatformID: platformID})
	scheduler := newTestScheduler(t, repos, testDefaults())

	_, err := scheduler.ScheduleItem(context.Background(), 9999, platformID, domain.PriorityDefault, monday)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestScheduler_ScheduleItem_InactivePlatform(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	scheduler := newTestScheduler(t, repos, testDefaults())

	articleID := createArticle(t, repos, "post")
	_, err := scheduler.ScheduleItem(context.Background(), articleID, platformID, domain.PriorityDefault, monday)
	require.ErrorIs(t, err, ErrSchedulingDisabled)
}

func TestScheduler_ScheduleBatch_SpreadsAcrossHours(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	activatePlatform(t, repos, &domain.ScheduleOverride{PlatformID: platformID})

	defaults := testDefaults()
	defaults.MaxPerHour = 2
	defaults.MinIntervalMinutes = 6
	scheduler := newTestScheduler(t, repos, defaults)
	ctx := context.Background()

	articleIDs := []int64{
		createArticle(t, repos, "one"),
		createArticle(t, repos, "two"),
		createArticle(t, repos, "three"),
	}

	entries, err := scheduler.ScheduleBatch(ctx, articleIDs, platformID, domain.PriorityDefault, monday)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// two slots fit into 09:xx, the third spills into the next hour
	assert.True(t, entries[0].ScheduledAt.Equal(monday))
	assert.True(t, entries[1].ScheduledAt.Equal(monday.Add(6*time.Minute)))
	assert.True(t, entries[2].ScheduledAt.Equal(monday.Add(time.Hour)))

	// all entries share one batch id
	batchID := entries[0].Metadata["batch_id"]
	require.NotEmpty(t, batchID)
	for _, entry := range entries {
		assert.Equal(t, batchID, entry.Metadata["batch_id"])
	}

	persisted, err := repos.Queue.ListEntries(ctx, platformID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, persisted, 3)
}

func TestScheduler_ScheduleBatch_RollsBackOnFailure(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	activatePlatform(t, repos, &domain.ScheduleOverride{PlatformID: platformID})
	scheduler := newTestScheduler(t, repos, testDefaults())
	ctx := context.Background()

	goodID := createArticle(t, repos, "good")

	_, err := scheduler.ScheduleBatch(ctx, []int64{goodID, 9999}, platformID, domain.PriorityDefault, monday)
	require.ErrorIs(t, err, repository.ErrNotFound)

	// nothing from the batch survives
	entries, err := repos.Queue.ListEntries(ctx, platformID, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	article, err := repos.Article.GetArticle(ctx, goodID)
	require.NoError(t, err)
	assert.Equal(t, domain.ArticleDraft, article.Status)
}

func TestScheduler_ScheduleBatch_Empty(t *testing.T) {
	repos, _ := setupSchedTest(t)
	scheduler := newTestScheduler(t, repos, testDefaults())

	entries, err := scheduler.ScheduleBatch(context.Background(), nil, 1, domain.PriorityDefault, monday)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestScheduler_Reschedule(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	activatePlatform(t, repos, &domain.ScheduleOverride{PlatformID: platformID})

	defaults := testDefaults()
	defaults.MinIntervalMinutes = 6
	scheduler := newTestScheduler(t, repos, defaults)
	ctx := context.Background()

	articleID := createArticle(t, repos, "flaky post")
	entry, err := scheduler.ScheduleItem(ctx, articleID, platformID, domain.PriorityDefault, monday)
	require.NoError(t, err)

	require.NoError(t, repos.Queue.MarkFailed(ctx, entry.ID, "upstream 502"))

	rescheduled, err := scheduler.Reschedule(ctx, entry.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, rescheduled.Status)
	assert.Empty(t, rescheduled.ErrorMessage)
	// retry delay pushes the search start 15 minutes forward
	assert.True(t, rescheduled.ScheduledAt.Equal(monday.Add(15*time.Minute)))

	got, err := repos.Queue.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, got.Status)
	assert.Equal(t, 1, got.Attempts) // attempt counter survives rescheduling
	assert.True(t, got.ScheduledAt.Equal(monday.Add(15*time.Minute)))

	article, err := repos.Article.GetArticle(ctx, articleID)
	require.NoError(t, err)
	require.NotNil(t, article.ScheduledAt)
	assert.True(t, article.ScheduledAt.Equal(monday.Add(15*time.Minute)))
}

func TestScheduler_Reschedule_ExhaustedAttempts(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	activatePlatform(t, repos, &domain.ScheduleOverride{PlatformID: platformID})
	scheduler := newTestScheduler(t, repos, testDefaults())
	ctx := context.Background()

	articleID := createArticle(t, repos, "doomed post")
	entry, err := scheduler.ScheduleItem(ctx, articleID, platformID, domain.PriorityDefault, monday)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, repos.Queue.MarkFailed(ctx, entry.ID, "still broken"))
	}

	_, err = scheduler.Reschedule(ctx, entry.ID, monday)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempts used")

	// the entry stays failed
	got, err := repos.Queue.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
}

func TestScheduler_Reschedule_UnknownEntry(t *testing.T) {
	repos, _ := setupSchedTest(t)
	scheduler := newTestScheduler(t, repos, testDefaults())

	_, err := scheduler.Reschedule(context.Background(), 9999, monday)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestScheduler_StatusReport(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	activatePlatform(t, repos, &domain.ScheduleOverride{PlatformID: platformID})

	defaults := testDefaults()
	defaults.MinIntervalMinutes = 6
	scheduler := newTestScheduler(t, repos, defaults)
	ctx := context.Background()

	addQueueEntry(t, repos, platformID, monday, domain.StatusPublished)
	addQueueEntry(t, repos, platformID, monday.Add(30*time.Minute), domain.StatusScheduled)

	report, err := scheduler.StatusReport(ctx, platformID, monday.Add(time.Hour)) // Mon 10:00
	require.NoError(t, err)

	assert.Equal(t, platformID, report.PlatformID)
	assert.Equal(t, "blog", report.PlatformName)
	assert.Equal(t, "UTC", report.Timezone)
	assert.True(t, report.SchedulingActive)
	assert.True(t, report.InActiveHours)
	assert.True(t, report.InActiveDays)
	assert.True(t, report.CanPublishNow)

	assert.Equal(t, 8, report.Capacity.DailyLimit)
	assert.Equal(t, 1, report.Capacity.PublishedToday)
	assert.Equal(t, 1, report.Capacity.ScheduledToday)
	assert.Equal(t, 6, report.Capacity.RemainingCapacity)

	require.NotNil(t, report.NextSlot)
	assert.True(t, report.NextSlot.Equal(monday.Add(time.Hour)))
}

func TestScheduler_StatusReport_InactivePlatform(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	scheduler := newTestScheduler(t, repos, testDefaults())

	report, err := scheduler.StatusReport(context.Background(), platformID, monday)
	require.NoError(t, err)

	assert.False(t, report.SchedulingActive)
	assert.False(t, report.CanPublishNow)
	assert.Equal(t, "publication disabled", report.Reason)
	assert.Nil(t, report.NextSlot)
}

func TestScheduler_StatusReport_UnknownPlatform(t *testing.T) {
	repos, _ := setupSchedTest(t)
	scheduler := newTestScheduler(t, repos, testDefaults())

	_, err := scheduler.StatusReport(context.Background(), 9999, monday)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

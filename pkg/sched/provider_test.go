package sched

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubplan/pubplan/pkg/domain"
	"github.com/pubplan/pubplan/pkg/repository"
)

func TestProvider_ResolveDefaults(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	provider := NewProvider(testDefaults(), repos.Platform)

	cfg, err := provider.Resolve(context.Background(), platformID)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.ArticlesPerDay)
	assert.Equal(t, 2, cfg.MaxPerHour)
	assert.Equal(t, []int{9, 10, 11, 14, 15, 16, 17}, cfg.ActiveHours)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestProvider_ResolveFieldLevelMerge(t *testing.T) {
	repos, platformID := setupSchedTest(t)

	perDay := 3
	tz := "America/New_York"
	activatePlatform(t, repos, &domain.ScheduleOverride{
		PlatformID:     platformID,
		ArticlesPerDay: &perDay,
		ActiveHours:    []int{8, 12},
		Timezone:       &tz,
	})

	provider := NewProvider(testDefaults(), repos.Platform)
	cfg, err := provider.Resolve(context.Background(), platformID)
	require.NoError(t, err)

	// overridden fields replace defaults
	assert.Equal(t, 3, cfg.ArticlesPerDay)
	assert.Equal(t, []int{8, 12}, cfg.ActiveHours)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "America/New_York", cfg.Location.String())

	// untouched fields inherit defaults
	assert.Equal(t, 2, cfg.MaxPerHour)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, cfg.ActiveDays)
	assert.Equal(t, 30, cfg.MinIntervalMinutes)
}

func TestProvider_ResolveUnknownPlatform(t *testing.T) {
	repos, _ := setupSchedTest(t)
	provider := NewProvider(testDefaults(), repos.Platform)

	_, err := provider.Resolve(context.Background(), 9999)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProvider_ResolveBadTimezone(t *testing.T) {
	repos, platformID := setupSchedTest(t)

	tz := "Mars/Olympus"
	activatePlatform(t, repos, &domain.ScheduleOverride{PlatformID: platformID, Timezone: &tz})

	provider := NewProvider(testDefaults(), repos.Platform)
	_, err := provider.Resolve(context.Background(), platformID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mars/Olympus")
}

func TestProvider_IsActive(t *testing.T) {
	repos, platformID := setupSchedTest(t)
	provider := NewProvider(testDefaults(), repos.Platform)
	ctx := context.Background()

	// no override record
	active, err := provider.IsActive(ctx, platformID)
	require.NoError(t, err)
	assert.False(t, active)

	activatePlatform(t, repos, &domain.ScheduleOverride{PlatformID: platformID})
	active, err = provider.IsActive(ctx, platformID)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, repos.Platform.SetOverrideActive(ctx, platformID, false))
	active, err = provider.IsActive(ctx, platformID)
	require.NoError(t, err)
	assert.False(t, active)
}

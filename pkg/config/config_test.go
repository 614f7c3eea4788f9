package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pubplan.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":9090\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 100, cfg.Scheduling.Defaults.ArticlesPerDay)
	assert.Equal(t, 15, cfg.Scheduling.Defaults.MaxPerHour)
	assert.Equal(t, []int{9, 10, 11, 14, 15, 16, 17}, cfg.Scheduling.Defaults.ActiveHours)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, cfg.Scheduling.Defaults.ActiveDays)
	assert.Equal(t, 6, cfg.Scheduling.Defaults.MinIntervalMinutes)
	assert.Equal(t, "Europe/Paris", cfg.Scheduling.Defaults.Timezone)
	assert.Equal(t, 3, cfg.Scheduling.Retry.MaxAttempts)
	assert.Equal(t, 15, cfg.Scheduling.Retry.DelayMinutes)
	assert.True(t, cfg.Scheduling.Defaults.RandomizeTime)
	assert.True(t, cfg.Scheduling.Defaults.AvoidHourEdges)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":8085"
  timeout: 10s
scheduling:
  defaults:
    articles_per_day: 12
    max_per_hour: 2
    active_hours: [8, 9]
    active_days: [6, 7]
    min_interval_minutes: 30
    timezone: UTC
  retry:
    max_attempts: 5
    delay_minutes: 45
  disabled_checks: [hourly_quota]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Scheduling.Defaults.ArticlesPerDay)
	assert.Equal(t, 2, cfg.Scheduling.Defaults.MaxPerHour)
	assert.Equal(t, []int{8, 9}, cfg.Scheduling.Defaults.ActiveHours)
	assert.Equal(t, []int{6, 7}, cfg.Scheduling.Defaults.ActiveDays)
	assert.Equal(t, "UTC", cfg.Scheduling.Defaults.Timezone)
	assert.Equal(t, 5, cfg.Scheduling.Retry.MaxAttempts)
	assert.Equal(t, 45, cfg.Scheduling.Retry.DelayMinutes)

	toggles := cfg.CheckToggles()
	assert.True(t, toggles.ActiveHours)
	assert.True(t, toggles.DailyQuota)
	assert.False(t, toggles.HourlyQuota)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PUBPLAN_TZ", "America/New_York")
	path := writeConfig(t, "scheduling:\n  defaults:\n    timezone: ${PUBPLAN_TZ}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", cfg.Scheduling.Defaults.Timezone)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"bad hour", "scheduling:\n  defaults:\n    active_hours: [25]\n"},
		{"bad day", "scheduling:\n  defaults:\n    active_days: [0]\n"},
		{"bad timezone", "scheduling:\n  defaults:\n    timezone: Mars/Olympus\n"},
		{"unknown check", "scheduling:\n  disabled_checks: [quantum_quota]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yml)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/pubplan.yml")
	require.Error(t, err)
}

func TestScheduleDefaults(t *testing.T) {
	cfg := Default()
	defaults, err := cfg.ScheduleDefaults()
	require.NoError(t, err)

	assert.Equal(t, 100, defaults.ArticlesPerDay)
	assert.Equal(t, "Europe/Paris", defaults.Timezone)
	require.NotNil(t, defaults.Location)
	assert.Equal(t, 6*time.Minute, defaults.MinInterval())
	require.NoError(t, defaults.Validate())
}

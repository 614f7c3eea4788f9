package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pubplan/pubplan/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:pubplan.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Scheduling SchedulingConfig `yaml:"scheduling" json:"scheduling" jsonschema:"description=Publication scheduling configuration"`
}

// SchedulingConfig holds publication scheduling settings
type SchedulingConfig struct {
	Defaults       DefaultsConfig `yaml:"defaults" json:"defaults" jsonschema:"description=Global per-platform scheduling defaults"`
	Retry          RetryConfig    `yaml:"retry" json:"retry" jsonschema:"description=Failed publication retry settings"`
	DisabledChecks []string       `yaml:"disabled_checks" json:"disabled_checks" jsonschema:"description=Throttle checks disabled globally for diagnostics (active_hours active_days daily_quota hourly_quota min_interval)"`
}

// DefaultsConfig holds global scheduling defaults, overridable per platform
type DefaultsConfig struct {
	ArticlesPerDay       int    `yaml:"articles_per_day" json:"articles_per_day" jsonschema:"default=100,description=Daily publication quota per platform"`
	MaxPerHour           int    `yaml:"max_per_hour" json:"max_per_hour" jsonschema:"default=15,description=Hourly publication quota per platform"`
	ActiveHours          []int  `yaml:"active_hours" json:"active_hours" jsonschema:"description=Hours of day (0-23) during which publishing is allowed"`
	ActiveDays           []int  `yaml:"active_days" json:"active_days" jsonschema:"description=ISO weekdays (1=Monday..7=Sunday) during which publishing is allowed"`
	MinIntervalMinutes   int    `yaml:"min_interval_minutes" json:"min_interval_minutes" jsonschema:"default=6,description=Minimum minutes between two publications"`
	Timezone             string `yaml:"timezone" json:"timezone" jsonschema:"default=Europe/Paris,description=IANA timezone for quota windows"`
	PauseOnError         bool   `yaml:"pause_on_error" json:"pause_on_error" jsonschema:"default=true,description=Pause platform scheduling after repeated errors"`
	MaxErrorsBeforePause int    `yaml:"max_errors_before_pause" json:"max_errors_before_pause" jsonschema:"default=3,description=Consecutive errors before pausing"`
	RandomizeTime        bool   `yaml:"randomize_time" json:"randomize_time" jsonschema:"default=true,description=Apply random jitter to computed slots"`
	RandomizeRangeMin    int    `yaml:"randomize_range_minutes" json:"randomize_range_minutes" jsonschema:"default=5,description=Jitter range in minutes (plus or minus)"`
	AvoidHourEdges       bool   `yaml:"avoid_hour_edges" json:"avoid_hour_edges" jsonschema:"default=true,description=Keep slots away from the first and last minutes of an hour"`
	EdgeMarginMinutes    int    `yaml:"edge_margin_minutes" json:"edge_margin_minutes" jsonschema:"default=5,description=Margin in minutes kept from hour edges"`
}

// RetryConfig holds failed publication retry settings
type RetryConfig struct {
	MaxAttempts  int `yaml:"max_attempts" json:"max_attempts" jsonschema:"default=3,description=Maximum publication attempts before an entry is left failed"`
	DelayMinutes int `yaml:"delay_minutes" json:"delay_minutes" jsonschema:"default=15,description=Minutes to wait before rescheduling a failed entry"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, no file needed
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	// set defaults for server
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if c.Database.DSN == "" {
		c.Database.DSN = "file:pubplan.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	// set defaults for scheduling
	d := &c.Scheduling.Defaults
	if d.ArticlesPerDay == 0 {
		d.ArticlesPerDay = 100
	}
	if d.MaxPerHour == 0 {
		d.MaxPerHour = 15
	}
	if len(d.ActiveHours) == 0 {
		d.ActiveHours = []int{9, 10, 11, 14, 15, 16, 17}
	}
	if len(d.ActiveDays) == 0 {
		d.ActiveDays = []int{1, 2, 3, 4, 5}
	}
	if d.MinIntervalMinutes == 0 {
		d.MinIntervalMinutes = 6
	}
	if d.Timezone == "" {
		d.Timezone = "Europe/Paris"
	}
	if d.MaxErrorsBeforePause == 0 {
		d.MaxErrorsBeforePause = 3
		d.PauseOnError = true
	}
	if d.RandomizeRangeMin == 0 {
		d.RandomizeRangeMin = 5
		d.RandomizeTime = true
	}
	if d.EdgeMarginMinutes == 0 {
		d.EdgeMarginMinutes = 5
		d.AvoidHourEdges = true
	}

	if c.Scheduling.Retry.MaxAttempts == 0 {
		c.Scheduling.Retry.MaxAttempts = 3
	}
	if c.Scheduling.Retry.DelayMinutes == 0 {
		c.Scheduling.Retry.DelayMinutes = 15
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	d := cfg.Scheduling.Defaults

	if d.ArticlesPerDay < 0 {
		return fmt.Errorf("scheduling.defaults.articles_per_day must be non-negative")
	}
	if d.MaxPerHour < 0 {
		return fmt.Errorf("scheduling.defaults.max_per_hour must be non-negative")
	}
	if d.MinIntervalMinutes < 0 {
		return fmt.Errorf("scheduling.defaults.min_interval_minutes must be non-negative")
	}
	for _, h := range d.ActiveHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("scheduling.defaults.active_hours contains %d, must be in [0,23]", h)
		}
	}
	for _, day := range d.ActiveDays {
		if day < 1 || day > 7 {
			return fmt.Errorf("scheduling.defaults.active_days contains %d, must be in [1,7]", day)
		}
	}
	if _, err := time.LoadLocation(d.Timezone); err != nil {
		return fmt.Errorf("scheduling.defaults.timezone %q is not a valid IANA zone: %w", d.Timezone, err)
	}
	for _, name := range cfg.Scheduling.DisabledChecks {
		switch name {
		case "active_hours", "active_days", "daily_quota", "hourly_quota", "min_interval":
		default:
			return fmt.Errorf("scheduling.disabled_checks contains unknown check %q", name)
		}
	}

	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// ScheduleDefaults converts the configured defaults into a resolved domain config
func (c *Config) ScheduleDefaults() (domain.ScheduleConfig, error) {
	d := c.Scheduling.Defaults
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return domain.ScheduleConfig{}, fmt.Errorf("load timezone %q: %w", d.Timezone, err)
	}
	return domain.ScheduleConfig{
		ArticlesPerDay:       d.ArticlesPerDay,
		MaxPerHour:           d.MaxPerHour,
		ActiveHours:          append([]int(nil), d.ActiveHours...),
		ActiveDays:           append([]int(nil), d.ActiveDays...),
		MinIntervalMinutes:   d.MinIntervalMinutes,
		Timezone:             d.Timezone,
		Location:             loc,
		PauseOnError:         d.PauseOnError,
		MaxErrorsBeforePause: d.MaxErrorsBeforePause,
		RandomizeTime:        d.RandomizeTime,
		RandomizeRangeMin:    d.RandomizeRangeMin,
		AvoidHourEdges:       d.AvoidHourEdges,
		EdgeMarginMinutes:    d.EdgeMarginMinutes,
	}, nil
}

// CheckToggles converts the disabled-checks list into per-check flags
func (c *Config) CheckToggles() domain.CheckToggles {
	toggles := domain.AllChecksEnabled()
	for _, name := range c.Scheduling.DisabledChecks {
		switch name {
		case "active_hours":
			toggles.ActiveHours = false
		case "active_days":
			toggles.ActiveDays = false
		case "daily_quota":
			toggles.DailyQuota = false
		case "hourly_quota":
			toggles.HourlyQuota = false
		case "min_interval":
			toggles.MinInterval = false
		}
	}
	return toggles
}

package scheduler

import (
	"time"

	"github.com/smallbiznis/seqdesk/internal/config"
)

// Config controls how often the scheduler ticks and what each job looks at.
type Config struct {
	Enabled       bool
	RunInterval   time.Duration
	BatchSize     int
	BackupHourUTC int
	ReminderAfter time.Duration
	JobTimeout    time.Duration
	BackupTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		RunInterval:   time.Minute,
		BatchSize:     200,
		BackupHourUTC: 2,
		ReminderAfter: 48 * time.Hour,
		JobTimeout:    30 * time.Second,
		BackupTimeout: 10 * time.Minute,
	}
}

// ProvideConfig maps the application settings onto scheduler settings.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:       cfg.Scheduler.Enabled,
		RunInterval:   cfg.Scheduler.TickInterval,
		BatchSize:     cfg.Scheduler.ExpiryBatchLimit,
		BackupHourUTC: cfg.Scheduler.BackupHourUTC,
		ReminderAfter: cfg.Scheduler.ReminderAfter,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.BackupHourUTC < 0 || c.BackupHourUTC > 23 {
		c.BackupHourUTC = defaults.BackupHourUTC
	}
	if c.ReminderAfter <= 0 {
		c.ReminderAfter = defaults.ReminderAfter
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.BackupTimeout <= 0 {
		c.BackupTimeout = defaults.BackupTimeout
	}
	return c
}

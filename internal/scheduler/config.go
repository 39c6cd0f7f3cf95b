package scheduler

import (
	"time"

	"github.com/smallbiznis/autotrade/internal/config"
)

// Config controls the overdue sweep interval and page size.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: time.Hour,
		BatchSize:   50,
		JobTimeout:  5 * time.Minute,
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
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.OverdueSweepEnabled,
		RunInterval: cfg.OverdueSweepInterval,
		BatchSize:   cfg.OverdueSweepBatchSize,
	}.withDefaults()
}

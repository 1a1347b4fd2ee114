// Package config defines service configuration and the raid template file
// loader.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory event queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize bounds how many batch idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// Engine timing, in seconds of event time.
	GroupTimeoutSeconds  int `koanf:"group_timeout_seconds"`
	RaidTimeoutSeconds   int `koanf:"raid_timeout_seconds"`
	PendingWindowSeconds int `koanf:"pending_window_seconds"`
	SweepIntervalSeconds int `koanf:"sweep_interval_seconds"`

	// BuffRetentionSeconds bounds how long buff landings are kept per actor.
	// Zero keeps them for the whole stream.
	BuffRetentionSeconds int `koanf:"buff_retention_seconds"`

	// RaidTemplatesPath points at a YAML raid template file. WatchTemplates
	// reloads it on change.
	RaidTemplatesPath string `koanf:"raid_templates_path"`
	WatchTemplates    bool   `koanf:"watch_templates"`

	// SpellsPath points at a YAML spell catalog.
	SpellsPath string `koanf:"spells_path"`

	// StoreDriver selects where finished records live: memory or sqlite.
	StoreDriver      string `koanf:"store_driver"`
	SQLitePath       string `koanf:"sqlite_path"`
	MemoryStoreLimit int    `koanf:"memory_store_limit"`

	// OutputPath enables the NDJSON record sink when set.
	OutputPath     string `koanf:"output_path"`
	OutputMaxBytes int64  `koanf:"output_max_bytes"`

	// MaxListLimit caps GET /encounters?limit and GET /top?limit.
	MaxListLimit int `koanf:"max_list_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		QueueSize:            100_000,
		DedupeSize:           50_000,
		GroupTimeoutSeconds:  15,
		RaidTimeoutSeconds:   60,
		PendingWindowSeconds: 60,
		SweepIntervalSeconds: 5,
		BuffRetentionSeconds: 1800,
		StoreDriver:          DriverMemory,
		SQLitePath:           "fightlog.db",
		MemoryStoreLimit:     10_000,
		OutputMaxBytes:       64 << 20,
		MaxListLimit:         500,
	}
}

// Validate reports the first problem with c.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.GroupTimeoutSeconds <= 0, c.RaidTimeoutSeconds <= 0,
		c.PendingWindowSeconds <= 0, c.SweepIntervalSeconds <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	case c.BuffRetentionSeconds < 0:
		return fmt.Errorf("%w: buff_retention_seconds must not be negative", ErrInvalidConfig)
	case c.MaxListLimit <= 0:
		return fmt.Errorf("%w: max_list_limit must be positive", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}

// GroupTimeout is the idle timeout of small-group encounters.
func (c *Config) GroupTimeout() time.Duration {
	return time.Duration(c.GroupTimeoutSeconds) * time.Second
}

// RaidTimeout is the idle timeout of raid encounters and raids.
func (c *Config) RaidTimeout() time.Duration {
	return time.Duration(c.RaidTimeoutSeconds) * time.Second
}

// PendingWindow bounds how long unresolved events are kept for replay.
func (c *Config) PendingWindow() time.Duration {
	return time.Duration(c.PendingWindowSeconds) * time.Second
}

// SweepInterval is how often, in event time, the timeout sweep runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// BuffRetention bounds how long buff landings are kept per actor.
func (c *Config) BuffRetention() time.Duration {
	return time.Duration(c.BuffRetentionSeconds) * time.Second
}

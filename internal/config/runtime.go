// Package config provides centralized configuration for medremind runtime values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Storage backends.
const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MEDREMIND_"

// RuntimeConfig holds all runtime configuration values.
type RuntimeConfig struct {
	Daemon     DaemonConfig     `yaml:"daemon"`
	HTTP       HTTPConfig       `yaml:"http"`
	RetryQueue RetryQueueConfig `yaml:"retry_queue"`
	Storage    StorageConfig    `yaml:"storage"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Server     ServerConfig     `yaml:"server"`
	Notify     NotifyConfig     `yaml:"notify"`
	Log        LogConfig        `yaml:"log"`
}

// DaemonConfig holds daemon-related configuration.
type DaemonConfig struct {
	// StartupWait is the time to wait for the daemon to start before checking status.
	// Default: 500ms
	StartupWait time.Duration `yaml:"startup_wait"`

	// KillTimeout is the timeout for graceful shutdown before force kill.
	// Default: 5s
	KillTimeout time.Duration `yaml:"kill_timeout"`

	// ShutdownTimeout bounds how long shutdown waits for an in-flight tick.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HTTPConfig holds webhook HTTP client configuration.
type HTTPConfig struct {
	// Timeout is the default HTTP request timeout.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RetryDelays are the delays between retry attempts.
	// Default: [0s, 5s, 30s]
	RetryDelays []time.Duration `yaml:"retry_delays"`
}

// RetryQueueConfig holds retry queue configuration.
type RetryQueueConfig struct {
	// CheckInterval is how often the queue checks for ready notifications.
	// Default: 30s
	CheckInterval time.Duration `yaml:"check_interval"`

	// BackoffSchedule is the backoff schedule for failed notifications.
	// Default: [5s, 30s, 2m, 5m, 15m]
	BackoffSchedule []time.Duration `yaml:"backoff_schedule"`
}

// StorageConfig holds storage-related configuration.
type StorageConfig struct {
	// Backend selects the record store: "badger" or "postgres".
	// Default: badger
	Backend string `yaml:"backend"`

	// Path is the badger data directory. Empty means the XDG data dir.
	Path string `yaml:"path"`

	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`

	// MinFreeSpace is the minimum free space required for write operations.
	// Default: 10MB
	MinFreeSpace uint64 `yaml:"min_free_space"`
}

// SchedulerConfig holds scheduler-related configuration.
type SchedulerConfig struct {
	// TickInterval is the dispatch period. One minute aligns ticks to
	// wall-clock minute boundaries.
	// Default: 1m
	TickInterval time.Duration `yaml:"tick_interval"`

	// MissedWindow is how late a reminder may still fire after its trigger
	// minute was missed. Zero fires on the exact minute only.
	// Default: 1h
	MissedWindow time.Duration `yaml:"missed_window"`

	// Timezone names the location reminders are evaluated in. Empty means local.
	Timezone string `yaml:"timezone"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address. Empty disables the server.
	// Default: 127.0.0.1:5000
	Addr string `yaml:"addr"`
}

// NotifyConfig holds notification fan-out configuration.
type NotifyConfig struct {
	// SessionBuffer is the per-session event buffer. A full buffer drops events.
	// Default: 16
	SessionBuffer int `yaml:"session_buffer"`

	// WebhookRate is the sustained webhook sends per second.
	// Default: 5
	WebhookRate float64 `yaml:"webhook_rate"`

	// WebhookBurst is the webhook rate limiter burst.
	// Default: 10
	WebhookBurst int `yaml:"webhook_burst"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is the minimum log level.
	// Default: info
	Level string `yaml:"level"`
}

// DefaultRuntimeConfig returns the default runtime configuration.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Daemon: DaemonConfig{
			StartupWait:     500 * time.Millisecond,
			KillTimeout:     5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RetryDelays: []time.Duration{
				0,                // Immediate first attempt
				5 * time.Second,  // Retry after 5s
				30 * time.Second, // Retry after 30s
			},
		},
		RetryQueue: RetryQueueConfig{
			CheckInterval: 30 * time.Second,
			BackoffSchedule: []time.Duration{
				5 * time.Second,
				30 * time.Second,
				2 * time.Minute,
				5 * time.Minute,
				15 * time.Minute,
			},
		},
		Storage: StorageConfig{
			Backend:      BackendBadger,
			MinFreeSpace: 10 * 1024 * 1024, // 10MB
		},
		Scheduler: SchedulerConfig{
			TickInterval: time.Minute,
			MissedWindow: time.Hour,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:5000",
		},
		Notify: NotifyConfig{
			SessionBuffer: 16,
			WebhookRate:   5,
			WebhookBurst:  10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Global holds the global runtime configuration instance.
// It is initialized with defaults and can be overridden via environment variables.
var Global = initGlobal()

// initGlobal initializes the global config with defaults and environment overrides.
func initGlobal() *RuntimeConfig {
	cfg := DefaultRuntimeConfig()
	cfg.loadFromEnv()
	return cfg
}

// loadFromEnv loads configuration overrides from environment variables.
// Unparseable values are ignored.
func (c *RuntimeConfig) loadFromEnv() {
	envDuration("DAEMON_STARTUP_WAIT", &c.Daemon.StartupWait)
	envDuration("DAEMON_KILL_TIMEOUT", &c.Daemon.KillTimeout)
	envDuration("SHUTDOWN_TIMEOUT", &c.Daemon.ShutdownTimeout)

	envDuration("HTTP_TIMEOUT", &c.HTTP.Timeout)
	if v := os.Getenv(EnvPrefix + "HTTP_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.HTTP.MaxRetries = n
		}
	}

	envDuration("RETRY_QUEUE_INTERVAL", &c.RetryQueue.CheckInterval)

	envString("STORAGE_BACKEND", &c.Storage.Backend)
	envString("DB_PATH", &c.Storage.Path)
	envString("DATABASE_URL", &c.Storage.DSN)
	if v := os.Getenv(EnvPrefix + "MIN_FREE_SPACE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Storage.MinFreeSpace = n
		}
	}

	envDuration("TICK_INTERVAL", &c.Scheduler.TickInterval)
	envDuration("MISSED_WINDOW", &c.Scheduler.MissedWindow)
	envString("TIMEZONE", &c.Scheduler.Timezone)

	envString("SERVER_ADDR", &c.Server.Addr)

	if v := os.Getenv(EnvPrefix + "SESSION_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Notify.SessionBuffer = n
		}
	}
	if v := os.Getenv(EnvPrefix + "WEBHOOK_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Notify.WebhookRate = f
		}
	}
	if v := os.Getenv(EnvPrefix + "WEBHOOK_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Notify.WebhookBurst = n
		}
	}

	envString("LOG_LEVEL", &c.Log.Level)
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			*dst = d
		}
	}
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		*dst = v
	}
}

// Validate reports configuration values the daemon cannot run with.
func (c *RuntimeConfig) Validate() error {
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be positive, got %s", c.Scheduler.TickInterval)
	}
	if c.Scheduler.MissedWindow < 0 {
		return fmt.Errorf("scheduler.missed_window must not be negative, got %s", c.Scheduler.MissedWindow)
	}
	// Ticks longer than a minute skip trigger minutes; only the window catches them.
	if c.Scheduler.TickInterval > time.Minute && c.Scheduler.MissedWindow < c.Scheduler.TickInterval {
		return fmt.Errorf("scheduler.missed_window (%s) must be at least scheduler.tick_interval (%s)",
			c.Scheduler.MissedWindow, c.Scheduler.TickInterval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case BackendBadger:
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Notify.SessionBuffer <= 0 {
		return fmt.Errorf("notify.session_buffer must be positive, got %d", c.Notify.SessionBuffer)
	}
	return nil
}

// Location returns the configured scheduler location.
func (c *RuntimeConfig) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

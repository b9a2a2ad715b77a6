// Package config defines the notifier configuration and how it is loaded.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Durations are configured in milliseconds and exposed as time.Duration.
// - Errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the control API listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// APIBaseURL is the root of the platform REST API.
	APIBaseURL string `koanf:"api_base_url"`

	// APIToken is sent as a bearer token when set.
	APIToken string `koanf:"api_token"`

	// SessionUserID pins the session to a user instead of asking the platform.
	SessionUserID string `koanf:"session_user_id"`

	// RequestTimeoutMS bounds each platform request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// WorkerCount sets the number of enrichment workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the pending queue; workers wait when it is full.
	QueueSize int `koanf:"queue_size"`

	// PopupVisibleMS and PopupCooldownMS shape the popup cycle.
	PopupVisibleMS  int `koanf:"popup_visible_ms"`
	PopupCooldownMS int `koanf:"popup_cooldown_ms"`

	// PollIntervalMS runs a check periodically; 0 disables polling.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// MetricsRefreshMS sets how often process metrics are sampled.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`

	// OTelEndpoint is the OTLP/HTTP traces endpoint; empty disables tracing.
	OTelEndpoint string `koanf:"otel_endpoint"`

	// ServiceName is reported to the tracing backend.
	ServiceName string `koanf:"service_name"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		APIBaseURL:       "http://localhost:8000/api",
		RequestTimeoutMS: 10_000,
		WorkerCount:      runtime.NumCPU(),
		QueueSize:        256,
		PopupVisibleMS:   4000,
		PopupCooldownMS:  500,
		PollIntervalMS:   0,
		MetricsRefreshMS: 10_000,
		ServiceName:      "lingoquest-notifier",
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// PopupVisible returns PopupVisibleMS as a duration.
func (c *Config) PopupVisible() time.Duration {
	return time.Duration(c.PopupVisibleMS) * time.Millisecond
}

// PopupCooldown returns PopupCooldownMS as a duration.
func (c *Config) PopupCooldown() time.Duration {
	return time.Duration(c.PopupCooldownMS) * time.Millisecond
}

// PollInterval returns PollIntervalMS as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// MetricsRefresh returns MetricsRefreshMS as a duration.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.APIBaseURL) == "":
		return fmt.Errorf("%w: api_base_url must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.RequestTimeoutMS <= 0:
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.PopupVisibleMS <= 0:
		return fmt.Errorf("%w: popup_visible_ms must be positive", ErrInvalidConfig)
	case c.PopupCooldownMS < 0:
		return fmt.Errorf("%w: popup_cooldown_ms must not be negative", ErrInvalidConfig)
	case c.PollIntervalMS < 0:
		return fmt.Errorf("%w: poll_interval_ms must not be negative", ErrInvalidConfig)
	case c.MetricsRefreshMS <= 0:
		return fmt.Errorf("%w: metrics_refresh_ms must be positive", ErrInvalidConfig)
	}
	return nil
}

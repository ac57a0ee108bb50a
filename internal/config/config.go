// Package config loads server configuration from a TOML file with a
// defaults layer and environment overrides.
package config

import (
	"fmt"
	"time"
)

// Config is the full server configuration.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds.
	ListenAddr string `toml:"listen_addr"`

	// TokenTTLHours is the session lifetime after login.
	TokenTTLHours int `toml:"token_ttl_hours"`

	// SweepIntervalSeconds is the period of the background session
	// reaper.
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`

	// PanBaseURL and DriveBaseURL override the drive API endpoints,
	// for tests and forward proxies. Empty means the public hosts.
	PanBaseURL   string `toml:"pan_base_url"`
	DriveBaseURL string `toml:"drive_base_url"`

	// ShutdownTimeoutSeconds bounds graceful HTTP shutdown.
	ShutdownTimeoutSeconds int `toml:"shutdown_timeout_seconds"`

	// TransferPollAttempts and SharePollAttempts bound how long the
	// server waits on remote transfer and share-creation tasks.
	TransferPollAttempts int `toml:"transfer_poll_attempts"`
	SharePollAttempts    int `toml:"share_poll_attempts"`

	LogLevel  string `toml:"log_level"`  // debug, info, warn, error
	LogFormat string `toml:"log_format"` // auto, text, json
}

// Default values. These work without any config file.
const (
	defaultListenAddr      = "0.0.0.0:8000"
	defaultTokenTTLHours   = 24
	defaultSweepInterval   = 3600
	defaultShutdownTimeout = 30
	defaultTransferPolls   = 50
	defaultSharePolls      = 30
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
)

// Default returns a Config populated with all default values. Used as
// the starting point for TOML decoding so unset keys keep defaults.
func Default() *Config {
	return &Config{
		ListenAddr:             defaultListenAddr,
		TokenTTLHours:          defaultTokenTTLHours,
		SweepIntervalSeconds:   defaultSweepInterval,
		ShutdownTimeoutSeconds: defaultShutdownTimeout,
		TransferPollAttempts:   defaultTransferPolls,
		SharePollAttempts:      defaultSharePolls,
		LogLevel:               defaultLogLevel,
		LogFormat:              defaultLogFormat,
	}
}

// TokenTTL returns the session lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// SweepInterval returns the reaper period as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown bound as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Validate checks value ranges. Called after decoding and overrides.
func Validate(c *Config) error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}

	if c.TokenTTLHours <= 0 {
		return fmt.Errorf("config: token_ttl_hours must be positive, got %d", c.TokenTTLHours)
	}

	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("config: sweep_interval_seconds must be positive, got %d", c.SweepIntervalSeconds)
	}

	if c.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: shutdown_timeout_seconds must be positive, got %d", c.ShutdownTimeoutSeconds)
	}

	if c.TransferPollAttempts <= 0 {
		return fmt.Errorf("config: transfer_poll_attempts must be positive, got %d", c.TransferPollAttempts)
	}

	if c.SharePollAttempts <= 0 {
		return fmt.Errorf("config: share_poll_attempts must be positive, got %d", c.SharePollAttempts)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}

	return nil
}

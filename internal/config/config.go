// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package config

import "time"

// Config holds all application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values for every setting
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: override any setting
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Dataset  DatasetConfig  `koanf:"dataset"`
	Model    ModelConfig    `koanf:"model"`
	Sampling SamplingConfig `koanf:"sampling"`
	Replay   ReplayConfig   `koanf:"replay"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// DatasetConfig selects the capture dataset to replay.
type DatasetConfig struct {
	// Path to the capture file. Required.
	Path string `koanf:"path"`

	// Format is "csv" or "sqlite".
	Format string `koanf:"format"`

	// Table is the table to read when Format is "sqlite".
	Table string `koanf:"table"`

	// Breaker guards dataset reads against a failing backing store.
	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the circuit breaker around the dataset source.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// ModelConfig locates the classification model.
type ModelConfig struct {
	// Path to the model file. When empty or missing the pipeline falls
	// back to DefaultLabel for every record.
	Path string `koanf:"path"`

	// SampleSize is how many raw feature columns each verdict carries.
	SampleSize int `koanf:"sample_size"`

	// DefaultLabel and DefaultConfidence are used when no model is
	// available or a prediction fails.
	DefaultLabel      string  `koanf:"default_label"`
	DefaultConfidence float64 `koanf:"default_confidence"`
}

// SamplingConfig tunes the weighted no-repeat index pool.
type SamplingConfig struct {
	// SplitFraction divides the dataset index space into two regions.
	SplitFraction float64 `koanf:"split_fraction"`

	// BiasedShare is the share of each repopulated pool drawn from the
	// biased region.
	BiasedShare float64 `koanf:"biased_share"`

	// BiasLateRecords selects the tail region as the biased one.
	BiasLateRecords bool `koanf:"bias_late_records"`

	// Random enables weighted random order at startup; sequential
	// otherwise.
	Random bool `koanf:"random"`
}

// ReplayConfig tunes the playback controller.
type ReplayConfig struct {
	BatchSize             int     `koanf:"batch_size"`
	DefaultPace           float64 `koanf:"default_pace"`
	ReshuffleOnExhaustion bool    `koanf:"reshuffle_on_exhaustion"`
	HistoryCap            int     `koanf:"history_cap"`
	GraphWindow           int     `koanf:"graph_window"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	// AuthEnabled gates the control endpoints behind JWT auth.
	AuthEnabled bool `koanf:"auth_enabled"`

	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	AdminUsername  string        `koanf:"admin_username"`
	AdminPassword  string        `koanf:"admin_password"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateDataset(); err != nil {
		return err
	}

	if err := c.validateModel(); err != nil {
		return err
	}

	if err := c.validateSampling(); err != nil {
		return err
	}

	if err := c.validateReplay(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates the HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

// validateDataset validates the capture dataset configuration
func (c *Config) validateDataset() error {
	if c.Dataset.Path == "" {
		return fmt.Errorf("DATASET_PATH is required")
	}

	switch c.Dataset.Format {
	case "csv":
	case "sqlite":
		if c.Dataset.Table == "" {
			return fmt.Errorf("DATASET_TABLE is required when DATASET_FORMAT=sqlite")
		}
	default:
		return fmt.Errorf("DATASET_FORMAT must be csv or sqlite, got %q", c.Dataset.Format)
	}

	if c.Dataset.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("DATASET_BREAKER_THRESHOLD must be positive")
	}
	return nil
}

// validateModel validates the classification model configuration
func (c *Config) validateModel() error {
	if c.Model.SampleSize < 0 {
		return fmt.Errorf("MODEL_SAMPLE_SIZE must not be negative")
	}
	if c.Model.DefaultConfidence < 0 || c.Model.DefaultConfidence > 1 {
		return fmt.Errorf("MODEL_DEFAULT_CONFIDENCE must be between 0 and 1")
	}
	return nil
}

// validateSampling validates the index pool configuration
func (c *Config) validateSampling() error {
	if c.Sampling.SplitFraction < 0 || c.Sampling.SplitFraction > 1 {
		return fmt.Errorf("SAMPLING_SPLIT_FRACTION must be between 0 and 1")
	}
	if c.Sampling.BiasedShare < 0 || c.Sampling.BiasedShare > 1 {
		return fmt.Errorf("SAMPLING_BIASED_SHARE must be between 0 and 1")
	}
	return nil
}

// validateReplay validates the playback controller configuration
func (c *Config) validateReplay() error {
	if c.Replay.BatchSize < 1 {
		return fmt.Errorf("REPLAY_BATCH_SIZE must be at least 1")
	}
	if c.Replay.DefaultPace <= 0 {
		return fmt.Errorf("REPLAY_DEFAULT_PACE must be positive")
	}
	if c.Replay.HistoryCap < 1 {
		return fmt.Errorf("REPLAY_HISTORY_CAP must be at least 1")
	}
	if c.Replay.GraphWindow < 1 {
		return fmt.Errorf("REPLAY_GRAPH_WINDOW must be at least 1")
	}
	return nil
}

// validateSecurity validates authentication and rate limit configuration
func (c *Config) validateSecurity() error {
	if c.Security.AuthEnabled {
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters when AUTH_ENABLED=true")
		}
		if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
			return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required when AUTH_ENABLED=true")
		}
		if c.Security.SessionTimeout <= 0 {
			return fmt.Errorf("SESSION_TIMEOUT must be positive")
		}
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

// validateLogging validates log output configuration
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

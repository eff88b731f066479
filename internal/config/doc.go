// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

// Package config provides layered configuration loading for ICSWatch.
//
// Configuration is loaded with Koanf v2 from three layers, later layers
// overriding earlier ones:
//
//  1. Built-in defaults
//  2. An optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (DATASET_PATH, REPLAY_BATCH_SIZE, ...)
//
// Load() returns a validated, immutable Config:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("failed to load config")
//	}
package config

// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

// Package main is the entry point for the ICSWatch server.
//
// ICSWatch replays captured ICS network traffic through a threat
// classification pipeline and fans the verdicts out to websocket
// subscribers in real time.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered load (defaults, YAML file, env vars)
//  2. Data source: capture dataset (CSV or SQLite) behind a circuit breaker
//  3. Classification: centroid model with standard scaling, when configured
//  4. Replay engine: sampling pool, statistics aggregator, playback controller
//  5. WebSocket hub: real-time fanout to dashboard subscribers
//  6. HTTP server: control API, status views, /metrics, /ws
//
// All long-running components run under a suture supervision tree so a
// crash in one layer restarts only that layer.
//
// # Example Usage
//
// Replay a CSV capture without authentication:
//
//	export DATASET_PATH=/data/capture.csv
//	./icswatch
//
// Replay a SQLite capture with a trained model and JWT auth:
//
//	export DATASET_PATH=/data/capture.db
//	export DATASET_FORMAT=sqlite
//	export DATASET_TABLE=packets
//	export MODEL_PATH=/data/model.json
//	export AUTH_ENABLED=true
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export ADMIN_USERNAME=operator
//	export ADMIN_PASSWORD=secure-password
//	./icswatch
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP server
// drains in-flight requests, the replay loop stops at its next yield
// point, and websocket clients receive close frames.
package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icswatch/icswatch/internal/api"
	"github.com/icswatch/icswatch/internal/auth"
	"github.com/icswatch/icswatch/internal/classify"
	"github.com/icswatch/icswatch/internal/config"
	"github.com/icswatch/icswatch/internal/datasource"
	"github.com/icswatch/icswatch/internal/logging"
	"github.com/icswatch/icswatch/internal/predictor"
	"github.com/icswatch/icswatch/internal/replay"
	"github.com/icswatch/icswatch/internal/sampling"
	"github.com/icswatch/icswatch/internal/stats"
	"github.com/icswatch/icswatch/internal/supervisor"
	ws "github.com/icswatch/icswatch/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("dataset", cfg.Dataset.Path).
		Str("format", cfg.Dataset.Format).
		Msg("starting icswatch")

	source, err := openDataSource(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open capture dataset")
	}
	defer func() {
		if err := source.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing dataset")
		}
	}()

	pipeline := buildPipeline(cfg, source)

	pool := sampling.NewPool(source.Count(), sampling.Config{
		SplitFraction:   cfg.Sampling.SplitFraction,
		BiasedShare:     cfg.Sampling.BiasedShare,
		BiasLateRecords: cfg.Sampling.BiasLateRecords,
	}, rand.New(rand.NewSource(time.Now().UnixNano()))) //nolint:gosec // replay sampling, not crypto
	pool.SetRandom(cfg.Sampling.Random)

	agg := stats.New(stats.Config{
		HistoryCap:  cfg.Replay.HistoryCap,
		GraphWindow: cfg.Replay.GraphWindow,
	})

	hub := ws.NewHub()

	controller := replay.New(replay.Config{
		BatchSize:             cfg.Replay.BatchSize,
		DefaultPace:           cfg.Replay.DefaultPace,
		ReshuffleOnExhaustion: cfg.Replay.ReshuffleOnExhaustion,
	}, source, pool, pipeline, agg, hub, nil)

	var jwtManager *auth.JWTManager
	if cfg.Security.AuthEnabled {
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to initialize JWT manager")
		}
		logging.Info().Msg("JWT authentication enabled for control endpoints")
	} else {
		logging.Warn().Msg("authentication disabled - control endpoints are open")
	}

	handler := api.NewHandler(controller, hub, cfg)
	mw := api.NewMiddleware(api.MiddlewareConfigFromSecurity(&cfg.Server, &cfg.Security))
	router := api.NewRouter(handler, mw, jwtManager)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}
	tree.AddEngineService(supervisor.NewNamedService("replay-controller", controller))
	tree.AddMessagingService(supervisor.NewHubService(hub.RunWithContext))
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("addr", server.Addr).
		Int("records", source.Count()).
		Msg("icswatch ready")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor exited with error")
		os.Exit(1)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop within timeout")
		}
	}
	logging.Info().Msg("icswatch stopped")
}

// openDataSource opens the configured capture dataset and wraps it in a
// circuit breaker.
func openDataSource(cfg *config.Config) (datasource.Source, error) {
	var (
		src datasource.Source
		err error
	)
	switch cfg.Dataset.Format {
	case "sqlite":
		src, err = datasource.OpenSQLite(cfg.Dataset.Path, cfg.Dataset.Table)
	default:
		src, err = datasource.OpenCSV(cfg.Dataset.Path)
	}
	if err != nil {
		return nil, err
	}

	return datasource.NewBreakerSource(src, datasource.BreakerConfig{
		Name:             "capture-dataset",
		MaxRequests:      cfg.Dataset.Breaker.MaxRequests,
		Interval:         cfg.Dataset.Breaker.Interval,
		Timeout:          cfg.Dataset.Breaker.Timeout,
		FailureThreshold: cfg.Dataset.Breaker.FailureThreshold,
	}), nil
}

// buildPipeline assembles the classification pipeline, falling back to
// default verdicts when no model is configured or loadable.
func buildPipeline(cfg *config.Config, source datasource.Source) *classify.Pipeline {
	pipelineCfg := classify.Config{
		FeatureColumns:    featureColumns(source.Columns()),
		SampleSize:        cfg.Model.SampleSize,
		DefaultLabel:      cfg.Model.DefaultLabel,
		DefaultConfidence: cfg.Model.DefaultConfidence,
	}
	pipelineCfg.InputWidth = len(pipelineCfg.FeatureColumns)

	var (
		pred   classify.Predictor
		scaler classify.Scaler
	)
	if cfg.Model.Path != "" {
		centroid, std, err := predictor.Load(cfg.Model.Path)
		switch {
		case errors.Is(err, predictor.ErrNoModel):
			logging.Warn().Str("path", cfg.Model.Path).Msg("model file not found, using default verdicts")
		case err != nil:
			logging.Fatal().Err(err).Str("path", cfg.Model.Path).Msg("failed to load model")
		default:
			pred = centroid
			if std != nil {
				scaler = std
			}
			pipelineCfg.InputWidth = centroid.Width()
			logging.Info().
				Int("classes", len(centroid.Classes())).
				Int("width", centroid.Width()).
				Msg("classification model loaded")
		}
	} else {
		logging.Info().Msg("no model configured, using default verdicts")
	}

	return classify.NewPipeline(pipelineCfg, pred, scaler)
}

// featureColumns selects the numeric feature columns from the dataset
// header. Label and metadata columns are excluded; keeping them would shift
// the feature vector against the trained model's column contract.
func featureColumns(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, col := range columns {
		switch col {
		case "category", "label", "class", "timestamp", "file_name", "src_ip", "dst_ip", "":
			continue
		}
		out = append(out, col)
	}
	return out
}

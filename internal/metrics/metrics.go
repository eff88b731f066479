// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

// Package metrics provides Prometheus instrumentation for the replay
// engine: replay throughput and pacing, classification latency, fanout
// delivery, data source health, and API latency. All collectors are
// registered on the default registry and exposed via /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Replay Metrics
	ReplayRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replay_records_total",
			Help: "Total number of records replayed, by predicted class",
		},
		[]string{"class"},
	)

	ReplayBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "replay_batch_duration_seconds",
			Help:    "Duration of one replay batch (fetch, classify, fanout)",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReplayPace = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "replay_pace_records_per_second",
			Help: "Current configured replay pace",
		},
	)

	ReplayProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "replay_progress_percent",
			Help: "Percentage of the dataset dispatched in the current pass",
		},
	)

	ReplayRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "replay_running",
			Help: "Whether the replay loop is running (1) or stopped (0)",
		},
	)

	// Classification Metrics
	ClassificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classification_duration_seconds",
			Help:    "Duration of single-record classification",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	ClassificationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classification_errors_total",
			Help: "Total number of error verdicts produced",
		},
	)

	AttacksDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attacks_detected_total",
			Help: "Total number of attack verdicts, by attack type and severity",
		},
		[]string{"attack_type", "severity"},
	)

	// Fanout Metrics
	BroadcastMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Total number of messages enqueued for fanout, by type",
		},
		[]string{"type"},
	)

	BroadcastDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_total",
			Help: "Total number of fanout messages dropped on full channels",
		},
		[]string{"type"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of connected WebSocket subscribers",
		},
	)

	// Data Source Metrics
	DatasourceFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datasource_fetch_duration_seconds",
			Help:    "Duration of record fetches from the capture source",
			Buckets: prometheus.DefBuckets,
		},
	)

	DatasourceFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datasource_fetch_errors_total",
			Help: "Total number of failed capture fetches",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordVerdict records one classified record.
func RecordVerdict(class, attackType, severity string, duration time.Duration) {
	ReplayRecordsTotal.WithLabelValues(class).Inc()
	ClassificationDuration.Observe(duration.Seconds())
	if class == "error" {
		ClassificationErrors.Inc()
	}
	if attackType != "" {
		AttacksDetected.WithLabelValues(attackType, severity).Inc()
	}
}

// RecordBroadcast records one fanout enqueue attempt.
func RecordBroadcast(messageType string, dropped bool) {
	BroadcastMessagesTotal.WithLabelValues(messageType).Inc()
	if dropped {
		BroadcastDropped.WithLabelValues(messageType).Inc()
	}
}

// RecordFetch records one capture fetch.
func RecordFetch(duration time.Duration, err error) {
	DatasourceFetchDuration.Observe(duration.Seconds())
	if err != nil {
		DatasourceFetchErrors.Inc()
	}
}

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetReplayState updates the replay gauges after a state change.
func SetReplayState(running bool, pace, progressPercent float64) {
	if running {
		ReplayRunning.Set(1)
	} else {
		ReplayRunning.Set(0)
	}
	ReplayPace.Set(pace)
	ReplayProgress.Set(progressPercent)
}

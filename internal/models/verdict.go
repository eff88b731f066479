// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

// Package models defines the shared data types exchanged between the replay
// engine, the statistics aggregator, the broadcast hub, and the API layer.
package models

import "time"

// Severity tiers assigned to a verdict from its confidence.
const (
	SeverityNormal   = "normal"
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Well-known predicted class labels. Attack classes beyond these may appear
// when the model emits a numeric class with no mapping.
const (
	ClassNormal         = "normal"
	ClassError          = "error"
	ClassMITM           = "mitm_attack"
	ClassModbusFlooding = "modbus_flooding"
	ClassTCPSynDDoS     = "tcp_syn_ddos"
	ClassPingDDoS       = "ping_ddos"
)

// Verdict is the classification result for one replayed record.
//
// A Verdict is created exactly once per processed record and never mutated
// afterwards; the statistics aggregator and the broadcast hub both hold
// read-only references to it.
type Verdict struct {
	// Timestamp is the emission time, assigned when the record is replayed.
	// Replay does not preserve the dataset's original capture timing.
	Timestamp time.Time `json:"timestamp"`

	// PacketID is a monotonically increasing sequence number within a run.
	PacketID int64 `json:"packet_id"`

	SourceIP      string `json:"source_ip"`
	DestinationIP string `json:"destination_ip"`
	Protocol      string `json:"protocol"`
	PacketSize    int    `json:"packet_size"`

	PredictedClass string  `json:"predicted_class"`
	Confidence     float64 `json:"confidence"`
	AnomalyScore   float64 `json:"anomaly_score"`

	// Features is a small display sample of the extracted feature values,
	// not the full vector fed to the predictor.
	Features map[string]float64 `json:"features"`

	// AttackType is empty for normal traffic.
	AttackType string `json:"attack_type,omitempty"`
	Severity   string `json:"severity"`
}

// IsAttack reports whether the verdict carries an attack classification.
func (v *Verdict) IsAttack() bool {
	return v.AttackType != ""
}

// StatusSnapshot is a point-in-time view of the replay engine returned by
// the status endpoint.
type StatusSnapshot struct {
	Running         bool             `json:"is_running"`
	Paused          bool             `json:"is_paused"`
	CurrentRow      int64            `json:"current_row"`
	TotalRows       int              `json:"total_rows"`
	ProgressPercent float64          `json:"progress_percent"`
	Pace            float64          `json:"playback_speed"`
	AttackCounts    map[string]int64 `json:"attack_counts"`
	HistoryLength   int              `json:"recent_classifications_count"`
	Subscribers     int              `json:"active_connections"`
	RandomMode      bool             `json:"random_mode"`
	ProcessedCount  int              `json:"processed_packets"`
	RemainingCount  int              `json:"remaining_packets"`
}

// TimelineEntry is one attack observation in the timeline view.
type TimelineEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	AttackType    string    `json:"attack_type"`
	Severity      string    `json:"severity"`
	Confidence    float64   `json:"confidence"`
	SourceIP      string    `json:"source_ip"`
	DestinationIP string    `json:"destination_ip"`
}

// GraphNode is one endpoint in the device graph, with per-node traffic
// tallies folded from recent verdicts.
type GraphNode struct {
	ID          string `json:"id"`
	IP          string `json:"ip"`
	Type        string `json:"type"`
	AttackCount int    `json:"attack_count"`
	NormalCount int    `json:"normal_count"`
}

// GraphEdge is one observed flow between two endpoints. Edges are not
// aggregated; there is one edge per contributing verdict.
type GraphEdge struct {
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	Protocol    string    `json:"protocol"`
	AttackType  string    `json:"attack_type,omitempty"`
	Severity    string    `json:"severity"`
	PacketCount int       `json:"packet_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// NetworkGraph is the device-graph projection derived on demand from the
// rolling history. It is never persisted.
type NetworkGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

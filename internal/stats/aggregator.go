// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

// Package stats maintains bounded rolling statistics over classification
// verdicts: a capped history ring, per-class attack tallies, and derived
// views (attack timeline, device graph). All methods are safe for
// concurrent use; memory is bounded regardless of replay length.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/icswatch/icswatch/internal/models"
)

const (
	// DefaultHistoryCap bounds the rolling verdict history.
	DefaultHistoryCap = 1000

	// DefaultGraphWindow is how many trailing verdicts feed the device
	// graph projection.
	DefaultGraphWindow = 200
)

// Config sizes the aggregator's windows. Zero values take defaults.
type Config struct {
	HistoryCap  int
	GraphWindow int
}

// Aggregator accumulates verdicts from the replay loop.
type Aggregator struct {
	mu sync.RWMutex

	cfg Config

	// history is a ring: start is the oldest element, count the fill.
	history []*models.Verdict
	start   int
	count   int

	attackCounts map[string]int64
	processed    int64
}

// New creates an empty aggregator.
func New(cfg Config) *Aggregator {
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = DefaultHistoryCap
	}
	if cfg.GraphWindow <= 0 {
		cfg.GraphWindow = DefaultGraphWindow
	}
	return &Aggregator{
		cfg:          cfg,
		history:      make([]*models.Verdict, cfg.HistoryCap),
		attackCounts: make(map[string]int64),
	}
}

// Record folds one verdict into the rolling state. Verdicts must not be
// mutated after being recorded.
func (a *Aggregator) Record(v *models.Verdict) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pos := (a.start + a.count) % len(a.history)
	a.history[pos] = v
	if a.count < len(a.history) {
		a.count++
	} else {
		a.start = (a.start + 1) % len(a.history)
	}

	if v.AttackType != "" {
		a.attackCounts[v.AttackType]++
	}
	a.processed++
}

// Recent returns up to limit of the newest verdicts in chronological
// order. limit <= 0 returns the whole history.
func (a *Aggregator) Recent(limit int) []*models.Verdict {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := a.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.Verdict, n)
	for i := 0; i < n; i++ {
		out[i] = a.history[(a.start+a.count-n+i)%len(a.history)]
	}
	return out
}

// HistoryLen returns the current history fill.
func (a *Aggregator) HistoryLen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

// AttackCounts returns a copy of the per-class attack tallies.
func (a *Aggregator) AttackCounts() map[string]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]int64, len(a.attackCounts))
	for k, v := range a.attackCounts {
		out[k] = v
	}
	return out
}

// Processed returns the total verdicts recorded since the last reset.
func (a *Aggregator) Processed() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.processed
}

// Reset clears all rolling state.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = make([]*models.Verdict, a.cfg.HistoryCap)
	a.start = 0
	a.count = 0
	a.attackCounts = make(map[string]int64)
	a.processed = 0
}

// Timeline returns attack observations from the last minutes of history,
// newest first. Normal and unclassified traffic is excluded.
func (a *Aggregator) Timeline(minutes int) []models.TimelineEntry {
	if minutes <= 0 {
		minutes = 60
	}
	cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute)

	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []models.TimelineEntry
	for i := 0; i < a.count; i++ {
		v := a.history[(a.start+i)%len(a.history)]

		attackType := v.AttackType
		if attackType == "" {
			attackType = v.PredictedClass
		}
		if attackType == models.ClassNormal || attackType == "" || attackType == "unknown" {
			continue
		}
		if v.Timestamp.Before(cutoff) {
			continue
		}

		out = append(out, models.TimelineEntry{
			Timestamp:     v.Timestamp,
			AttackType:    attackType,
			Severity:      v.Severity,
			Confidence:    v.Confidence,
			SourceIP:      v.SourceIP,
			DestinationIP: v.DestinationIP,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// NetworkGraph folds the trailing graph window of history into a device
// graph: one node per endpoint with traffic tallies, one edge per
// contributing verdict. Nodes come back sorted by id for stable output.
func (a *Aggregator) NetworkGraph() models.NetworkGraph {
	a.mu.RLock()
	defer a.mu.RUnlock()

	window := a.cfg.GraphWindow
	if window > a.count {
		window = a.count
	}

	nodes := make(map[string]*models.GraphNode)
	edges := make([]models.GraphEdge, 0, window)

	touch := func(ip string) *models.GraphNode {
		n, ok := nodes[ip]
		if !ok {
			n = &models.GraphNode{ID: ip, IP: ip, Type: "device"}
			nodes[ip] = n
		}
		return n
	}

	for i := a.count - window; i < a.count; i++ {
		v := a.history[(a.start+i)%len(a.history)]

		src := touch(v.SourceIP)
		dst := touch(v.DestinationIP)
		if v.IsAttack() {
			src.AttackCount++
			dst.AttackCount++
		} else {
			src.NormalCount++
			dst.NormalCount++
		}

		edges = append(edges, models.GraphEdge{
			Source:      v.SourceIP,
			Target:      v.DestinationIP,
			Protocol:    v.Protocol,
			AttackType:  v.AttackType,
			Severity:    v.Severity,
			PacketCount: 1,
			Timestamp:   v.Timestamp,
		})
	}

	g := models.NetworkGraph{
		Nodes: make([]models.GraphNode, 0, len(nodes)),
		Edges: edges,
	}
	for _, n := range nodes {
		g.Nodes = append(g.Nodes, *n)
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	return g
}

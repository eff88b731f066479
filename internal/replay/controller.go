// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

// Package replay drives the traffic replay engine: it owns the playback
// state machine, pulls record indices from the sampling pool, classifies
// each record and fans the verdicts out to the statistics aggregator and
// the broadcast hub at a configurable pace.
//
// Exactly one replay loop runs per controller. Control calls (start,
// stop, pause, resume, pace, reset) are observed cooperatively between
// records; nothing interrupts a record mid-flight.
package replay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/icswatch/icswatch/internal/classify"
	"github.com/icswatch/icswatch/internal/datasource"
	"github.com/icswatch/icswatch/internal/logging"
	"github.com/icswatch/icswatch/internal/metrics"
	"github.com/icswatch/icswatch/internal/models"
	"github.com/icswatch/icswatch/internal/sampling"
	"github.com/icswatch/icswatch/internal/stats"
)

// State is the playback state machine position.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// pausePollInterval is how often the loop rechecks state while paused.
const pausePollInterval = 100 * time.Millisecond

// Broadcaster is the fanout surface the controller publishes to.
// Satisfied by *websocket.Hub.
type Broadcaster interface {
	BroadcastVerdict(*models.Verdict)
	BroadcastStatus(*models.StatusSnapshot)
	GetClientCount() int
}

// Config tunes the controller.
type Config struct {
	// BatchSize is how many indices are pulled from the pool per
	// data-source round trip. Default 10.
	BatchSize int

	// DefaultPace is the initial pace in records per second. Clamped to
	// [MinPace, MaxPace]. Default 1.0.
	DefaultPace float64

	// ReshuffleOnExhaustion makes pool exhaustion in weighted mode
	// reseed the pool and keep replaying instead of stopping.
	ReshuffleOnExhaustion bool
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.DefaultPace == 0 {
		c.DefaultPace = 1.0
	}
}

// Controller is the top-level replay driver. Construct with New and run
// Serve under a supervisor; control calls are safe from any goroutine.
type Controller struct {
	cfg      Config
	source   datasource.Source
	pool     *sampling.Pool
	pipeline *classify.Pipeline
	agg      *stats.Aggregator
	hub      Broadcaster
	sched    Scheduler

	mu    sync.Mutex
	state State
	wake  chan struct{}

	cursor atomic.Int64 // records emitted since last reset
	seq    atomic.Int64 // packet sequence numbers, never reused mid-run
}

// New wires a controller. sched may be nil, in which case a rate-limiter
// scheduler at cfg.DefaultPace is used.
func New(cfg Config, source datasource.Source, pool *sampling.Pool, pipeline *classify.Pipeline, agg *stats.Aggregator, hub Broadcaster, sched Scheduler) *Controller {
	cfg.applyDefaults()
	if sched == nil {
		sched = NewRateScheduler(cfg.DefaultPace)
	}
	return &Controller{
		cfg:      cfg,
		source:   source,
		pool:     pool,
		pipeline: pipeline,
		agg:      agg,
		hub:      hub,
		sched:    sched,
		state:    StateStopped,
		wake:     make(chan struct{}, 1),
	}
}

// Serve runs the replay engine until the context is canceled. It idles
// while stopped and runs the replay loop while started. Implements
// suture.Service.
func (c *Controller) Serve(ctx context.Context) error {
	logging.Info().Msg("replay controller started")
	for {
		select {
		case <-ctx.Done():
			c.setState(StateStopped)
			logging.Info().Msg("replay controller stopped")
			return ctx.Err()
		case <-c.wake:
		}

		if c.State() != StateRunning {
			continue
		}
		c.runLoop(ctx)
	}
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.publishGauges()
}

// Start transitions Stopped -> Running. Starting while already running
// is reported and ignored.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state == StateRunning || c.state == StatePaused {
		from := c.state
		c.mu.Unlock()
		logging.Warn().Str("state", from.String()).Msg("start requested while replay active")
		return transitionError("start", from)
	}
	c.state = StateRunning
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	logging.Info().Msg("replay started")
	c.publishGauges()
	return nil
}

// Stop transitions any state to Stopped. The loop observes the change at
// its next yield point.
func (c *Controller) Stop() {
	c.setState(StateStopped)
	logging.Info().Msg("replay stop requested")
}

// Pause transitions Running -> Paused.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != StateRunning {
		from := c.state
		c.mu.Unlock()
		return transitionError("pause", from)
	}
	c.state = StatePaused
	c.mu.Unlock()
	logging.Info().Msg("replay paused")
	c.publishGauges()
	return nil
}

// Resume transitions Paused -> Running.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != StatePaused {
		from := c.state
		c.mu.Unlock()
		return transitionError("resume", from)
	}
	c.state = StateRunning
	c.mu.Unlock()
	logging.Info().Msg("replay resumed")
	c.publishGauges()
	return nil
}

// SetPace clamps and applies a new pace, returning the stored value.
func (c *Controller) SetPace(recordsPerSecond float64) float64 {
	pace := c.sched.SetPace(recordsPerSecond)
	logging.Info().Float64("pace", pace).Msg("replay pace set")
	c.publishGauges()
	return pace
}

// Pace returns the current pace in records per second.
func (c *Controller) Pace() float64 {
	return c.sched.Pace()
}

// SetRandomMode toggles between weighted-random and sequential replay.
func (c *Controller) SetRandomMode(enabled bool) {
	c.pool.SetRandom(enabled)
	logging.Info().Bool("random_mode", enabled).Msg("replay mode changed")
}

// Reset rewinds the replay: cursor to zero, statistics cleared, pool
// reseeded under the bias policy. Not permitted while running.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.state == StateRunning {
		c.mu.Unlock()
		return transitionError("reset", StateRunning)
	}
	c.mu.Unlock()

	c.cursor.Store(0)
	c.seq.Store(0)
	c.agg.Reset()
	c.pool.Reset()
	logging.Info().Msg("replay reset")
	c.publishGauges()
	return nil
}

// Status returns a point-in-time snapshot of the engine.
func (c *Controller) Status() *models.StatusSnapshot {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	total, remaining := c.pool.Size()
	processed := c.pool.ProcessedCount()

	progress := 0.0
	if total > 0 {
		progress = float64(processed) / float64(total) * 100
	}

	return &models.StatusSnapshot{
		Running:         state == StateRunning,
		Paused:          state == StatePaused,
		CurrentRow:      c.cursor.Load(),
		TotalRows:       total,
		ProgressPercent: progress,
		Pace:            c.sched.Pace(),
		AttackCounts:    c.agg.AttackCounts(),
		HistoryLength:   c.agg.HistoryLen(),
		Subscribers:     c.hub.GetClientCount(),
		RandomMode:      c.pool.Random(),
		ProcessedCount:  processed,
		RemainingCount:  remaining,
	}
}

// Recent returns the newest verdicts, up to limit.
func (c *Controller) Recent(limit int) []*models.Verdict {
	return c.agg.Recent(limit)
}

// Timeline returns attack observations from the last minutes of history.
func (c *Controller) Timeline(minutes int) []models.TimelineEntry {
	return c.agg.Timeline(minutes)
}

// DeviceGraph returns the device graph projection of recent history.
func (c *Controller) DeviceGraph() models.NetworkGraph {
	return c.agg.NetworkGraph()
}

// runLoop is the single replay loop. It returns when the state leaves
// Running/Paused, the pool exhausts under non-reshuffle configuration,
// or the context is canceled. It never returns with the state still
// claiming Running.
func (c *Controller) runLoop(ctx context.Context) {
	logging.Info().Float64("pace", c.sched.Pace()).Msg("replay loop entered")

	for {
		if ctx.Err() != nil {
			c.setState(StateStopped)
			return
		}

		switch c.State() {
		case StateStopped:
			logging.Info().Int64("cursor", c.cursor.Load()).Msg("replay loop exited")
			return
		case StatePaused:
			select {
			case <-ctx.Done():
				c.setState(StateStopped)
				return
			case <-time.After(pausePollInterval):
			}
			continue
		case StateRunning:
		}

		idxs := c.nextBatch()
		if len(idxs) == 0 {
			if c.cfg.ReshuffleOnExhaustion && c.pool.Random() {
				logging.Info().Msg("pool exhausted, reshuffling")
				c.pool.Reset()
				continue
			}
			logging.Info().Int64("cursor", c.cursor.Load()).Msg("pool exhausted, stopping replay")
			c.setState(StateStopped)
			return
		}

		batchStart := time.Now()
		c.processBatch(ctx, idxs)
		metrics.ReplayBatchDuration.Observe(time.Since(batchStart).Seconds())

		c.hub.BroadcastStatus(c.Status())
		c.publishGauges()
	}
}

// nextBatch pulls up to BatchSize indices from the pool.
func (c *Controller) nextBatch() []int {
	idxs := make([]int, 0, c.cfg.BatchSize)
	for len(idxs) < c.cfg.BatchSize {
		idx, err := c.pool.Next()
		if err != nil {
			if !errors.Is(err, sampling.ErrExhausted) {
				logging.Error().Err(err).Msg("sampling pool error")
			}
			break
		}
		idxs = append(idxs, idx)
	}
	return idxs
}

// processBatch replays one batch. Per-record failures are isolated: a
// failed fetch skips that index and the loop continues.
func (c *Controller) processBatch(ctx context.Context, idxs []int) {
	for _, idx := range idxs {
		if c.State() != StateRunning {
			return
		}

		fetchStart := time.Now()
		rec, err := c.source.FetchByIndex(ctx, idx)
		metrics.RecordFetch(time.Since(fetchStart), err)
		if err != nil {
			logging.Warn().Err(err).Int("index", idx).Msg("record fetch failed, skipping index")
			continue
		}

		start := time.Now()
		v := c.pipeline.Classify(rec, c.seq.Add(1))
		metrics.RecordVerdict(v.PredictedClass, v.AttackType, v.Severity, time.Since(start))

		// Statistics before fanout, so a subscriber reading status right
		// after a message never sees the counter lag its own verdict.
		c.agg.Record(v)
		c.hub.BroadcastVerdict(v)
		c.cursor.Add(1)

		// The sole pacing yield: pause and stop take effect between
		// records, never mid-record.
		if err := c.sched.Tick(ctx); err != nil {
			c.setState(StateStopped)
			return
		}
	}
}

func (c *Controller) publishGauges() {
	total, _ := c.pool.Size()
	progress := 0.0
	if total > 0 {
		progress = float64(c.pool.ProcessedCount()) / float64(total) * 100
	}
	metrics.SetReplayState(c.State() == StateRunning, c.sched.Pace(), progress)
}

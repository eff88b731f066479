// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package datasource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/icswatch/icswatch/internal/logging"
)

// BreakerConfig tunes the circuit breaker wrapped around a Source.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns conservative defaults: trip after five
// consecutive failures, retry after thirty seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "datasource",
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerSource wraps a Source with a circuit breaker so a misbehaving
// backing store degrades replay instead of hammering it. In-memory
// sources never fail after load, but the replay loop only sees the
// Source interface, so remote-backed implementations get the same
// protection for free.
type BreakerSource struct {
	inner       Source
	breaker     *gobreaker.CircuitBreaker[[]Record]
	fetchTotal  atomic.Int64
	fetchFailed atomic.Int64
}

// NewBreakerSource wraps inner. Zero-value config fields take defaults.
func NewBreakerSource(inner Source, cfg BreakerConfig) *BreakerSource {
	def := DefaultBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}

	s := &BreakerSource{inner: inner}
	s.breaker = gobreaker.NewCircuitBreaker[[]Record](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("datasource breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// A bad index is a caller bug, not a backing store fault.
			return err == nil || errors.Is(err, ErrOutOfRange)
		},
	})
	return s
}

func (s *BreakerSource) Count() int { return s.inner.Count() }

func (s *BreakerSource) Columns() []string { return s.inner.Columns() }

func (s *BreakerSource) FetchByIndex(ctx context.Context, idx int) (Record, error) {
	recs, err := s.FetchBatch(ctx, []int{idx})
	if err != nil {
		return nil, err
	}
	return recs[0], nil
}

func (s *BreakerSource) FetchBatch(ctx context.Context, idxs []int) ([]Record, error) {
	s.fetchTotal.Add(1)
	recs, err := s.breaker.Execute(func() ([]Record, error) {
		return s.inner.FetchBatch(ctx, idxs)
	})
	if err != nil {
		s.fetchFailed.Add(1)
	}
	return recs, err
}

// Stats returns total and failed fetch counts since construction.
func (s *BreakerSource) Stats() (total, failed int64) {
	return s.fetchTotal.Load(), s.fetchFailed.Load()
}

func (s *BreakerSource) Close() error { return s.inner.Close() }

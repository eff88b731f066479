// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package replay

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Pace bounds, in records per second. Requests outside the range clamp.
const (
	MinPace = 0.1
	MaxPace = 10.0
)

// Scheduler paces record emission. The controller calls Tick once per
// emitted record; Tick blocks until the next record may go out or the
// context is canceled. Implementations must be safe for SetPace calls
// concurrent with Tick.
type Scheduler interface {
	Tick(ctx context.Context) error
	// SetPace stores a new pace clamped to [MinPace, MaxPace] and
	// returns the value actually stored. Takes effect on the next Tick.
	SetPace(recordsPerSecond float64) float64
	Pace() float64
}

// RateScheduler paces emission with a token-bucket limiter. Burst is 1:
// records are spaced evenly at 1/pace seconds, matching the cooperative
// per-record yield contract.
type RateScheduler struct {
	limiter *rate.Limiter
}

// NewRateScheduler creates a scheduler at the given pace (clamped).
func NewRateScheduler(recordsPerSecond float64) *RateScheduler {
	s := &RateScheduler{
		limiter: rate.NewLimiter(rate.Limit(clampPace(recordsPerSecond)), 1),
	}
	return s
}

func (s *RateScheduler) Tick(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

func (s *RateScheduler) SetPace(recordsPerSecond float64) float64 {
	pace := clampPace(recordsPerSecond)
	s.limiter.SetLimit(rate.Limit(pace))
	return pace
}

func (s *RateScheduler) Pace() float64 {
	return float64(s.limiter.Limit())
}

func clampPace(v float64) float64 {
	switch {
	case math.IsNaN(v), v < MinPace:
		return MinPace
	case v > MaxPace:
		return MaxPace
	default:
		return v
	}
}

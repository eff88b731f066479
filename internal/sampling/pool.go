// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

// Package sampling tracks which dataset row indices remain to be replayed
// and decides which index is dispatched next.
//
// The pool operates in one of two modes. In weighted mode indices are drawn
// from a pre-shuffled pool biased toward one region of the index space
// (attack traffic clusters late in the ICS capture datasets this service
// replays, so the default oversamples the tail). In sequential mode indices
// are emitted in order from a cursor.
//
// Invariant: between resets, every index in [0, N) is in exactly one of
// {available, processed}; no index is dispatched twice.
package sampling

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrExhausted is returned by Next when no indices remain. Callers decide
// whether to Reset and continue or stop; exhaustion is never fatal.
var ErrExhausted = errors.New("sampling: pool exhausted")

// Config controls the weighted bias policy.
type Config struct {
	// SplitFraction divides [0, N) into two regions at SplitFraction*N.
	// Default 0.5.
	SplitFraction float64

	// BiasedShare is the share of the repopulated pool drawn from the
	// biased region. Default 0.75.
	BiasedShare float64

	// BiasLateRecords selects the tail region [split, N) as the biased
	// region when true, the head region otherwise. Default true.
	BiasLateRecords bool
}

// DefaultConfig returns the bias policy matching the capture datasets this
// service ships against: three quarters of the pool from the second half.
func DefaultConfig() Config {
	return Config{
		SplitFraction:   0.5,
		BiasedShare:     0.75,
		BiasLateRecords: true,
	}
}

func (c *Config) applyDefaults() {
	if c.SplitFraction <= 0 || c.SplitFraction >= 1 {
		c.SplitFraction = 0.5
	}
	if c.BiasedShare <= 0 || c.BiasedShare > 1 {
		c.BiasedShare = 0.75
	}
}

// Pool hands out dataset row indices without repetition.
type Pool struct {
	mu        sync.Mutex
	total     int
	cfg       Config
	rng       *rand.Rand
	random    bool
	cursor    int
	available []int
	processed map[int]struct{}
}

// NewPool creates a pool over [0, total) in weighted mode, populated under
// the bias policy. A nil rng gets a time-seeded source; tests pass a seeded
// one for determinism.
func NewPool(total int, cfg Config, rng *rand.Rand) *Pool {
	cfg.applyDefaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // sampling bias, not crypto
	}
	p := &Pool{
		total:  total,
		cfg:    cfg,
		rng:    rng,
		random: true,
	}
	p.resetLocked()
	return p
}

// Next returns the next index to dispatch and marks it processed, keeping
// the available/processed partition consistent. Returns ErrExhausted when
// nothing remains.
func (p *Pool) Next() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.random {
		if len(p.available) == 0 {
			return 0, ErrExhausted
		}
		idx := p.available[0]
		p.available = p.available[1:]
		p.processed[idx] = struct{}{}
		return idx, nil
	}

	// Sequential: emit from the cursor, skipping anything already handed out.
	for p.cursor < p.total {
		idx := p.cursor
		p.cursor++
		if _, done := p.processed[idx]; done {
			continue
		}
		p.removeAvailable(idx)
		p.processed[idx] = struct{}{}
		return idx, nil
	}
	return 0, ErrExhausted
}

// MarkProcessed records an index as dispatched even if it was not obtained
// through Next. Unknown and already-processed indices are ignored.
func (p *Pool) MarkProcessed(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx < 0 || idx >= p.total {
		return
	}
	if _, done := p.processed[idx]; done {
		return
	}
	p.removeAvailable(idx)
	p.processed[idx] = struct{}{}
}

// Reset clears the processed set and repopulates the pool under the bias
// policy. The sequential cursor returns to zero.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

// SetRandom switches between weighted and sequential modes.
//
// Entering weighted mode recomputes the pool as the unprocessed complement,
// uniformly shuffled (the bias applies only on Reset). Entering sequential
// mode leaves the cursor where it is and begins emission from there.
func (p *Pool) SetRandom(random bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if random && !p.random {
		remaining := make([]int, 0, p.total-len(p.processed))
		for i := 0; i < p.total; i++ {
			if _, done := p.processed[i]; !done {
				remaining = append(remaining, i)
			}
		}
		p.rng.Shuffle(len(remaining), func(i, j int) {
			remaining[i], remaining[j] = remaining[j], remaining[i]
		})
		p.available = remaining
	}
	p.random = random
}

// Random reports whether the pool is in weighted mode.
func (p *Pool) Random() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.random
}

// Size returns the total index count and the number still available.
func (p *Pool) Size() (total, remaining int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, len(p.available)
}

// ProcessedCount returns how many indices have been dispatched since the
// last reset.
func (p *Pool) ProcessedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

// resetLocked repopulates available under the bias policy. Must be called
// with p.mu held.
//
// The biased draw (a quarter of the pool from the plain region, the rest
// from the biased region, clamped to each region's size) forms the front of
// the ordering, uniformly shuffled. Indices the draw did not select are
// appended behind it, shuffled, so the partition invariant holds exactly:
// nothing is lost, exhaustion means every index was dispatched.
func (p *Pool) resetLocked() {
	p.processed = make(map[int]struct{}, p.total)
	p.cursor = 0

	split := int(p.cfg.SplitFraction * float64(p.total))
	head := makeRange(0, split)
	tail := makeRange(split, p.total)

	biased, plain := tail, head
	if !p.cfg.BiasLateRecords {
		biased, plain = head, tail
	}

	biasedCount := min(len(biased), int(p.cfg.BiasedShare*float64(p.total)))
	plainCount := min(len(plain), int((1-p.cfg.BiasedShare)*float64(p.total)))

	front := make([]int, 0, biasedCount+plainCount)
	front = append(front, p.sample(plain, plainCount)...)
	front = append(front, p.sample(biased, biasedCount)...)
	p.rng.Shuffle(len(front), func(i, j int) {
		front[i], front[j] = front[j], front[i]
	})

	drawn := make(map[int]struct{}, len(front))
	for _, idx := range front {
		drawn[idx] = struct{}{}
	}
	rest := make([]int, 0, p.total-len(front))
	for i := 0; i < p.total; i++ {
		if _, ok := drawn[i]; !ok {
			rest = append(rest, i)
		}
	}
	p.rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})

	p.available = append(front, rest...)
}

// sample draws n distinct values from candidates without replacement.
func (p *Pool) sample(candidates []int, n int) []int {
	if n >= len(candidates) {
		out := make([]int, len(candidates))
		copy(out, candidates)
		return out
	}
	perm := p.rng.Perm(len(candidates))
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[perm[i]]
	}
	return out
}

// removeAvailable drops idx from the available slice if present. Must be
// called with p.mu held.
func (p *Pool) removeAvailable(idx int) {
	for i, v := range p.available {
		if v == idx {
			p.available = append(p.available[:i], p.available[i+1:]...)
			return
		}
	}
}

func makeRange(lo, hi int) []int {
	if hi <= lo {
		return nil
	}
	out := make([]int, hi-lo)
	for i := range out {
		out[i] = lo + i
	}
	return out
}

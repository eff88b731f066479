// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package sampling

import (
	"errors"
	"math/rand"
	"testing"
)

func newTestPool(total int) *Pool {
	return NewPool(total, DefaultConfig(), rand.New(rand.NewSource(42)))
}

func TestPool_PartitionInvariant(t *testing.T) {
	totals := []int{0, 1, 2, 7, 10, 100, 1000}

	for _, total := range totals {
		p := newTestPool(total)

		_, remaining := p.Size()
		if remaining+p.ProcessedCount() != total {
			t.Errorf("N=%d: available(%d) + processed(%d) != %d after reset",
				total, remaining, p.ProcessedCount(), total)
		}

		// Invariant must hold across any sequence of Next/MarkProcessed calls.
		for i := 0; i < total; i++ {
			if i%3 == 0 {
				p.MarkProcessed(i)
			} else if _, err := p.Next(); err != nil {
				break
			}
			_, remaining := p.Size()
			if remaining+p.ProcessedCount() != total {
				t.Fatalf("N=%d: partition broken at step %d: available=%d processed=%d",
					total, i, remaining, p.ProcessedCount())
			}
		}
	}
}

func TestPool_NoRepeatsBetweenResets(t *testing.T) {
	const total = 100
	p := newTestPool(total)

	seen := make(map[int]bool, total)
	for {
		idx, err := p.Next()
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[idx] {
			t.Fatalf("index %d returned twice", idx)
		}
		if idx < 0 || idx >= total {
			t.Fatalf("index %d out of range [0,%d)", idx, total)
		}
		seen[idx] = true
	}

	if len(seen) != total {
		t.Errorf("exhaustion after %d draws, want %d", len(seen), total)
	}
	if p.ProcessedCount() != total {
		t.Errorf("processed = %d, want %d", p.ProcessedCount(), total)
	}
}

func TestPool_BiasTowardTail(t *testing.T) {
	// N=10 with the default policy: the first 7 draws come from the biased
	// construction (2 from [0,5), 5 from [5,10)), so the front of the
	// ordering oversamples the second half.
	p := newTestPool(10)

	fromTail := 0
	for i := 0; i < 7; i++ {
		idx, err := p.Next()
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if idx >= 5 {
			fromTail++
		}
	}

	if fromTail != 5 {
		t.Errorf("first 7 draws contained %d tail indices, want 5", fromTail)
	}
}

func TestPool_BiasConfigurable(t *testing.T) {
	cfg := Config{SplitFraction: 0.5, BiasedShare: 0.75, BiasLateRecords: false}
	p := NewPool(10, cfg, rand.New(rand.NewSource(1)))

	fromHead := 0
	for i := 0; i < 7; i++ {
		idx, err := p.Next()
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if idx < 5 {
			fromHead++
		}
	}

	if fromHead != 5 {
		t.Errorf("first 7 draws contained %d head indices, want 5", fromHead)
	}
}

func TestPool_ExhaustionAndReset(t *testing.T) {
	p := newTestPool(5)

	for i := 0; i < 5; i++ {
		if _, err := p.Next(); err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
	}

	if _, err := p.Next(); !errors.Is(err, ErrExhausted) {
		t.Errorf("Next after exhaustion = %v, want ErrExhausted", err)
	}

	p.Reset()
	if p.ProcessedCount() != 0 {
		t.Errorf("processed after reset = %d, want 0", p.ProcessedCount())
	}
	if _, remaining := p.Size(); remaining != 5 {
		t.Errorf("remaining after reset = %d, want 5", remaining)
	}
}

func TestPool_SequentialMode(t *testing.T) {
	p := newTestPool(5)
	p.SetRandom(false)

	for want := 0; want < 5; want++ {
		idx, err := p.Next()
		if err != nil {
			t.Fatalf("draw %d: %v", want, err)
		}
		if idx != want {
			t.Errorf("sequential draw = %d, want %d", idx, want)
		}
	}

	if _, err := p.Next(); !errors.Is(err, ErrExhausted) {
		t.Errorf("Next past end = %v, want ErrExhausted", err)
	}
}

func TestPool_SequentialSkipsProcessed(t *testing.T) {
	p := newTestPool(5)
	p.SetRandom(false)
	p.MarkProcessed(0)
	p.MarkProcessed(1)

	idx, err := p.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if idx != 2 {
		t.Errorf("Next = %d, want 2 (0 and 1 already processed)", idx)
	}
}

func TestPool_SwitchToRandomRecomputesComplement(t *testing.T) {
	p := newTestPool(10)
	p.SetRandom(false)

	// Consume the first four sequentially.
	for i := 0; i < 4; i++ {
		if _, err := p.Next(); err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
	}

	p.SetRandom(true)

	_, remaining := p.Size()
	if remaining != 6 {
		t.Fatalf("remaining after switch = %d, want 6", remaining)
	}

	seen := make(map[int]bool)
	for {
		idx, err := p.Next()
		if errors.Is(err, ErrExhausted) {
			break
		}
		if idx < 4 {
			t.Errorf("index %d already processed sequentially, drawn again", idx)
		}
		seen[idx] = true
	}
	if len(seen) != 6 {
		t.Errorf("drew %d unprocessed indices, want 6", len(seen))
	}
}

func TestPool_MarkProcessedBounds(t *testing.T) {
	p := newTestPool(3)

	p.MarkProcessed(-1)
	p.MarkProcessed(3)
	p.MarkProcessed(99)

	if p.ProcessedCount() != 0 {
		t.Errorf("out-of-range MarkProcessed mutated pool: processed = %d", p.ProcessedCount())
	}

	p.MarkProcessed(1)
	p.MarkProcessed(1) // idempotent
	if p.ProcessedCount() != 1 {
		t.Errorf("processed = %d, want 1", p.ProcessedCount())
	}
}

func TestPool_EmptyDataset(t *testing.T) {
	p := newTestPool(0)

	if _, err := p.Next(); !errors.Is(err, ErrExhausted) {
		t.Errorf("Next on empty pool = %v, want ErrExhausted", err)
	}
	total, remaining := p.Size()
	if total != 0 || remaining != 0 {
		t.Errorf("Size = (%d, %d), want (0, 0)", total, remaining)
	}
}

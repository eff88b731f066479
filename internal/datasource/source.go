// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

// Package datasource provides read access to captured traffic datasets.
//
// A dataset is an ordered, immutable sequence of records addressed by
// zero-based index. Implementations load the capture once at startup;
// replay then fetches by index in whatever order the sampling pool
// dictates.
package datasource

import (
	"context"
	"errors"
	"fmt"
)

// Record is one captured traffic row, column name to raw string value.
// Numeric interpretation is the consumer's concern.
type Record map[string]string

// ErrOutOfRange reports an index outside [0, Count).
var ErrOutOfRange = errors.New("datasource: index out of range")

// Source is an indexed view over a loaded capture.
type Source interface {
	// Count returns the total number of records.
	Count() int

	// FetchByIndex returns the record at idx or ErrOutOfRange.
	FetchByIndex(ctx context.Context, idx int) (Record, error)

	// FetchBatch returns the records at the given indexes, in the given
	// order. Any out-of-range index fails the whole batch.
	FetchBatch(ctx context.Context, idxs []int) ([]Record, error)

	// Columns returns the dataset's column names in file order.
	Columns() []string

	Close() error
}

// memorySource is the shared core of the file-backed sources: records
// fully resident, fetch is a slice index.
type memorySource struct {
	columns []string
	records []Record
}

func (m *memorySource) Count() int { return len(m.records) }

func (m *memorySource) Columns() []string { return m.columns }

func (m *memorySource) FetchByIndex(ctx context.Context, idx int) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(m.records) {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, idx, len(m.records))
	}
	return m.records[idx], nil
}

func (m *memorySource) FetchBatch(ctx context.Context, idxs []int) ([]Record, error) {
	out := make([]Record, 0, len(idxs))
	for _, idx := range idxs {
		rec, err := m.FetchByIndex(ctx, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *memorySource) Close() error { return nil }

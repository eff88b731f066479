// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package datasource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/icswatch/icswatch/internal/logging"
)

// CSVSource is a capture loaded from a CSV export. The whole file is
// read into memory at open time; datasets in scope are a few hundred
// thousand rows at most.
type CSVSource struct {
	memorySource
	path string
}

// OpenCSV loads a CSV capture. The first row is the header; short rows
// are rejected, ragged trailing columns are not tolerated.
func OpenCSV(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = false

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read capture header %s: %w", path, err)
	}

	s := &CSVSource{path: path}
	s.columns = append([]string(nil), header...)

	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read capture %s line %d: %w", path, line, err)
		}
		rec := make(Record, len(header))
		for i, col := range header {
			rec[col] = row[i]
		}
		s.records = append(s.records, rec)
	}

	logging.Info().
		Str("path", path).
		Int("records", len(s.records)).
		Int("columns", len(s.columns)).
		Msg("capture loaded")

	return s, nil
}

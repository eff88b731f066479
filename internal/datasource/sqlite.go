// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package datasource

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/icswatch/icswatch/internal/logging"
)

// SQLiteSource is a capture loaded from a SQLite database produced by
// the capture tooling. Rows are materialized once at open time in rowid
// order so index addressing stays stable for the life of the process.
type SQLiteSource struct {
	memorySource
	path  string
	table string
}

// OpenSQLite loads every row of the named table. The table schema is
// not fixed; columns are discovered from the result set and carried as
// strings, matching the CSV source.
func OpenSQLite(path, table string) (*SQLiteSource, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open capture db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("capture db handle: %w", err)
	}
	defer sqlDB.Close()

	rows, err := db.Table(table).Order("rowid").Rows()
	if err != nil {
		return nil, fmt.Errorf("read capture table %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("capture table %s columns: %w", table, err)
	}

	s := &SQLiteSource{path: path, table: table}
	s.columns = append([]string(nil), cols...)

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan capture row: %w", err)
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			rec[col] = stringify(vals[i])
		}
		s.records = append(s.records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read capture table %s: %w", table, err)
	}

	logging.Info().
		Str("path", path).
		Str("table", table).
		Int("records", len(s.records)).
		Msg("capture loaded")

	return s, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

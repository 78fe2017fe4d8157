// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package journal is a SQLite-backed acceleration layer over the
// engine's append-only JSONL records: the JSONL files remain the
// contractual source of truth, but re-parsing them on every cycle start
// to answer "what were the last 10 conductor decisions" or "how many PR
// rounds has issue #42 had" is wasteful. The database is a cache,
// rebuildable at any time from the JSONL files.
package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Journal wraps a SQLite database used as a query cache over cycle and
// PR-round history.
type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS conductor_entries (
	cycle_number INTEGER PRIMARY KEY,
	reasoning    TEXT NOT NULL,
	actions      TEXT NOT NULL,
	fallback     INTEGER NOT NULL,
	recorded_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pr_rounds (
	issue_number INTEGER PRIMARY KEY,
	round_count  INTEGER NOT NULL
);
`

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migrate schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error { return j.db.Close() }

// RecordConductorEntry upserts one cycle's conductor decision, pruning
// down to the last 10 entries afterward: the conductor
// journal keeps a rolling window, not full history.
func (j *Journal) RecordConductorEntry(cycleNumber int, reasoning, actionsJSON string, fallback bool, recordedAt string) error {
	_, err := j.db.Exec(
		`INSERT INTO conductor_entries (cycle_number, reasoning, actions, fallback, recorded_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cycle_number) DO UPDATE SET
		   reasoning=excluded.reasoning, actions=excluded.actions,
		   fallback=excluded.fallback, recorded_at=excluded.recorded_at`,
		cycleNumber, reasoning, actionsJSON, boolToInt(fallback), recordedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: record conductor entry for cycle %d: %w", cycleNumber, err)
	}
	_, err = j.db.Exec(`
		DELETE FROM conductor_entries
		WHERE cycle_number NOT IN (
			SELECT cycle_number FROM conductor_entries ORDER BY cycle_number DESC LIMIT 10
		)`)
	if err != nil {
		return fmt.Errorf("journal: prune conductor entries: %w", err)
	}
	return nil
}

// ConductorEntry is one row of recent conductor history.
type ConductorEntry struct {
	CycleNumber int
	Reasoning   string
	ActionsJSON string
	Fallback    bool
	RecordedAt  string
}

// RecentConductorEntries returns the last n conductor entries, newest
// first.
func (j *Journal) RecentConductorEntries(n int) ([]ConductorEntry, error) {
	rows, err := j.db.Query(
		`SELECT cycle_number, reasoning, actions, fallback, recorded_at
		 FROM conductor_entries ORDER BY cycle_number DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: query recent conductor entries: %w", err)
	}
	defer rows.Close()

	var entries []ConductorEntry
	for rows.Next() {
		var e ConductorEntry
		var fallback int
		if err := rows.Scan(&e.CycleNumber, &e.Reasoning, &e.ActionsJSON, &fallback, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("journal: scan conductor entry: %w", err)
		}
		e.Fallback = fallback != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// IncrementPRRound increments the round counter for issueNumber and
// returns the new count.
func (j *Journal) IncrementPRRound(issueNumber int) (int, error) {
	_, err := j.db.Exec(
		`INSERT INTO pr_rounds (issue_number, round_count) VALUES (?, 1)
		 ON CONFLICT(issue_number) DO UPDATE SET round_count = round_count + 1`,
		issueNumber,
	)
	if err != nil {
		return 0, fmt.Errorf("journal: increment pr round for issue #%d: %w", issueNumber, err)
	}
	var count int
	if err := j.db.QueryRow(`SELECT round_count FROM pr_rounds WHERE issue_number = ?`, issueNumber).Scan(&count); err != nil {
		return 0, fmt.Errorf("journal: read pr round count for issue #%d: %w", issueNumber, err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

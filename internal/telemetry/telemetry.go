// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry appends cycle records to the durable JSONL
// telemetry log and watches the recent tail for a recurring failure
// signature, filing a tracker issue when one is found.
package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/tracker"
)

// Writer appends CycleTelemetry records to an append-only JSONL file,
// one line at a time, flushing after every write so a crash mid-cycle
// never loses a prior cycle's record.
type Writer struct {
	mu   sync.Mutex
	path string
}

// NewWriter returns a Writer for the JSONL file at path. The file is not
// touched here: each Append opens it (creating it if necessary) for
// appending.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Append validates rec and writes it as one JSON line.
func (w *Writer) Append(rec *model.CycleTelemetry) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("telemetry: refusing to persist invalid record: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("telemetry: open %q: %w", w.path, err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("telemetry: marshal cycle %d: %w", rec.CycleNumber, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("telemetry: write cycle %d: %w", rec.CycleNumber, err)
	}
	return f.Sync()
}

// Tail reads the last n CycleTelemetry records from the JSONL file at
// path, oldest first. Returns fewer than n if the file has fewer lines.
func Tail(path string, n int) ([]model.CycleTelemetry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %q: %w", path, err)
	}
	defer f.Close()

	var all []model.CycleTelemetry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec model.CycleTelemetry
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue // skip malformed lines rather than fail the whole tail
		}
		all = append(all, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("telemetry: scan %q: %w", path, err)
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// windowSize is how many recent cycles the circuit breaker inspects.
const windowSize = 5

// tripThreshold is how many matching (phase, kind, normalized_message)
// triples within the window trip the breaker.
const tripThreshold = 3

// failureKey identifies a recurring failure signature.
type failureKey struct {
	phase      string
	kind       model.ErrorKind
	normalized string
}

// CircuitBreaker watches the telemetry tail for the same failure
// recurring tripThreshold times within the last windowSize cycles and
// files a priority:high tracker issue, once, per signature.
type CircuitBreaker struct {
	path    string
	trk     tracker.Tracker
	mu      sync.Mutex
	reported map[failureKey]bool
}

// NewCircuitBreaker watches the JSONL telemetry log at path.
func NewCircuitBreaker(path string, trk tracker.Tracker) *CircuitBreaker {
	return &CircuitBreaker{path: path, trk: trk, reported: make(map[failureKey]bool)}
}

// Check reads the last windowSize cycles and files an issue for any
// failure signature that recurs tripThreshold or more times and has not
// already been reported. Signatures are keyed by (phase, error kind,
// normalized message), and each signature counts at most once per
// cycle, so the count is the number of cycles in the window it
// appeared in.
func (c *CircuitBreaker) Check(ctx context.Context) error {
	records, err := Tail(c.path, windowSize)
	if err != nil {
		return err
	}

	counts := make(map[failureKey]int)
	for _, rec := range records {
		seenThisCycle := make(map[failureKey]bool)
		for _, phase := range rec.Phases {
			if phase.Success || phase.Error == nil {
				continue
			}
			key := failureKey{
				phase:      phase.Action,
				kind:       phase.Error.Kind,
				normalized: phase.Error.NormalizedMessage(),
			}
			if seenThisCycle[key] {
				continue
			}
			seenThisCycle[key] = true
			counts[key]++
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var openTitles map[string]bool
	for key, count := range counts {
		if count < tripThreshold || c.reported[key] {
			continue
		}
		title := issueTitle(key)

		// Dedup against open tracker issues too, not just the in-memory
		// map, so a restart doesn't refile an issue that's still open
		// from before the process died.
		if openTitles == nil {
			open, err := c.trk.ListOpenIssues(ctx, model.LabelPriorityHigh)
			if err != nil {
				return fmt.Errorf("telemetry: circuit breaker listing open issues: %w", err)
			}
			openTitles = make(map[string]bool, len(open))
			for _, iss := range open {
				openTitles[iss.Title] = true
			}
		}
		if openTitles[title] {
			c.reported[key] = true
			continue
		}

		body := fmt.Sprintf("The same failure recurred %d times in the last %d cycles.\n\nPhase: %s\nKind: %s\nMessage: %s",
			count, windowSize, key.phase, key.kind, key.normalized)
		if _, err := c.trk.CreateIssue(ctx, title, body, []string{model.LabelPriorityHigh}); err != nil {
			return fmt.Errorf("telemetry: circuit breaker filing issue: %w", err)
		}
		c.reported[key] = true
	}
	return nil
}

// issueTitle renders a failureKey's full (phase, kind, normalized
// message) triple into the issue title so dedup can match against open
// tracker issues by title alone, without any in-memory state.
func issueTitle(key failureKey) string {
	return fmt.Sprintf("recurring failure in phase %q: %s: %s", key.phase, key.kind, key.normalized)
}

// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/civicsentinel/engine/internal/model"
)

// analysisIndexEntry is one row of the flat summary list rendered
// alongside the full per-decision SessionResult documents.
type analysisIndexEntry struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Date     string        `json:"date"`
	Category model.Category `json:"category"`
	Verdict  model.Verdict `json:"verdict"`
	Score    int           `json:"score"`
}

// store persists SessionResult documents under dataDir, following the
// filesystem layout: one JSON file per decision plus a flat index.
type store struct {
	dataDir string
}

func newStore(dataDir string) *store {
	return &store{dataDir: dataDir}
}

// SaveAnalysis writes result to analyses/{decision_id}.json and appends
// (or updates) its summary row in analyses-index.json.
func (s *store) SaveAnalysis(result *model.SessionResult) error {
	analysesDir := filepath.Join(s.dataDir, "analyses")
	if err := os.MkdirAll(analysesDir, 0o750); err != nil {
		return fmt.Errorf("engine: create analyses dir: %w", err)
	}
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: marshal session result %q: %w", result.DecisionID, err)
	}
	path := filepath.Join(analysesDir, result.DecisionID+".json")
	if err := os.WriteFile(path, raw, 0o640); err != nil {
		return fmt.Errorf("engine: write %q: %w", path, err)
	}
	return s.updateIndex(result)
}

func (s *store) updateIndex(result *model.SessionResult) error {
	indexPath := filepath.Join(s.dataDir, "analyses-index.json")
	var entries []analysisIndexEntry

	raw, err := os.ReadFile(indexPath)
	if err == nil {
		if uerr := json.Unmarshal(raw, &entries); uerr != nil {
			return fmt.Errorf("engine: decode analyses index: %w", uerr)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("engine: read analyses index: %w", err)
	}

	entry := analysisIndexEntry{
		ID:       result.DecisionID,
		Title:    result.Decision.Title,
		Date:     result.Decision.Date,
		Category: result.Decision.Category,
	}
	if result.Critic != nil {
		entry.Score = result.Critic.DecisionScore
	}
	if result.Debate != nil {
		entry.Verdict = result.Debate.OverallVerdict
	}

	replaced := false
	for i, e := range entries {
		if e.ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	raw, err = json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: marshal analyses index: %w", err)
	}
	if err := os.WriteFile(indexPath, raw, 0o640); err != nil {
		return fmt.Errorf("engine: write analyses index: %w", err)
	}
	return nil
}

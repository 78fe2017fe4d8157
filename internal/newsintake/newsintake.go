// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package newsintake discovers external policy/legislative items and
// turns them into task:analysis backlog issues, deduplicated by the
// stable Decision id.
package newsintake

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/tracker"
)

// Config parameterizes an Intake.
type Config struct {
	AgentPath string
	MaxPerRun int // <=0 defaults to 3, the contractual daily cap (enforced per-run here; the daily window is enforced by the caller's ratelimit.DailyCapped)
}

// newsAgentContext is the payload handed to the news discovery agent.
type newsAgentContext struct {
	Today string `json:"today"`
}

// newsBatch is the shape the news agent's subprocess is expected to
// emit on stdout.
type newsBatch struct {
	Decisions []model.Decision `json:"decisions"`
}

// Intake drives one discovery run.
type Intake struct {
	cfg    Config
	trk    tracker.Tracker
	runner agentrunner.Runner
}

// New builds an Intake. cfg.MaxPerRun <= 0 defaults to 3.
func New(cfg Config, trk tracker.Tracker, runner agentrunner.Runner) *Intake {
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = 3
	}
	return &Intake{cfg: cfg, trk: trk, runner: runner}
}

// Run invokes the news agent for today, creates at most cfg.MaxPerRun
// new task:analysis issues, and silently skips any Decision whose id
// matches one already open (DuplicateDecision, not an error from the
// caller's perspective). It returns the count of issues
// actually created.
func (in *Intake) Run(ctx context.Context, today string) (int, error) {
	result, err := in.runner.Invoke(ctx, agentrunner.Invocation{
		AgentPath:  in.cfg.AgentPath,
		ConfigJSON: newsAgentContext{Today: today},
	})
	if err != nil {
		return 0, fmt.Errorf("newsintake: %w", err)
	}
	var batch newsBatch
	if err := json.Unmarshal(result.Stdout, &batch); err != nil {
		return 0, &model.StructuredError{Kind: model.AgentParseError, Message: fmt.Sprintf("newsintake: %v", err)}
	}

	existing, err := in.trk.ListOpenIssues(ctx, model.LabelTaskAnalysis)
	if err != nil {
		return 0, fmt.Errorf("newsintake: list open analysis issues: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, iss := range existing {
		if id, ok := extractDecisionID(iss.Body); ok {
			seen[id] = true
		}
	}

	created := 0
	for _, d := range batch.Decisions {
		if created >= in.cfg.MaxPerRun {
			break
		}
		if err := d.Validate(); err != nil {
			continue // malformed item from the agent; skip rather than fail the whole run
		}
		if seen[d.ID] {
			continue // DuplicateDecision: silent skip
		}
		body, err := json.Marshal(d)
		if err != nil {
			return created, fmt.Errorf("newsintake: encode decision %q: %w", d.ID, err)
		}
		labels := []string{model.LabelTaskAnalysis, string(model.IssueStateBacklog)}
		if _, err := in.trk.CreateIssue(ctx, d.Title, string(body), labels); err != nil {
			return created, fmt.Errorf("newsintake: create issue for %q: %w", d.ID, err)
		}
		seen[d.ID] = true
		created++
	}
	return created, nil
}

// extractDecisionID recovers the Decision id from an analysis issue's
// body, which newsintake populates with the full Decision as JSON.
func extractDecisionID(body string) (string, bool) {
	var d model.Decision
	if err := json.Unmarshal([]byte(body), &d); err != nil || d.ID == "" {
		return "", false
	}
	return d.ID, true
}

// DecodeDecision recovers the full Decision an analysis issue carries in
// its body, for callers (internal/engine) that execute the pipeline
// against a picked backlog issue.
func DecodeDecision(body string) (model.Decision, error) {
	var d model.Decision
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return model.Decision{}, fmt.Errorf("newsintake: decode decision from issue body: %w", err)
	}
	return d, nil
}

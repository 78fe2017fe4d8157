// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package oversight implements the engine's periodic review agents:
// ProjectDirector, StrategicDirector, EditorialReviewer, and
// ResearchScout. Each is a thin wrapper around an agent subprocess call
// plus a tracker.CreateIssue call. StrategicDirector and ResearchScout
// are scheduled through internal/ratelimit.PeriodicAction;
// ProjectDirector and EditorialReviewer are invoked directly by the
// engine.
package oversight

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/tracker"
)

// ProposedIssue is one issue an oversight agent recommends filing.
type ProposedIssue struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

// proposalBatch is the shape an oversight agent's subprocess is expected
// to emit on stdout.
type proposalBatch struct {
	Proposals []ProposedIssue `json:"proposals"`
}

func invokeProposals(ctx context.Context, runner agentrunner.Runner, agentPath string, payload any) ([]ProposedIssue, error) {
	result, err := runner.Invoke(ctx, agentrunner.Invocation{AgentPath: agentPath, ConfigJSON: payload})
	if err != nil {
		return nil, err
	}
	var batch proposalBatch
	if err := json.Unmarshal(result.Stdout, &batch); err != nil {
		return nil, &model.StructuredError{Kind: model.AgentParseError, Message: fmt.Sprintf("oversight agent %s: %v", agentPath, err)}
	}
	return batch.Proposals, nil
}

func fileProposals(ctx context.Context, trk tracker.Tracker, proposals []ProposedIssue, extraLabels []string, limit int) error {
	filed := 0
	for _, p := range proposals {
		if limit > 0 && filed >= limit {
			break
		}
		if p.Title == "" {
			continue
		}
		labels := append(append([]string{}, p.Labels...), extraLabels...)
		if _, err := trk.CreateIssue(ctx, p.Title, p.Body, labels); err != nil {
			return fmt.Errorf("oversight: file issue %q: %w", p.Title, err)
		}
		filed++
	}
	return nil
}

// directorContext is the payload handed to ProjectDirector/StrategicDirector
// agent calls.
type directorContext struct {
	TelemetrySummary string `json:"telemetry_summary"`
	BacklogCount     int    `json:"backlog_count"`
}

// ProjectDirector reviews recent telemetry plus the current backlog and
// proposes up to two targeted improvement issues. It is gated on the
// productive-cycle counter, not wall-clock time, so the caller's
// underlying func must itself be scheduled from
// a productive-cycle-aware trigger rather than CronScheduled/DailyCapped.
func NewProjectDirector(trk tracker.Tracker, runner agentrunner.Runner, agentPath string, telemetrySummary string, backlogCount int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		proposals, err := invokeProposals(ctx, runner, agentPath, directorContext{
			TelemetrySummary: telemetrySummary,
			BacklogCount:     backlogCount,
		})
		if err != nil {
			return fmt.Errorf("project director: %w", err)
		}
		return fileProposals(ctx, trk, proposals, []string{model.LabelDirectorSuggestion, string(model.IssueStateProposed)}, 2)
	}
}

// NewStrategicDirector is like ProjectDirector but reasons over a
// 30-day telemetry summary and runs on a wall-clock schedule (default
// weekly).
func NewStrategicDirector(trk tracker.Tracker, runner agentrunner.Runner, agentPath string, telemetrySummary30d string, backlogCount int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		proposals, err := invokeProposals(ctx, runner, agentPath, directorContext{
			TelemetrySummary: telemetrySummary30d,
			BacklogCount:     backlogCount,
		})
		if err != nil {
			return fmt.Errorf("strategic director: %w", err)
		}
		return fileProposals(ctx, trk, proposals, []string{model.LabelStrategySuggestion, string(model.IssueStateProposed)}, 2)
	}
}

// editorialContext is the payload handed to the EditorialReviewer agent.
type editorialContext struct {
	Result model.SessionResult `json:"result"`
}

// NewEditorialReviewer reviews one completed SessionResult for quality
// and tone gaps and may file a single editorial-quality issue. It never
// blocks the analysis pipeline: callers run it fire-and-forget after a
// pipeline.Run completes.
func NewEditorialReviewer(trk tracker.Tracker, runner agentrunner.Runner, agentPath string, result model.SessionResult) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		proposals, err := invokeProposals(ctx, runner, agentPath, editorialContext{Result: result})
		if err != nil {
			return fmt.Errorf("editorial reviewer: %w", err)
		}
		return fileProposals(ctx, trk, proposals, []string{model.LabelEditorialQuality}, 1)
	}
}

// NewResearchScout files unbounded
// proposals per run, deduplicated against currently open
// research-scout-labeled issues by title.
func NewResearchScout(trk tracker.Tracker, runner agentrunner.Runner, agentPath string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		proposals, err := invokeProposals(ctx, runner, agentPath, struct{}{})
		if err != nil {
			return fmt.Errorf("research scout: %w", err)
		}

		open, err := trk.ListOpenIssues(ctx, model.LabelResearchScout)
		if err != nil {
			return fmt.Errorf("research scout: list open issues: %w", err)
		}
		seen := make(map[string]bool, len(open))
		for _, iss := range open {
			seen[iss.Title] = true
		}

		fresh := proposals[:0]
		for _, p := range proposals {
			if seen[p.Title] {
				continue
			}
			fresh = append(fresh, p)
		}

		return fileProposals(ctx, trk, fresh, []string{model.LabelResearchScout}, 0)
	}
}

// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package proposer generates candidate self-improvement ideas and files
// them as self-improve:proposed issues for the debate filter to triage.
package proposer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/tracker"
)

// Config parameterizes a Proposer.
type Config struct {
	AgentPath string
	MaxPerRun int // <=0 defaults to 1
}

// Idea is one candidate code-change improvement.
type Idea struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type ideaBatch struct {
	Ideas []Idea `json:"ideas"`
}

// Proposer drives one self-propose run.
type Proposer struct {
	cfg    Config
	trk    tracker.Tracker
	runner agentrunner.Runner
}

// New builds a Proposer. cfg.MaxPerRun <= 0 defaults to 1.
func New(cfg Config, trk tracker.Tracker, runner agentrunner.Runner) *Proposer {
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = 1
	}
	return &Proposer{cfg: cfg, trk: trk, runner: runner}
}

// Run invokes the proposer agent and files at most cfg.MaxPerRun new
// issues labeled task:code-change and self-improve:proposed. It returns
// the count of issues actually created.
func (p *Proposer) Run(ctx context.Context) (int, error) {
	result, err := p.runner.Invoke(ctx, agentrunner.Invocation{AgentPath: p.cfg.AgentPath})
	if err != nil {
		return 0, fmt.Errorf("proposer: %w", err)
	}
	var batch ideaBatch
	if err := json.Unmarshal(result.Stdout, &batch); err != nil {
		return 0, &model.StructuredError{Kind: model.AgentParseError, Message: fmt.Sprintf("proposer: %v", err)}
	}

	created := 0
	for _, idea := range batch.Ideas {
		if created >= p.cfg.MaxPerRun {
			break
		}
		if idea.Title == "" {
			continue
		}
		labels := []string{model.LabelTaskCodeChange, string(model.IssueStateProposed)}
		if _, err := p.trk.CreateIssue(ctx, idea.Title, idea.Summary, labels); err != nil {
			return created, fmt.Errorf("proposer: create issue %q: %w", idea.Title, err)
		}
		created++
	}
	return created, nil
}

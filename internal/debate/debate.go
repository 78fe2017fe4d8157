// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package debate runs the advocate/skeptic triage filter that decides
// whether a proposed self-improve issue moves on to the backlog or is
// rejected, before any coder/reviewer cycle is spent on it.
package debate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/schema"
)

// defaultThreshold is the default margin by which an advocate's strength
// score must exceed a skeptic's weakness score for a proposal to pass
// (an open question resolved to a threshold of 2).
const defaultThreshold = 2

// Config parameterizes a Filter.
type Config struct {
	AdvocateAgentPath string
	SkepticAgentPath  string
	Threshold         int // <=0 defaults to defaultThreshold
}

// Proposal is one candidate self-improve idea under triage.
type Proposal struct {
	Title             string
	Summary           string
	IsHumanSuggestion bool
}

// verdict is what each side of the debate produces.
type verdict struct {
	StrengthScore int    `json:"strength_score,omitempty"`
	WeaknessScore int    `json:"weakness_score,omitempty"`
	Reasoning     string `json:"reasoning"`
}

// skepticPayload is marshaled to the skeptic agent's stdin: the same
// proposal the advocate saw, plus the advocate's verdict, so the
// skeptic argues against the strongest case rather than in a vacuum.
type skepticPayload struct {
	Proposal       Proposal `json:"proposal"`
	AdvocateScore  int      `json:"advocate_strength_score"`
	AdvocateReason string   `json:"advocate_reasoning"`
}

// Outcome is the triage result for one Proposal.
type Outcome struct {
	Proposal        Proposal
	Passed          bool
	Bypassed        bool // true when IsHumanSuggestion skipped the debate
	AdvocateScore   int
	SkepticScore    int
	AdvocateReason  string
	SkepticReason   string
}

// Filter runs the advocate/skeptic debate for proposals.
type Filter struct {
	cfg       Config
	runner    agentrunner.Runner
	validator *schema.Validator
}

// New builds a Filter. validator may be nil, in which case only JSON
// decoding runs (no JSON Schema gate).
func New(cfg Config, runner agentrunner.Runner, validator *schema.Validator) *Filter {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	return &Filter{cfg: cfg, runner: runner, validator: validator}
}

// Evaluate runs p through the triage filter. Human-authored suggestions
// bypass the debate entirely and always pass: a human
// already exercised judgment about whether the idea is worth pursuing.
func (f *Filter) Evaluate(ctx context.Context, p Proposal) (*Outcome, error) {
	if p.IsHumanSuggestion {
		return &Outcome{Proposal: p, Passed: true, Bypassed: true}, nil
	}

	adv, err := f.invoke(ctx, f.cfg.AdvocateAgentPath, p)
	if err != nil {
		return nil, fmt.Errorf("debate: advocate: %w", err)
	}
	skp, err := f.invoke(ctx, f.cfg.SkepticAgentPath, skepticPayload{
		Proposal:       p,
		AdvocateScore:  adv.StrengthScore,
		AdvocateReason: adv.Reasoning,
	})
	if err != nil {
		return nil, fmt.Errorf("debate: skeptic: %w", err)
	}

	outcome := &Outcome{
		Proposal:       p,
		AdvocateScore:  adv.StrengthScore,
		SkepticScore:   skp.WeaknessScore,
		AdvocateReason: adv.Reasoning,
		SkepticReason:  skp.Reasoning,
		Passed:         adv.StrengthScore-skp.WeaknessScore >= f.cfg.Threshold,
	}
	return outcome, nil
}

func (f *Filter) invoke(ctx context.Context, agentPath string, payload any) (*verdict, error) {
	result, err := f.runner.Invoke(ctx, agentrunner.Invocation{
		AgentPath:  agentPath,
		ConfigJSON: payload,
	})
	if err != nil {
		return nil, err
	}
	if f.validator != nil {
		if err := f.validator.Validate(schema.DebateVerdict, result.Stdout); err != nil {
			return nil, &model.StructuredError{
				Kind:    model.AgentParseError,
				Message: fmt.Sprintf("debate agent %s: %v", agentPath, err),
			}
		}
	}
	var v verdict
	if err := json.Unmarshal(result.Stdout, &v); err != nil {
		return nil, &model.StructuredError{
			Kind:    model.AgentParseError,
			Message: fmt.Sprintf("debate agent %s: %v", agentPath, err),
		}
	}
	return &v, nil
}

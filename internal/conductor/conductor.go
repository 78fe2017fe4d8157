// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conductor produces the ConductorPlan for one cycle: what the
// engine should do next, reasoned about by an LLM agent with a
// hard-coded fallback chain so a misbehaving agent can never stall the
// whole loop.
package conductor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/schema"
)

// Config parameterizes a Conductor.
type Config struct {
	PrimaryAgentPath  string // no-tool agent call; fast, preferred path
	RecoveryAgentPath string // tool-equipped agent call; used only after the primary call fails or its output fails validation
}

// Context is the state handed to the conductor agent so it can reason
// about what to do this cycle.
type Context struct {
	CycleNumber      int      `json:"cycle_number"`
	OpenIssueCount   int      `json:"open_issue_count"`
	BacklogCount     int      `json:"backlog_count"`
	LastYieldKind    string   `json:"last_yield_kind"`
	NotesFromLastCycle string `json:"notes_from_last_cycle,omitempty"`
}

// Conductor produces a validated ConductorPlan for each cycle.
type Conductor struct {
	cfg       Config
	runner    agentrunner.Runner
	validator *schema.Validator
}

// New builds a Conductor. validator may be nil, in which case only the
// model-level Validate() check runs (no JSON Schema gate).
func New(cfg Config, runner agentrunner.Runner, validator *schema.Validator) *Conductor {
	return &Conductor{cfg: cfg, runner: runner, validator: validator}
}

// Plan runs the three-tier fallback chain:
// primary no-tool agent call, then a recovery tool-equipped agent call
// if the primary call fails or its output fails validation, then the hard-coded safe
// default. usedFallback is true only when the plan came from the third
// tier; the cycle's telemetry record's conductor_fallback field is set
// from this, not from whether the recovery agent was merely attempted.
func (c *Conductor) Plan(ctx context.Context, cctx Context) (plan *model.ConductorPlan, usedFallback bool, err error) {
	if p, err := c.tryAgent(ctx, c.cfg.PrimaryAgentPath, cctx); err == nil {
		return p, false, nil
	}

	if p, err := c.tryAgent(ctx, c.cfg.RecoveryAgentPath, cctx); err == nil {
		return p, false, nil
	}

	return model.SafeDefaultPlan(), true, nil
}

func (c *Conductor) tryAgent(ctx context.Context, agentPath string, cctx Context) (*model.ConductorPlan, error) {
	if agentPath == "" {
		return nil, fmt.Errorf("conductor: no agent path configured")
	}
	result, err := c.runner.Invoke(ctx, agentrunner.Invocation{
		AgentPath:  agentPath,
		ConfigJSON: cctx,
	})
	if err != nil {
		return nil, err
	}

	if c.validator != nil {
		if err := c.validator.Validate(schema.ConductorPlan, result.Stdout); err != nil {
			return nil, &model.StructuredError{Kind: model.AgentParseError, Message: err.Error()}
		}
	}

	var plan model.ConductorPlan
	if err := json.Unmarshal(result.Stdout, &plan); err != nil {
		return nil, &model.StructuredError{Kind: model.AgentParseError, Message: err.Error()}
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline runs the three-phase analysis pipeline over one
// Decision: ministry assessments fan out in parallel, parliament
// synthesis and critic review run in parallel against the assessments,
// and the counter-proposal synthesizer runs last and only when at least
// one ministry contributed a draft.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/schema"
	"github.com/civicsentinel/engine/pkg/logging"
)

// Config names the agent executable paths the pipeline invokes.
type Config struct {
	MinistryAgentPath    string
	ParliamentAgentPath  string
	CriticAgentPath      string
	SynthesizerAgentPath string

	// Logger records ministries omitted from the session for exec or
	// timeout failures. May be nil.
	Logger *logging.Logger
}

// Pipeline runs the analysis phases for one Decision.
type Pipeline struct {
	cfg       Config
	runner    agentrunner.Runner
	validator *schema.Validator
}

// New builds a Pipeline. validator may be nil, in which case only the
// model-level Validate() checks run (no JSON Schema gate).
func New(cfg Config, runner agentrunner.Runner, validator *schema.Validator) *Pipeline {
	return &Pipeline{cfg: cfg, runner: runner, validator: validator}
}

type ministryPayload struct {
	Ministry model.Ministry `json:"ministry"`
	Decision model.Decision `json:"decision"`
}

// Run executes all three phases and returns the aggregated
// SessionResult. A ministry whose agent call fails outright is omitted
// from the result; a ministry whose agent ran but returned unusable
// output is recovered with model.NeutralFallback. If every ministry is
// omitted the ministry phase fails with AnalysisEmpty. Any other
// phase's failure propagates.
func (p *Pipeline) Run(ctx context.Context, decision model.Decision) (*model.SessionResult, error) {
	result := &model.SessionResult{
		DecisionID: decision.ID,
		Decision:   decision,
	}

	if err := p.runMinistries(ctx, decision, result); err != nil {
		return nil, fmt.Errorf("pipeline: ministry phase: %w", err)
	}
	result.SortAssessments()

	if err := p.runDebateAndCritic(ctx, decision, result); err != nil {
		return nil, fmt.Errorf("pipeline: debate/critic phase: %w", err)
	}

	if hasCounterProposalDraft(result.Assessments) {
		if err := p.runSynthesizer(ctx, decision, result); err != nil {
			return nil, fmt.Errorf("pipeline: synthesis phase: %w", err)
		}
	}

	return result, nil
}

// runMinistries fans out one agent invocation per ministry. A ministry
// that fails to execute at all (timeout, exec error, empty output) is
// omitted from the result rather than faked with a neutral assessment:
// only a parse failure (malformed or schema-invalid JSON) is recovered
// with model.NeutralFallback. If every ministry is omitted, the session
// has nothing to show and runMinistries reports AnalysisEmpty.
func (p *Pipeline) runMinistries(ctx context.Context, decision model.Decision, result *model.SessionResult) error {
	g, gCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	assessments := make([]*model.Assessment, len(model.AllMinistries))

	for i, ministry := range model.AllMinistries {
		i, ministry := i, ministry
		g.Go(func() error {
			a := p.assessOne(gCtx, ministry, decision)
			mu.Lock()
			assessments[i] = a
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	survivors := make([]model.Assessment, 0, len(assessments))
	for _, a := range assessments {
		if a != nil {
			survivors = append(survivors, *a)
		}
	}
	if len(survivors) == 0 {
		return &model.StructuredError{
			Kind:    model.AnalysisEmpty,
			Message: "every ministry assessment was omitted: no agent produced usable output",
			Phase:   "ministries",
		}
	}
	result.Assessments = survivors
	return nil
}

// assessOne invokes the ministry agent and returns its Assessment, a
// NeutralFallback if the agent ran but produced unusable output, or nil
// if the agent call itself failed (to be omitted by the caller, not
// faked).
func (p *Pipeline) assessOne(ctx context.Context, ministry model.Ministry, decision model.Decision) *model.Assessment {
	invResult, err := p.runner.Invoke(ctx, agentrunner.Invocation{
		AgentPath:  p.cfg.MinistryAgentPath,
		ConfigJSON: ministryPayload{Ministry: ministry, Decision: decision},
	})
	if err != nil {
		if p.cfg.Logger != nil {
			p.cfg.Logger.Warn("ministry assessment omitted: agent invocation failed",
				"ministry", ministry, "decision_id", decision.ID, "error", err)
		}
		return nil
	}
	if p.validator != nil {
		if err := p.validator.Validate(schema.Assessment, invResult.Stdout); err != nil {
			return model.NeutralFallback(ministry, decision.ID)
		}
	}

	var a model.Assessment
	if err := json.Unmarshal(invResult.Stdout, &a); err != nil {
		return model.NeutralFallback(ministry, decision.ID)
	}
	a.Ministry = ministry
	a.DecisionID = decision.ID
	if err := a.Validate(); err != nil {
		return model.NeutralFallback(ministry, decision.ID)
	}
	return &a
}

type parliamentPayload struct {
	Decision    model.Decision     `json:"decision"`
	Assessments []model.Assessment `json:"assessments"`
}

func (p *Pipeline) runDebateAndCritic(ctx context.Context, decision model.Decision, result *model.SessionResult) error {
	g, gCtx := errgroup.WithContext(ctx)
	var debate model.ParliamentDebate
	var critic model.CriticReport

	g.Go(func() error {
		invResult, err := p.runner.Invoke(gCtx, agentrunner.Invocation{
			AgentPath:  p.cfg.ParliamentAgentPath,
			ConfigJSON: parliamentPayload{Decision: decision, Assessments: result.Assessments},
		})
		if err != nil {
			return fmt.Errorf("parliament debate: %w", err)
		}
		if p.validator != nil {
			if err := p.validator.Validate(schema.ParliamentDebate, invResult.Stdout); err != nil {
				return fmt.Errorf("parliament debate: %w", &model.StructuredError{Kind: model.AgentParseError, Message: err.Error()})
			}
		}
		if err := json.Unmarshal(invResult.Stdout, &debate); err != nil {
			return fmt.Errorf("parliament debate: %w", &model.StructuredError{Kind: model.AgentParseError, Message: err.Error()})
		}
		debate.DecisionID = decision.ID
		return debate.Validate()
	})

	g.Go(func() error {
		invResult, err := p.runner.Invoke(gCtx, agentrunner.Invocation{
			AgentPath:  p.cfg.CriticAgentPath,
			ConfigJSON: parliamentPayload{Decision: decision, Assessments: result.Assessments},
		})
		if err != nil {
			return fmt.Errorf("critic report: %w", err)
		}
		if p.validator != nil {
			if err := p.validator.Validate(schema.CriticReport, invResult.Stdout); err != nil {
				return fmt.Errorf("critic report: %w", &model.StructuredError{Kind: model.AgentParseError, Message: err.Error()})
			}
		}
		if err := json.Unmarshal(invResult.Stdout, &critic); err != nil {
			return fmt.Errorf("critic report: %w", &model.StructuredError{Kind: model.AgentParseError, Message: err.Error()})
		}
		critic.DecisionID = decision.ID
		return critic.Validate()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	result.Debate = &debate
	result.Critic = &critic
	return nil
}

func (p *Pipeline) runSynthesizer(ctx context.Context, decision model.Decision, result *model.SessionResult) error {
	invResult, err := p.runner.Invoke(ctx, agentrunner.Invocation{
		AgentPath:  p.cfg.SynthesizerAgentPath,
		ConfigJSON: parliamentPayload{Decision: decision, Assessments: result.Assessments},
	})
	if err != nil {
		return err
	}
	var cp model.CounterProposal
	if err := json.Unmarshal(invResult.Stdout, &cp); err != nil {
		return &model.StructuredError{Kind: model.AgentParseError, Message: err.Error()}
	}
	cp.DecisionID = decision.ID
	if err := cp.Validate(); err != nil {
		return err
	}
	result.CounterProposal = &cp
	return nil
}

func hasCounterProposalDraft(assessments []model.Assessment) bool {
	for _, a := range assessments {
		if a.CounterProposal != nil {
			return true
		}
	}
	return false
}

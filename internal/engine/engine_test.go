// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/conductor"
	"github.com/civicsentinel/engine/internal/debate"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/pipeline"
	"github.com/civicsentinel/engine/internal/prworkflow"
	"github.com/civicsentinel/engine/internal/telemetry"
	"github.com/civicsentinel/engine/internal/tracker/faketracker"
	"github.com/civicsentinel/engine/pkg/logging"
)

// routingRunner dispatches Invoke calls by AgentPath to per-path
// functions, so one MockRunner stand-in can serve every agent a cycle
// touches (conductor, ministries, parliament, critic, coder, reviewer).
type routingRunner struct {
	routes map[string]func(inv agentrunner.Invocation) (*agentrunner.Result, error)
}

func newRoutingRunner() *routingRunner {
	return &routingRunner{routes: make(map[string]func(inv agentrunner.Invocation) (*agentrunner.Result, error))}
}

func (r *routingRunner) on(path string, fn func(inv agentrunner.Invocation) (*agentrunner.Result, error)) {
	r.routes[path] = fn
}

func (r *routingRunner) Invoke(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
	fn, ok := r.routes[inv.AgentPath]
	if !ok {
		return nil, fmt.Errorf("routingRunner: no route for %q", inv.AgentPath)
	}
	return fn(inv)
}

func jsonResult(v any) (*agentrunner.Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &agentrunner.Result{Stdout: raw}, nil
}

func neutralAssessment(decision model.Decision, ministry model.Ministry) model.Assessment {
	return model.Assessment{
		Ministry:   ministry,
		DecisionID: decision.ID,
		Verdict:    model.VerdictPositive,
		Score:      7,
		Summary:    "looks fine",
		Reasoning:  "no concerns raised",
	}
}

func newAnalysisRunner(decision model.Decision) *routingRunner {
	r := newRoutingRunner()
	r.on("ministry", func(inv agentrunner.Invocation) (*agentrunner.Result, error) {
		var payload struct {
			Ministry model.Ministry `json:"ministry"`
		}
		raw, _ := json.Marshal(inv.ConfigJSON)
		_ = json.Unmarshal(raw, &payload)
		return jsonResult(neutralAssessment(decision, payload.Ministry))
	})
	r.on("parliament", func(inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return jsonResult(model.ParliamentDebate{
			DecisionID:       decision.ID,
			ConsensusSummary: "broad agreement across ministries",
			OverallVerdict:   model.VerdictPositive,
		})
	})
	r.on("critic", func(inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return jsonResult(model.CriticReport{
			DecisionID:             decision.ID,
			DecisionScore:          7,
			AssessmentQualityScore: 8,
			OverallAnalysis:        "solid analysis",
			Headline:               "a fine decision",
		})
	})
	return r
}

func newBaseDeps(t *testing.T, trk *faketracker.Tracker, runner agentrunner.Runner) Deps {
	t.Helper()
	dataDir := t.TempDir()
	return Deps{
		Tracker: trk,
		Runner:  runner,
		Pipeline: pipeline.New(pipeline.Config{
			MinistryAgentPath:    "ministry",
			ParliamentAgentPath:  "parliament",
			CriticAgentPath:      "critic",
			SynthesizerAgentPath: "synthesizer",
		}, runner, nil),
		PRWorkflow: prworkflow.New(prworkflow.Config{
			CoderAgentPath:    "coder",
			ReviewerAgentPath: "reviewer",
			MaxRounds:         3,
		}, trk, runner),
		Debate:    debate.New(debate.Config{AdvocateAgentPath: "advocate", SkepticAgentPath: "skeptic"}, runner, nil),
		Telemetry: telemetry.NewWriter(filepath.Join(dataDir, "telemetry.jsonl")),
		Breaker:   telemetry.NewCircuitBreaker(filepath.Join(dataDir, "telemetry.jsonl"), trk),
		Logger:    logging.Default(),
	}
}

func TestRunPickAndExecute_AnalysisHappyPath(t *testing.T) {
	trk := faketracker.New()
	decision := model.Decision{
		ID:       model.DeriveDecisionID("2026-03-15", "New VAT rate"),
		Title:    "New VAT rate",
		Summary:  "A change to the VAT rate.",
		Date:     "2026-03-15",
		Category: model.CategoryFiscal,
	}
	body, err := json.Marshal(decision)
	require.NoError(t, err)
	iss, err := trk.CreateIssue(context.Background(), decision.Title, string(body),
		[]string{model.LabelTaskAnalysis, string(model.IssueStateBacklog)})
	require.NoError(t, err)

	runner := newAnalysisRunner(decision)
	deps := newBaseDeps(t, trk, runner)
	e := New(Config{DataDir: t.TempDir()}, deps)

	var published bool
	err = e.runPickAndExecute(context.Background(), iss.Number, new(bool), &published)
	require.NoError(t, err)
	assert.True(t, published)

	got, err := trk.GetIssue(context.Background(), iss.Number)
	require.NoError(t, err)
	assert.True(t, got.HasLabel(string(model.IssueStateDone)))
	assert.False(t, got.HasLabel(string(model.IssueStateBacklog)))
}

func TestRunPickAndExecute_PRWorkflowHappyPath(t *testing.T) {
	trk := faketracker.New()
	iss, err := trk.CreateIssue(context.Background(), "fix flaky retry", "improve the retry helper",
		[]string{model.LabelTaskCodeChange, string(model.IssueStateBacklog)})
	require.NoError(t, err)

	runner := newRoutingRunner()
	runner.on("coder", func(inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return &agentrunner.Result{Stdout: []byte("done")}, nil
	})
	runner.on("reviewer", func(inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return &agentrunner.Result{Stdout: []byte("VERDICT: APPROVED")}, nil
	})

	deps := newBaseDeps(t, trk, runner)
	e := New(Config{DataDir: t.TempDir()}, deps)

	var merged bool
	err = e.runPickAndExecute(context.Background(), iss.Number, &merged, new(bool))
	require.NoError(t, err)
	assert.True(t, merged)

	got, err := trk.GetIssue(context.Background(), iss.Number)
	require.NoError(t, err)
	assert.True(t, got.HasLabel(string(model.IssueStateDone)))

	prs, err := trk.ListPullRequests(context.Background(), model.PRStateMerged)
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Contains(t, prs[0].Body, fmt.Sprintf("Closes #%d", iss.Number))
}

func TestRunPickAndExecute_PRWorkflowExhaustsRounds(t *testing.T) {
	trk := faketracker.New()
	iss, err := trk.CreateIssue(context.Background(), "risky change", "touches the core loop",
		[]string{model.LabelTaskCodeChange, string(model.IssueStateBacklog)})
	require.NoError(t, err)

	runner := newRoutingRunner()
	runner.on("coder", func(inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return &agentrunner.Result{Stdout: []byte("done")}, nil
	})
	runner.on("reviewer", func(inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return &agentrunner.Result{Stdout: []byte("VERDICT: CHANGES_REQUESTED")}, nil
	})

	deps := newBaseDeps(t, trk, runner)
	e := New(Config{DataDir: t.TempDir()}, deps)

	var merged bool
	err = e.runPickAndExecute(context.Background(), iss.Number, &merged, new(bool))
	require.Error(t, err)
	assert.False(t, merged)

	got, err := trk.GetIssue(context.Background(), iss.Number)
	require.NoError(t, err)
	assert.True(t, got.HasLabel(string(model.IssueStateFailed)))
}

func TestRichFallbackPlan_PicksBacklogWhenNoNewsDue(t *testing.T) {
	trk := faketracker.New()
	_, err := trk.CreateIssue(context.Background(), "an analysis item", `{"id":"news-2026-03-15-aaaaaaaa"}`,
		[]string{model.LabelTaskAnalysis, string(model.IssueStateBacklog)})
	require.NoError(t, err)

	deps := Deps{Tracker: trk, Logger: logging.Default()}
	e := New(Config{DataDir: t.TempDir()}, deps)

	plan := e.richFallbackPlan(context.Background())
	require.NoError(t, plan.Validate())
	assert.Equal(t, model.ActionPickAndExecute, plan.Actions[0])
	assert.Equal(t, 1, plan.IssueNumber)
}

func TestRichFallbackPlan_CooldownWhenNothingToDo(t *testing.T) {
	trk := faketracker.New()
	deps := Deps{Tracker: trk, Logger: logging.Default()}
	e := New(Config{DataDir: t.TempDir()}, deps)

	plan := e.richFallbackPlan(context.Background())
	require.NoError(t, plan.Validate())
	assert.Equal(t, []model.Action{model.ActionCooldown}, plan.Actions)
}

func TestRunCycle_RecurringDispatchFailureTripsCircuitBreaker(t *testing.T) {
	trk := faketracker.New()
	runner := newRoutingRunner()
	runner.on("primary", func(inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return jsonResult(map[string]any{
			"reasoning":                 "pick a nonexistent issue every time",
			"actions":                   []string{"pick_and_execute", "cooldown"},
			"issue_number":              999,
			"suggested_cooldown_seconds": 1,
		})
	})

	deps := newBaseDeps(t, trk, runner)
	deps.Conductor = conductor.New(conductor.Config{PrimaryAgentPath: "primary", RecoveryAgentPath: "primary"}, runner, nil)
	dataDir := t.TempDir()
	deps.Telemetry = telemetry.NewWriter(filepath.Join(dataDir, "telemetry.jsonl"))
	deps.Breaker = telemetry.NewCircuitBreaker(filepath.Join(dataDir, "telemetry.jsonl"), trk)

	e := New(Config{DataDir: dataDir, CooldownSeconds: 0}, deps)
	for i := 0; i < 3; i++ {
		e.cycleNumber++
		_, err := e.runCycle(context.Background())
		require.NoError(t, err, "a dispatch error must not abort the cycle loop itself")
	}

	issues, err := trk.ListOpenIssues(context.Background(), model.LabelPriorityHigh)
	require.NoError(t, err)
	require.Len(t, issues, 1, "the same pick_and_execute failure recurring 3 times must trip the breaker")
}

// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package debate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsentinel/engine/internal/agentrunner"
)

func TestFilter_HumanSuggestionBypasses(t *testing.T) {
	f := New(Config{}, &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		t.Fatal("debate agents must not be invoked for human suggestions")
		return nil, nil
	}}, nil)
	outcome, err := f.Evaluate(context.Background(), Proposal{Title: "x", IsHumanSuggestion: true})
	require.NoError(t, err)
	assert.True(t, outcome.Passed)
	assert.True(t, outcome.Bypassed)
}

func TestFilter_PassesAboveThreshold(t *testing.T) {
	runner := &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		if inv.AgentPath == "advocate" {
			return &agentrunner.Result{Stdout: []byte(`{"strength_score": 8, "reasoning": "strong case"}`)}, nil
		}
		return &agentrunner.Result{Stdout: []byte(`{"weakness_score": 3, "reasoning": "minor gaps"}`)}, nil
	}}
	f := New(Config{AdvocateAgentPath: "advocate", SkepticAgentPath: "skeptic"}, runner, nil)
	outcome, err := f.Evaluate(context.Background(), Proposal{Title: "x"})
	require.NoError(t, err)
	assert.True(t, outcome.Passed)
}

func TestFilter_FailsBelowThreshold(t *testing.T) {
	runner := &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		if inv.AgentPath == "advocate" {
			return &agentrunner.Result{Stdout: []byte(`{"strength_score": 5, "reasoning": "meh"}`)}, nil
		}
		return &agentrunner.Result{Stdout: []byte(`{"weakness_score": 6, "reasoning": "big gaps"}`)}, nil
	}}
	f := New(Config{AdvocateAgentPath: "advocate", SkepticAgentPath: "skeptic", Threshold: 2}, runner, nil)
	outcome, err := f.Evaluate(context.Background(), Proposal{Title: "x"})
	require.NoError(t, err)
	assert.False(t, outcome.Passed)
}

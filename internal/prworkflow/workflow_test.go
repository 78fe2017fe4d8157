// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package prworkflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/tracker/faketracker"
)

func TestCoordinatorRun_ApprovesFirstRound(t *testing.T) {
	trk := faketracker.New()
	_, err := trk.CreateIssue(context.Background(), "fix thing", "body", nil)
	require.NoError(t, err)

	runner := &agentrunner.MockRunner{
		InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
			if inv.AgentPath == "reviewer" {
				return &agentrunner.Result{Stdout: []byte("looks good\nVERDICT: APPROVED\n")}, nil
			}
			return &agentrunner.Result{Stdout: []byte("diff applied")}, nil
		},
	}

	c := New(Config{CoderAgentPath: "coder", ReviewerAgentPath: "reviewer", MaxRounds: 3}, trk, runner)
	round, err := c.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StateMerged, round.State)
	assert.Equal(t, 1, round.RoundNumber)

	prs, err := trk.ListPullRequests(context.Background(), "merged")
	require.NoError(t, err)
	assert.Len(t, prs, 1)
}

func TestCoordinatorRun_ExhaustsMaxRounds(t *testing.T) {
	trk := faketracker.New()
	_, err := trk.CreateIssue(context.Background(), "fix thing", "body", nil)
	require.NoError(t, err)

	runner := &agentrunner.MockRunner{
		InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
			if inv.AgentPath == "reviewer" {
				return &agentrunner.Result{Stdout: []byte("VERDICT: CHANGES_REQUESTED\n")}, nil
			}
			return &agentrunner.Result{Stdout: []byte("diff applied")}, nil
		},
	}

	c := New(Config{CoderAgentPath: "coder", ReviewerAgentPath: "reviewer", MaxRounds: 2}, trk, runner)
	round, err := c.Run(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, StateFailed, round.State)
}

func TestCoordinatorRun_MissingVerdictFailsClosed(t *testing.T) {
	trk := faketracker.New()
	_, err := trk.CreateIssue(context.Background(), "fix thing", "body", nil)
	require.NoError(t, err)

	runner := &agentrunner.MockRunner{
		InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
			if inv.AgentPath == "reviewer" {
				return &agentrunner.Result{Stdout: []byte("no marker here")}, nil
			}
			return &agentrunner.Result{Stdout: []byte("diff applied")}, nil
		},
	}

	c := New(Config{CoderAgentPath: "coder", ReviewerAgentPath: "reviewer", MaxRounds: 3}, trk, runner)
	round, err := c.Run(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, StateFailed, round.State)
}

func TestParseVerdict(t *testing.T) {
	v, ok := ParseVerdict("some text\nVERDICT: approved\nmore text")
	require.True(t, ok)
	assert.Equal(t, VerdictApprove, v)

	_, ok = ParseVerdict("no marker present")
	assert.False(t, ok)
}

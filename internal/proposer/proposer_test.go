// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proposer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/tracker/faketracker"
)

func runnerReturning(ideas ...Idea) *agentrunner.MockRunner {
	return &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		items := ""
		for i, idea := range ideas {
			if i > 0 {
				items += ","
			}
			items += fmt.Sprintf(`{"title":%q,"summary":%q}`, idea.Title, idea.Summary)
		}
		return &agentrunner.Result{Stdout: []byte(fmt.Sprintf(`{"ideas":[%s]}`, items))}, nil
	}}
}

func TestRun_HappyPathCreatesProposedIssue(t *testing.T) {
	trk := faketracker.New()
	p := New(Config{AgentPath: "propose"}, trk, runnerReturning(Idea{Title: "cache ministry assessments", Summary: "avoid redundant invocations"}))

	created, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	issues, err := trk.ListOpenIssues(context.Background(), model.LabelTaskCodeChange)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.True(t, issues[0].HasLabel(string(model.IssueStateProposed)))
	assert.Equal(t, "cache ministry assessments", issues[0].Title)
}

func TestRun_DefaultsMaxPerRunToOne(t *testing.T) {
	trk := faketracker.New()
	p := New(Config{AgentPath: "propose"}, trk, runnerReturning(
		Idea{Title: "idea one", Summary: "s"},
		Idea{Title: "idea two", Summary: "s"},
	))

	created, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestRun_CapsAtMaxPerRun(t *testing.T) {
	trk := faketracker.New()
	p := New(Config{AgentPath: "propose", MaxPerRun: 2}, trk, runnerReturning(
		Idea{Title: "idea one", Summary: "s"},
		Idea{Title: "idea two", Summary: "s"},
		Idea{Title: "idea three", Summary: "s"},
	))

	created, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestRun_SkipsIdeasWithNoTitle(t *testing.T) {
	trk := faketracker.New()
	p := New(Config{AgentPath: "propose", MaxPerRun: 5}, trk, runnerReturning(
		Idea{Title: "", Summary: "s"},
		Idea{Title: "real idea", Summary: "s"},
	))

	created, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestRun_AgentParseErrorIsStructured(t *testing.T) {
	trk := faketracker.New()
	runner := &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return &agentrunner.Result{Stdout: []byte("not json")}, nil
	}}
	p := New(Config{AgentPath: "propose"}, trk, runner)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	var se *model.StructuredError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, model.AgentParseError, se.Kind)
}

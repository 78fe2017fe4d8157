// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oversight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsentinel/engine/internal/agentrunner"
	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/tracker/faketracker"
)

func mustSessionResult() model.SessionResult {
	return model.SessionResult{
		DecisionID: "news-2026-07-30-deadbeef0",
		Decision:   model.Decision{ID: "news-2026-07-30-deadbeef0", Title: "Test Act", Category: model.CategoryGeneral},
	}
}

func TestProjectDirector_CapsAtTwoIssues(t *testing.T) {
	trk := faketracker.New()
	runner := &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return &agentrunner.Result{Stdout: []byte(`{"proposals":[
			{"title":"a","body":"x"},
			{"title":"b","body":"x"},
			{"title":"c","body":"x"}
		]}`)}, nil
	}}

	run := NewProjectDirector(trk, runner, "director", "summary", 3)
	require.NoError(t, run(context.Background()))

	issues, err := trk.ListOpenIssues(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, issues, 2)
}

func TestResearchScout_DedupsAgainstOpenIssues(t *testing.T) {
	trk := faketracker.New()
	_, err := trk.CreateIssue(context.Background(), "existing topic", "body", []string{"research-scout"})
	require.NoError(t, err)

	runner := &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return &agentrunner.Result{Stdout: []byte(`{"proposals":[
			{"title":"existing topic","body":"dup"},
			{"title":"new topic","body":"fresh"}
		]}`)}, nil
	}}

	run := NewResearchScout(trk, runner, "scout")
	require.NoError(t, run(context.Background()))

	issues, err := trk.ListOpenIssues(context.Background(), "research-scout")
	require.NoError(t, err)
	assert.Len(t, issues, 2) // the pre-existing one plus exactly one fresh one
}

func TestEditorialReviewer_FilesAtMostOneIssue(t *testing.T) {
	trk := faketracker.New()
	runner := &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return &agentrunner.Result{Stdout: []byte(`{"proposals":[
			{"title":"tone gap","body":"x"},
			{"title":"another gap","body":"x"}
		]}`)}, nil
	}}

	run := NewEditorialReviewer(trk, runner, "editorial", mustSessionResult())
	require.NoError(t, run(context.Background()))

	issues, err := trk.ListOpenIssues(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}

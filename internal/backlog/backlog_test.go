// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsentinel/engine/internal/model"
)

func TestPick_PriorityCriticalWinsOverEverything(t *testing.T) {
	now := time.Now()
	issues := []model.Issue{
		{Number: 1, Labels: []string{string(model.IssueStateBacklog)}, CreatedAt: now.Add(-time.Hour)},
		{Number: 2, Labels: []string{string(model.IssueStateBacklog), model.LabelPriorityCritical}, CreatedAt: now},
	}
	picked := Pick(issues)
	require.NotNil(t, picked)
	assert.Equal(t, 2, picked.Number)
}

func TestPick_FIFOWithinTier(t *testing.T) {
	now := time.Now()
	issues := []model.Issue{
		{Number: 1, Labels: []string{string(model.IssueStateBacklog)}, CreatedAt: now},
		{Number: 2, Labels: []string{string(model.IssueStateBacklog)}, CreatedAt: now.Add(-time.Hour)},
	}
	picked := Pick(issues)
	require.NotNil(t, picked)
	assert.Equal(t, 2, picked.Number)
}

func TestPick_IgnoresNonBacklogIssues(t *testing.T) {
	issues := []model.Issue{
		{Number: 1, Labels: []string{string(model.IssueStateDone)}},
		{Number: 2, Labels: []string{string(model.IssueStateProposed)}},
	}
	assert.Nil(t, Pick(issues))
}

func TestAdvance(t *testing.T) {
	assert.True(t, Advance(model.IssueStateProposed, model.IssueStateBacklog))
	assert.True(t, Advance(model.IssueStateBacklog, model.IssueStateInProgress))
	assert.True(t, Advance(model.IssueStateInProgress, model.IssueStateDone))
	assert.False(t, Advance(model.IssueStateDone, model.IssueStateInProgress))
	assert.False(t, Advance(model.IssueStateBacklog, model.IssueStateDone))
}

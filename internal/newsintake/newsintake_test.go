// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package newsintake

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

func vatDecision() model.Decision {
	return model.Decision{
		ID:       model.DeriveDecisionID("2026-03-15", "New VAT rate"),
		Title:    "New VAT rate",
		Summary:  "A change to the VAT rate.",
		Date:     "2026-03-15",
		Category: model.CategoryFiscal,
	}
}

func runnerReturning(decisions ...model.Decision) *agentrunner.MockRunner {
	return &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		items := ""
		for i, d := range decisions {
			if i > 0 {
				items += ","
			}
			items += fmt.Sprintf(`{"id":%q,"title":%q,"summary":%q,"date":%q,"category":%q}`,
				d.ID, d.Title, d.Summary, d.Date, d.Category)
		}
		return &agentrunner.Result{Stdout: []byte(fmt.Sprintf(`{"decisions":[%s]}`, items))}, nil
	}}
}

func TestRun_HappyPathCreatesAnalysisIssue(t *testing.T) {
	trk := faketracker.New()
	in := New(Config{AgentPath: "news"}, trk, runnerReturning(vatDecision()))

	created, err := in.Run(context.Background(), "2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	issues, err := trk.ListOpenIssues(context.Background(), model.LabelTaskAnalysis)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.True(t, issues[0].HasLabel(string(model.IssueStateBacklog)))
	assert.Contains(t, issues[0].Body, vatDecision().ID)
}

func TestRun_DuplicateSameDayCreatesNothing(t *testing.T) {
	trk := faketracker.New()
	in := New(Config{AgentPath: "news"}, trk, runnerReturning(vatDecision()))

	_, err := in.Run(context.Background(), "2026-03-15")
	require.NoError(t, err)

	created, err := in.Run(context.Background(), "2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	issues, err := trk.ListOpenIssues(context.Background(), model.LabelTaskAnalysis)
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}

func TestRun_CapsAtMaxPerRun(t *testing.T) {
	trk := faketracker.New()
	d1 := vatDecision()
	d2 := model.Decision{ID: model.DeriveDecisionID("2026-03-15", "Pension reform"), Title: "Pension reform", Summary: "s", Date: "2026-03-15", Category: model.CategoryEconomy}
	d3 := model.Decision{ID: model.DeriveDecisionID("2026-03-15", "Border policy"), Title: "Border policy", Summary: "s", Date: "2026-03-15", Category: model.CategorySecurity}
	d4 := model.Decision{ID: model.DeriveDecisionID("2026-03-15", "School curriculum"), Title: "School curriculum", Summary: "s", Date: "2026-03-15", Category: model.CategoryEducation}
	in := New(Config{AgentPath: "news", MaxPerRun: 3}, trk, runnerReturning(d1, d2, d3, d4))

	created, err := in.Run(context.Background(), "2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, 3, created)
}

// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsentinel/engine/internal/model"
	"github.com/civicsentinel/engine/internal/tracker/faketracker"
)

func makeFailingCycle(n int) *model.CycleTelemetry {
	now := time.Now().UTC()
	rec := &model.CycleTelemetry{
		CycleNumber: n,
		StartedAt:   now,
		EndedAt:     now.Add(time.Second),
		Phases: []model.CyclePhaseResult{
			{
				Action:    "pick_and_execute",
				StartedAt: now,
				EndedAt:   now.Add(time.Second),
				Success:   false,
				Error: &model.StructuredError{
					Kind:    model.AgentTimeout,
					Message: "agent abc123 timed out after 45 deadbeef seconds",
				},
			},
		},
	}
	rec.MarkProductivity(false, false)
	return rec
}

func TestWriterAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	w := NewWriter(path)
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Append(makeFailingCycle(i)))
	}
	records, err := Tail(path, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].CycleNumber)
	assert.Equal(t, 3, records[1].CycleNumber)
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	w := NewWriter(path)
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Append(makeFailingCycle(i)))
	}
	trk := faketracker.New()
	cb := NewCircuitBreaker(path, trk)
	require.NoError(t, cb.Check(context.Background()))

	issues, err := trk.ListOpenIssues(context.Background(), model.LabelPriorityHigh)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	require.NoError(t, cb.Check(context.Background()))
	issues, err = trk.ListOpenIssues(context.Background(), model.LabelPriorityHigh)
	require.NoError(t, err)
	assert.Len(t, issues, 1, "circuit breaker must not re-file the same signature")
}

func TestCircuitBreaker_DoesNotTripBelowThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	w := NewWriter(path)
	require.NoError(t, w.Append(makeFailingCycle(1)))
	require.NoError(t, w.Append(makeFailingCycle(2)))

	trk := faketracker.New()
	cb := NewCircuitBreaker(path, trk)
	require.NoError(t, cb.Check(context.Background()))

	issues, err := trk.ListOpenIssues(context.Background(), model.LabelPriorityHigh)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

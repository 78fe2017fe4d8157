// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsentinel/engine/internal/model"
)

func TestRun_HaltsOnHalt(t *testing.T) {
	var ran []string
	handlers := map[model.Action]ActionFunc{
		model.ActionFetchNews: func(ctx context.Context) error { ran = append(ran, "fetch_news"); return nil },
		model.ActionPropose:   func(ctx context.Context) error { ran = append(ran, "propose"); return nil },
	}
	d := New(handlers, false)
	plan := &model.ConductorPlan{Actions: []model.Action{model.ActionFetchNews, model.ActionHalt}}
	results, err := d.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch_news"}, ran)
	assert.Len(t, results, 2)
}

func TestRun_StopsOnFirstError(t *testing.T) {
	handlers := map[model.Action]ActionFunc{
		model.ActionFetchNews: func(ctx context.Context) error { return errors.New("boom") },
		model.ActionPropose:   func(ctx context.Context) error { return nil },
	}
	d := New(handlers, false)
	plan := &model.ConductorPlan{Actions: []model.Action{model.ActionFetchNews, model.ActionPropose}}
	results, err := d.Run(context.Background(), plan)
	require.Error(t, err)
	assert.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

func TestRun_DryRunSkipsMutatingActions(t *testing.T) {
	var ran []string
	handlers := map[model.Action]ActionFunc{
		model.ActionFetchNews: func(ctx context.Context) error { ran = append(ran, "fetch_news"); return nil },
		model.ActionCooldown:  func(ctx context.Context) error { ran = append(ran, "cooldown"); return nil },
	}
	d := New(handlers, true)
	plan := &model.ConductorPlan{Actions: []model.Action{model.ActionFetchNews, model.ActionCooldown}}
	results, err := d.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"cooldown"}, ran, "dry run must skip the mutating action but still run the read-only one")
	assert.Len(t, results, 2)
}

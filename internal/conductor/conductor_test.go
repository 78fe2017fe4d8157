// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conductor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsentinel/engine/internal/agentrunner"
)

func TestPlan_PrimarySucceeds(t *testing.T) {
	runner := &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return &agentrunner.Result{Stdout: []byte(`{"reasoning":"go fetch news","actions":["fetch_news"]}`)}, nil
	}}
	c := New(Config{PrimaryAgentPath: "primary", RecoveryAgentPath: "recovery"}, runner, nil)
	plan, fallback, err := c.Plan(context.Background(), Context{CycleNumber: 1})
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Equal(t, "fetch_news", string(plan.Actions[0]))
}

func TestPlan_FallsBackToRecoveryThenSafeDefault(t *testing.T) {
	runner := &agentrunner.MockRunner{InvokeFunc: func(ctx context.Context, inv agentrunner.Invocation) (*agentrunner.Result, error) {
		return &agentrunner.Result{Stdout: []byte(`not json`)}, nil
	}}
	c := New(Config{PrimaryAgentPath: "primary", RecoveryAgentPath: "recovery"}, runner, nil)
	plan, fallback, err := c.Plan(context.Background(), Context{CycleNumber: 1})
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Equal(t, "cooldown", string(plan.Actions[0]))
}

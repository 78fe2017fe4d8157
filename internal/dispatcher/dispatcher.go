// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dispatcher executes a ConductorPlan's actions in order,
// recording one CyclePhaseResult per action.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civicsentinel/engine/internal/model"
)

// errorKindFor preserves a handler error's own StructuredError.Kind when
// it has one (the handler already knows whether its failure was an
// AgentTimeout, a TrackerFatal, and so on). EngineCrash is reserved for
// errors that reach the dispatcher with no classification at all, which
// should only happen for genuinely unanticipated failures in the main
// loop itself.
func errorKindFor(err error, action string, ended time.Time) *model.StructuredError {
	var se *model.StructuredError
	if errors.As(err, &se) {
		cp := *se
		if cp.Phase == "" {
			cp.Phase = action
		}
		if cp.Timestamp.IsZero() {
			cp.Timestamp = ended
		}
		return &cp
	}
	return &model.StructuredError{
		Kind:      model.EngineCrash,
		Message:   err.Error(),
		Phase:     action,
		Timestamp: ended,
	}
}

// ActionFunc runs one Action and returns an error describing failure.
type ActionFunc func(ctx context.Context) error

// readOnlyActions are safe to execute in dry-run mode: they only read
// external state (fetch_news is deliberately excluded because it files
// new task:analysis issues in the tracker; pick_and_execute,
// propose, debate, director, strategic_director, research_scout, and
// file_issue all mutate tracker/tracked state and are skipped in dry
// run; cooldown, halt, and skip_cycle are pure control flow).
var readOnlyActions = map[model.Action]bool{
	model.ActionCooldown:  true,
	model.ActionHalt:      true,
	model.ActionSkipCycle: true,
}

// Dispatcher runs actions from a ConductorPlan against a registry of
// handlers.
type Dispatcher struct {
	handlers map[model.Action]ActionFunc
	dryRun   bool
}

// New builds a Dispatcher from handlers. dryRun, when true, logs but
// skips any action not in readOnlyActions.
func New(handlers map[model.Action]ActionFunc, dryRun bool) *Dispatcher {
	return &Dispatcher{handlers: handlers, dryRun: dryRun}
}

// Run executes plan.Actions in order, halting early when it reaches
// ActionHalt (which ConductorPlan.Validate guarantees is the final
// action if present at all). It returns one CyclePhaseResult per action
// actually attempted, plus the first error encountered, if any.
func (d *Dispatcher) Run(ctx context.Context, plan *model.ConductorPlan) ([]model.CyclePhaseResult, error) {
	results := make([]model.CyclePhaseResult, 0, len(plan.Actions))

	for _, action := range plan.Actions {
		if action == model.ActionHalt {
			results = append(results, model.CyclePhaseResult{
				Action:    string(action),
				StartedAt: time.Now().UTC(),
				EndedAt:   time.Now().UTC(),
				Success:   true,
			})
			break
		}

		if d.dryRun && !readOnlyActions[action] {
			results = append(results, model.CyclePhaseResult{
				Action:    string(action),
				StartedAt: time.Now().UTC(),
				EndedAt:   time.Now().UTC(),
				Success:   true,
			})
			continue
		}

		fn, ok := d.handlers[action]
		if !ok {
			return results, fmt.Errorf("dispatcher: no handler registered for action %q", action)
		}

		started := time.Now().UTC()
		err := fn(ctx)
		ended := time.Now().UTC()

		phase := model.CyclePhaseResult{
			Action:    string(action),
			StartedAt: started,
			EndedAt:   ended,
			Success:   err == nil,
		}
		if err != nil {
			phase.Error = errorKindFor(err, string(action), ended)
		}
		results = append(results, phase)
		if err != nil {
			return results, fmt.Errorf("dispatcher: action %q: %w", action, err)
		}
	}

	return results, nil
}

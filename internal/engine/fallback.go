// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"time"

	"github.com/civicsentinel/engine/internal/backlog"
	"github.com/civicsentinel/engine/internal/model"
)

// fallbackCooldownSeconds is the tier-3 fallback's cooldown in every
// branch (news intake, backlog pick, or nothing to do), shorter than
// model.SafeDefaultPlan's 900s so the engine asks the conductor again
// soon rather than idling for a full quarter hour.
const fallbackCooldownSeconds = 60

// richFallbackPlan builds the engine's own tier-3 fallback when the
// conductor agent fails validation twice in a row. model.SafeDefaultPlan
// is a pure function with no tracker access, so it can only ever emit
// cooldown(900); this reconstructs the richer fallback behavior: try news
// intake if due, else pick the top-priority backlog item, else just cool
// down.
func (e *Engine) richFallbackPlan(ctx context.Context) *model.ConductorPlan {
	if e.deps.NewsGate != nil && e.deps.NewsGate.ShouldRun(time.Now()) {
		return &model.ConductorPlan{
			Reasoning:                "conductor fallback: news intake is due",
			Actions:                  []model.Action{model.ActionFetchNews, model.ActionCooldown},
			SuggestedCooldownSeconds: fallbackCooldownSeconds,
		}
	}

	open, err := e.deps.Tracker.ListOpenIssues(ctx, "")
	if err == nil {
		if picked := backlog.Pick(open); picked != nil {
			return &model.ConductorPlan{
				Reasoning:                "conductor fallback: picking highest-priority backlog item",
				Actions:                  []model.Action{model.ActionPickAndExecute, model.ActionCooldown},
				IssueNumber:              picked.Number,
				SuggestedCooldownSeconds: fallbackCooldownSeconds,
			}
		}
	}

	return &model.ConductorPlan{
		Reasoning:                "conductor fallback: no due intake, no backlog item to pick",
		Actions:                  []model.Action{model.ActionCooldown},
		SuggestedCooldownSeconds: fallbackCooldownSeconds,
	}
}

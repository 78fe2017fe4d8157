// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package backlog selects the next self-improve issue to work on, pure
// functions over a slice of tracked issues with no I/O of its own.
package backlog

import "github.com/civicsentinel/engine/internal/model"

// Pick selects the next issue to work on from open, untouched issues
// (those carrying self-improve:backlog), applying the deterministic
// five-tier priority order:
//
//  1. priority:critical, newest first (the most recently raised critical
//     issue is the one most likely to still be urgent)
//  2. task:analysis, oldest first (FIFO)
//  3. human-suggestion, oldest first
//  4. director-suggestion or strategy-suggestion, oldest first
//  5. everything else, oldest first (FIFO)
//
// Returns nil if no eligible issue exists. Pick never mutates issues.
func Pick(issues []model.Issue) *model.Issue {
	var tiers [5][]model.Issue
	for _, iss := range issues {
		state, ok := iss.LifecycleLabel()
		if !ok || state != model.IssueStateBacklog {
			continue
		}
		tiers[tierOf(iss)] = append(tiers[tierOf(iss)], iss)
	}
	for tierIdx, tier := range tiers {
		if len(tier) == 0 {
			continue
		}
		picked := tier[0]
		newestFirst := tierIdx == 0
		for _, iss := range tier[1:] {
			if newestFirst {
				if iss.CreatedAt.After(picked.CreatedAt) {
					picked = iss
				}
			} else if iss.CreatedAt.Before(picked.CreatedAt) {
				picked = iss
			}
		}
		cp := picked
		return &cp
	}
	return nil
}

func tierOf(iss model.Issue) int {
	switch {
	case iss.HasLabel(model.LabelPriorityCritical):
		return 0
	case iss.HasLabel(model.LabelTaskAnalysis):
		return 1
	case iss.HasLabel(model.LabelHumanSuggestion):
		return 2
	case iss.HasLabel(model.LabelDirectorSuggestion), iss.HasLabel(model.LabelStrategySuggestion):
		return 3
	default:
		return 4
	}
}

// Advance reports whether moving an issue from one self-improve state to
// another is one of the permitted forward transitions:
//
//	proposed    → backlog | rejected
//	backlog     → in-progress
//	in-progress → done | failed
//
// Terminal states never advance further.
func Advance(from, to model.IssueState) bool {
	switch from {
	case model.IssueStateProposed:
		return to == model.IssueStateBacklog || to == model.IssueStateRejected
	case model.IssueStateBacklog:
		return to == model.IssueStateInProgress
	case model.IssueStateInProgress:
		return to == model.IssueStateDone || to == model.IssueStateFailed
	default:
		return false
	}
}

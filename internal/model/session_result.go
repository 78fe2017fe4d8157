// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import "sort"

// SessionResult aggregates every phase of the analysis pipeline for one
// Decision. It is the unit persisted to
// output/data/analyses/{decision_id}.json for downstream renderers.
//
// Ownership: SessionResult exclusively owns its contained values; the
// tracker owns Issue/PullRequest identity, referenced here only by
// number.
type SessionResult struct {
	DecisionID      string             `json:"decision_id"`
	Decision        Decision           `json:"decision"`
	Assessments     []Assessment       `json:"assessments"`
	Debate          *ParliamentDebate  `json:"debate,omitempty"`
	Critic          *CriticReport      `json:"critic,omitempty"`
	CounterProposal *CounterProposal   `json:"counter_proposal,omitempty"`
	IssueNumber     int                `json:"issue_number,omitempty"`
}

// SortAssessments orders s.Assessments by the canonical ministry enum
// order, regardless of the order in which the
// underlying agent calls completed. Unrecognized ministries (Order()
// returns -1) sort last, stably among themselves.
func (s *SessionResult) SortAssessments() {
	sort.SliceStable(s.Assessments, func(i, j int) bool {
		oi, oj := s.Assessments[i].Ministry.Order(), s.Assessments[j].Ministry.Order()
		if oi == -1 {
			oi = len(AllMinistries)
		}
		if oj == -1 {
			oj = len(AllMinistries)
		}
		return oi < oj
	})
}

// IsSortedByMinistry reports whether s.Assessments is currently in
// canonical ministry order; used by tests asserting the ordering
// invariant without mutating the receiver.
func (s *SessionResult) IsSortedByMinistry() bool {
	for i := 1; i < len(s.Assessments); i++ {
		prev, cur := s.Assessments[i-1].Ministry.Order(), s.Assessments[i].Ministry.Order()
		if prev == -1 {
			prev = len(AllMinistries)
		}
		if cur == -1 {
			cur = len(AllMinistries)
		}
		if prev > cur {
			return false
		}
	}
	return true
}

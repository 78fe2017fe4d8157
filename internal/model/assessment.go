// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import "fmt"

// Verdict is the closed set of directional judgments a ministry or the
// parliament synthesis may render on a Decision.
type Verdict string

const (
	VerdictStronglyPositive Verdict = "strongly_positive"
	VerdictPositive         Verdict = "positive"
	VerdictNeutral          Verdict = "neutral"
	VerdictNegative         Verdict = "negative"
	VerdictStronglyNegative Verdict = "strongly_negative"
)

var validVerdicts = map[Verdict]bool{
	VerdictStronglyPositive: true,
	VerdictPositive:         true,
	VerdictNeutral:          true,
	VerdictNegative:         true,
	VerdictStronglyNegative: true,
}

// Valid reports whether v is one of the closed verdict enum.
func (v Verdict) Valid() bool { return validVerdicts[v] }

// CounterProposalDraft is a single ministry's alternative to a Decision,
// optionally attached to an Assessment. The synthesizer (pipeline phase
// 3) only runs when at least one ministry contributes one of these
// (an early open question resolved this way).
type CounterProposalDraft struct {
	Title             string   `json:"title"`
	Summary           string   `json:"summary"`
	KeyChanges        []string `json:"key_changes,omitempty"`
	ExpectedBenefits  []string `json:"expected_benefits,omitempty"`
	Feasibility       string   `json:"feasibility,omitempty"`
}

// Assessment is one ministry's analysis of a Decision, produced by
// pipeline phase 1.
type Assessment struct {
	Ministry        Ministry               `json:"ministry"`
	DecisionID      string                 `json:"decision_id"`
	Verdict         Verdict                `json:"verdict"`
	Score           int                    `json:"score"` // 1-10
	Summary         string                 `json:"summary"`
	Reasoning       string                 `json:"reasoning"`
	KeyConcerns     []string               `json:"key_concerns,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
	CounterProposal *CounterProposalDraft  `json:"counter_proposal,omitempty"`
}

// Validate enforces the Assessment invariants:
// score in [1,10], verdict in the closed enum, ministry recognized.
func (a *Assessment) Validate() error {
	if !a.Ministry.Valid() {
		return unknownMinistryError(a.Ministry)
	}
	if a.DecisionID == "" {
		return fmt.Errorf("%w: assessment decision_id", ErrMissingField)
	}
	if a.Score < 1 || a.Score > 10 {
		return fmt.Errorf("%w: assessment score %d not in [1,10]", ErrInvalidRange, a.Score)
	}
	if !a.Verdict.Valid() {
		return fmt.Errorf("%w: verdict %q", ErrInvalidEnum, a.Verdict)
	}
	return nil
}

// NeutralFallback builds the "graceful fallback" Assessment used when an
// agent's output fails schema parsing. Ministry
// assessments are the only place AgentParseError is recovered: required
// fields are filled with neutral defaults so the pipeline can proceed
// with a degraded-but-valid data point rather than dropping the
// ministry entirely.
func NeutralFallback(ministry Ministry, decisionID string) *Assessment {
	return &Assessment{
		Ministry:   ministry,
		DecisionID: decisionID,
		Verdict:    VerdictNeutral,
		Score:      5,
		Summary:    "assessment unavailable: agent output could not be parsed",
		Reasoning:  "neutral default substituted after a parse failure",
	}
}

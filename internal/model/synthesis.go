// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import "fmt"

// ParliamentDebate is the cross-ministry synthesis produced in pipeline
// phase 2, run in parallel with the CriticReport.
type ParliamentDebate struct {
	DecisionID       string   `json:"decision_id"`
	ConsensusSummary string   `json:"consensus_summary"`
	Disagreements    []string `json:"disagreements,omitempty"`
	OverallVerdict   Verdict  `json:"overall_verdict"`
	DebateTranscript string   `json:"debate_transcript,omitempty"`
}

// Validate enforces ParliamentDebate's invariants.
func (p *ParliamentDebate) Validate() error {
	if p.DecisionID == "" {
		return fmt.Errorf("%w: parliament debate decision_id", ErrMissingField)
	}
	if !p.OverallVerdict.Valid() {
		return fmt.Errorf("%w: overall_verdict %q", ErrInvalidEnum, p.OverallVerdict)
	}
	return nil
}

// CriticReport is the independent scoring produced in pipeline phase 2,
// run in parallel with the ParliamentDebate.
type CriticReport struct {
	DecisionID           string   `json:"decision_id"`
	DecisionScore        int      `json:"decision_score"`         // 1-10
	AssessmentQualityScore int    `json:"assessment_quality_score"` // 1-10
	BlindSpots           []string `json:"blind_spots,omitempty"`
	OverallAnalysis      string   `json:"overall_analysis"`
	Headline             string   `json:"headline"`
	EUChapterRelevance   []string `json:"eu_chapter_relevance,omitempty"`
}

// Validate enforces CriticReport's invariants.
func (c *CriticReport) Validate() error {
	if c.DecisionID == "" {
		return fmt.Errorf("%w: critic report decision_id", ErrMissingField)
	}
	if c.DecisionScore < 1 || c.DecisionScore > 10 {
		return fmt.Errorf("%w: decision_score %d not in [1,10]", ErrInvalidRange, c.DecisionScore)
	}
	if c.AssessmentQualityScore < 1 || c.AssessmentQualityScore > 10 {
		return fmt.Errorf("%w: assessment_quality_score %d not in [1,10]", ErrInvalidRange, c.AssessmentQualityScore)
	}
	return nil
}

// CounterProposal is the unified alternative produced by the
// synthesizer (pipeline phase 3), run only when at least one ministry
// attached a CounterProposalDraft to its Assessment.
type CounterProposal struct {
	DecisionID            string   `json:"decision_id"`
	Title                 string   `json:"title"`
	ExecutiveSummary      string   `json:"executive_summary"`
	DetailedProposal      string   `json:"detailed_proposal"`
	MinistryContributions []string `json:"ministry_contributions,omitempty"`
	KeyDifferences        []string `json:"key_differences,omitempty"`
	ImplementationSteps   []string `json:"implementation_steps,omitempty"`
	RisksAndTradeoffs     []string `json:"risks_and_tradeoffs,omitempty"`
}

// Validate enforces CounterProposal's invariants.
func (c *CounterProposal) Validate() error {
	if c.DecisionID == "" {
		return fmt.Errorf("%w: counter proposal decision_id", ErrMissingField)
	}
	if c.Title == "" {
		return fmt.Errorf("%w: counter proposal title", ErrMissingField)
	}
	return nil
}

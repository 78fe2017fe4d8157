// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"fmt"
	"time"
)

// YieldKind classifies the observable public output of a cycle.
type YieldKind string

const (
	YieldNone             YieldKind = "none"
	YieldPRMerged         YieldKind = "pr_merged"
	YieldAnalysisPublished YieldKind = "analysis_published"
)

// CyclePhaseResult records one executed action within a cycle.
type CyclePhaseResult struct {
	Action    string           `json:"action"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`
	Success   bool             `json:"success"`
	Error     *StructuredError `json:"error,omitempty"`
}

// CycleTelemetry is one cycle's durable record, appended as a single
// line to telemetry.jsonl. productive is computed from yield_kind by
// MarkProductivity rather than set by hand, to keep the invariant
// "productive iff yield_kind != none" mechanically true.
type CycleTelemetry struct {
	CycleNumber        int                `json:"cycle_number"`
	StartedAt          time.Time          `json:"started_at"`
	EndedAt            time.Time          `json:"ended_at"`
	Productive         bool               `json:"productive"`
	Phases             []CyclePhaseResult `json:"phases"`
	ConductorReasoning string             `json:"conductor_reasoning"`
	ConductorActions   []string           `json:"conductor_actions"`
	ConductorFallback  bool               `json:"conductor_fallback"`
	YieldKind          YieldKind          `json:"yield_kind"`
}

// Validate enforces the quantified telemetry invariants.
func (c *CycleTelemetry) Validate() error {
	if c.EndedAt.Before(c.StartedAt) {
		return fmt.Errorf("%w: cycle %d ended_at before started_at", ErrInvariant, c.CycleNumber)
	}
	wantProductive := c.YieldKind != YieldNone && c.YieldKind != ""
	if c.Productive != wantProductive {
		return fmt.Errorf("%w: cycle %d productive=%v but yield_kind=%q", ErrInvariant, c.CycleNumber, c.Productive, c.YieldKind)
	}
	return nil
}

// DeriveYieldKind computes the yield_kind for a cycle from whether a PR
// merged or an analysis issue completed during it.
// prMerged takes precedence when both occurred in the same cycle, since
// a cycle records one yield_kind but may have driven both outcomes in
// sequence; the PR merge is the rarer, higher-value event.
func DeriveYieldKind(prMerged, analysisPublished bool) YieldKind {
	switch {
	case prMerged:
		return YieldPRMerged
	case analysisPublished:
		return YieldAnalysisPublished
	default:
		return YieldNone
	}
}

// MarkProductivity sets Productive and YieldKind consistently, the only
// sanctioned way to populate those two fields together.
func (c *CycleTelemetry) MarkProductivity(prMerged, analysisPublished bool) {
	c.YieldKind = DeriveYieldKind(prMerged, analysisPublished)
	c.Productive = c.YieldKind != YieldNone
}

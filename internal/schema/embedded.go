// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package schema

import _ "embed"

//go:embed docs/conductor_plan.json
var conductorPlanDoc []byte

//go:embed docs/assessment.json
var assessmentDoc []byte

//go:embed docs/parliament_debate.json
var parliamentDebateDoc []byte

//go:embed docs/critic_report.json
var criticReportDoc []byte

//go:embed docs/debate_verdict.json
var debateVerdictDoc []byte

// Names of the schemas baked into the binary via go:embed. Using the
// embedded copy rather than reading from disk at startup means the
// engine's validation rules travel with the executable and cannot drift
// from what shipped.
const (
	ConductorPlan    = "conductor_plan"
	Assessment       = "assessment"
	ParliamentDebate = "parliament_debate"
	CriticReport     = "critic_report"
	DebateVerdict    = "debate_verdict"
)

// EmbeddedDocs returns the full set of schema documents baked into the
// binary, ready to pass to New.
func EmbeddedDocs() map[string][]byte {
	return map[string][]byte{
		ConductorPlan:    conductorPlanDoc,
		Assessment:       assessmentDoc,
		ParliamentDebate: parliamentDebateDoc,
		CriticReport:     criticReportDoc,
		DebateVerdict:    debateVerdictDoc,
	}
}

// NewEmbedded builds a Validator from the embedded schema set.
func NewEmbedded() (*Validator, error) {
	return New(EmbeddedDocs())
}

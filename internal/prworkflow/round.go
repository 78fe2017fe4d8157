// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package prworkflow

import (
	"regexp"
	"strings"
)

// Verdict is the reviewer's decision for a round.
type Verdict string

const (
	VerdictApprove          Verdict = "APPROVED"
	VerdictChangesRequested Verdict = "CHANGES_REQUESTED"
)

// verdictPattern matches a line of the form "VERDICT: APPROVED" or
// "VERDICT: CHANGES_REQUESTED" anywhere in the reviewer's output.
var verdictPattern = regexp.MustCompile(`(?im)^\s*VERDICT:\s*(APPROVED|CHANGES_REQUESTED)\s*$`)

// ParseVerdict extracts the reviewer's verdict marker from raw agent
// output. ok is false when no marker is present, which callers must
// treat as a failure (fail closed): an unparseable review never
// auto-approves.
func ParseVerdict(output string) (Verdict, bool) {
	m := verdictPattern.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}
	return Verdict(strings.ToUpper(m[1])), true
}

// Round is one coder/reviewer iteration against a single code-change
// issue and its pull request.
type Round struct {
	IssueNumber    int
	RoundNumber    int
	State          State
	Branch         string
	PRNumber       int
	ReviewComments []string
	LastVerdict    Verdict
}

// NewRound starts round 1 for issueNumber in StateInit.
func NewRound(issueNumber int) *Round {
	return &Round{IssueNumber: issueNumber, RoundNumber: 1, State: StateInit}
}

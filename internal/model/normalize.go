// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"regexp"
	"strings"
)

var (
	hexRunRe   = regexp.MustCompile(`\b[0-9a-fA-F]{6,}\b`)
	digitRunRe = regexp.MustCompile(`\b\d+\b`)
	wsRe       = regexp.MustCompile(`\s+`)
)

const maxNormalizedMessageLen = 200

// normalizeMessage collapses an error message into a stable key suitable
// for the circuit breaker's (phase, kind, message) triple matching.
// Hex-looking identifiers and bare integers are replaced with
// placeholders so that two occurrences of "the same" failure with
// different issue numbers or commit hashes still compare equal.
func normalizeMessage(msg string) string {
	m := hexRunRe.ReplaceAllString(msg, "<hex>")
	m = digitRunRe.ReplaceAllString(m, "<n>")
	m = wsRe.ReplaceAllString(m, " ")
	m = strings.TrimSpace(m)
	if len(m) > maxNormalizedMessageLen {
		m = m[:maxNormalizedMessageLen]
	}
	return m
}

// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"errors"
	"time"
)

// ErrorKind is the closed taxonomy of failure classes a cycle phase can
// report. Every component-level error returned up to the dispatcher is
// tagged with one of these kinds before being recorded in telemetry.
type ErrorKind string

const (
	AgentTimeout      ErrorKind = "AgentTimeout"
	AgentExecError    ErrorKind = "AgentExecError"
	AgentEmpty        ErrorKind = "AgentEmpty"
	AgentParseError   ErrorKind = "AgentParseError"
	AnalysisEmpty     ErrorKind = "AnalysisEmpty"
	TrackerTransient  ErrorKind = "TrackerTransient"
	TrackerFatal      ErrorKind = "TrackerFatal"
	StateConflict     ErrorKind = "StateConflict"
	DuplicateDecision ErrorKind = "DuplicateDecision"
	EngineCrash       ErrorKind = "EngineCrash"
)

var validErrorKinds = map[ErrorKind]bool{
	AgentTimeout:      true,
	AgentExecError:    true,
	AgentEmpty:        true,
	AgentParseError:   true,
	AnalysisEmpty:     true,
	TrackerTransient:  true,
	TrackerFatal:      true,
	StateConflict:     true,
	DuplicateDecision: true,
	EngineCrash:       true,
}

// Valid reports whether k is one of the closed set of error kinds.
func (k ErrorKind) Valid() bool { return validErrorKinds[k] }

// StructuredError is the durable, JSON-serializable representation of a
// component failure, embedded in CyclePhaseResult and persisted with
// the cycle's telemetry record.
type StructuredError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Phase     string    `json:"phase,omitempty"`
	Stack     string    `json:"stack,omitempty"`
	CycleNum  int       `json:"cycle_number"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StructuredError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NormalizedMessage collapses the message to a form suitable for circuit
// breaker triple-counting: trimmed, bounded length, no dynamic
// substrings (timestamps, hex ids) that would defeat matching identical
// recurring failures.
func (e *StructuredError) NormalizedMessage() string {
	return normalizeMessage(e.Message)
}

// Sentinel errors for cross-package errors.Is checks.
var (
	ErrNotFound        = errors.New("model: entity not found")
	ErrInvalidEnum     = errors.New("model: invalid enum value")
	ErrInvalidRange    = errors.New("model: value out of range")
	ErrMissingField    = errors.New("model: required field missing")
	ErrInvariant       = errors.New("model: invariant violated")
)

// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agentrunner abstracts invocation of the LLM agent subprocesses
// the engine coordinates. All exec.Command calls for agent invocation go
// through this interface so the rest of the engine can be tested without
// spawning real processes.
package agentrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civicsentinel/engine/internal/model"
)

// nestedSessionEnvVar is cleared on every spawned agent so an agent
// invoked by the engine cannot itself detect and nest inside another
// engine session if it re-execs its own tooling.
const nestedSessionEnvVar = "CIVICSENTINEL_NESTED_SESSION"

// Invocation describes one agent subprocess call.
type Invocation struct {
	// AgentPath is the executable to run.
	AgentPath string
	// Args are extra command-line arguments, if the agent takes any.
	Args []string
	// ConfigJSON is marshaled and written to the subprocess's stdin.
	ConfigJSON any
	// Timeout bounds wall-clock time; zero means no timeout.
	Timeout time.Duration
	// WorkDir is the working directory for the subprocess, if non-empty.
	WorkDir string
}

// Result is what a completed (or failed) invocation produced.
type Result struct {
	Stdout        []byte
	Stderr        []byte
	ExitCode      int
	Duration      time.Duration
	TimedOut      bool
	CorrelationID string
}

// Runner executes agent subprocesses. Implementations must be safe for
// concurrent use.
type Runner interface {
	Invoke(ctx context.Context, inv Invocation) (*Result, error)
}

// DefaultRunner executes real subprocesses using os/exec.
type DefaultRunner struct{}

// NewDefaultRunner returns a Runner backed by real subprocess execution.
func NewDefaultRunner() *DefaultRunner { return &DefaultRunner{} }

// Invoke marshals inv.ConfigJSON to the subprocess's stdin, waits for
// completion (or inv.Timeout), and classifies the outcome. A non-zero
// exit code or empty stdout is reported via a model.StructuredError
// wrapped in the returned error; Result is still returned so callers can
// inspect partial output.
func (r *DefaultRunner) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	correlationID := uuid.NewString()

	runCtx := ctx
	var cancel context.CancelFunc
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.AgentPath, inv.Args...)
	if inv.WorkDir != "" {
		cmd.Dir = inv.WorkDir
	}
	cmd.Env = clearNestedSessionEnv(os.Environ())

	if inv.ConfigJSON != nil {
		payload, err := json.Marshal(inv.ConfigJSON)
		if err != nil {
			return nil, fmt.Errorf("agentrunner: marshal config for %s: %w", inv.AgentPath, err)
		}
		cmd.Stdin = bytes.NewReader(payload)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := &Result{
		Stdout:        stdout.Bytes(),
		Stderr:        stderr.Bytes(),
		Duration:      elapsed,
		CorrelationID: correlationID,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return result, &model.StructuredError{
			Kind:      model.AgentTimeout,
			Message:   fmt.Sprintf("%s exceeded timeout %s", inv.AgentPath, inv.Timeout),
			Timestamp: time.Now().UTC(),
		}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		return result, &model.StructuredError{
			Kind:      model.AgentExecError,
			Message:   fmt.Sprintf("%s: %v: %s", inv.AgentPath, runErr, strings.TrimSpace(stderr.String())),
			Timestamp: time.Now().UTC(),
		}
	}

	if len(bytes.TrimSpace(stdout.Bytes())) == 0 {
		return result, &model.StructuredError{
			Kind:      model.AgentEmpty,
			Message:   fmt.Sprintf("%s produced no stdout", inv.AgentPath),
			Timestamp: time.Now().UTC(),
		}
	}

	return result, nil
}

func clearNestedSessionEnv(env []string) []string {
	out := make([]string, 0, len(env))
	prefix := nestedSessionEnvVar + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// MockRunner is a test double for Runner. Configure InvokeFunc before
// use; a nil InvokeFunc panics when Invoke is called.
type MockRunner struct {
	InvokeFunc func(ctx context.Context, inv Invocation) (*Result, error)

	mu    sync.Mutex
	Calls []Invocation
}

// Invoke records inv and delegates to InvokeFunc.
func (m *MockRunner) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, inv)
	m.mu.Unlock()
	if m.InvokeFunc == nil {
		panic("agentrunner: MockRunner.InvokeFunc not set")
	}
	return m.InvokeFunc(ctx, inv)
}

// GetCalls returns a copy of every recorded invocation.
func (m *MockRunner) GetCalls() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Invocation, len(m.Calls))
	copy(out, m.Calls)
	return out
}

var (
	_ Runner = (*DefaultRunner)(nil)
	_ Runner = (*MockRunner)(nil)
)

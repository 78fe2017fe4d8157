// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package schema validates untrusted agent JSON output against compiled
// JSON Schemas before it is decoded into the closed, static structs in
// internal/model. Agent subprocesses are the one boundary where data
// enters the engine from outside its own compiled assumptions; a field
// rename or a stray enum value in a prompt-driven response must fail
// here; it cannot be verified by a Go struct tag.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles and caches a fixed set of named schemas, each
// keyed by the agent output kind it governs (conductor_plan,
// assessment, parliament_debate, critic_report, debate_verdict).
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

// New compiles every entry in docs, keyed by name, into a ready
// Validator. Each value in docs is the raw JSON Schema document bytes.
func New(docs map[string][]byte) (*Validator, error) {
	compiled := make(map[string]*jsonschema.Schema, len(docs))
	for name, raw := range docs {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("schema %q: unmarshal: %w", name, err)
		}
		c := jsonschema.NewCompiler()
		resourceID := name + ".json"
		if err := c.AddResource(resourceID, doc); err != nil {
			return nil, fmt.Errorf("schema %q: add resource: %w", name, err)
		}
		sch, err := c.Compile(resourceID)
		if err != nil {
			return nil, fmt.Errorf("schema %q: compile: %w", name, err)
		}
		compiled[name] = sch
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks payload (raw agent stdout, expected to be one JSON
// object) against the named schema. It returns a plain error describing
// the first violation; callers wrap this into a model.StructuredError
// of kind AgentParseError.
func (v *Validator) Validate(name string, payload []byte) error {
	sch, ok := v.compiled[name]
	if !ok {
		return fmt.Errorf("schema: no compiled schema named %q", name)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("schema %q: payload is not valid JSON: %w", name, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema %q: %w", name, err)
	}
	return nil
}

// Names reports the schema names this Validator was built with, for
// diagnostics and tests.
func (v *Validator) Names() []string {
	names := make([]string, 0, len(v.compiled))
	for name := range v.compiled {
		names = append(names, name)
	}
	return names
}

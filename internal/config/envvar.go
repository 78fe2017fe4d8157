// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"regexp"
)

var envVarKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrInvalidEnvVarKey is returned when an environment variable key does
// not match the POSIX naming pattern.
var ErrInvalidEnvVarKey = fmt.Errorf("config: invalid environment variable key")

// EnvVar is a typed environment variable with a sensitivity marker for
// safe logging.
type EnvVar struct {
	Key       string
	Value     string
	Present   bool
	Sensitive bool
}

// Redacted formats the variable for logging: sensitive values never
// appear, missing ones are marked absent.
func (e EnvVar) Redacted() string {
	if !e.Present {
		return fmt.Sprintf("%s=<absent>", e.Key)
	}
	if e.Sensitive {
		return fmt.Sprintf("%s=[REDACTED]", e.Key)
	}
	return fmt.Sprintf("%s=%s", e.Key, e.Value)
}

// LookupEnv reads key from the process environment, validating its name
// and marking it Sensitive if requested. Absence is never an error: all
// engine credentials (tracker auth, LLM provider keys, social-posting
// credentials) are optional at startup, validated only lazily by the
// component that needs them.
func LookupEnv(key string, sensitive bool) (EnvVar, error) {
	if !envVarKeyPattern.MatchString(key) {
		return EnvVar{}, fmt.Errorf("%w: %q", ErrInvalidEnvVarKey, key)
	}
	val, ok := os.LookupEnv(key)
	return EnvVar{Key: key, Value: val, Present: ok, Sensitive: sensitive}, nil
}

// Credentials collects every optional credential the engine's
// components may need. Nothing here is fatal to leave unset at
// startup; a component that requires one fails only when it actually
// tries to use it.
type Credentials struct {
	TrackerToken          EnvVar
	LLMProviderAPIKey     EnvVar
	SocialPostingAPIToken EnvVar
}

// LoadCredentials reads the well-known credential environment
// variables, never failing on absence.
func LoadCredentials() (Credentials, error) {
	tracker, err := LookupEnv("CIVICSENTINEL_TRACKER_TOKEN", true)
	if err != nil {
		return Credentials{}, err
	}
	llm, err := LookupEnv("CIVICSENTINEL_LLM_API_KEY", true)
	if err != nil {
		return Credentials{}, err
	}
	social, err := LookupEnv("CIVICSENTINEL_SOCIAL_TOKEN", true)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{TrackerToken: tracker, LLMProviderAPIKey: llm, SocialPostingAPIToken: social}, nil
}

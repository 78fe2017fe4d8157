// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedded_CompilesAllSchemas(t *testing.T) {
	v, err := NewEmbedded()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		ConductorPlan, Assessment, ParliamentDebate, CriticReport, DebateVerdict,
	}, v.Names())
}

func TestValidate_ConductorPlan(t *testing.T) {
	v, err := NewEmbedded()
	require.NoError(t, err)

	valid := []byte(`{"reasoning":"proceed","actions":["cooldown"]}`)
	assert.NoError(t, v.Validate(ConductorPlan, valid))

	missingReasoning := []byte(`{"actions":["cooldown"]}`)
	assert.Error(t, v.Validate(ConductorPlan, missingReasoning))

	badAction := []byte(`{"reasoning":"x","actions":["not_a_real_action"]}`)
	assert.Error(t, v.Validate(ConductorPlan, badAction))
}

func TestValidate_Assessment(t *testing.T) {
	v, err := NewEmbedded()
	require.NoError(t, err)

	valid := []byte(`{"verdict":"positive","score":7,"summary":"s","reasoning":"r"}`)
	assert.NoError(t, v.Validate(Assessment, valid))

	outOfRange := []byte(`{"verdict":"positive","score":99,"summary":"s","reasoning":"r"}`)
	assert.Error(t, v.Validate(Assessment, outOfRange))

	badVerdict := []byte(`{"verdict":"very_good","score":7,"summary":"s","reasoning":"r"}`)
	assert.Error(t, v.Validate(Assessment, badVerdict))
}

func TestValidate_UnknownSchemaName(t *testing.T) {
	v, err := NewEmbedded()
	require.NoError(t, err)
	assert.Error(t, v.Validate("no_such_schema", []byte(`{}`)))
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stage2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

func TestSanitizeDropsNotStatedValues(t *testing.T) {
	facts := Sanitize([]string{"VITALS|Heart Rate|not stated|Admission"}, ValidatedPolicy(), ScopeObjective)
	assert.Empty(t, facts)
}

func TestSanitizeRejectsNonNumericVitals(t *testing.T) {
	facts := Sanitize([]string{"VITALS|Heart Rate|fast|Admission"}, ValidatedPolicy(), ScopeObjective)
	assert.Empty(t, facts)
}

func TestSanitizeDedupsObjectivePreferringDischarge(t *testing.T) {
	lines := []string{
		"VITALS|Heart Rate|70|Admission",
		"VITALS|Heart Rate|110|Discharge",
	}
	facts := Sanitize(lines, ValidatedPolicy(), ScopeObjective)
	require.Len(t, facts, 1)
	assert.Equal(t, "110", facts[0].Value)
}

func TestSanitizeObjectiveScopeDropsSemanticLines(t *testing.T) {
	lines := []string{
		"VITALS|Heart Rate|90|Admission",
		"PROBLEMS|Heart Failure|chronic|Past",
	}
	facts := Sanitize(lines, ValidatedPolicy(), ScopeObjective)
	require.Len(t, facts, 1)
	assert.Equal(t, kvt4.Vitals, facts[0].Cluster)
}

func TestSanitizeCanonicalizesObjectiveTimestampInObjectiveScope(t *testing.T) {
	facts := Sanitize([]string{"UTILIZATION|Prior Admissions 12mo|2|Discharge"}, ValidatedPolicy(), ScopeObjective)
	require.Len(t, facts, 1)
	assert.Equal(t, kvt4.Past, facts[0].Timestamp, "UTILIZATION canonically normalizes to Past regardless of model-emitted timestamp")
}

func TestSanitizeAllScopeKeepsMultipleSemanticFacts(t *testing.T) {
	lines := []string{
		"PROBLEMS|Heart Failure|chronic|Past",
		"PROBLEMS|Sepsis|acute|Discharge",
	}
	facts := Sanitize(lines, ValidatedPolicy(), ScopeAll)
	assert.Len(t, facts, 2)
}

func TestSanitizeExpandsAggregateProblemLineUnderExperimentalPolicy(t *testing.T) {
	facts := Sanitize(
		[]string{"PROBLEMS|PMH/Comorbidities|Diabetes, CKD, COPD|Past"},
		ExperimentalPolicy(),
		ScopeAll,
	)
	require.Len(t, facts, 3)
	for _, f := range facts {
		assert.Equal(t, "chronic", f.Value)
		assert.Equal(t, kvt4.Past, f.Timestamp)
	}
}

func TestSanitizeDoesNotExpandAggregateUnderValidatedPolicy(t *testing.T) {
	facts := Sanitize(
		[]string{"PROBLEMS|PMH/Comorbidities|Diabetes, CKD|Past"},
		ValidatedPolicy(),
		ScopeAll,
	)
	require.Len(t, facts, 1)
	assert.Equal(t, "Diabetes, CKD", facts[0].Value)
}

func TestSanitizeRecovers3PartLineMissingClusterUnderExperimentalPolicy(t *testing.T) {
	facts := Sanitize([]string{"Heart Rate|92|Admission"}, ExperimentalPolicy(), ScopeObjective)
	require.Len(t, facts, 1)
	assert.Equal(t, kvt4.Vitals, facts[0].Cluster)
	assert.Equal(t, "92", facts[0].Value)
}

func TestSanitizeIgnores3PartLineUnderValidatedPolicy(t *testing.T) {
	facts := Sanitize([]string{"Heart Rate|92|Admission"}, ValidatedPolicy(), ScopeObjective)
	assert.Empty(t, facts)
}

func TestDropPromptLeakageLinesRemovesInstructionEchoes(t *testing.T) {
	lines := []string{
		"## Canonical Keywords",
		"One fact per line, CLUSTER|Keyword|Value|Timestamp",
		"VITALS|Heart Rate|90|Admission",
	}
	out := DropPromptLeakageLines(lines)
	require.Len(t, out, 1)
	assert.Equal(t, "VITALS|Heart Rate|90|Admission", out[0])
}

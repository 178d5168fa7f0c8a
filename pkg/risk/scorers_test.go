// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

func loadTestBundle(t *testing.T) *RuleBundle {
	t.Helper()
	bundle, err := LoadRuleBundle("../../configs")
	require.NoError(t, err)
	return bundle
}

func TestScoreVitalsTachycardic(t *testing.T) {
	bundle := loadTestBundle(t)
	facts := []Fact{
		{Cluster: kvt4.Vitals, Keyword: "Heart Rate", Value: 112.0, IsNumeric: true, PlausibleOK: true},
	}
	cs := scoreVitals(facts, bundle.Scoring.Vitals)
	assert.Equal(t, 3, cs.Score)
	assert.Len(t, cs.ContributingFactors, 1)
}

func TestScoreVitalsCapsAtMax(t *testing.T) {
	bundle := loadTestBundle(t)
	facts := []Fact{
		{Cluster: kvt4.Vitals, Keyword: "Heart Rate", Value: 130.0, IsNumeric: true, PlausibleOK: true},
		{Cluster: kvt4.Vitals, Keyword: "Systolic BP", Value: 70.0, IsNumeric: true, PlausibleOK: true},
		{Cluster: kvt4.Vitals, Keyword: "SpO2", Value: 85.0, IsNumeric: true, PlausibleOK: true},
		{Cluster: kvt4.Vitals, Keyword: "Respiratory Rate", Value: 30.0, IsNumeric: true, PlausibleOK: true},
		{Cluster: kvt4.Vitals, Keyword: "Temperature", Value: 103.0, IsNumeric: true, PlausibleOK: true},
	}
	cs := scoreVitals(facts, bundle.Scoring.Vitals)
	assert.LessOrEqual(t, cs.Score, 25)
}

func TestScoreDemographicsMissingAgePenalty(t *testing.T) {
	bundle := loadTestBundle(t)
	cs := scoreDemographics(nil, bundle.Scoring.Demographics)
	assert.Equal(t, 2, cs.Score)
}

func TestScoreDemographicsElderly(t *testing.T) {
	bundle := loadTestBundle(t)
	facts := []Fact{{Cluster: kvt4.Demographics, Keyword: "Age", Value: 88.0, IsNumeric: true, PlausibleOK: true}}
	cs := scoreDemographics(facts, bundle.Scoring.Demographics)
	assert.Equal(t, 6, cs.Score)
}

func TestScoreMedicationsDerivedPolypharmacy(t *testing.T) {
	bundle := loadTestBundle(t)
	facts := []Fact{
		{Cluster: kvt4.Medications, Keyword: "Medication Count", Value: 6.0, IsNumeric: true, PlausibleOK: true},
	}
	cs := scoreMedications(facts, bundle.Scoring.Medications)
	// polypharmacy range score (1) + derived bonus (3)
	assert.Equal(t, 4, cs.Score)
}

func TestScoreProceduresSpecificSuppressesFallback(t *testing.T) {
	bundle := loadTestBundle(t)
	facts := []Fact{
		{Cluster: kvt4.Procedures, Keyword: "Surgery", Value: "yes", PlausibleOK: true},
		{Cluster: kvt4.Procedures, Keyword: "Any Procedure", Value: "yes", PlausibleOK: true},
	}
	cs := scoreProcedures(facts, bundle.Scoring.Procedures)
	assert.Equal(t, 3, cs.Score)
}

func TestScoreProceduresFallbackWhenNoSpecific(t *testing.T) {
	bundle := loadTestBundle(t)
	facts := []Fact{
		{Cluster: kvt4.Procedures, Keyword: "Any Procedure", Value: "yes", PlausibleOK: true},
	}
	cs := scoreProcedures(facts, bundle.Scoring.Procedures)
	assert.Equal(t, 1, cs.Score)
}

func TestScoreProblemsMultimorbidityBonus(t *testing.T) {
	bundle := loadTestBundle(t)
	e := NewEngine(bundle)
	facts := []Fact{
		{Cluster: kvt4.Problems, Keyword: "CHF", PlausibleOK: true},
		{Cluster: kvt4.Problems, Keyword: "CKD", PlausibleOK: true},
		{Cluster: kvt4.Problems, Keyword: "Diabetes", PlausibleOK: true},
		{Cluster: kvt4.Problems, Keyword: "COPD", PlausibleOK: true},
	}
	cs := scoreProblems(e, facts)
	assert.Greater(t, cs.Score, 8+7+5+6)
}

func TestScoreSymptomsActiveCountBonus(t *testing.T) {
	bundle := loadTestBundle(t)
	e := NewEngine(bundle)
	facts := []Fact{
		{Cluster: kvt4.Symptoms, Keyword: "Shortness of Breath", Value: "yes", PlausibleOK: true},
		{Cluster: kvt4.Symptoms, Keyword: "Edema", Value: "yes", PlausibleOK: true},
		{Cluster: kvt4.Symptoms, Keyword: "Chest Pain", Value: "yes", PlausibleOK: true},
		{Cluster: kvt4.Symptoms, Keyword: "Fever", Value: "yes", PlausibleOK: true},
	}
	cs := scoreSymptoms(e, facts)
	assert.Contains(t, cs.ContributingFactors[len(cs.ContributingFactors)-1], "concurrent active symptoms")
}

func TestScoreSymptomsNegativeContributesNothing(t *testing.T) {
	bundle := loadTestBundle(t)
	e := NewEngine(bundle)
	facts := []Fact{
		{Cluster: kvt4.Symptoms, Keyword: "Chest Pain", Value: "no", PlausibleOK: true},
	}
	cs := scoreSymptoms(e, facts)
	assert.Equal(t, 0, cs.Score)
}

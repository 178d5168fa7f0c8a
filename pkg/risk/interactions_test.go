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

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

func findInteraction(results []InteractionResult, id string) (InteractionResult, bool) {
	for _, r := range results {
		if r.PatternID == id {
			return r, true
		}
	}
	return InteractionResult{}, false
}

func TestDetectInteractionsSepsisPattern(t *testing.T) {
	bundle := loadTestBundle(t)
	e := NewEngine(bundle)
	facts := map[kvt4.Cluster][]Fact{
		kvt4.Vitals: {
			{Cluster: kvt4.Vitals, Keyword: "Heart Rate", Value: 115.0, IsNumeric: true, PlausibleOK: true},
			{Cluster: kvt4.Vitals, Keyword: "Systolic BP", Value: 88.0, IsNumeric: true, PlausibleOK: true},
		},
		kvt4.Labs: {
			{Cluster: kvt4.Labs, Keyword: "WBC", Value: 15.0, IsNumeric: true, PlausibleOK: true},
		},
	}
	results := e.detectInteractions(facts)
	got, ok := findInteraction(results, "sepsis_pattern")
	assert.True(t, ok)
	assert.Equal(t, 10, got.Bonus)
}

func TestDetectInteractionsNoFalseTriggerOnPartialEvidence(t *testing.T) {
	bundle := loadTestBundle(t)
	e := NewEngine(bundle)
	facts := map[kvt4.Cluster][]Fact{
		kvt4.Vitals: {
			{Cluster: kvt4.Vitals, Keyword: "Heart Rate", Value: 115.0, IsNumeric: true, PlausibleOK: true},
		},
	}
	results := e.detectInteractions(facts)
	_, ok := findInteraction(results, "sepsis_pattern")
	assert.False(t, ok)
}

func TestDetectInteractionsAKIPattern(t *testing.T) {
	bundle := loadTestBundle(t)
	e := NewEngine(bundle)
	facts := map[kvt4.Cluster][]Fact{
		kvt4.Labs: {
			{Cluster: kvt4.Labs, Keyword: "Creatinine", Value: 2.1, IsNumeric: true, PlausibleOK: true},
			{Cluster: kvt4.Labs, Keyword: "BUN", Value: 45.0, IsNumeric: true, PlausibleOK: true},
			{Cluster: kvt4.Labs, Keyword: "Potassium", Value: 5.4, IsNumeric: true, PlausibleOK: true},
		},
	}
	results := e.detectInteractions(facts)
	got, ok := findInteraction(results, "aki_pattern")
	assert.True(t, ok)
	assert.Equal(t, 8, got.Bonus)
}

func TestDetectInteractionsDecompensatedHFRequiresActiveProblemValue(t *testing.T) {
	bundle := loadTestBundle(t)
	e := NewEngine(bundle)
	facts := map[kvt4.Cluster][]Fact{
		kvt4.Problems: {
			{Cluster: kvt4.Problems, Keyword: "heart failure", Value: "exist", PlausibleOK: true},
		},
		kvt4.Labs: {
			{Cluster: kvt4.Labs, Keyword: "BUN", Value: 45.0, IsNumeric: true, PlausibleOK: true},
		},
	}
	results := e.detectInteractions(facts)
	_, ok := findInteraction(results, "decompensated_hf")
	assert.True(t, ok, "an existing heart failure problem plus elevated BUN should trigger decompensated_hf")
}

func TestDetectInteractionsDecompensatedHFIgnoresNotExistProblem(t *testing.T) {
	bundle := loadTestBundle(t)
	e := NewEngine(bundle)
	facts := map[kvt4.Cluster][]Fact{
		kvt4.Problems: {
			{Cluster: kvt4.Problems, Keyword: "heart failure", Value: "not exist", PlausibleOK: true},
		},
		kvt4.Labs: {
			{Cluster: kvt4.Labs, Keyword: "BUN", Value: 45.0, IsNumeric: true, PlausibleOK: true},
		},
	}
	results := e.detectInteractions(facts)
	_, ok := findInteraction(results, "decompensated_hf")
	assert.False(t, ok, "a ruled-out heart failure problem must not gate decompensated_hf")
}

func TestProblemGroupCountOnlyCountsActiveValues(t *testing.T) {
	bundle := loadTestBundle(t)
	e := NewEngine(bundle)
	idx := newFactIndex(e, map[kvt4.Cluster][]Fact{
		kvt4.Problems: {
			{Cluster: kvt4.Problems, Keyword: "heart failure", Value: "chronic", PlausibleOK: true},
			{Cluster: kvt4.Problems, Keyword: "diabetes", Value: "not exist", PlausibleOK: true},
		},
	})
	assert.Equal(t, 1, idx.problemGroupCount())
}

func TestDetectInteractionsBleedingRisk(t *testing.T) {
	bundle := loadTestBundle(t)
	e := NewEngine(bundle)
	facts := map[kvt4.Cluster][]Fact{
		kvt4.Labs: {
			{Cluster: kvt4.Labs, Keyword: "Hemoglobin", Value: 7.2, IsNumeric: true, PlausibleOK: true},
			{Cluster: kvt4.Labs, Keyword: "Platelet", Value: 80.0, IsNumeric: true, PlausibleOK: true},
		},
	}
	results := e.detectInteractions(facts)
	got, ok := findInteraction(results, "bleeding_risk")
	assert.True(t, ok)
	assert.Equal(t, 6, got.Bonus)
}

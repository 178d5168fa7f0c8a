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
)

// TestLogisticCalibration pins the exact calibration scenario from the
// specification: a composite score of 35 with alpha=-2.3475, beta=0.017
// must land at approximately 14.5% probability, inside the Medium band.
func TestLogisticCalibration(t *testing.T) {
	prob := logistic(-2.3475, 0.017, 35)
	assert.InDelta(t, 0.145, prob, 0.01)
}

func TestClassifyRiskBands(t *testing.T) {
	categories := []RiskCategory{
		{Name: "Low", Color: "green", ScoreMin: 0, ScoreMax: 19},
		{Name: "Medium", Color: "yellow", ScoreMin: 20, ScoreMax: 39},
		{Name: "High", Color: "orange", ScoreMin: 40, ScoreMax: 59},
		{Name: "Critical", Color: "red", ScoreMin: 60, ScoreMax: 999},
	}

	name, color := classifyRisk(categories, 35)
	assert.Equal(t, "Medium", name)
	assert.Equal(t, "yellow", color)

	name, _ = classifyRisk(categories, 0)
	assert.Equal(t, "Low", name)

	name, _ = classifyRisk(categories, 60)
	assert.Equal(t, "Critical", name)
}

// TestPredictDays pins the specification's days-prediction scenario: a
// composite score of 50 with D_max=30, gamma=0.03 predicts approximately
// 6.7 days to readmission.
func TestPredictDays(t *testing.T) {
	days := predictDays(30, 0.03, 50)
	assert.InDelta(t, 6.7, days, 0.1)
}

func TestPredictDaysFloorsAtOneDay(t *testing.T) {
	days := predictDays(30, 0.03, 500)
	assert.GreaterOrEqual(t, days, 1.0)
}

func TestPredictSurvivalMonotonicAcrossHorizons(t *testing.T) {
	curve := predictSurvival(0.9, 30, 0.4)
	assert.Less(t, curve.Horizons[7], curve.Horizons[14])
	assert.Less(t, curve.Horizons[14], curve.Horizons[21])
	assert.Less(t, curve.Horizons[21], curve.Horizons[30])
	assert.InDelta(t, 0.4, curve.Horizons[30], 1e-9)
}

func TestPredictSurvivalGuardsZeroDenominator(t *testing.T) {
	curve := predictSurvival(0, 30, 0.3)
	assert.NotPanics(t, func() { _ = curve.Horizons[7] })
}

// TestPredictSurvivalWidensKWithScore pins spec §4.9's k = max(0.5, k_base +
// 0.02*(score-30)): a score of 80 (50 above the neutral midpoint) widens k
// enough to front-load more of p30 onto the day-7 horizon than the neutral
// score does, even holding k_base and p30 fixed.
func TestPredictSurvivalWidensKWithScore(t *testing.T) {
	neutral := predictSurvival(0.15, 30, 0.4)
	highScore := predictSurvival(0.15, 80, 0.4)
	assert.Greater(t, highScore.Horizons[7], neutral.Horizons[7])
}

func TestPredictSurvivalFloorsKAtHalfForLowScores(t *testing.T) {
	// score well below 30 would drive k negative without the 0.5 floor,
	// which would invert the survival curve's monotonicity.
	curve := predictSurvival(0.15, 0, 0.3)
	assert.Less(t, curve.Horizons[7], curve.Horizons[14])
	assert.Less(t, curve.Horizons[14], curve.Horizons[21])
}

func TestClassifyConfidence(t *testing.T) {
	assert.Equal(t, "high", classifyConfidence(0.9))
	assert.Equal(t, "medium", classifyConfidence(0.6))
	assert.Equal(t, "low", classifyConfidence(0.2))
}

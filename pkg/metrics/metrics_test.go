// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

func rec(cluster kvt4.Cluster, keyword, value string, ts kvt4.Timestamp) kvt4.Record {
	return kvt4.Record{Cluster: cluster, Keyword: keyword, Value: value, Timestamp: ts}
}

func TestComputeExactMatchCountsAsTruePositive(t *testing.T) {
	pred := []kvt4.Record{rec(kvt4.Vitals, "Heart Rate", "90", kvt4.Admission)}
	gt := []kvt4.Record{rec(kvt4.Vitals, "Heart Rate", "90", kvt4.Admission)}
	report := Compute(pred, gt, true, false)
	assert.Equal(t, 1, report.Counts.TP)
	assert.Equal(t, 0, report.Counts.FP)
	assert.Equal(t, 0, report.Counts.FN)
}

func TestComputeNumericToleranceAllowsSmallDrift(t *testing.T) {
	pred := []kvt4.Record{rec(kvt4.Labs, "Creatinine", "1.45", kvt4.Discharge)}
	gt := []kvt4.Record{rec(kvt4.Labs, "Creatinine", "1.40", kvt4.Discharge)}
	report := Compute(pred, gt, true, false)
	assert.Equal(t, 1, report.Counts.TP)
}

func TestComputeNumericOutsideToleranceIsFalsePositiveAndNegative(t *testing.T) {
	pred := []kvt4.Record{rec(kvt4.Labs, "Creatinine", "3.0", kvt4.Discharge)}
	gt := []kvt4.Record{rec(kvt4.Labs, "Creatinine", "1.0", kvt4.Discharge)}
	report := Compute(pred, gt, true, false)
	assert.Equal(t, 0, report.Counts.TP)
	assert.Equal(t, 1, report.Counts.FP)
	assert.Equal(t, 1, report.Counts.FN)
}

func TestComputeMissingGroundTruthFactIsFalseNegative(t *testing.T) {
	gt := []kvt4.Record{rec(kvt4.Disposition, "Discharge Disposition", "Home", kvt4.Discharge)}
	report := Compute(nil, gt, true, false)
	require.Len(t, report.FN, 1)
	assert.Equal(t, "DISPOSITION", report.FN[0].Cluster)
}

func TestComputeSemanticKeywordOnlyMatchIgnoresExactCategoricalValue(t *testing.T) {
	pred := []kvt4.Record{rec(kvt4.Problems, "Heart Failure", "acute", kvt4.Discharge)}
	gt := []kvt4.Record{rec(kvt4.Problems, "Heart Failure", "chronic", kvt4.Discharge)}
	report := Compute(pred, gt, false, true)
	assert.Equal(t, 1, report.Counts.TP, "acute and chronic both map to presence=true")
}

func TestComputeSemanticKeywordOnlyMatchStillRejectsPresenceMismatch(t *testing.T) {
	pred := []kvt4.Record{rec(kvt4.Symptoms, "Dyspnea", "yes", kvt4.Admission)}
	gt := []kvt4.Record{rec(kvt4.Symptoms, "Dyspnea", "no", kvt4.Admission)}
	report := Compute(pred, gt, false, true)
	assert.Equal(t, 0, report.Counts.TP)
	assert.Equal(t, 1, report.Counts.FP)
}

func TestComputeDownstreamScoreGateFailsOnLowVitalsRecall(t *testing.T) {
	gt := []kvt4.Record{
		rec(kvt4.Vitals, "Heart Rate", "90", kvt4.Admission),
		rec(kvt4.Vitals, "Temperature", "98.6", kvt4.Admission),
	}
	report := Compute(nil, gt, true, false)
	result := ComputeDownstreamScore(report, DefaultDownstreamConfig)
	assert.False(t, result.GatePassed)
	assert.True(t, math.IsInf(result.Score, -1))
}

func TestComputeDownstreamScorePassesWithFullVitalsRecall(t *testing.T) {
	pred := []kvt4.Record{rec(kvt4.Vitals, "Heart Rate", "90", kvt4.Admission)}
	gt := []kvt4.Record{rec(kvt4.Vitals, "Heart Rate", "90", kvt4.Admission)}
	report := Compute(pred, gt, true, false)
	result := ComputeDownstreamScore(report, DefaultDownstreamConfig)
	assert.True(t, result.GatePassed)
	assert.Greater(t, result.Score, 0.0)
}

func TestPerClusterCountsBucketsByCluster(t *testing.T) {
	pred := []kvt4.Record{rec(kvt4.Vitals, "Heart Rate", "90", kvt4.Admission)}
	gt := []kvt4.Record{
		rec(kvt4.Vitals, "Heart Rate", "90", kvt4.Admission),
		rec(kvt4.Labs, "Sodium", "138", kvt4.Admission),
	}
	report := Compute(pred, gt, true, false)
	counts := PerClusterCounts(report)
	assert.Equal(t, 1, counts["VITALS"].TP)
	assert.Equal(t, 1, counts["LABS"].FN)
}

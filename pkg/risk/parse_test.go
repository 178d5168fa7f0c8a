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

func TestParseFactsExpandsChronicProblemsList(t *testing.T) {
	bundle := loadTestBundle(t)
	records := []kvt4.Record{
		{Cluster: kvt4.Problems, Keyword: "PMH/Comorbidities", Value: "CHF; CKD stage 3; Diabetes", Timestamp: kvt4.Past},
	}
	facts, nParsed, nDropped := ParseFacts(records, bundle)
	require.Len(t, facts[kvt4.Problems], 3)
	assert.Equal(t, 3, nParsed)
	assert.Equal(t, 0, nDropped)
	for _, f := range facts[kvt4.Problems] {
		assert.Equal(t, "chronic", f.Value)
		assert.Equal(t, kvt4.Past, f.Timestamp)
	}
}

func TestParseFactsDropsUnparsableNumeric(t *testing.T) {
	bundle := loadTestBundle(t)
	records := []kvt4.Record{
		{Cluster: kvt4.Vitals, Keyword: "Systolic BP", Value: "120/80", Timestamp: kvt4.Discharge},
	}
	_, nParsed, nDropped := ParseFacts(records, bundle)
	assert.Equal(t, 0, nParsed)
	assert.Equal(t, 1, nDropped)
}

func TestParseFactsParsesPlainNumeric(t *testing.T) {
	bundle := loadTestBundle(t)
	records := []kvt4.Record{
		{Cluster: kvt4.Labs, Keyword: "Creatinine", Value: "1.8 mg/dL", Timestamp: kvt4.Discharge},
	}
	facts, nParsed, _ := ParseFacts(records, bundle)
	require.Len(t, facts[kvt4.Labs], 1)
	assert.Equal(t, 1, nParsed)
	v, ok := facts[kvt4.Labs][0].NumericValue()
	require.True(t, ok)
	assert.InDelta(t, 1.8, v, 0.001)
}

func TestParseFactsDedupsObjectiveByFirstSeen(t *testing.T) {
	bundle := loadTestBundle(t)
	records := []kvt4.Record{
		{Cluster: kvt4.Vitals, Keyword: "Heart Rate", Value: "110", Timestamp: kvt4.Discharge},
		{Cluster: kvt4.Vitals, Keyword: "Heart Rate", Value: "88", Timestamp: kvt4.Admission},
	}
	facts, _, nDropped := ParseFacts(records, bundle)
	require.Len(t, facts[kvt4.Vitals], 1)
	assert.Equal(t, 1, nDropped)
	v, _ := facts[kvt4.Vitals][0].NumericValue()
	assert.Equal(t, 110.0, v)
}

func TestParseFactsUnplausibleValueFlagged(t *testing.T) {
	bundle := loadTestBundle(t)
	records := []kvt4.Record{
		{Cluster: kvt4.Vitals, Keyword: "Heart Rate", Value: "400", Timestamp: kvt4.Discharge},
	}
	facts, _, _ := ParseFacts(records, bundle)
	require.Len(t, facts[kvt4.Vitals], 1)
	assert.False(t, facts[kvt4.Vitals][0].PlausibleOK)
}

func TestParseFactsDropsUnknownCluster(t *testing.T) {
	bundle := loadTestBundle(t)
	records := []kvt4.Record{
		{Cluster: kvt4.Cluster("NOT_A_CLUSTER"), Keyword: "X", Value: "y"},
	}
	_, nParsed, nDropped := ParseFacts(records, bundle)
	assert.Equal(t, 0, nParsed)
	assert.Equal(t, 1, nDropped)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
	"github.com/SZabolotnii/structcore/pkg/stage1"
)

func TestSupplementAddsMissingMedicationFields(t *testing.T) {
	digest := &stage1.Digest{Medications: "Medication Count = 8\nPolypharmacy = yes"}
	out := SupplementStage2FromStage1(digest, nil)

	var found []string
	for _, f := range out {
		found = append(found, f.Keyword+"="+f.Value)
	}
	assert.Contains(t, found, "Medication Count=8")
	assert.Contains(t, found, "Polypharmacy=yes")
}

func TestSupplementDoesNotOverwriteExistingStage2Fact(t *testing.T) {
	digest := &stage1.Digest{Medications: "Medication Count = 8"}
	existing := []kvt4.Record{{Cluster: kvt4.Medications, Keyword: "Medication Count", Value: "5", Timestamp: kvt4.Admission}}

	out := SupplementStage2FromStage1(digest, existing)
	require.Len(t, out, 1)
	assert.Equal(t, "5", out[0].Value, "stage2's own fact must win over the stage1 supplement")
}

func TestSupplementExpandsProblemAggregateIntoItemFacts(t *testing.T) {
	digest := &stage1.Digest{Problems: "PMH/Comorbidities = Diabetes, CKD, Hypertension"}
	out := SupplementStage2FromStage1(digest, nil)

	var chronic []string
	for _, f := range out {
		if f.Cluster == kvt4.Problems && f.Value == "chronic" {
			chronic = append(chronic, f.Keyword)
		}
	}
	assert.ElementsMatch(t, []string{"Diabetes", "CKD", "Hypertension"}, chronic)
}

func TestSupplementAddsObjectiveVitalsAndLabs(t *testing.T) {
	digest := &stage1.Digest{
		Vitals: map[string]string{"Heart Rate": "92"},
		Labs:   map[string]string{"Creatinine": "1.8"},
	}
	out := SupplementStage2FromStage1(digest, nil)

	var byKeyword = map[string]string{}
	for _, f := range out {
		byKeyword[f.Keyword] = f.Value
	}
	assert.Equal(t, "92", byKeyword["Heart Rate"])
	assert.Equal(t, "1.8", byKeyword["Creatinine"])
}

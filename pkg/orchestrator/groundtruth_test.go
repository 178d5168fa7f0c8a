// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

func writeGroundTruth(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ground_truth_1.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGroundTruthParsesBareKVT4StringArray(t *testing.T) {
	path := writeGroundTruth(t, `["VITALS|Heart Rate|88|Admission", "DISPOSITION|Location|Home|Discharge"]`)

	facts, err := LoadGroundTruth(path)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	require.Equal(t, kvt4.Cluster("VITALS"), facts[0].Cluster)
	require.Equal(t, "Heart Rate", facts[0].Keyword)
	require.Equal(t, "88", facts[0].Value)
}

func TestLoadGroundTruthParsesObjectArrayWithFullKeys(t *testing.T) {
	path := writeGroundTruth(t, `[{"cluster":"LABS","keyword":"Creatinine","value":"1.2","timestamp":"Admission"}]`)

	facts, err := LoadGroundTruth(path)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, kvt4.Cluster("LABS"), facts[0].Cluster)
	require.Equal(t, "Creatinine", facts[0].Keyword)
	require.Equal(t, "1.2", facts[0].Value)
}

func TestLoadGroundTruthAcceptsSingleLetterAliases(t *testing.T) {
	path := writeGroundTruth(t, `[{"C":"PROBLEMS","K":"Heart Failure","V":"chronic","T":"Past"}]`)

	facts, err := LoadGroundTruth(path)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, kvt4.Cluster("PROBLEMS"), facts[0].Cluster)
	require.Equal(t, "chronic", facts[0].Value)
}

func TestLoadGroundTruthDefaultsMissingTimestampToUnknown(t *testing.T) {
	path := writeGroundTruth(t, `[{"cluster":"SYMPTOMS","keyword":"Dyspnea","value":"yes"}]`)

	facts, err := LoadGroundTruth(path)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, kvt4.Timestamp("Unknown"), facts[0].Timestamp)
}

func TestLoadGroundTruthSkipsMalformedEntries(t *testing.T) {
	path := writeGroundTruth(t, `[{"value":"no cluster or keyword"}, {"cluster":"VITALS","keyword":"HR","value":"80","timestamp":"Admission"}]`)

	facts, err := LoadGroundTruth(path)
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestLoadGroundTruthRejectsNonArrayJSON(t *testing.T) {
	path := writeGroundTruth(t, `{"not": "an array"}`)

	_, err := LoadGroundTruth(path)
	require.Error(t, err)
}

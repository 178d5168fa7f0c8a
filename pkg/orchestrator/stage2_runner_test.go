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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SZabolotnii/structcore/pkg/artifacts"
	"github.com/SZabolotnii/structcore/pkg/risk"
	"github.com/SZabolotnii/structcore/pkg/stage2"
)

const sampleStage2KVT4 = `VITALS|Heart Rate|88|Admission
LABS|Creatinine|1.1|Admission
DISPOSITION|Location|Home|Discharge
PROBLEMS|Heart Failure|chronic|Past
MEDICATIONS|Furosemide|40mg daily|Admission`

func seedStage1Output(t *testing.T, store *artifacts.Store, hadm string) {
	t.Helper()
	paths, err := store.DocPaths(hadm)
	require.NoError(t, err)
	require.NoError(t, artifacts.WriteText(paths.Stage1Markdown, "## VITALS\n- Heart Rate: 88\n"))
	require.NoError(t, artifacts.WriteJSON(paths.Stage1Normalized, map[string]any{
		"VITALS": map[string]string{"Heart Rate": "88"},
	}))
}

func loadTestRiskEngine(t *testing.T) (*risk.Engine, *risk.RuleBundle) {
	t.Helper()
	bundle, err := risk.LoadRuleBundle("../../configs")
	require.NoError(t, err)
	return risk.NewEngine(bundle), bundle
}

func TestRunStage2WritesFactsAndScoresRisk(t *testing.T) {
	cohortDir := t.TempDir()
	writeCohortDoc(t, cohortDir, "1", "note", false)

	outputDir := t.TempDir()
	store, err := artifacts.NewStore(outputDir, "")
	require.NoError(t, err)
	seedStage1Output(t, store, "1")

	client := &fakeChatClient{responses: []string{sampleStage2KVT4}}
	engine, bundle := loadTestRiskEngine(t)
	opts := Options{CohortDir: cohortDir, HADMIDs: []string{"1"}, MaxInFlight: 1, Scope: stage2.ScopeAll, Policy: stage2.ValidatedPolicy()}

	summary, err := RunStage2(context.Background(), client, store, engine, bundle, opts, nil)
	require.NoError(t, err)
	require.Len(t, summary.Documents, 1)
	require.Empty(t, summary.Documents[0].Error)
	require.Greater(t, summary.Documents[0].FactCount, 0)
	require.NotEmpty(t, summary.Documents[0].RiskCategory)

	paths, err := store.DocPaths("1")
	require.NoError(t, err)
	require.True(t, artifacts.Exists(paths.Stage2Raw))
	require.True(t, artifacts.Exists(paths.Stage2Facts))
	require.True(t, artifacts.Exists(paths.Stage2Normalized))
	require.True(t, artifacts.Exists(store.MetaStage2Path()))
	require.True(t, artifacts.Exists(store.SummaryStage2Path()))
}

func TestRunStage2ScoresAgainstGroundTruthWhenPresent(t *testing.T) {
	cohortDir := t.TempDir()
	writeCohortDoc(t, cohortDir, "1", "note", false)
	require.NoError(t, os.WriteFile(
		filepath.Join(cohortDir, "1", "ground_truth_1.json"),
		[]byte(`["VITALS|Heart Rate|88|Admission"]`),
		0o644,
	))

	outputDir := t.TempDir()
	store, err := artifacts.NewStore(outputDir, "")
	require.NoError(t, err)
	seedStage1Output(t, store, "1")

	client := &fakeChatClient{responses: []string{sampleStage2KVT4}}
	engine, bundle := loadTestRiskEngine(t)
	opts := Options{CohortDir: cohortDir, HADMIDs: []string{"1"}, MaxInFlight: 1, Scope: stage2.ScopeAll, Policy: stage2.ValidatedPolicy()}

	summary, err := RunStage2(context.Background(), client, store, engine, bundle, opts, nil)
	require.NoError(t, err)
	require.True(t, summary.Documents[0].HasGroundTruth)

	paths, err := store.DocPaths("1")
	require.NoError(t, err)
	require.True(t, artifacts.Exists(paths.Stage2Metrics))
}

func TestRunStage2RecordsErrorWhenStage1OutputMissing(t *testing.T) {
	cohortDir := t.TempDir()
	writeCohortDoc(t, cohortDir, "1", "note", false)

	outputDir := t.TempDir()
	store, err := artifacts.NewStore(outputDir, "")
	require.NoError(t, err)
	// Stage-1 artifacts intentionally not seeded.

	client := &fakeChatClient{responses: []string{sampleStage2KVT4}}
	engine, bundle := loadTestRiskEngine(t)
	opts := Options{CohortDir: cohortDir, HADMIDs: []string{"1"}, MaxInFlight: 1, Scope: stage2.ScopeAll, Policy: stage2.ValidatedPolicy()}

	summary, err := RunStage2(context.Background(), client, store, engine, bundle, opts, nil)
	require.NoError(t, err)
	require.NotEmpty(t, summary.Documents[0].Error)
}

func TestWriteSummaryCSVEscapesCommasAndQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary_stage2.csv")
	results := []Stage2DocResult{
		{HADMID: "1", FactCount: 3, RiskScore: 42, RiskCategory: "high, urgent", Error: `read error: "disk full"`},
	}
	require.NoError(t, writeSummaryCSV(path, results))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), `"high, urgent"`)
	require.Contains(t, string(content), `""disk full""`)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SZabolotnii/structcore/pkg/artifacts"
	"github.com/SZabolotnii/structcore/pkg/llmclient"
	"github.com/SZabolotnii/structcore/pkg/logging"
	"github.com/SZabolotnii/structcore/pkg/orchestrator"
	"github.com/SZabolotnii/structcore/pkg/risk"
	"github.com/SZabolotnii/structcore/pkg/stage2"
)

var (
	flagStage2Profile string
	flagStage2Scope   string
)

var stage2Cmd = &cobra.Command{
	Use:   "stage2",
	Short: "Project a Stage-1 digest into KVT4 facts and score readmission risk",
	Long: `stage2 re-reads each document's stage1.md (written by a prior stage1 run)
through the LM backend, sanitizes the response into CLUSTER|Keyword|Value|
Timestamp fact lines, supplements gaps from the Stage-1 digest itself, and
scores 30-day readmission risk with the deterministic rule engine. When a
ground_truth_<hadm>.json file is present for a document, extraction quality
is also scored against it.

--run-id must name a run directory already populated by a prior stage1
invocation.

Examples:
  structcore stage2 --run-id <uuid> --cohort ./cohort --n 50
  structcore stage2 --run-id <uuid> --cohort ./cohort --hadm 100001 --policy experimental
  structcore stage2 --run-id <uuid> --cohort ./cohort --n 50 --scope objective --require-ground-truth

Exit Codes:
  0 = run completed; documents that failed are counted in the printed
      summary's "failed" field and do not change the exit code
  3 = unrecoverable backend error, or --run-id does not exist`,
	RunE: runStage2Command,
}

func init() {
	addSharedFlags(stage2Cmd)
	stage2Cmd.Flags().StringVar(&flagStage2Profile, "policy", "validated",
		"Sanitizer behavior profile: validated or experimental")
	stage2Cmd.Flags().StringVar(&flagStage2Scope, "scope", "all",
		"Which Stage-1 sections to project: all or objective")
}

func runStage2Command(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(flagTimeoutSec+30)*time.Second)
	defer cancel()

	logger := logging.New(logging.Config{Level: logging.LevelInfo, Service: "structcore-stage2"})

	if flagRunID == "" {
		return fmt.Errorf("--run-id is required: stage2 reads artifacts written by a prior stage1 run")
	}

	store, err := artifacts.OpenStore(flagOutputDir, flagRunID)
	if err != nil {
		os.Exit(ExitBackendError)
	}

	hadmIDs, err := resolveHADMIDs(flagCohortDir)
	if err != nil {
		return fmt.Errorf("resolve HADM ids: %w", err)
	}
	if len(hadmIDs) == 0 {
		return fmt.Errorf("no HADM ids selected from %s", flagCohortDir)
	}

	bundle, err := risk.LoadRuleBundle(flagConfigDir)
	if err != nil {
		return fmt.Errorf("load rule bundle from %s: %w", flagConfigDir, err)
	}
	engine := risk.NewEngine(bundle)

	client := llmclient.NewOpenAICompatClient(flagBackendURL, flagModel, flagTimeoutSec,
		llmclient.WithDebugLogging(flagDebugBackend))

	policy := stage2.ValidatedPolicy()
	if flagStage2Profile == "experimental" {
		policy = stage2.ExperimentalPolicy()
	}
	scope := stage2.ScopeAll
	if flagStage2Scope == "objective" {
		scope = stage2.ScopeObjective
	}

	obs, err := setupObservability(ctx)
	if err != nil {
		return err
	}
	defer obs.shutdown(context.Background())

	opts := orchestrator.Options{
		CohortDir:          flagCohortDir,
		HADMIDs:            hadmIDs,
		MaxInFlight:        flagMaxInFlight,
		Scope:              scope,
		Policy:             policy,
		RequireGroundTruth: flagRequireGT,
		Metrics:            obs.metrics,
		Tracer:             obs.tracer,
	}

	summary, err := orchestrator.RunStage2(ctx, client, store, engine, bundle, opts, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stage2 run failed:", err)
		os.Exit(ExitBackendError)
	}

	failed := 0
	for _, d := range summary.Documents {
		if d.Error != "" {
			failed++
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"run_id":    store.RunID(),
		"documents": len(summary.Documents),
		"failed":    failed,
	})
	return nil
}

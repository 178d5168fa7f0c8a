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
)

var stage1Cmd = &cobra.Command{
	Use:   "stage1",
	Short: "Digest discharge notes into nine clinical clusters",
	Long: `stage1 sends each admission's discharge note to the LM backend and
extracts a structured digest (demographics, vitals, labs, problems,
symptoms, medications, procedures, utilization, disposition). The digest
and its markdown projection are written to a new run directory for stage2
to re-read.

Examples:
  structcore stage1 --cohort ./cohort --n 50
  structcore stage1 --cohort ./cohort --hadm 100001,100002 --url http://localhost:8000
  structcore stage1 --cohort ./cohort --n 20 --run-id my-run --max-in-flight 4

Exit Codes:
  0 = every selected document parsed successfully
  2 = at least one document failed Stage-1 JSON parsing after all retries
  3 = unrecoverable backend error (could not reach the LM backend at all)`,
	RunE: runStage1Command,
}

func init() {
	addSharedFlags(stage1Cmd)
}

func runStage1Command(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(flagTimeoutSec+30)*time.Second)
	defer cancel()

	logger := logging.New(logging.Config{Level: logging.LevelInfo, Service: "structcore-stage1"})

	hadmIDs, err := resolveHADMIDs(flagCohortDir)
	if err != nil {
		return fmt.Errorf("resolve HADM ids: %w", err)
	}
	if len(hadmIDs) == 0 {
		return fmt.Errorf("no HADM ids selected from %s", flagCohortDir)
	}

	store, err := artifacts.NewStore(flagOutputDir, flagRunID)
	if err != nil {
		return err
	}
	if err := artifacts.WriteJSON(store.HADMIDsPath(), hadmIDs); err != nil {
		return err
	}

	client := llmclient.NewOpenAICompatClient(flagBackendURL, flagModel, flagTimeoutSec,
		llmclient.WithDebugLogging(flagDebugBackend))

	obs, err := setupObservability(ctx)
	if err != nil {
		return err
	}
	defer obs.shutdown(context.Background())

	opts := orchestrator.Options{
		CohortDir:   flagCohortDir,
		HADMIDs:     hadmIDs,
		MaxInFlight: flagMaxInFlight,
		Metrics:     obs.metrics,
		Tracer:      obs.tracer,
	}

	summary, err := orchestrator.RunStage1(ctx, client, store, opts, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stage1 run failed:", err)
		os.Exit(ExitBackendError)
	}

	failed := 0
	for _, d := range summary.Documents {
		if !d.ParseOK {
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

	if failed > 0 {
		os.Exit(ExitStage1ParseErr)
	}
	return nil
}

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
	"strings"

	"github.com/spf13/cobra"

	"github.com/SZabolotnii/structcore/pkg/orchestrator"
)

// =============================================================================
// SHARED FLAGS (stage1 and stage2 both accept these)
// =============================================================================

var (
	flagCohortDir    string
	flagOutputDir    string
	flagRunID        string
	flagHADMList     string
	flagHADMCount    int
	flagBackendURL   string
	flagModel        string
	flagTimeoutSec   int
	flagMaxInFlight  int
	flagOverwrite    bool
	flagRequireGT    bool
	flagConfigDir    string
	flagDebugBackend bool
	flagTrace        bool
	flagServeMetrics string
)

func addSharedFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagCohortDir, "cohort", "cohort",
		"Cohort root directory; one subdirectory per HADM id")
	cmd.Flags().StringVar(&flagOutputDir, "output", "runs",
		"Output root directory; a new run subdirectory is created per invocation")
	cmd.Flags().StringVar(&flagRunID, "run-id", "",
		"Reuse an existing run directory name instead of generating one")
	cmd.Flags().StringVar(&flagHADMList, "hadm", "",
		"Comma-separated explicit list of HADM ids to process")
	cmd.Flags().IntVar(&flagHADMCount, "n", 0,
		"Discover up to N HADM ids from --cohort in sorted numeric order (ignored if --hadm is set)")
	cmd.Flags().StringVar(&flagBackendURL, "url", "http://localhost:8000",
		"OpenAI-compatible LM backend base URL")
	cmd.Flags().StringVar(&flagModel, "model", "medgemma-27b-it",
		"Model id sent with every backend request")
	cmd.Flags().IntVar(&flagTimeoutSec, "timeout", 180,
		"Backend HTTP request timeout in seconds")
	cmd.Flags().IntVar(&flagMaxInFlight, "max-in-flight", 1,
		"Maximum documents processed concurrently")
	cmd.Flags().BoolVar(&flagOverwrite, "overwrite", false,
		"Has no effect: every selected document is reprocessed and its existing output in this run is rewritten whether or not it is set")
	cmd.Flags().BoolVar(&flagRequireGT, "require-ground-truth", false,
		"Only select HADM ids that have a ground_truth_<hadm>.json file")
	cmd.Flags().StringVar(&flagConfigDir, "config-dir", "configs",
		"Directory holding scoring_rules.json, snomed_problem_groups.json, symptom_urgency_groups.json")
	cmd.Flags().BoolVar(&flagDebugBackend, "debug", false,
		"Log backend request parameters to stderr")
	cmd.Flags().BoolVar(&flagTrace, "trace", false,
		"Emit an OpenTelemetry span per document to stdout")
	cmd.Flags().StringVar(&flagServeMetrics, "serve-metrics", "",
		"Serve Prometheus metrics on this address (e.g. :9090) for the duration of the run; empty disables it")
}

func resolveHADMIDs(cohortDir string) ([]string, error) {
	if strings.TrimSpace(flagHADMList) != "" {
		var ids []string
		for _, id := range strings.Split(flagHADMList, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}
	return orchestrator.DiscoverHADMIDs(cohortDir, flagHADMCount, flagRequireGT)
}

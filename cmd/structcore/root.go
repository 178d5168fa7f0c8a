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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes, per spec.md §6.4.
const (
	ExitSuccess        = 0
	ExitStage1ParseErr = 2
	ExitBackendError   = 3
)

var rootCmd = &cobra.Command{
	Use:   "structcore",
	Short: "Two-stage clinical discharge-note extraction and readmission-risk scoring",
	Long: `structcore turns a cohort of discharge notes into KVT4 clinical facts and a
30-day readmission risk score.

Stage 1 asks the configured LM backend to digest each note into nine
clinical clusters. Stage 2 re-reads that digest and projects it into
CLUSTER|Keyword|Value|Timestamp fact lines, which the deterministic risk
engine then scores. Every run writes a self-describing directory tree
under --output, one subdirectory per admission id.`,
}

// Execute runs the root command, exiting the process with the resolved
// exit code rather than returning — cobra's own error path does not
// distinguish the stage-1-parse-failure exit code from a generic error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(ExitBackendError)
	}
}

func init() {
	rootCmd.AddCommand(stage1Cmd)
	rootCmd.AddCommand(stage2Cmd)
}

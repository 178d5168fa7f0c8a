// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator drives the per-document pipeline (C10): discovering
// admission ids in a cohort, running Stage-1 and Stage-2 over each one,
// scoring risk, and emitting the run-level summary.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/SZabolotnii/structcore/pkg/validation"
)

// DiscoverHADMIDs walks cohortDir for "<hadm>/ehr_<hadm>.txt" subdirectories,
// in sorted numeric order, stopping once n ids are found. When
// requireGroundTruth is set, an admission is only included if
// "ground_truth_<hadm>.json" also exists alongside its note.
func DiscoverHADMIDs(cohortDir string, n int, requireGroundTruth bool) ([]string, error) {
	entries, err := os.ReadDir(cohortDir)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read cohort dir %s: %w", cohortDir, err)
	}

	var candidates []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		candidates = append(candidates, e.Name())
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, _ := strconv.Atoi(candidates[i])
		b, _ := strconv.Atoi(candidates[j])
		return a < b
	})

	var out []string
	for _, hadm := range candidates {
		docDir := filepath.Join(cohortDir, hadm)
		if !fileExists(filepath.Join(docDir, fmt.Sprintf("ehr_%s.txt", hadm))) {
			continue
		}
		if requireGroundTruth && !fileExists(filepath.Join(docDir, fmt.Sprintf("ground_truth_%s.json", hadm))) {
			continue
		}
		out = append(out, hadm)
		if n > 0 && len(out) >= n {
			break
		}
	}
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadNote loads the discharge note text for one admission id.
func ReadNote(cohortDir, hadmID string) (string, error) {
	if err := validation.ValidateHADMID(hadmID); err != nil {
		return "", err
	}
	path := filepath.Join(cohortDir, hadmID, fmt.Sprintf("ehr_%s.txt", hadmID))
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("orchestrator: read note for hadm %s: %w", hadmID, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// GroundTruthPath returns the ground-truth file path for one admission id,
// whether or not it currently exists — callers check artifacts.Exists first.
func GroundTruthPath(cohortDir, hadmID string) string {
	return filepath.Join(cohortDir, hadmID, fmt.Sprintf("ground_truth_%s.json", hadmID))
}

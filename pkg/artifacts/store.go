// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package artifacts manages the per-run filesystem layout (C11): one run
// directory per pipeline invocation, one subdirectory per admission id, and
// the well-known file names each pipeline stage reads and writes.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store roots all artifact paths for one pipeline run under a single
// UUID-named directory, matching spec.md §6.2's <run>/ layout.
type Store struct {
	root string
}

// NewStore creates (if needed) and returns a Store rooted at
// filepath.Join(outputRoot, runID). An empty runID generates a fresh UUIDv4,
// matching the teacher's run-id-per-invocation convention.
func NewStore(outputRoot, runID string) (*Store, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	root := filepath.Join(outputRoot, runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create run directory %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// OpenStore attaches to an existing run directory without creating it,
// for a resumed or cross-stage invocation that shares a run id.
func OpenStore(outputRoot, runID string) (*Store, error) {
	root := filepath.Join(outputRoot, runID)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("artifacts: run directory %s does not exist", root)
	}
	return &Store{root: root}, nil
}

// RunID returns the run directory's base name.
func (s *Store) RunID() string { return filepath.Base(s.root) }

// Root returns the run directory's absolute-or-relative path as given.
func (s *Store) Root() string { return s.root }

// DocDir returns (creating if needed) the per-admission subdirectory.
func (s *Store) DocDir(hadmID string) (string, error) {
	dir := filepath.Join(s.root, hadmID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: create document directory %s: %w", dir, err)
	}
	return dir, nil
}

// HADMIDsPath is <run>/hadm_ids.json, the stable superset of admission ids
// this run was invoked against.
func (s *Store) HADMIDsPath() string { return filepath.Join(s.root, "hadm_ids.json") }

// MetaStage1Path is <run>/meta_stage1.json.
func (s *Store) MetaStage1Path() string { return filepath.Join(s.root, "meta_stage1.json") }

// MetaStage2Path is <run>/meta_stage2.json.
func (s *Store) MetaStage2Path() string { return filepath.Join(s.root, "meta_stage2.json") }

// SummaryStage2Path is <run>/summary_stage2.csv.
func (s *Store) SummaryStage2Path() string { return filepath.Join(s.root, "summary_stage2.csv") }

// DocPaths is the well-known set of per-document file names under
// <run>/<hadm>/, named exactly as spec.md §6.2 lists them.
type DocPaths struct {
	Stage1RawModel    string
	Stage1Raw         string
	Stage1JSON        string
	Stage1Normalized  string
	Stage1Markdown    string
	Stage1Facts       string
	Stage1Meta        string
	Stage1Error       string
	Stage2Raw         string
	Stage2RawRetry1   string
	Stage2Facts       string
	Stage2Normalized  string
	Stage2Metrics     string
}

// DocPaths returns the well-known file paths for one admission id's
// document directory, creating the directory if it does not yet exist.
func (s *Store) DocPaths(hadmID string) (DocPaths, error) {
	dir, err := s.DocDir(hadmID)
	if err != nil {
		return DocPaths{}, err
	}
	return DocPaths{
		Stage1RawModel:   filepath.Join(dir, "stage1_raw_model.txt"),
		Stage1Raw:        filepath.Join(dir, "stage1_raw.txt"),
		Stage1JSON:       filepath.Join(dir, "stage1.json"),
		Stage1Normalized: filepath.Join(dir, "stage1_normalized.json"),
		Stage1Markdown:   filepath.Join(dir, "stage1.md"),
		Stage1Facts:      filepath.Join(dir, "stage1_facts.txt"),
		Stage1Meta:       filepath.Join(dir, "stage1_meta.json"),
		Stage1Error:      filepath.Join(dir, "stage1_error.json"),
		Stage2Raw:        filepath.Join(dir, "stage2_raw.txt"),
		Stage2RawRetry1:  filepath.Join(dir, "stage2_raw_retry1.txt"),
		Stage2Facts:      filepath.Join(dir, "stage2_facts.txt"),
		Stage2Normalized: filepath.Join(dir, "stage2_normalized.json"),
		Stage2Metrics:    filepath.Join(dir, "stage2_metrics.json"),
	}, nil
}

// WriteText writes text content to path, creating parent directories.
func WriteText(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifacts: mkdir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("artifacts: write %s: %w", path, err)
	}
	return nil
}

// WriteJSON marshals v as indented JSON and writes it to path.
func WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("artifacts: marshal %s: %w", path, err)
	}
	return WriteText(path, string(b)+"\n")
}

// ReadJSON unmarshals the JSON file at path into dst.
func ReadJSON(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("artifacts: read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("artifacts: unmarshal %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists. RunStage2 uses it to detect a
// document's ground-truth file; neither runner uses it to skip documents
// that already have output, so every selected document is reprocessed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

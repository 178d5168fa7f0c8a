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
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SZabolotnii/structcore/pkg/artifacts"
	"github.com/SZabolotnii/structcore/pkg/llmclient"
	"github.com/SZabolotnii/structcore/pkg/logging"
	"github.com/SZabolotnii/structcore/pkg/markdown"
	"github.com/SZabolotnii/structcore/pkg/stage1"
)

// Stage1DocResult is one admission's Stage-1 outcome, written to the
// document directory and folded into the run-level Stage1Summary.
type Stage1DocResult struct {
	HADMID   string
	ParseOK  bool
	Attempts int
	Error    string
}

// Stage1Summary is the run-level result of RunStage1, the in-memory
// counterpart of meta_stage1.json.
type Stage1Summary struct {
	RunID     string
	Documents []Stage1DocResult
}

// RunStage1 extracts and normalizes a Stage-1 digest for every admission id
// in opts.HADMIDs, writing each document's well-known Stage-1 files (raw
// model output, normalized JSON, markdown projection, meta) into store, with
// up to opts.MaxInFlight documents processed concurrently. A per-document
// failure is recorded in that document's stage1_error.json and does not
// abort the run.
func RunStage1(ctx context.Context, client llmclient.Client, store *artifacts.Store, opts Options, logger *logging.Logger) (Stage1Summary, error) {
	summary := Stage1Summary{RunID: store.RunID()}
	results := make([]Stage1DocResult, len(opts.HADMIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight(opts.MaxInFlight))

	for i, hadm := range opts.HADMIDs {
		i, hadm := i, hadm
		g.Go(func() error {
			results[i] = runStage1Doc(gctx, client, store, opts, hadm, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	summary.Documents = results
	if err := artifacts.WriteJSON(store.MetaStage1Path(), summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func runStage1Doc(ctx context.Context, client llmclient.Client, store *artifacts.Store, opts Options, hadm string, logger *logging.Logger) Stage1DocResult {
	result := Stage1DocResult{HADMID: hadm}

	ctx, endSpan := startDocSpan(ctx, opts.Tracer, "stage1", hadm)
	defer endSpan()
	started := time.Now()
	defer func() {
		status := "ok"
		if result.Error != "" {
			status = "error"
		}
		opts.Metrics.observe("stage1", status, time.Since(started))
	}()

	paths, err := store.DocPaths(hadm)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	note, err := ReadNote(opts.CohortDir, hadm)
	if err != nil {
		result.Error = err.Error()
		_ = artifacts.WriteJSON(paths.Stage1Error, map[string]string{"error": err.Error()})
		return result
	}
	if note == "" {
		result.Error = "empty discharge note"
		_ = artifacts.WriteJSON(paths.Stage1Error, map[string]string{"error": result.Error})
		return result
	}

	extraction, err := stage1.Extract(ctx, client, note)
	result.ParseOK = extraction.ParseOK
	result.Attempts = extraction.Attempts
	if err != nil {
		result.Error = err.Error()
		_ = artifacts.WriteJSON(paths.Stage1Error, map[string]string{"error": err.Error()})
		if logger != nil {
			logger.Warn("stage1 extraction failed", "hadm", hadm, "error", err.Error())
		}
		return result
	}

	_ = artifacts.WriteText(paths.Stage1RawModel, extraction.RawText)
	_ = artifacts.WriteText(paths.Stage1Raw, extraction.RawText)
	_ = artifacts.WriteJSON(paths.Stage1Normalized, extraction.Digest)

	rendered := markdown.Compact(markdown.FromDigest(&extraction.Digest))
	if err := artifacts.WriteText(paths.Stage1Markdown, rendered); err != nil {
		result.Error = err.Error()
		return result
	}
	_ = artifacts.WriteText(paths.Stage1Facts, joinLines(extraction.Digest.FactsLines()))

	_ = artifacts.WriteJSON(paths.Stage1Meta, map[string]any{
		"parse_ok":        extraction.ParseOK,
		"retried_hygiene": extraction.RetriedHygiene,
		"retried_parse":   extraction.RetriedParse,
		"attempts":        extraction.Attempts,
	})

	if !extraction.ParseOK {
		result.Error = fmt.Sprintf("stage1 digest failed required-key check after %d attempt(s)", extraction.Attempts)
	}
	return result
}

func maxInFlight(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

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
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SZabolotnii/structcore/pkg/artifacts"
	"github.com/SZabolotnii/structcore/pkg/kvt4"
	"github.com/SZabolotnii/structcore/pkg/llmclient"
	"github.com/SZabolotnii/structcore/pkg/logging"
	"github.com/SZabolotnii/structcore/pkg/metrics"
	"github.com/SZabolotnii/structcore/pkg/risk"
	"github.com/SZabolotnii/structcore/pkg/stage1"
	"github.com/SZabolotnii/structcore/pkg/stage2"
)

// Stage2DocResult is one admission's Stage-2 outcome: the fact yield, the
// risk score if facts were produced, and the downstream metric score when
// a ground-truth file was present for the document.
type Stage2DocResult struct {
	HADMID          string
	FactCount       int
	RiskScore       int
	RiskCategory    string
	HasGroundTruth  bool
	DownstreamScore float64
	Error           string
}

// Stage2Summary is the run-level result of RunStage2.
type Stage2Summary struct {
	RunID     string
	Documents []Stage2DocResult
}

// RunStage2 projects each admission's Stage-1 markdown into KVT4 facts,
// sanitizes and supplements them, scores readmission risk, and — when a
// ground-truth file exists for that admission — scores extraction quality
// against it. Results are written to each document's well-known Stage-2
// files and folded into meta_stage2.json and summary_stage2.csv.
func RunStage2(ctx context.Context, client llmclient.Client, store *artifacts.Store, engine *risk.Engine, bundle *risk.RuleBundle, opts Options, logger *logging.Logger) (Stage2Summary, error) {
	summary := Stage2Summary{RunID: store.RunID()}
	results := make([]Stage2DocResult, len(opts.HADMIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight(opts.MaxInFlight))

	for i, hadm := range opts.HADMIDs {
		i, hadm := i, hadm
		g.Go(func() error {
			results[i] = runStage2Doc(gctx, client, store, engine, bundle, opts, hadm, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	summary.Documents = results
	if err := artifacts.WriteJSON(store.MetaStage2Path(), summary); err != nil {
		return summary, err
	}
	if err := writeSummaryCSV(store.SummaryStage2Path(), results); err != nil {
		return summary, err
	}
	return summary, nil
}

func runStage2Doc(ctx context.Context, client llmclient.Client, store *artifacts.Store, engine *risk.Engine, bundle *risk.RuleBundle, opts Options, hadm string, logger *logging.Logger) Stage2DocResult {
	result := Stage2DocResult{HADMID: hadm}

	ctx, endSpan := startDocSpan(ctx, opts.Tracer, "stage2", hadm)
	defer endSpan()
	started := time.Now()
	defer func() {
		status := "ok"
		if result.Error != "" {
			status = "error"
		}
		opts.Metrics.observe("stage2", status, time.Since(started))
	}()

	paths, err := store.DocPaths(hadm)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var digest stage1.Digest
	if err := artifacts.ReadJSON(paths.Stage1Normalized, &digest); err != nil {
		result.Error = "missing stage1 output: " + err.Error()
		return result
	}
	digestMarkdown, err := readTextFile(paths.Stage1Markdown)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	extraction, err := stage2.Extract(ctx, client, digestMarkdown, opts.Policy, opts.Scope)
	if err != nil {
		result.Error = err.Error()
		if logger != nil {
			logger.Warn("stage2 extraction failed", "hadm", hadm, "error", err.Error())
		}
		return result
	}
	_ = artifacts.WriteText(paths.Stage2Raw, extraction.RawText)
	if extraction.Retried {
		_ = artifacts.WriteText(paths.Stage2RawRetry1, extraction.RawText)
	}

	facts := artifacts.SupplementStage2FromStage1(&digest, extraction.Facts)
	result.FactCount = len(facts)

	_ = artifacts.WriteText(paths.Stage2Facts, joinLines(serializeFacts(facts)))
	_ = artifacts.WriteJSON(paths.Stage2Normalized, facts)

	parsed, nParsed, nDropped := risk.ParseFacts(facts, bundle)
	riskResult := engine.Score(parsed, nParsed, nDropped)
	result.RiskScore = riskResult.CompositeScore
	result.RiskCategory = riskResult.RiskCategory

	gtPath := GroundTruthPath(opts.CohortDir, hadm)
	if artifacts.Exists(gtPath) {
		result.HasGroundTruth = true
		if gtFacts, err := LoadGroundTruth(gtPath); err == nil {
			report := metrics.Compute(facts, gtFacts, true, false)
			downstream := metrics.ComputeDownstreamScore(report, metrics.DefaultDownstreamConfig)
			result.DownstreamScore = downstream.Score
			_ = artifacts.WriteJSON(paths.Stage2Metrics, map[string]any{
				"counts":           report.Counts,
				"per_cluster":      downstream.PerCluster,
				"downstream_score": downstream.Score,
				"gate_passed":      downstream.GatePassed,
			})
		}
	}

	return result
}

func readTextFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("orchestrator: read %s: %w", path, err)
	}
	return string(b), nil
}

func serializeFacts(facts []kvt4.Record) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.Serialize()
	}
	return out
}

func writeSummaryCSV(path string, results []Stage2DocResult) error {
	var b strings.Builder
	b.WriteString("hadm_id,fact_count,risk_score,risk_category,has_ground_truth,downstream_score,error\n")
	for _, r := range results {
		b.WriteString(r.HADMID)
		b.WriteString(",")
		b.WriteString(itoa(r.FactCount))
		b.WriteString(",")
		b.WriteString(itoa(r.RiskScore))
		b.WriteString(",")
		b.WriteString(csvEscape(r.RiskCategory))
		b.WriteString(",")
		b.WriteString(boolStr(r.HasGroundTruth))
		b.WriteString(",")
		b.WriteString(ftoa(r.DownstreamScore))
		b.WriteString(",")
		b.WriteString(csvEscape(r.Error))
		b.WriteString("\n")
	}
	return artifacts.WriteText(path, b.String())
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string {
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// csvEscape quotes a field when it contains a comma, quote, or newline that
// would otherwise break the one-row-per-document layout.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
}

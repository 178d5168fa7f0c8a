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
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/SZabolotnii/structcore/pkg/stage2"
)

// Options configures one pipeline invocation. The same Options value is
// shared by RunStage1 and RunStage2 — Stage-2 re-reads CohortDir only for
// ground truth, Stage1-produced artifacts come from the Store instead.
type Options struct {
	CohortDir   string
	HADMIDs     []string
	MaxInFlight int
	Scope       stage2.Scope
	Policy      stage2.Policy
	// RequireGroundTruth records whether documents were selected with
	// --require-ground-truth. RunStage2 does not read it: metrics are computed
	// for every document whose ground-truth file exists, and a document
	// missing ground truth is scored but never gets a stage2_metrics.json.
	RequireGroundTruth bool
	// Metrics and Tracer are both optional; nil values disable instrumentation
	// entirely rather than requiring a caller to stand up a no-op implementation.
	Metrics *PipelineMetrics
	Tracer  trace.Tracer
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}

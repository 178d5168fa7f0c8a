// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import "math"

// DownstreamConfig weights per-cluster F1 into a single decision-relevant
// score, penalizes false negatives/positives in clusters critical to
// readmission scoring, and gates the score entirely if a cluster's recall
// falls below a floor — a cluster-F1 average alone hides a catastrophic
// single-cluster miss.
type DownstreamConfig struct {
	ClusterWeights    map[string]float64
	LambdaFN          float64
	LambdaFP          float64
	CriticalFNClusters []string
	CriticalFPClusters []string
	GateMinRecall      map[string]float64
}

// DefaultDownstreamConfig mirrors DEFAULT_DOWNSTREAM_CONFIG: VITALS and
// UTILIZATION carry the heaviest weight (early-warning vitals drift and
// utilization history are the strongest readmission signals), DISPOSITION/
// UTILIZATION/PROBLEMS misses are penalized as critical false negatives,
// VITALS/LABS misses as critical false positives, and VITALS recall is
// gated at 0.85 — a run that can't reliably extract vital signs should not
// produce a usable downstream score at all.
var DefaultDownstreamConfig = DownstreamConfig{
	ClusterWeights: map[string]float64{
		"VITALS": 0.20, "LABS": 0.15, "PROBLEMS": 0.15, "SYMPTOMS": 0.05,
		"MEDICATIONS": 0.05, "PROCEDURES": 0.05, "UTILIZATION": 0.20,
		"DISPOSITION": 0.15, "DEMOGRAPHICS": 0.00,
	},
	LambdaFN:           0.02,
	LambdaFP:           0.01,
	CriticalFNClusters: []string{"DISPOSITION", "UTILIZATION", "PROBLEMS"},
	CriticalFPClusters: []string{"VITALS", "LABS"},
	GateMinRecall:      map[string]float64{"VITALS": 0.85},
}

func safeF1(tp, fp, fn int) float64 {
	denom := 2*tp + fp + fn
	if denom == 0 {
		return 0
	}
	return float64(2*tp) / float64(denom)
}

func safeRecall(tp, fn int) float64 {
	if tp+fn == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fn)
}

// GateFailure records one cluster's recall gate violation.
type GateFailure struct {
	Cluster   string
	Recall    float64
	MinRecall float64
}

// DownstreamResult is ComputeDownstreamScore's full report; Score is
// math.Inf(-1) whenever any gate fails, signaling "do not trust this run".
type DownstreamResult struct {
	Score          float64
	GatePassed     bool
	GateFailures   []GateFailure
	WeightedF1Sum  float64
	CriticalFN     int
	CriticalFP     int
	Penalty        float64
	F1ByCluster    map[string]float64
	PerCluster     map[string]Counts
}

// ComputeDownstreamScore rolls a Report's per-cluster counts into one
// decision-relevant score per cfg, or -Inf if any recall gate fails.
func ComputeDownstreamScore(report Report, cfg DownstreamConfig) DownstreamResult {
	perCluster := PerClusterCounts(report)

	result := DownstreamResult{GatePassed: true, PerCluster: perCluster, F1ByCluster: map[string]float64{}}
	for cluster, minRecall := range cfg.GateMinRecall {
		c, ok := perCluster[cluster]
		if !ok {
			continue
		}
		recall := safeRecall(c.TP, c.FN)
		if recall < minRecall {
			result.GatePassed = false
			result.GateFailures = append(result.GateFailures, GateFailure{Cluster: cluster, Recall: recall, MinRecall: minRecall})
		}
	}
	if !result.GatePassed {
		result.Score = math.Inf(-1)
		return result
	}

	for cluster, w := range cfg.ClusterWeights {
		c, ok := perCluster[cluster]
		if !ok {
			continue
		}
		f1 := safeF1(c.TP, c.FP, c.FN)
		result.F1ByCluster[cluster] = f1
		result.WeightedF1Sum += w * f1
	}

	for _, cluster := range cfg.CriticalFNClusters {
		result.CriticalFN += perCluster[cluster].FN
	}
	for _, cluster := range cfg.CriticalFPClusters {
		result.CriticalFP += perCluster[cluster].FP
	}
	result.Penalty = cfg.LambdaFN*float64(result.CriticalFN) + cfg.LambdaFP*float64(result.CriticalFP)
	result.Score = result.WeightedF1Sum - result.Penalty
	return result
}

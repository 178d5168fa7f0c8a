// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics scores a Stage-2 KVT4 fact set against ground truth, when
// ground truth is available for a document, and rolls per-fact matches into
// precision/recall/F1 and a single downstream decision-relevant score. This
// is a direct port of readmission_metrics.py, run only when a document
// carries ground-truth facts — most pipeline runs never touch this package.
package metrics

import (
	"strconv"
	"strings"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

var numericClusters = map[string]bool{"VITALS": true, "LABS": true, "UTILIZATION": true}
var semanticClusters = map[string]bool{"PROBLEMS": true, "SYMPTOMS": true}

// AllClusters lists every cluster in the canonical report order.
var AllClusters = []string{
	"DEMOGRAPHICS", "VITALS", "LABS", "PROBLEMS", "SYMPTOMS",
	"MEDICATIONS", "PROCEDURES", "UTILIZATION", "DISPOSITION",
}

type factKey struct {
	cluster string
	keyword string
}

type factValue struct {
	value     string
	timestamp string
}

func keywordNorm(k string) string {
	return strings.ToLower(strings.Join(strings.Fields(k), " "))
}

// semanticPresence maps a PROBLEMS/SYMPTOMS value onto a presence boolean
// so predicted and ground-truth facts can be compared cluster-agnostically
// (PROBLEMS uses acute/chronic/exist/not-exist, SYMPTOMS uses yes/no/severe).
func semanticPresence(v string) (present bool, ok bool) {
	s := strings.ToLower(strings.TrimSpace(v))
	switch s {
	case "acute", "chronic", "exist", "yes", "severe":
		return true, true
	case "not exist", "no":
		return false, true
	default:
		return false, false
	}
}

func linesToMap(recs []kvt4.Record) map[factKey]factValue {
	out := make(map[factKey]factValue, len(recs))
	for _, r := range recs {
		if r.Cluster == "" || r.Keyword == "" || r.Value == "" || r.Timestamp == "" {
			continue
		}
		out[factKey{cluster: strings.ToUpper(string(r.Cluster)), keyword: r.Keyword}] = factValue{value: r.Value, timestamp: string(r.Timestamp)}
	}
	return out
}

func valuesMatch(cluster, predValue, gtValue string) bool {
	if numericClusters[strings.ToUpper(cluster)] {
		pf, perr := strconv.ParseFloat(strings.TrimSpace(predValue), 64)
		gf, gerr := strconv.ParseFloat(strings.TrimSpace(gtValue), 64)
		if perr != nil || gerr != nil {
			return false
		}
		tol := 0.10 * gf
		if tol < 0 {
			tol = -tol
		}
		if tol < 0.01 {
			tol = 0.01
		}
		diff := pf - gf
		if diff < 0 {
			diff = -diff
		}
		return diff <= tol
	}
	return strings.EqualFold(strings.TrimSpace(predValue), strings.TrimSpace(gtValue))
}

// Counts is a true-positive/false-positive/false-negative tally with the
// derived precision/recall/F1 the Python Metrics dataclass exposes as
// properties.
type Counts struct {
	TP int
	FP int
	FN int
}

func (c Counts) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

func (c Counts) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

func (c Counts) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// MatchDetail records one tp/fp/fn decision for reporting/debugging.
type MatchDetail struct {
	Cluster string
	Keyword string
	Reason  string
}

// Report is the full per-fact scoring output: the aggregate Counts plus
// every tp/fp/fn decision, for per-cluster rollups and downstream scoring.
type Report struct {
	Counts Counts
	TP     []MatchDetail
	FP     []MatchDetail
	FN     []MatchDetail
}

// Compute scores predicted facts against ground truth. requireTimestampMatch
// demands an exact timestamp match for non-semantic-keyword-only
// comparisons; semanticKeywordOnlyMatch relaxes PROBLEMS/SYMPTOMS matching
// to keyword + presence-boolean only, ignoring the exact categorical value
// and (unless requireTimestampMatch) the timestamp, for evaluation passes
// where free-text keyword variance shouldn't register as a miss.
func Compute(predicted, groundTruth []kvt4.Record, requireTimestampMatch, semanticKeywordOnlyMatch bool) Report {
	pred := linesToMap(predicted)
	gt := linesToMap(groundTruth)

	var report Report
	matched := map[factKey]bool{}

	gtSemanticByKeyword := map[string][]factKey{}
	if semanticKeywordOnlyMatch {
		for k := range gt {
			if semanticClusters[k.cluster] {
				kw := keywordNorm(k.keyword)
				gtSemanticByKeyword[kw] = append(gtSemanticByKeyword[kw], k)
			}
		}
	}

	for k, pv := range pred {
		if semanticKeywordOnlyMatch && semanticClusters[k.cluster] {
			kw := keywordNorm(k.keyword)
			candidates := gtSemanticByKeyword[kw]
			if len(candidates) == 0 {
				report.Counts.FP++
				report.FP = append(report.FP, MatchDetail{k.cluster, k.keyword, "not_in_gt"})
				continue
			}
			predPresent, predOK := semanticPresence(pv.value)
			var best *factKey
			reason := "value_mismatch"
			for _, cand := range candidates {
				if matched[cand] {
					continue
				}
				gv := gt[cand]
				if requireTimestampMatch && pv.timestamp != gv.timestamp {
					reason = "timestamp_mismatch"
					continue
				}
				gtPresent, gtOK := semanticPresence(gv.value)
				if !predOK || !gtOK || predPresent != gtPresent {
					reason = "value_mismatch"
					continue
				}
				c := cand
				best = &c
				break
			}
			if best == nil {
				report.Counts.FP++
				report.FP = append(report.FP, MatchDetail{k.cluster, k.keyword, reason})
				continue
			}
			report.Counts.TP++
			matched[*best] = true
			report.TP = append(report.TP, MatchDetail{best.cluster, best.keyword, ""})
			continue
		}

		gv, ok := gt[k]
		if !ok {
			report.Counts.FP++
			report.FP = append(report.FP, MatchDetail{k.cluster, k.keyword, "not_in_gt"})
			continue
		}
		if requireTimestampMatch && pv.timestamp != gv.timestamp {
			report.Counts.FP++
			report.FP = append(report.FP, MatchDetail{k.cluster, k.keyword, "timestamp_mismatch"})
			continue
		}
		if !valuesMatch(k.cluster, pv.value, gv.value) {
			report.Counts.FP++
			report.FP = append(report.FP, MatchDetail{k.cluster, k.keyword, "value_mismatch"})
			continue
		}
		report.Counts.TP++
		matched[k] = true
		report.TP = append(report.TP, MatchDetail{k.cluster, k.keyword, ""})
	}

	for k := range gt {
		if matched[k] {
			continue
		}
		report.Counts.FN++
		report.FN = append(report.FN, MatchDetail{k.cluster, k.keyword, ""})
	}

	return report
}

// PerClusterCounts rolls a Report's tp/fp/fn details up by cluster.
func PerClusterCounts(report Report) map[string]Counts {
	out := make(map[string]Counts, len(AllClusters))
	for _, c := range AllClusters {
		out[c] = Counts{}
	}
	add := func(details []MatchDetail, field func(*Counts)) {
		for _, d := range details {
			c := out[d.Cluster]
			field(&c)
			out[d.Cluster] = c
		}
	}
	add(report.TP, func(c *Counts) { c.TP++ })
	add(report.FP, func(c *Counts) { c.FP++ })
	add(report.FN, func(c *Counts) { c.FN++ })
	return out
}

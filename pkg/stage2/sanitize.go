// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stage2

import (
	"regexp"
	"sort"
	"strings"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

// Scope selects which Stage-2 clusters the sanitizer keeps.
type Scope string

const (
	// ScopeObjective keeps only the five numeric/categorical clusters,
	// deduped to one fact per (cluster, keyword) with canonical timestamps.
	ScopeObjective Scope = "objective"
	// ScopeAll keeps both objective and semantic clusters; semantic facts
	// are deduped only by exact line, preserving multiple problems/symptoms.
	ScopeAll Scope = "all"
)

var leakageSubstrings = []string{
	"output limits",
	"input limits",
	"hard cap",
	"canonical keywords",
	"must match exactly",
	"begin extraction",
	"one fact per line",
	"cluster|keyword|value|timestamp",
}

var leakagePrefixes = []string{"##", "<h1", "<h2", "<h3", "<p", "<ul", "<li"}

// DropPromptLeakageLines removes lines that are obviously echoed prompt or
// instruction text rather than extracted facts, before line parsing.
func DropPromptLeakageLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		s := strings.TrimSpace(ln)
		if s == "" {
			continue
		}
		sl := strings.ToLower(s)
		leaked := false
		for _, p := range leakagePrefixes {
			if strings.HasPrefix(sl, p) {
				leaked = true
				break
			}
		}
		if !leaked {
			for _, tok := range leakageSubstrings {
				if strings.Contains(sl, tok) {
					leaked = true
					break
				}
			}
		}
		if !leaked {
			out = append(out, s)
		}
	}
	return out
}

// keywordToCluster recovers a missing cluster prefix on a three-field line
// via the keyword's canonical home cluster.
var keywordToCluster = map[string]kvt4.Cluster{
	"Heart Rate": kvt4.Vitals, "Systolic BP": kvt4.Vitals, "Diastolic BP": kvt4.Vitals,
	"Respiratory Rate": kvt4.Vitals, "Temperature": kvt4.Vitals, "SpO2": kvt4.Vitals, "Weight": kvt4.Vitals,
	"Hemoglobin": kvt4.Labs, "Hematocrit": kvt4.Labs, "WBC": kvt4.Labs, "Platelet": kvt4.Labs,
	"Sodium": kvt4.Labs, "Potassium": kvt4.Labs, "Creatinine": kvt4.Labs, "BUN": kvt4.Labs,
	"Glucose": kvt4.Labs, "Bicarbonate": kvt4.Labs,
	"Sex": kvt4.Demographics, "Age": kvt4.Demographics,
	"Prior Admissions 12mo": kvt4.Utilization, "ED Visits 6mo": kvt4.Utilization,
	"Days Since Last Admission": kvt4.Utilization, "Current Length of Stay": kvt4.Utilization,
	"Discharge Disposition": kvt4.Disposition, "Mental Status": kvt4.Disposition,
	"Any Procedure": kvt4.Procedures, "Surgery": kvt4.Procedures, "Dialysis": kvt4.Procedures,
	"Mechanical Ventilation": kvt4.Procedures,
	"Medication Count":       kvt4.Medications, "New Medications Count": kvt4.Medications,
	"Polypharmacy": kvt4.Medications, "Anticoagulation": kvt4.Medications,
	"Insulin Therapy": kvt4.Medications, "Opioid Therapy": kvt4.Medications, "Diuretic Therapy": kvt4.Medications,
}

var numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

type bestObjective struct {
	rec  kvt4.Record
	rank int
}

func timestampRank(ts string) int {
	switch strings.ToLower(strings.TrimSpace(ts)) {
	case "discharge", "dc":
		return 2
	case "admission", "adm":
		return 1
	default:
		return 0
	}
}

func canonicalObjectiveTimestamp(c kvt4.Cluster) kvt4.Timestamp {
	switch c {
	case kvt4.Disposition:
		return kvt4.Discharge
	case kvt4.Utilization:
		return kvt4.Past
	default:
		return kvt4.Admission
	}
}

// Sanitize runs the deterministic hygiene pass on raw pipe-delimited Stage-2
// output lines: recovers malformed three-field lines when the policy allows
// it, drops numeric-cluster values that aren't bare numbers, drops
// "not stated" placeholders, dedups objective facts by (cluster, keyword)
// preferring Discharge over Admission over Past, expands PROBLEMS/SYMPTOMS
// aggregate lines into one fact per item when the policy allows it, and
// returns a stable-sorted fact
// list. This is the Go port of _sanitize_stage2_lines.
func Sanitize(lines []string, policy Policy, scope Scope) []kvt4.Record {
	best := map[kvt4.Cluster]map[string]bestObjective{}
	var semantic []kvt4.Record
	seenSemantic := map[string]bool{}

	for _, raw := range lines {
		parts := splitFields(raw)
		if policy.Recover3PartLines && len(parts) == 3 {
			parts = recover3Part(parts)
		}
		if len(parts) != 4 {
			continue
		}
		cluster, keyword, value, ts := parts[0], parts[1], parts[2], parts[3]
		if cluster == "" || keyword == "" || value == "" || ts == "" {
			continue
		}

		value = strings.TrimPrefix(strings.TrimSpace(value), "$")
		clusterU := kvt4.Cluster(strings.ToUpper(strings.Trim(strings.TrimSpace(cluster), "*<>")))
		if strings.EqualFold(value, "not stated") {
			continue
		}
		switch strings.ToLower(ts) {
		case "adm":
			ts = "Admission"
		case "dc":
			ts = "Discharge"
		}

		if kvt4.NumericClusters[clusterU] && !numberRe.MatchString(value) {
			continue
		}

		if policy.ReclassifyNonNumericClusters && kvt4.SemanticClusters[clusterU] {
			if correct, ok := keywordToCluster[keyword]; ok && kvt4.ObjectiveClusters[correct] && !kvt4.NumericClusters[correct] {
				clusterU = correct
			}
		}

		if kvt4.ObjectiveClusters[clusterU] {
			key := kvt4.NormalizeKeyword(keyword)
			rank := timestampRank(ts)
			bucket, ok := best[clusterU]
			if !ok {
				bucket = map[string]bestObjective{}
				best[clusterU] = bucket
			}
			prev, exists := bucket[key]
			if !exists || rank > prev.rank {
				bucket[key] = bestObjective{
					rec:  kvt4.Record{Cluster: clusterU, Keyword: keyword, Value: value, Timestamp: kvt4.NormalizeTimestamp(ts)},
					rank: rank,
				}
			}
			continue
		}

		if !kvt4.SemanticClusters[clusterU] {
			if scope != ScopeAll {
				continue
			}
			line := string(clusterU) + "|" + keyword + "|" + value + "|" + ts
			if !seenSemantic[line] {
				seenSemantic[line] = true
				semantic = append(semantic, kvt4.Record{Cluster: clusterU, Keyword: keyword, Value: value, Timestamp: kvt4.NormalizeTimestamp(ts)})
			}
			continue
		}

		if scope != ScopeAll {
			continue
		}
		var expanded []kvt4.Record
		if policy.ExpandSemanticLines {
			expanded = expandSemanticLine(clusterU, keyword, value, ts)
		} else {
			expanded = []kvt4.Record{{Cluster: clusterU, Keyword: keyword, Value: value, Timestamp: kvt4.NormalizeTimestamp(ts)}}
		}
		for _, r := range expanded {
			line := r.Serialize()
			if !seenSemantic[line] {
				seenSemantic[line] = true
				semantic = append(semantic, r)
			}
		}
	}

	out := make([]kvt4.Record, 0, len(semantic)+8)
	for cluster, bucket := range best {
		for _, b := range bucket {
			r := b.rec
			if scope == ScopeObjective || policy.ObjectiveTimestampCanonicalAll {
				r.Timestamp = canonicalObjectiveTimestamp(cluster)
			}
			out = append(out, r)
		}
	}
	if scope == ScopeAll {
		out = append(out, semantic...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Cluster != out[j].Cluster {
			return out[i].Cluster < out[j].Cluster
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out
}

func splitFields(line string) []string {
	parts := strings.Split(line, "|")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// recover3Part completes a three-field line, either "<Cluster>|<Keyword>|<Value>"
// (missing timestamp, inferred canonically) or "<Keyword>|<Value>|<Timestamp>"
// (missing cluster, inferred from the keyword table).
func recover3Part(parts []string) []string {
	a, b, c := parts[0], parts[1], parts[2]
	clusterGuess := kvt4.Cluster(strings.ToUpper(strings.Trim(a, "*<> ")))
	if (kvt4.ObjectiveClusters[clusterGuess] || kvt4.SemanticClusters[clusterGuess]) && b != "" && c != "" {
		return []string{string(clusterGuess), b, c, string(canonicalObjectiveTimestamp(clusterGuess))}
	}
	if inferred, ok := keywordToCluster[a]; ok && a != "" && b != "" && c != "" {
		return []string{string(inferred), a, b, c}
	}
	return parts
}

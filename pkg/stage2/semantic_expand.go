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
	"strings"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

var semanticItemSplitRe = regexp.MustCompile(`[;\n]+`)

var textPlaceholders = map[string]bool{
	"not stated": true, "n/a": true, "na": true, "unknown": true, "unk": true, "___": true, "-": true,
}

func splitSemanticItems(value string) []string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, seg := range semanticItemSplitRe.Split(raw, -1) {
		for _, item := range strings.Split(seg, ",") {
			v := strings.Trim(strings.Join(strings.Fields(item), " "), " -")
			if v == "" {
				continue
			}
			lv := strings.ToLower(v)
			if textPlaceholders[lv] || lv == "none" || lv == "nil" {
				continue
			}
			if !seen[v] {
				out = append(out, v)
				seen[v] = true
			}
		}
	}
	return out
}

var acuteProblemKeys = map[string]bool{"discharge dx": true, "working dx": true, "complication": true, "complications": true}
var chronicProblemKeys = map[string]bool{"pmh/comorbidities": true, "pmh": true, "comorbidities": true, "past medical history": true}

func normalizeProblemValue(value, tsRaw string) (string, bool) {
	vv := strings.ToLower(strings.Join(strings.Fields(value), " "))
	if vv == "" || textPlaceholders[vv] {
		return "", false
	}
	switch vv {
	case "chronic", "acute", "exist", "not exist":
		return vv, true
	case "past", "history", "historical", "pmh", "chronic condition", "chronic disease":
		return "chronic", true
	case "discharge", "discharged", "active", "current":
		return "acute", true
	case "present", "yes", "true", "1", "positive", "confirmed", "exists":
		return "exist", true
	case "no", "none", "false", "0", "absent", "negative", "not present", "ruled out":
		return "not exist", true
	}
	tsCf := strings.ToLower(strings.TrimSpace(tsRaw))
	if (tsCf == "discharge" || tsCf == "dc") && strings.Contains(vv, "discharg") {
		return "acute", true
	}
	if tsCf == "past" && (strings.Contains(vv, "hist") || strings.Contains(vv, "past")) {
		return "chronic", true
	}
	return "", false
}

func normalizeSymptomValue(value string) (string, bool) {
	vv := strings.ToLower(strings.Join(strings.Fields(value), " "))
	if vv == "" || textPlaceholders[vv] {
		return "", false
	}
	switch vv {
	case "yes", "no", "severe":
		return vv, true
	case "present", "positive", "true", "1", "y", "symptomatic":
		return "yes", true
	case "none", "absent", "negative", "false", "0", "n", "denied", "denies":
		return "no", true
	}
	if strings.Contains(vv, "severe") || vv == "marked" || vv == "significant" {
		return "severe", true
	}
	return "", false
}

func normalizeSemanticKeyword(keyword string) string {
	return strings.TrimRight(strings.Join(strings.Fields(keyword), " "), " :;,.")
}

// expandSemanticLine turns one PROBLEMS/SYMPTOMS line into one fact per
// comma/semicolon-separated item when the keyword names a known aggregate
// field (e.g. "PMH/Comorbidities"), or normalizes a single-item line's value
// onto its closed categorical set. MEDICATIONS/PROCEDURES pass through
// unchanged — their post-filters operate on the raw line shape.
func expandSemanticLine(cluster kvt4.Cluster, keyword, value, tsRaw string) []kvt4.Record {
	if cluster != kvt4.Problems && cluster != kvt4.Symptoms {
		return []kvt4.Record{{Cluster: cluster, Keyword: keyword, Value: value, Timestamp: kvt4.NormalizeTimestamp(tsRaw)}}
	}

	kw := normalizeSemanticKeyword(keyword)
	kwCf := strings.ToLower(kw)
	items := splitSemanticItems(value)

	if cluster == kvt4.Problems {
		if acuteProblemKeys[kwCf] && len(items) > 0 {
			return buildFacts(kvt4.Problems, items, "acute", "Discharge")
		}
		if chronicProblemKeys[kwCf] && len(items) > 0 {
			return buildFacts(kvt4.Problems, items, "chronic", "Past")
		}
		normV, ok := normalizeProblemValue(value, tsRaw)
		if !ok {
			return nil
		}
		tsOut := tsRaw
		if strings.EqualFold(strings.TrimSpace(tsOut), "unknown") {
			switch normV {
			case "acute":
				tsOut = "Discharge"
			case "chronic":
				tsOut = "Past"
			default:
				tsOut = "Admission"
			}
		}
		return []kvt4.Record{{Cluster: kvt4.Problems, Keyword: kw, Value: normV, Timestamp: kvt4.NormalizeTimestamp(tsOut)}}
	}

	// SYMPTOMS
	admKeys := map[string]bool{"adm symptoms": true, "admission symptoms": true, "admission sx": true}
	dcKeys := map[string]bool{"dc symptoms": true, "discharge symptoms": true, "discharge sx": true}
	if admKeys[kwCf] && len(items) > 0 {
		return buildFacts(kvt4.Symptoms, items, "yes", "Admission")
	}
	if dcKeys[kwCf] && len(items) > 0 {
		return buildFacts(kvt4.Symptoms, items, "yes", "Discharge")
	}
	normV, ok := normalizeSymptomValue(value)
	if !ok {
		return nil
	}
	return []kvt4.Record{{Cluster: kvt4.Symptoms, Keyword: kw, Value: normV, Timestamp: kvt4.NormalizeTimestamp(tsRaw)}}
}

func buildFacts(cluster kvt4.Cluster, items []string, value, ts string) []kvt4.Record {
	out := make([]kvt4.Record, 0, len(items))
	for _, it := range items {
		out = append(out, kvt4.Record{Cluster: cluster, Keyword: it, Value: value, Timestamp: kvt4.NormalizeTimestamp(ts)})
	}
	return out
}

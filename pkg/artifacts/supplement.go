// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package artifacts

import (
	"strings"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
	"github.com/SZabolotnii/structcore/pkg/stage1"
)

// medicationSupplementKeys are the MEDICATIONS keywords Stage-1 already
// captures as structured keyword/value pairs, safe to carry forward
// verbatim when Stage-2 omitted them.
var medicationSupplementKeys = map[string]bool{
	"Medication Count": true, "New Medications Count": true, "Polypharmacy": true,
	"Anticoagulation": true, "Insulin Therapy": true, "Opioid Therapy": true, "Diuretic Therapy": true,
}

// problemKeyStatus maps a Stage-1 PROBLEMS keyword onto the (status,
// timestamp) pair its items should carry when promoted to facts, matching
// build_stage2_hybrid_facts_from_stage1_md.py's key_map.
var problemKeyStatus = map[string]struct {
	status string
	ts     kvt4.Timestamp
}{
	"Discharge Dx":      {"acute", kvt4.Discharge},
	"Working Dx":        {"exist", kvt4.Discharge},
	"Complications":     {"acute", kvt4.Discharge},
	"PMH/Comorbidities": {"chronic", kvt4.Past},
	"PMH":               {"chronic", kvt4.Past},
}

const maxSupplementItemsPerKey = 12

// SupplementStage2FromStage1 fills gaps in a Stage-2 fact set using
// Stage-1's own structured output, for the cases where Stage-2 omitted a
// high-signal field Stage-1 already captured cleanly: MEDICATIONS
// keyword/value pairs, PROBLEMS aggregate lines (Discharge Dx/Working
// Dx/Complications/PMH), and VITALS/LABS objective values. A Stage-2 fact
// already present for a given (cluster, keyword) is never overwritten —
// this only adds facts Stage-2 is missing, offline, with no further LM call.
func SupplementStage2FromStage1(digest *stage1.Digest, stage2Facts []kvt4.Record) []kvt4.Record {
	present := make(map[string]bool, len(stage2Facts))
	for _, f := range stage2Facts {
		c, k := f.Key()
		present[string(c)+"|"+k] = true
	}

	out := append([]kvt4.Record(nil), stage2Facts...)
	add := func(r kvt4.Record) {
		c, k := r.Key()
		key := string(c) + "|" + k
		if present[key] {
			return
		}
		present[key] = true
		out = append(out, r)
	}

	for keyword := range medicationSupplementKeys {
		if v, ok := lookupSemanticField(digest.Medications, keyword); ok {
			add(kvt4.Record{Cluster: kvt4.Medications, Keyword: keyword, Value: v, Timestamp: kvt4.Admission})
		}
	}

	for keyword, rule := range problemKeyStatus {
		if v, ok := lookupSemanticField(digest.Problems, keyword); ok {
			for _, item := range splitItems(v, maxSupplementItemsPerKey) {
				add(kvt4.Record{Cluster: kvt4.Problems, Keyword: item, Value: rule.status, Timestamp: rule.ts})
			}
		}
	}

	for keyword, value := range digest.Vitals {
		add(kvt4.Record{Cluster: kvt4.Vitals, Keyword: keyword, Value: value, Timestamp: kvt4.Admission})
	}
	for keyword, value := range digest.Labs {
		add(kvt4.Record{Cluster: kvt4.Labs, Keyword: keyword, Value: value, Timestamp: kvt4.Admission})
	}

	return out
}

// lookupSemanticField extracts "Keyword = value" or "Keyword: value" from a
// semantic-cluster free-text blob, the same line shape Stage-1's own
// normalization pass produces for structured sub-fields inside PROBLEMS and
// MEDICATIONS narrative text.
func lookupSemanticField(blob, keyword string) (string, bool) {
	for _, line := range strings.Split(blob, "\n") {
		line = strings.TrimSpace(line)
		sep := "="
		idx := strings.Index(line, sep)
		if idx < 0 {
			sep = ":"
			idx = strings.Index(line, sep)
		}
		if idx < 0 {
			continue
		}
		k := strings.TrimSpace(line[:idx])
		if !strings.EqualFold(k, keyword) {
			continue
		}
		v := strings.TrimSpace(line[idx+1:])
		if v == "" || strings.EqualFold(v, "not stated") {
			return "", false
		}
		return v, true
	}
	return "", false
}

func splitItems(raw string, limit int) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, seg := range strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == '\n' }) {
		for _, item := range strings.Split(seg, ",") {
			v := strings.Join(strings.Fields(item), " ")
			if v == "" {
				continue
			}
			out = append(out, v)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kvt4

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ExtractLines recovers KVT4 records from raw model output of unknown
// shape: plain pipe-delimited lines, an array of {cluster|C,keyword|K,
// value|V,timestamp|T} objects, a grouped {CLUSTER: [...]}  object,
// markdown-fenced JSON, truncated JSON fragments, or narrative
// "**Cluster:** ... **Keyword:** ..." / cluster-heading blocks. Recovery
// rules are applied line-by-line for the plain-text shapes; a 5-field line
// with a leading "CLUSTER|" token is trimmed, and a 3-field line is
// completed when either the cluster or the timestamp can be inferred.
// Deduplication preserves first-seen order.
func ExtractLines(raw string) []Record {
	raw = stripFences(raw)

	var out []Record
	seen := make(map[string]bool)
	add := func(r Record) {
		line := r.Serialize()
		if seen[line] {
			return
		}
		seen[line] = true
		out = append(out, r)
	}

	if recs, ok := tryArrayJSON(raw); ok {
		for _, r := range recs {
			add(r)
		}
	}
	if recs, ok := tryGroupedJSON(raw); ok {
		for _, r := range recs {
			add(r)
		}
	}
	for _, r := range tryTruncatedJSONObjects(raw) {
		add(r)
	}
	for _, r := range tryNarrativeBlocks(raw) {
		add(r)
	}

	currentCluster := Cluster("")
	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if hc, ok := headingCluster(line); ok {
			currentCluster = hc
			continue
		}
		if !looksLikeSane(line) {
			continue
		}
		if r, ok := recoverPlainLine(line, currentCluster); ok {
			add(r)
		}
	}

	return out
}

// looksLikeSane rejects obvious prose: too long, too many words, or no pipe
// at all. This mirrors the sanity checks applied before attempting field
// recovery on a plain-text line.
func looksLikeSane(line string) bool {
	if !strings.Contains(line, "|") {
		return false
	}
	if len(line) > 300 {
		return false
	}
	if len(strings.Fields(line)) > 40 {
		return false
	}
	return true
}

var headingRe = regexp.MustCompile(`^\*{0,2}([A-Za-z ]+)(?::\*{0,2}|\*{0,2}:)\s*$`)

// headingCluster recognizes a "**VITALS:**"-style heading line that sets
// context for subsequent inline JSON items.
func headingCluster(line string) (Cluster, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	c := strings.ToUpper(strings.TrimSpace(m[1]))
	if IsKnownCluster(c) {
		return Cluster(c), true
	}
	return "", false
}

// recoverPlainLine applies the field-count recovery rules to one
// pipe-delimited line, using defaultCluster when a cluster must be
// inferred from heading context.
func recoverPlainLine(line string, defaultCluster Cluster) (Record, bool) {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 4:
		if r, err := ParseLine(line); err == nil {
			return r, true
		}
		return Record{}, false

	case 5:
		// A drifted 5-field line with a leading "CLUSTER|" echo token is
		// trimmed back to 4 fields.
		if strings.EqualFold(parts[0], "CLUSTER") || strings.EqualFold(parts[0], "CLUSTER|") {
			return recoverPlainLine(strings.Join(parts[1:], "|"), defaultCluster)
		}
		if IsKnownCluster(parts[0]) {
			return recoverPlainLine(strings.Join(parts[:4], "|"), defaultCluster)
		}
		return Record{}, false

	case 3:
		// Missing cluster: parts[0] is keyword, parts[1] value, parts[2] timestamp.
		if !IsKnownCluster(parts[0]) && defaultCluster != "" {
			r, err := ParseLine(string(defaultCluster) + "|" + strings.Join(parts, "|"))
			return r, err == nil
		}
		// Missing timestamp: parts[0] cluster, parts[1] keyword, parts[2] value.
		if IsKnownCluster(parts[0]) {
			ts := clusterDefaultTimestamp(Cluster(strings.ToUpper(parts[0])))
			r, err := ParseLine(line + "|" + string(ts))
			return r, err == nil
		}
		return Record{}, false

	default:
		return Record{}, false
	}
}

// clusterDefaultTimestamp is the fallback timestamp assigned to a
// 3-field line whose cluster is known but whose timestamp is missing.
func clusterDefaultTimestamp(c Cluster) Timestamp {
	switch c {
	case Disposition:
		return Discharge
	case Utilization:
		return Past
	default:
		return Admission
	}
}

type jsonFactShape struct {
	Cluster   string `json:"cluster"`
	C         string `json:"C"`
	Keyword   string `json:"keyword"`
	K         string `json:"K"`
	Value     string `json:"value"`
	V         string `json:"V"`
	Timestamp string `json:"timestamp"`
	T         string `json:"T"`
}

func (f jsonFactShape) toRecord() (Record, bool) {
	c := firstNonEmpty(f.Cluster, f.C)
	k := firstNonEmpty(f.Keyword, f.K)
	v := firstNonEmpty(f.Value, f.V)
	t := firstNonEmpty(f.Timestamp, f.T)
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" || k == "" || v == "" || !IsKnownCluster(c) {
		return Record{}, false
	}
	if t == "" {
		t = string(clusterDefaultTimestamp(Cluster(c)))
	}
	return Record{Cluster: Cluster(c), Keyword: k, Value: v, Timestamp: NormalizeTimestamp(t)}, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// tryArrayJSON parses raw as a top-level JSON array of fact objects.
func tryArrayJSON(raw string) ([]Record, bool) {
	var items []jsonFactShape
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &items); err != nil {
		return nil, false
	}
	var out []Record
	for _, it := range items {
		if r, ok := it.toRecord(); ok {
			out = append(out, r)
		}
	}
	return out, len(out) > 0
}

// tryGroupedJSON parses raw as a top-level JSON object keyed by cluster
// name, each value an array of fact objects lacking the cluster field.
func tryGroupedJSON(raw string) ([]Record, bool) {
	var grouped map[string][]jsonFactShape
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &grouped); err != nil {
		return nil, false
	}
	var out []Record
	for cluster, items := range grouped {
		cu := strings.ToUpper(strings.TrimSpace(cluster))
		if !IsKnownCluster(cu) {
			continue
		}
		for _, it := range items {
			it.Cluster = cu
			if r, ok := it.toRecord(); ok {
				out = append(out, r)
			}
		}
	}
	return out, len(out) > 0
}

var jsonObjectRe = regexp.MustCompile(`\{[^{}]*\}`)

// tryTruncatedJSONObjects scans raw for inline single-level JSON objects
// (e.g. embedded under a "**VITALS:**" heading or left over from a
// truncated array), tolerating surrounding narrative text.
func tryTruncatedJSONObjects(raw string) []Record {
	var out []Record
	for _, m := range jsonObjectRe.FindAllString(raw, -1) {
		var it jsonFactShape
		if err := json.Unmarshal([]byte(m), &it); err != nil {
			continue
		}
		if r, ok := it.toRecord(); ok {
			out = append(out, r)
		}
	}
	return out
}

var narrativeRe = regexp.MustCompile(`(?i)\*{0,2}Cluster:?\*{0,2}\s*([A-Za-z ]+).*?\*{0,2}Keyword:?\*{0,2}\s*([^*|\n]+).*?\*{0,2}Value:?\*{0,2}\s*([^*|\n]+).*?\*{0,2}Timestamp:?\*{0,2}\s*([A-Za-z]+)`)

// tryNarrativeBlocks recovers facts written out as prose, e.g.
// "**Cluster:** VITALS **Keyword:** Heart Rate **Value:** 88 **Timestamp:** Admission".
func tryNarrativeBlocks(raw string) []Record {
	var out []Record
	for _, m := range narrativeRe.FindAllStringSubmatch(raw, -1) {
		c := strings.ToUpper(strings.TrimSpace(m[1]))
		if !IsKnownCluster(c) {
			continue
		}
		out = append(out, Record{
			Cluster:   Cluster(c),
			Keyword:   strings.TrimSpace(m[2]),
			Value:     strings.TrimSpace(m[3]),
			Timestamp: NormalizeTimestamp(m[4]),
		})
	}
	return out
}

var fenceRe = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)```")

// stripFences unwraps the first markdown code fence found, if any,
// otherwise returns raw unchanged.
func stripFences(raw string) string {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

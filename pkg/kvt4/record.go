// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kvt4 defines the four-field clinical fact record used throughout
// the extraction pipeline and the deterministic parser that recovers it
// from the many shapes a language model can emit it in.
package kvt4

import (
	"fmt"
	"regexp"
	"strings"
)

// Cluster is one of the nine closed clinical categories.
type Cluster string

const (
	Demographics Cluster = "DEMOGRAPHICS"
	Vitals       Cluster = "VITALS"
	Labs         Cluster = "LABS"
	Problems     Cluster = "PROBLEMS"
	Symptoms     Cluster = "SYMPTOMS"
	Medications  Cluster = "MEDICATIONS"
	Procedures   Cluster = "PROCEDURES"
	Utilization  Cluster = "UTILIZATION"
	Disposition  Cluster = "DISPOSITION"
)

// Clusters is the closed, ordered set of all nine clusters.
var Clusters = []Cluster{
	Demographics, Vitals, Labs, Problems, Symptoms,
	Medications, Procedures, Utilization, Disposition,
}

// NumericClusters values must be numeric-only after sanitation.
var NumericClusters = map[Cluster]bool{
	Vitals:      true,
	Labs:        true,
	Utilization: true,
}

// ObjectiveClusters are deduped to at most one record per (cluster, keyword).
var ObjectiveClusters = map[Cluster]bool{
	Demographics: true,
	Vitals:       true,
	Labs:         true,
	Utilization:  true,
	Disposition:  true,
}

// SemanticClusters may carry multiple records, including across timestamps.
var SemanticClusters = map[Cluster]bool{
	Problems:    true,
	Symptoms:    true,
	Medications: true,
	Procedures:  true,
}

// IsKnownCluster reports whether c is one of the nine closed clusters.
func IsKnownCluster(c string) bool {
	_, ok := ordinal[Cluster(strings.ToUpper(strings.TrimSpace(c)))]
	return ok
}

var ordinal = func() map[Cluster]int {
	m := make(map[Cluster]int, len(Clusters))
	for i, c := range Clusters {
		m[c] = i
	}
	return m
}()

// Timestamp is one of the four closed temporal buckets.
type Timestamp string

const (
	Past       Timestamp = "Past"
	Admission  Timestamp = "Admission"
	Discharge  Timestamp = "Discharge"
	UnknownTS  Timestamp = "Unknown"
	timestampN           = 4
)

// timestampAliases maps accepted aliases (ADM/DC) onto the closed set.
var timestampAliases = map[string]Timestamp{
	"past":      Past,
	"admission": Admission,
	"adm":       Admission,
	"discharge": Discharge,
	"dc":        Discharge,
	"unknown":   UnknownTS,
}

// NormalizeTimestamp maps an alias (case-insensitive) to its canonical form.
// Unrecognized input normalizes to Unknown rather than erroring: a
// malformed timestamp should degrade the fact, not the whole record.
func NormalizeTimestamp(s string) Timestamp {
	key := strings.ToLower(strings.TrimSpace(s))
	if ts, ok := timestampAliases[key]; ok {
		return ts
	}
	return UnknownTS
}

// Record is a single clinical fact in (cluster, keyword, value, timestamp) form.
type Record struct {
	Cluster   Cluster
	Keyword   string
	Value     string
	Timestamp Timestamp
}

// numericPattern is the exact grammar required of numeric-cluster values
// after sanitation (spec testable property 3).
var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// IsNumeric reports whether v is a bare number with no units, matching the
// numeric-cluster value grammar.
func IsNumeric(v string) bool {
	return numericPattern.MatchString(strings.TrimSpace(v))
}

// Serialize renders r as a pipe-delimited four-field KVT4 line.
func (r Record) Serialize() string {
	return fmt.Sprintf("%s|%s|%s|%s", r.Cluster, r.Keyword, r.Value, r.Timestamp)
}

// Key identifies r by (cluster, keyword), the unit of objective dedup.
func (r Record) Key() (Cluster, string) {
	return r.Cluster, NormalizeKeyword(r.Keyword)
}

// SemanticKey identifies r by (cluster, keyword, timestamp), the unit of
// semantic-cluster dedup.
func (r Record) SemanticKey() (Cluster, string, Timestamp) {
	return r.Cluster, NormalizeKeyword(r.Keyword), r.Timestamp
}

// NormalizeKeyword collapses internal whitespace for stable map keys
// without altering display casing.
func NormalizeKeyword(k string) string {
	return strings.Join(strings.Fields(k), " ")
}

// ParseLine parses one already-delimited KVT4 line: exactly three pipe
// separators, all four fields non-empty once trimmed. It performs no
// recovery of drifted shapes — see ExtractLines in parse.go for that.
func ParseLine(line string) (Record, error) {
	parts := strings.Split(line, "|")
	if len(parts) != timestampN {
		return Record{}, fmt.Errorf("kvt4: expected 4 fields, got %d: %q", len(parts), line)
	}
	c := strings.ToUpper(strings.TrimSpace(parts[0]))
	k := strings.TrimSpace(parts[1])
	v := strings.TrimSpace(parts[2])
	t := strings.TrimSpace(parts[3])
	if c == "" || k == "" || v == "" || t == "" {
		return Record{}, fmt.Errorf("kvt4: empty field in line %q", line)
	}
	if !IsKnownCluster(c) {
		return Record{}, fmt.Errorf("kvt4: unknown cluster %q", c)
	}
	return Record{
		Cluster:   Cluster(c),
		Keyword:   k,
		Value:     v,
		Timestamp: NormalizeTimestamp(t),
	}, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package risk

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

// ParseFacts re-validates an already-sanitized KVT4 stream against the
// rule bundle's numeric and plausibility contract before scoring. This is
// a defensive second pass independent of pkg/stage2's sanitizer: a record
// that is syntactically valid KVT4 can still carry a value the scorer
// cannot use (a BP ratio slipping through as "120/80", a value outside a
// keyword's plausible range).
//
// It also expands the two semantic PROBLEMS aggregate keywords
// ("PMH/Comorbidities", "Discharge Dx" and friends) into one fact per item,
// mirroring the Stage-2 sanitizer's own expansion step — belt-and-braces,
// since the risk engine must score correctly even fed facts that bypassed
// that sanitizer (e.g. a hand-authored KVT4 fixture in a test).
func ParseFacts(records []kvt4.Record, bundle *RuleBundle) (map[kvt4.Cluster][]Fact, int, int) {
	facts := make(map[kvt4.Cluster][]Fact)
	seenObjective := make(map[string]bool)
	nParsed, nDropped := 0, 0

	for _, r := range records {
		cluster := r.Cluster
		keyword := strings.TrimSpace(r.Keyword)
		value := strings.TrimSpace(r.Value)
		timestamp := r.Timestamp

		if !kvt4.IsKnownCluster(string(cluster)) {
			nDropped++
			continue
		}

		if cluster == kvt4.Problems {
			kwCF := strings.ToLower(keyword)
			acuteKeys := map[string]bool{"discharge dx": true, "working dx": true, "complication": true, "complications": true}
			chronicKeys := map[string]bool{"pmh/comorbidities": true, "pmh": true, "comorbidities": true, "past medical history": true}
			items := splitSemanticItems(value, 20)
			if acuteKeys[kwCF] && len(items) > 0 {
				for _, it := range items {
					facts[kvt4.Problems] = append(facts[kvt4.Problems], Fact{
						Cluster: kvt4.Problems, Keyword: it, Value: "acute",
						Timestamp: kvt4.Discharge, IsNumeric: false, PlausibleOK: true,
					})
					nParsed++
				}
				continue
			}
			if chronicKeys[kwCF] && len(items) > 0 {
				for _, it := range items {
					facts[kvt4.Problems] = append(facts[kvt4.Problems], Fact{
						Cluster: kvt4.Problems, Keyword: it, Value: "chronic",
						Timestamp: kvt4.Past, IsNumeric: false, PlausibleOK: true,
					})
					nParsed++
				}
				continue
			}
		}

		isNumeric := false
		var parsedValue any = value

		kwRule, hasRule := bundle.Scoring.clusterRules(string(cluster)).Keywords[keyword]

		switch {
		case kvt4.NumericClusters[cluster]:
			v, ok := tryParseFloat(value)
			if !ok {
				nDropped++
				continue
			}
			parsedValue = v
			isNumeric = true
		case hasRule && kwRule.Type == "range":
			v, ok := tryParseFloat(value)
			if !ok {
				nDropped++
				continue
			}
			parsedValue = v
			isNumeric = true
		case hasRule && kwRule.Type == "mixed":
			if v, ok := tryParseFloat(value); ok {
				parsedValue = v
				isNumeric = true
			}
		}

		plausibleOK := true
		if isNumeric {
			plausibleOK = checkPlausibility(kwRule, hasRule, parsedValue.(float64))
		}

		if kvt4.ObjectiveClusters[cluster] {
			key := string(cluster) + "|" + keyword
			if seenObjective[key] {
				nDropped++
				continue
			}
			seenObjective[key] = true
		}

		facts[cluster] = append(facts[cluster], Fact{
			Cluster:     cluster,
			Keyword:     keyword,
			Value:       parsedValue,
			Timestamp:   timestamp,
			IsNumeric:   isNumeric,
			PlausibleOK: plausibleOK,
		})
		nParsed++
	}

	return facts, nParsed, nDropped
}

func checkPlausibility(rule KeywordRule, hasRule bool, value float64) bool {
	if !hasRule || rule.Plausibility == nil {
		return true
	}
	return value >= rule.Plausibility.Min && value <= rule.Plausibility.Max
}

// tryParseFloat is a best-effort numeric parse: a ratio like "120/80"
// never parses (avoids silently accepting a BP pair that escaped
// expansion), but light decoration such as "3 days" still yields 3.
func tryParseFloat(value string) (float64, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, "/") {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	m := firstNumberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var firstNumberRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// splitSemanticItems splits a semicolon/comma/newline-separated list into
// normalized, deduplicated items, preserving first-seen order.
func splitSemanticItems(value string, limit int) []string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return nil
	}
	var parts []string
	for _, seg := range regexp.MustCompile(`[;\n]+`).Split(raw, -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		for _, item := range strings.Split(seg, ",") {
			it := strings.Join(strings.Fields(item), " ")
			it = strings.Trim(it, " -")
			if it == "" {
				continue
			}
			parts = append(parts, it)
			if len(parts) >= limit {
				break
			}
		}
		if len(parts) >= limit {
			break
		}
	}
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, it := range parts {
		k := strings.ToLower(it)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stage1

import (
	"regexp"
	"strings"
)

// unitSuffixRe strips a trailing unit token from an otherwise-numeric
// value the model emitted despite the prompt's "numeric only" instruction
// (e.g. "78 bpm", "98%", "140 mmHg").
var unitSuffixRe = regexp.MustCompile(`(?i)^\s*(-?\d+(?:\.\d+)?)\s*(bpm|mmhg|%|°f|f|kg|lbs?|breaths?/min)?\s*$`)

var numericClusters = map[string]bool{"VITALS": true, "LABS": true, "UTILIZATION": true}

// NormalizeDigest returns a sanitized copy of a raw Stage-1 digest, leaving
// the input unchanged: objective
// numeric values have units stripped and placeholder tokens scrubbed,
// semantic cluster text has "___" EHR redaction placeholders removed, and
// every value is trimmed of surrounding whitespace. This is Stage-1's own
// normalization pass (C4) — a lighter version of Stage-2's eleven-step
// sanitizer (C8), run once directly on the model's raw output before it is
// ever rendered to markdown.
func NormalizeDigest(d *Digest) *Digest {
	out := &Digest{
		Demographics: normalizeObjective(d.Demographics, false),
		Vitals:       normalizeObjective(d.Vitals, true),
		Labs:         normalizeObjective(d.Labs, true),
		Utilization:  normalizeObjective(d.Utilization, true),
		Disposition:  normalizeObjective(d.Disposition, false),
		Problems:     normalizeSemanticText(d.Problems),
		Symptoms:     normalizeSemanticText(d.Symptoms),
		Medications:  normalizeSemanticText(d.Medications),
		Procedures:   normalizeSemanticText(d.Procedures),
	}
	return out
}

func normalizeObjective(values map[string]string, numeric bool) map[string]string {
	if values == nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		v = scrubPlaceholder(v)
		if v == "" {
			continue
		}
		if numeric {
			if m := unitSuffixRe.FindStringSubmatch(v); m != nil {
				v = m[1]
			}
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

func normalizeSemanticText(text string) string {
	return strings.TrimSpace(scrubPlaceholder(text))
}

// scrubPlaceholder removes the MIMIC-style "___" de-identification
// placeholder the model sometimes echoes back verbatim instead of
// omitting the field entirely. A value that is nothing but placeholder
// characters becomes empty, which the caller then drops.
func scrubPlaceholder(value string) string {
	v := strings.ReplaceAll(value, "___", "")
	v = strings.TrimSpace(v)
	if v == "" || v == "-" || v == "N/A" || v == "n/a" {
		return ""
	}
	return v
}

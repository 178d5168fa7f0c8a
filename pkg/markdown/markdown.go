// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package markdown projects a Stage-1 digest into the markdown text that
// Stage-2 re-reads as its source document (C5), and filters/compacts that
// text for the two Stage-2 scope modes.
package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SZabolotnii/structcore/pkg/stage1"
)

var objectiveClusters = []string{"DEMOGRAPHICS", "VITALS", "LABS", "UTILIZATION", "DISPOSITION"}

var semanticSections = []struct {
	heading string
	get     func(*stage1.Digest) string
}{
	{"PROBLEMS", func(d *stage1.Digest) string { return d.Problems }},
	{"SYMPTOMS", func(d *stage1.Digest) string { return d.Symptoms }},
	{"MEDICATIONS", func(d *stage1.Digest) string { return d.Medications }},
	{"PROCEDURES", func(d *stage1.Digest) string { return d.Procedures }},
}

// FromDigest renders a Stage-1 digest as Markdown: one "## CLUSTER"
// section per populated cluster, objective clusters as "- Keyword:
// Value" bullet lists and semantic clusters as a plain paragraph.
func FromDigest(d *stage1.Digest) string {
	var b strings.Builder

	for _, cluster := range objectiveClusters {
		values := d.ObjectiveCluster(cluster)
		if len(values) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", cluster)
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, values[k])
		}
		b.WriteString("\n")
	}

	for _, sec := range semanticSections {
		text := sec.get(d)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", sec.heading, text)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// FilterObjectiveOnly keeps only the objective-cluster sections of a
// rendered digest, for Stage-2's scope=objective mode: a narrower
// projection surface that extracts only the five numeric/categorical
// clusters and skips free-text clinical narrative entirely.
func FilterObjectiveOnly(renderedMarkdown string) string {
	return filterSections(renderedMarkdown, objectiveClusterSet())
}

func objectiveClusterSet() map[string]bool {
	set := make(map[string]bool, len(objectiveClusters))
	for _, c := range objectiveClusters {
		set[c] = true
	}
	return set
}

func filterSections(markdownText string, keep map[string]bool) string {
	lines := strings.Split(markdownText, "\n")
	var b strings.Builder
	including := false
	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			cluster := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			including = keep[cluster]
		}
		if including {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Compact collapses a rendered digest's blank-line spacing and trims
// trailing whitespace per line, reducing Stage-2 prompt size for
// scope=all runs without dropping any cluster or fact.
func Compact(markdownText string) string {
	lines := strings.Split(markdownText, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"
}

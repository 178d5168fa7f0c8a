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
	"strings"
)

// Engine scores parsed facts against one RuleBundle. Construct once per
// process with NewEngine and share the pointer across documents — an
// Engine holds no per-call mutable state.
type Engine struct {
	bundle              *RuleBundle
	problemSynonymIndex map[string]string
	symptomSynonymIndex map[string]string
}

// NewEngine builds an Engine over bundle, pre-building the synonym lookup
// indexes used by problem/symptom group matching.
func NewEngine(bundle *RuleBundle) *Engine {
	return &Engine{
		bundle:              bundle,
		problemSynonymIndex: buildSynonymIndex(bundle.ProblemGroups),
		symptomSynonymIndex: buildSynonymIndex(bundle.SymptomGroups),
	}
}

// buildSynonymIndex maps a lowercase synonym to its owning group id. The
// first group to claim a synonym wins, matching the Python reference's
// insertion-order-preserving dict build.
func buildSynonymIndex(groups []Group) map[string]string {
	idx := make(map[string]string)
	for _, g := range groups {
		for _, syn := range g.Synonyms {
			key := strings.ToLower(strings.TrimSpace(syn))
			if _, exists := idx[key]; !exists {
				idx[key] = g.ID
			}
		}
	}
	return idx
}

var tokenSplitRe = regexp.MustCompile(`[\s,;/\-()]+`)

// matchToGroup implements the three-tier keyword-to-concept-group match:
// exact synonym equality, then the longest word-boundary synonym found
// inside the keyword, then (as a last resort) the longest raw substring
// match of at least 4 characters. Word-boundary matches are always
// preferred over raw substrings to avoid false positives like "tia"
// inside "essential".
func matchToGroup(keyword string, synonymIndex map[string]string, groups []Group) (Group, bool) {
	kwLower := strings.ToLower(strings.TrimSpace(keyword))

	if gid, ok := synonymIndex[kwLower]; ok {
		return groupByID(groups, gid)
	}

	kwWords := make(map[string]bool)
	for _, w := range tokenSplitRe.Split(kwLower, -1) {
		if w != "" {
			kwWords[w] = true
		}
	}

	var bestWBMatch string
	bestWBLen := 0
	var bestSubMatch string
	bestSubLen := 0

	for syn, gid := range synonymIndex {
		if !strings.Contains(kwLower, syn) {
			continue
		}

		isWordMatch := kwWords[syn] ||
			strings.HasPrefix(kwLower, syn+" ") ||
			strings.HasSuffix(kwLower, " "+syn) ||
			strings.Contains(kwLower, " "+syn+" ")

		if isWordMatch && len(syn) > bestWBLen {
			bestWBMatch = gid
			bestWBLen = len(syn)
		} else if !isWordMatch && len(syn) >= 4 && len(syn) > bestSubLen {
			bestSubMatch = gid
			bestSubLen = len(syn)
		}
	}

	chosen := bestWBMatch
	if chosen == "" {
		chosen = bestSubMatch
	}
	if chosen == "" {
		return Group{}, false
	}
	return groupByID(groups, chosen)
}

func groupByID(groups []Group, id string) (Group, bool) {
	for _, g := range groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// MapProblemToGroup maps a PROBLEMS keyword to a SNOMED-style concept
// group, or reports ok=false when no group claims it.
func (e *Engine) MapProblemToGroup(keyword string) (Group, bool) {
	return matchToGroup(keyword, e.problemSynonymIndex, e.bundle.ProblemGroups)
}

// MapSymptomToGroup maps a SYMPTOMS keyword to an urgency group, or
// reports ok=false when no group claims it.
func (e *Engine) MapSymptomToGroup(keyword string) (Group, bool) {
	return matchToGroup(keyword, e.symptomSynonymIndex, e.bundle.SymptomGroups)
}

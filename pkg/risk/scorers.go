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
	"fmt"
	"strings"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

// lookupCategorical matches value against rule.Values case-insensitively,
// since Stage-2 facts are free text and the rule bundle's keys are
// display-cased ("Home with Services") for readability.
func lookupCategorical(values map[string]int, value string) (int, bool) {
	target := strings.ToLower(strings.TrimSpace(value))
	for k, v := range values {
		if strings.ToLower(k) == target {
			return v, true
		}
	}
	return 0, false
}

// scoreGenericCluster applies a ClusterRules keyword table to facts: range
// rules bucket a numeric value, categorical rules look up a string value,
// and mixed rules award a flat bonus for any positive evidence. The result
// is capped at maxScore — individual rule contributions can overshoot it
// (e.g. two elevated labs), matching the Python engine's per-cluster cap.
func scoreGenericCluster(cluster kvt4.Cluster, facts []Fact, rules ClusterRules, maxScore int) ClusterScore {
	score := 0
	var factors []string

	for _, f := range facts {
		if !f.PlausibleOK {
			continue
		}
		rule, ok := rules.Keywords[f.Keyword]
		if !ok {
			continue
		}
		switch rule.Type {
		case "range":
			v, okNum := f.NumericValue()
			if !okNum {
				continue
			}
			for _, rg := range rule.Ranges {
				if v >= rg.Min && v <= rg.Max {
					score += rg.Score
					factors = append(factors, fmt.Sprintf("%s %s (%s)", f.Keyword, formatFloat(v), rg.Label))
					break
				}
			}
		case "categorical":
			sval := f.StringValue()
			if pts, okCat := lookupCategorical(rule.Values, sval); okCat && pts > 0 {
				score += pts
				factors = append(factors, fmt.Sprintf("%s: %s", f.Keyword, sval))
			}
		case "mixed":
			if isPositiveEvidence(f) {
				score += rule.ScoreIfAnyPositive
				factors = append(factors, fmt.Sprintf("%s: positive", f.Keyword))
			}
		}
	}

	if score > maxScore {
		score = maxScore
	}
	return ClusterScore{Cluster: cluster, Score: score, MaxScore: maxScore, ContributingFactors: factors}
}

func isPositiveEvidence(f Fact) bool {
	if v, ok := f.NumericValue(); ok {
		return v > 0
	}
	sval := strings.ToLower(strings.TrimSpace(f.StringValue()))
	return sval != "" && sval != "no" && sval != "none" && sval != "negative" && sval != "not stated"
}

func findFact(facts []Fact, keyword string) (Fact, bool) {
	for _, f := range facts {
		if strings.EqualFold(f.Keyword, keyword) {
			return f, true
		}
	}
	return Fact{}, false
}

// scoreDemographics scores Age (range) and Sex (categorical), applying
// Age's configured missing_score when no Age fact was parsed at all — an
// undocumented discharge age is itself mildly informative of incomplete
// documentation, not neutral.
func scoreDemographics(facts []Fact, rules ClusterRules) ClusterScore {
	cs := scoreGenericCluster(kvt4.Demographics, facts, rules, 10)
	if _, ok := findFact(facts, "Age"); !ok {
		if ageRule, ok := rules.Keywords["Age"]; ok && ageRule.MissingScore != nil {
			cs.Score += *ageRule.MissingScore
			cs.ContributingFactors = append(cs.ContributingFactors, "Age not documented")
		}
	}
	if cs.Score > cs.MaxScore {
		cs.Score = cs.MaxScore
	}
	return cs
}

func scoreVitals(facts []Fact, rules ClusterRules) ClusterScore {
	return scoreGenericCluster(kvt4.Vitals, facts, rules, 25)
}

func scoreLabs(facts []Fact, rules ClusterRules) ClusterScore {
	return scoreGenericCluster(kvt4.Labs, facts, rules, 30)
}

// scoreProblems scores the distinct SNOMED-style concept groups present
// among PROBLEMS facts (each group's risk_weight counts once, however many
// individual keywords map to it) plus a multimorbidity bonus of
// min(n_groups-3, 5) once more than three distinct groups are active.
func scoreProblems(e *Engine, facts []Fact) ClusterScore {
	seen := make(map[string]bool)
	var factors []string
	score := 0

	for _, f := range facts {
		g, ok := e.MapProblemToGroup(f.Keyword)
		if !ok || seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		score += int(g.RiskWeight)
		factors = append(factors, fmt.Sprintf("%s (%s)", g.Name, f.Keyword))
	}

	nGroups := len(seen)
	if nGroups > 3 {
		bonus := nGroups - 3
		if bonus > 5 {
			bonus = 5
		}
		score += bonus
		factors = append(factors, fmt.Sprintf("multimorbidity bonus (%d active problem groups)", nGroups))
	}

	const maxScore = 40
	if score > maxScore {
		score = maxScore
	}
	return ClusterScore{Cluster: kvt4.Problems, Score: score, MaxScore: maxScore, ContributingFactors: factors}
}

// severityMultiplier mirrors the Python engine's free-text severity
// vocabulary: "severe" weighs 1.5x a group's risk_weight, a bare
// affirmative ("yes", "present", or the symptom name with no qualifier)
// weighs it at 1.0x, and an explicit negative contributes nothing.
func severityMultiplier(value string) float64 {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.Contains(v, "severe"):
		return 1.5
	case v == "no" || v == "none" || v == "negative" || v == "denies" || v == "not stated":
		return 0.0
	default:
		return 1.0
	}
}

// scoreSymptoms scores the distinct urgency groups present among active
// (non-negative) SYMPTOMS facts, severity-weighted, plus a flat +2 bonus
// once more than three symptoms are simultaneously active.
func scoreSymptoms(e *Engine, facts []Fact) ClusterScore {
	seen := make(map[string]float64)
	var factors []string
	activeCount := 0

	for _, f := range facts {
		mult := severityMultiplier(f.StringValue())
		if mult == 0 {
			continue
		}
		activeCount++
		g, ok := e.MapSymptomToGroup(f.Keyword)
		if !ok {
			continue
		}
		weighted := g.RiskWeight * mult
		if existing, present := seen[g.ID]; !present || weighted > existing {
			seen[g.ID] = weighted
		}
	}

	score := 0.0
	for id, w := range seen {
		score += w
		_ = id
	}
	for _, f := range facts {
		mult := severityMultiplier(f.StringValue())
		if mult == 0 {
			continue
		}
		if g, ok := e.MapSymptomToGroup(f.Keyword); ok {
			factors = append(factors, fmt.Sprintf("%s: %s", g.Name, f.StringValue()))
		}
	}

	if activeCount > 3 {
		score += 2
		factors = append(factors, fmt.Sprintf("%d concurrent active symptoms", activeCount))
	}

	const maxScore = 15
	total := int(score)
	if total > maxScore {
		total = maxScore
	}
	return ClusterScore{Cluster: kvt4.Symptoms, Score: total, MaxScore: maxScore, ContributingFactors: factors}
}

// scoreMedications layers a derived polypharmacy bonus of +3 on top of the
// keyword table when Medication Count reaches 5, independent of whether a
// "Polypharmacy" fact was itself extracted — the count is the ground
// truth, the flag is a redundant Stage-2 projection of it.
func scoreMedications(facts []Fact, rules ClusterRules) ClusterScore {
	cs := scoreGenericCluster(kvt4.Medications, facts, rules, 15)
	if f, ok := findFact(facts, "Medication Count"); ok {
		if v, okNum := f.NumericValue(); okNum && v >= 5 {
			cs.Score += 3
			cs.ContributingFactors = append(cs.ContributingFactors, "derived polypharmacy (medication count >= 5)")
		}
	}
	if cs.Score > cs.MaxScore {
		cs.Score = cs.MaxScore
	}
	return cs
}

// scoreProcedures prioritizes specific named procedures (Surgery, Dialysis,
// Mechanical Ventilation) over the generic "Any Procedure" fallback: the
// fallback only contributes when no specific procedure scored, so a
// documented dialysis course isn't diluted by a redundant "Any
// Procedure: yes" fact extracted alongside it.
func scoreProcedures(facts []Fact, rules ClusterRules) ClusterScore {
	specificKeywords := map[string]bool{"Surgery": true, "Dialysis": true, "Mechanical Ventilation": true}

	score := 0
	var factors []string
	specificScored := false

	for _, f := range facts {
		if !specificKeywords[f.Keyword] {
			continue
		}
		rule, ok := rules.Keywords[f.Keyword]
		if !ok || !f.PlausibleOK {
			continue
		}
		switch rule.Type {
		case "categorical":
			if pts, okCat := lookupCategorical(rule.Values, f.StringValue()); okCat && pts > 0 {
				score += pts
				factors = append(factors, fmt.Sprintf("%s: %s", f.Keyword, f.StringValue()))
				specificScored = true
			}
		case "mixed":
			if isPositiveEvidence(f) {
				score += rule.ScoreIfAnyPositive
				factors = append(factors, fmt.Sprintf("%s: positive", f.Keyword))
				specificScored = true
			}
		}
	}

	if !specificScored {
		if f, ok := findFact(facts, "Any Procedure"); ok {
			if rule, okRule := rules.Keywords["Any Procedure"]; okRule {
				if pts, okCat := lookupCategorical(rule.Values, f.StringValue()); okCat && pts > 0 {
					score += pts
					factors = append(factors, "Any Procedure: yes")
				}
			}
		}
	}

	const maxScore = 15
	if score > maxScore {
		score = maxScore
	}
	return ClusterScore{Cluster: kvt4.Procedures, Score: score, MaxScore: maxScore, ContributingFactors: factors}
}

func scoreUtilization(facts []Fact, rules ClusterRules) ClusterScore {
	return scoreGenericCluster(kvt4.Utilization, facts, rules, 20)
}

func scoreDisposition(facts []Fact, rules ClusterRules) ClusterScore {
	return scoreGenericCluster(kvt4.Disposition, facts, rules, 15)
}

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
	"strings"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

// factIndex gives the interaction detector cheap, repeated lookups across
// clusters without re-scanning the full fact map per pattern.
type factIndex struct {
	facts map[kvt4.Cluster][]Fact
	e     *Engine
}

func newFactIndex(e *Engine, facts map[kvt4.Cluster][]Fact) *factIndex {
	return &factIndex{facts: facts, e: e}
}

func (idx *factIndex) numeric(cluster kvt4.Cluster, keyword string) (float64, bool) {
	f, ok := findFact(idx.facts[cluster], keyword)
	if !ok {
		return 0, false
	}
	return f.NumericValue()
}

func (idx *factIndex) text(cluster kvt4.Cluster, keyword string) (string, bool) {
	f, ok := findFact(idx.facts[cluster], keyword)
	if !ok {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(f.StringValue())), true
}

// isActiveProblemValue gates a PROBLEMS fact to the values the Python
// reference engine treats as an actually-present problem: "chronic",
// "acute", or "exist". A value outside this set — e.g. "not exist",
// "resolved", "ruled out" — must not count toward group membership.
func isActiveProblemValue(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "chronic", "acute", "exist":
		return true
	default:
		return false
	}
}

func (idx *factIndex) hasProblemGroup(groupID string) bool {
	for _, f := range idx.facts[kvt4.Problems] {
		if !isActiveProblemValue(f.StringValue()) {
			continue
		}
		if g, ok := idx.e.MapProblemToGroup(f.Keyword); ok && g.ID == groupID {
			return true
		}
	}
	return false
}

func (idx *factIndex) problemGroupCount() int {
	seen := make(map[string]bool)
	for _, f := range idx.facts[kvt4.Problems] {
		if !isActiveProblemValue(f.StringValue()) {
			continue
		}
		if g, ok := idx.e.MapProblemToGroup(f.Keyword); ok {
			seen[g.ID] = true
		}
	}
	return len(seen)
}

func (idx *factIndex) hasActiveSymptomGroup(groupID string) bool {
	for _, f := range idx.facts[kvt4.Symptoms] {
		if severityMultiplier(f.StringValue()) == 0 {
			continue
		}
		if g, ok := idx.e.MapSymptomToGroup(f.Keyword); ok && g.ID == groupID {
			return true
		}
	}
	return false
}

// detectInteractions evaluates the eight named cross-cluster patterns.
// Each pattern's gating predicate is a direct port of the corresponding
// check in the Python reference engine; the bonuses stack additively into
// the composite score.
func (e *Engine) detectInteractions(facts map[kvt4.Cluster][]Fact) []InteractionResult {
	idx := newFactIndex(e, facts)
	var out []InteractionResult

	hr, hrOK := idx.numeric(kvt4.Vitals, "Heart Rate")
	sbp, sbpOK := idx.numeric(kvt4.Vitals, "Systolic BP")
	rr, rrOK := idx.numeric(kvt4.Vitals, "Respiratory Rate")
	wbc, wbcOK := idx.numeric(kvt4.Labs, "WBC")
	temp, tempOK := idx.numeric(kvt4.Vitals, "Temperature")

	if hrOK && hr > 100 && ((sbpOK && sbp < 100) || (rrOK && rr > 22)) &&
		((wbcOK && (wbc > 12 || wbc < 4)) || (tempOK && temp > 100.4)) {
		out = append(out, InteractionResult{
			PatternID: "sepsis_pattern", PatternName: "Sepsis Pattern", Bonus: 10,
			Description: "tachycardia with hemodynamic/respiratory compromise and infectious markers",
		})
	}

	cr, crOK := idx.numeric(kvt4.Labs, "Creatinine")
	bun, bunOK := idx.numeric(kvt4.Labs, "BUN")
	k, kOK := idx.numeric(kvt4.Labs, "Potassium")
	na, naOK := idx.numeric(kvt4.Labs, "Sodium")
	bicarb, bicarbOK := idx.numeric(kvt4.Labs, "Bicarbonate")

	if crOK && cr > 1.5 && bunOK && bun > 30 &&
		((kOK && k > 5.0) || (naOK && na < 135) || (bicarbOK && bicarb < 22)) {
		out = append(out, InteractionResult{
			PatternID: "aki_pattern", PatternName: "Acute Kidney Injury Pattern", Bonus: 8,
			Description: "rising creatinine and BUN with electrolyte derangement",
		})
	}

	if idx.hasProblemGroup("heart_failure") &&
		(idx.hasActiveSymptomGroup("edema_fluid") || idx.hasActiveSymptomGroup("respiratory_distress") || (bunOK && bun > 40)) {
		out = append(out, InteractionResult{
			PatternID: "decompensated_hf", PatternName: "Decompensated Heart Failure", Bonus: 8,
			Description: "known heart failure with fluid overload or worsening renal congestion",
		})
	}

	age, ageOK := idx.numeric(kvt4.Demographics, "Age")
	hgb, hgbOK := idx.numeric(kvt4.Labs, "Hemoglobin")
	mental, _ := idx.text(kvt4.Disposition, "Mental Status")
	disp, _ := idx.text(kvt4.Disposition, "Discharge Disposition")

	if ageOK && age > 75 {
		frailtyCount := 0
		if idx.problemGroupCount() >= 3 {
			frailtyCount++
		}
		if hgbOK && hgb < 10 {
			frailtyCount++
		}
		if mental == "confused" || mental == "lethargic" {
			frailtyCount++
		}
		if disp == "snf" || disp == "ltac" || disp == "rehab" {
			frailtyCount++
		}
		if frailtyCount >= 2 {
			out = append(out, InteractionResult{
				PatternID: "frailty_syndrome", PatternName: "Frailty Syndrome", Bonus: 6,
				Description: "advanced age with multiple concurrent frailty markers",
			})
		}
	}

	if disp == "ama" || ((mental == "confused" || mental == "lethargic") && (disp == "home" || disp == "none" || disp == "")) {
		out = append(out, InteractionResult{
			PatternID: "unstable_discharge", PatternName: "Unstable Discharge", Bonus: 5,
			Description: "discharge against medical advice, or altered mentation discharged home unsupervised",
		})
	}

	spo2, spo2OK := idx.numeric(kvt4.Vitals, "SpO2")
	if spo2OK && spo2 < 92 && ((rrOK && rr > 24) || idx.hasActiveSymptomGroup("respiratory_distress")) {
		out = append(out, InteractionResult{
			PatternID: "respiratory_failure", PatternName: "Respiratory Failure", Bonus: 6,
			Description: "hypoxia with tachypnea or active respiratory distress",
		})
	}

	glucose, glucoseOK := idx.numeric(kvt4.Labs, "Glucose")
	if glucoseOK && glucose > 300 && ((bicarbOK && bicarb < 18) || (kOK && k > 5.5)) {
		out = append(out, InteractionResult{
			PatternID: "metabolic_crisis", PatternName: "Metabolic Crisis", Bonus: 6,
			Description: "severe hyperglycemia with acidosis or hyperkalemia",
		})
	}

	plt, pltOK := idx.numeric(kvt4.Labs, "Platelet")
	anticoag, _ := idx.text(kvt4.Medications, "Anticoagulation")
	if hgbOK && hgb < 8 && ((pltOK && plt < 100) || anticoag == "yes") {
		out = append(out, InteractionResult{
			PatternID: "bleeding_risk", PatternName: "Bleeding Risk", Bonus: 6,
			Description: "severe anemia with thrombocytopenia or anticoagulation",
		})
	}

	return out
}

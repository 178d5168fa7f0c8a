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
	"math"
	"sort"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

// survivalHorizons are the four fixed evaluation points of the readmission
// survival curve, in days post-discharge.
var survivalHorizons = []int{7, 14, 21, 30}

// Score runs the full deterministic scoring pipeline over an already
// KVT4-parsed, rule-validated fact set: per-cluster rule scores,
// cross-cluster interaction bonuses, logistic-calibrated probability,
// days-to-readmission estimate with survival curve, and the
// explainability payload (risk/protective factors, completeness,
// confidence).
func (e *Engine) Score(facts map[kvt4.Cluster][]Fact, nParsed, nDropped int) Result {
	scoring := &e.bundle.Scoring

	clusterScores := map[kvt4.Cluster]ClusterScore{
		kvt4.Demographics: scoreDemographics(facts[kvt4.Demographics], scoring.Demographics),
		kvt4.Vitals:        scoreVitals(facts[kvt4.Vitals], scoring.Vitals),
		kvt4.Labs:          scoreLabs(facts[kvt4.Labs], scoring.Labs),
		kvt4.Problems:      scoreProblems(e, facts[kvt4.Problems]),
		kvt4.Symptoms:      scoreSymptoms(e, facts[kvt4.Symptoms]),
		kvt4.Medications:   scoreMedications(facts[kvt4.Medications], scoring.Medications),
		kvt4.Procedures:    scoreProcedures(facts[kvt4.Procedures], scoring.Procedures),
		kvt4.Utilization:   scoreUtilization(facts[kvt4.Utilization], scoring.Utilization),
		kvt4.Disposition:   scoreDisposition(facts[kvt4.Disposition], scoring.Disposition),
	}

	baseScore := 0
	for _, cs := range clusterScores {
		baseScore += cs.Score
	}

	interactions := e.detectInteractions(facts)
	interactionBonus := 0
	for _, in := range interactions {
		interactionBonus += in.Bonus
	}

	composite := baseScore + interactionBonus

	prob := logistic(scoring.Meta.Calibration.Alpha, scoring.Meta.Calibration.Beta, float64(composite))
	category, color := classifyRisk(scoring.Meta.RiskCategories, composite)

	days := predictDays(scoring.DaysPrediction.Models.Regression.Parameters.DMax,
		scoring.DaysPrediction.Models.Regression.Parameters.Gamma, float64(composite))
	bucket := predictDaysBucket(days)
	curve := predictSurvival(scoring.DaysPrediction.Models.Survival.Parameters.KBase, float64(composite), prob)

	riskFactors, protectiveFactors := explainFactors(clusterScores, facts)
	missing := missingClusters(facts)
	completeness := 1.0 - float64(len(missing))/float64(len(kvt4.Clusters))
	confidence := classifyConfidence(completeness)

	return Result{
		CompositeScore:        composite,
		ClusterScores:         clusterScores,
		InteractionBonus:      interactionBonus,
		InteractionsTriggered: interactions,
		Probability:           prob,
		RiskCategory:          category,
		RiskColor:             color,
		EstimatedDays:         days,
		DaysBucket:            bucket,
		SurvivalCurve:         curve,
		RiskFactors:           riskFactors,
		ProtectiveFactors:     protectiveFactors,
		MissingClusters:       missing,
		DataCompleteness:      completeness,
		Confidence:            confidence,
		NFactsParsed:          nParsed,
		NFactsDropped:         nDropped,
	}
}

func logistic(alpha, beta, score float64) float64 {
	return 1.0 / (1.0 + math.Exp(-(alpha + beta*score)))
}

func classifyRisk(categories []RiskCategory, score int) (string, string) {
	for _, c := range categories {
		if score >= c.ScoreMin && score <= c.ScoreMax {
			return c.Name, c.Color
		}
	}
	if len(categories) > 0 {
		last := categories[len(categories)-1]
		return last.Name, last.Color
	}
	return "Unknown", "gray"
}

// predictDays maps composite score to an estimated days-to-readmission via
// exponential decay from dMax, floored at one day: a maximally-scored
// patient is still predicted to survive at least a day before readmission
// risk materializes, never zero.
func predictDays(dMax, gamma, score float64) float64 {
	d := dMax * math.Exp(-gamma*score)
	if d < 1 {
		return 1
	}
	return d
}

func predictDaysBucket(days float64) string {
	switch {
	case days <= 7:
		return "0-7 days"
	case days <= 14:
		return "8-14 days"
	case days <= 21:
		return "15-21 days"
	default:
		return "22-30 days"
	}
}

// predictSurvival derives a discrete-time hazard curve calibrated so the
// cumulative probability at day 30 matches the logistic-calibrated p30:
// k widens as the composite score climbs past the neutral midpoint (30),
// front-loading risk earlier in the 30-day window for higher-risk patients.
func predictSurvival(kBase, score, p30 float64) SurvivalCurve {
	k := kBase + 0.02*(score-30)
	// k is floored at 0.5; the floor has no stated empirical justification.
	if k < 0.5 {
		k = 0.5
	}
	denom := 1 - math.Exp(-k)
	horizons := make(map[int]float64, len(survivalHorizons))
	for _, t := range survivalHorizons {
		if math.Abs(denom) < 1e-9 {
			horizons[t] = p30 * float64(t) / 30.0
			continue
		}
		frac := (1 - math.Exp(-(float64(t)/30.0)*k)) / denom
		horizons[t] = p30 * frac
	}
	return SurvivalCurve{Horizons: horizons}
}

// explainFactors collects human-readable risk and protective factors from
// the scored clusters. A protective note is only emitted for a cluster
// whose rules are entirely risk-additive (VITALS, LABS, DISPOSITION):
// a zero score there means every observed value was within normal range,
// worth surfacing as reassuring rather than merely absent.
func explainFactors(clusterScores map[kvt4.Cluster]ClusterScore, facts map[kvt4.Cluster][]Fact) (risk, protective []string) {
	order := append([]kvt4.Cluster{}, kvt4.Clusters...)
	sort.SliceStable(order, func(i, j int) bool {
		return clusterScores[order[i]].Score > clusterScores[order[j]].Score
	})

	protectiveEligible := map[kvt4.Cluster]string{
		kvt4.Vitals:      "Normal vital signs at discharge",
		kvt4.Labs:        "Normal labs at discharge",
		kvt4.Disposition: "Stable disposition (Home, alert)",
	}

	for _, cluster := range order {
		cs := clusterScores[cluster]
		if cs.Score > 0 {
			risk = append(risk, cs.ContributingFactors...)
			continue
		}
		if msg, ok := protectiveEligible[cluster]; ok && len(facts[cluster]) > 0 {
			protective = append(protective, msg)
		}
	}
	return risk, protective
}

func missingClusters(facts map[kvt4.Cluster][]Fact) []string {
	var missing []string
	for _, c := range kvt4.Clusters {
		if len(facts[c]) == 0 {
			missing = append(missing, string(c))
		}
	}
	return missing
}

func classifyConfidence(completeness float64) string {
	switch {
	case completeness >= 0.7:
		return "high"
	case completeness >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// FormatResult renders a Result as a human-readable summary, mirroring the
// Python reference CLI's pretty-printer. No structcore subcommand prints it;
// the stage2 command emits a JSON summary instead.
func FormatResult(r Result) string {
	s := fmt.Sprintf("Composite score: %d (%s)\n", r.CompositeScore, r.RiskCategory)
	s += fmt.Sprintf("30-day readmission probability: %.1f%%\n", r.Probability*100)
	s += fmt.Sprintf("Estimated days to readmission: %.1f (%s)\n", r.EstimatedDays, r.DaysBucket)
	s += fmt.Sprintf("Data completeness: %.0f%% (%s confidence)\n", r.DataCompleteness*100, r.Confidence)
	if len(r.InteractionsTriggered) > 0 {
		s += "Interactions:\n"
		for _, in := range r.InteractionsTriggered {
			s += fmt.Sprintf("  - %s (+%d): %s\n", in.PatternName, in.Bonus, in.Description)
		}
	}
	if len(r.RiskFactors) > 0 {
		s += "Risk factors:\n"
		for _, f := range r.RiskFactors {
			s += "  - " + f + "\n"
		}
	}
	if len(r.ProtectiveFactors) > 0 {
		s += "Protective factors:\n"
		for _, f := range r.ProtectiveFactors {
			s += "  - " + f + "\n"
		}
	}
	return s
}

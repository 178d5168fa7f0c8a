// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package risk scores a normalized KVT4 fact stream into a composite
// 30-day readmission risk: per-cluster rule scores, cross-cluster
// interaction bonuses, a logistic-calibrated probability, a days-to-
// readmission estimate with survival curve, and an explainability payload.
//
// The engine is a fully deterministic function of its rule bundle and the
// input facts — no network calls, no global state. Rule bundles are loaded
// once per process by LoadRuleBundle and held by an explicit *Engine value,
// never a package singleton, so a caller can hold several engines (e.g.
// one per rule-bundle version under test) concurrently.
package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RangeRule scores a numeric value that falls within [Min, Max].
type RangeRule struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Score int     `json:"score"`
	Label string  `json:"label"`
}

// Plausibility bounds a numeric value must satisfy to be scored at all.
type Plausibility struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// KeywordRule is the per-keyword scoring rule within a cluster: a "range"
// type scores via Ranges, a "categorical" type scores via Values, and a
// "mixed" type (Mechanical Ventilation) scores a flat ScoreIfAnyPositive
// when any positive evidence (numeric>0 or non-"no" string) is present.
type KeywordRule struct {
	Type               string         `json:"type"`
	MissingScore       *int           `json:"missing_score,omitempty"`
	Plausibility       *Plausibility  `json:"plausibility,omitempty"`
	Ranges             []RangeRule    `json:"ranges,omitempty"`
	Values             map[string]int `json:"values,omitempty"`
	ScoreIfAnyPositive int            `json:"score_if_any_positive,omitempty"`
}

// ClusterRules is the keyword-rule table for one cluster.
type ClusterRules struct {
	Keywords map[string]KeywordRule `json:"keywords"`
}

// RiskCategory is one named band of the composite-score -> category mapping.
type RiskCategory struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	ScoreMin int    `json:"score_min"`
	ScoreMax int    `json:"score_max"`
}

// ScoringRules is the Go shape of scoring_rules.json.
type ScoringRules struct {
	Meta struct {
		Version     string `json:"version"`
		Calibration struct {
			Alpha float64 `json:"alpha"`
			Beta  float64 `json:"beta"`
		} `json:"calibration"`
		RiskCategories []RiskCategory `json:"risk_categories"`
	} `json:"_meta"`
	DaysPrediction struct {
		Models struct {
			Regression struct {
				Parameters struct {
					DMax  float64 `json:"D_max"`
					Gamma float64 `json:"gamma"`
				} `json:"parameters"`
			} `json:"regression"`
			Survival struct {
				Parameters struct {
					KBase float64 `json:"k_base"`
				} `json:"parameters"`
			} `json:"survival"`
		} `json:"models"`
	} `json:"DAYS_PREDICTION"`
	Demographics ClusterRules `json:"DEMOGRAPHICS"`
	Vitals       ClusterRules `json:"VITALS"`
	Labs         ClusterRules `json:"LABS"`
	Medications  ClusterRules `json:"MEDICATIONS"`
	Procedures   ClusterRules `json:"PROCEDURES"`
	Utilization  ClusterRules `json:"UTILIZATION"`
	Disposition  ClusterRules `json:"DISPOSITION"`
}

func (s *ScoringRules) clusterRules(cluster string) ClusterRules {
	switch cluster {
	case "DEMOGRAPHICS":
		return s.Demographics
	case "VITALS":
		return s.Vitals
	case "LABS":
		return s.Labs
	case "MEDICATIONS":
		return s.Medications
	case "PROCEDURES":
		return s.Procedures
	case "UTILIZATION":
		return s.Utilization
	case "DISPOSITION":
		return s.Disposition
	default:
		return ClusterRules{}
	}
}

// Group is a SNOMED-style problem concept group or a symptom urgency group:
// both rule bundles share this shape (id, display name, additive risk
// weight, and a synonym list used to match free-text keywords to the
// group).
type Group struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	RiskWeight float64  `json:"risk_weight"`
	Synonyms   []string `json:"synonyms"`
}

type groupFile struct {
	Groups []Group `json:"groups"`
}

// RuleBundle is every external configuration input to the risk engine:
// scoring_rules.json, snomed_problem_groups.json, and
// symptom_urgency_groups.json, loaded together so the three files are
// always versioned as a unit.
type RuleBundle struct {
	Scoring       ScoringRules
	ProblemGroups []Group
	SymptomGroups []Group
}

// LoadRuleBundle reads scoring_rules.json, snomed_problem_groups.json, and
// symptom_urgency_groups.json from dir.
func LoadRuleBundle(dir string) (*RuleBundle, error) {
	var bundle RuleBundle

	if err := readJSON(filepath.Join(dir, "scoring_rules.json"), &bundle.Scoring); err != nil {
		return nil, fmt.Errorf("risk: loading scoring_rules.json: %w", err)
	}

	var problems groupFile
	if err := readJSON(filepath.Join(dir, "snomed_problem_groups.json"), &problems); err != nil {
		return nil, fmt.Errorf("risk: loading snomed_problem_groups.json: %w", err)
	}
	bundle.ProblemGroups = problems.Groups

	var symptoms groupFile
	if err := readJSON(filepath.Join(dir, "symptom_urgency_groups.json"), &symptoms); err != nil {
		return nil, fmt.Errorf("risk: loading symptom_urgency_groups.json: %w", err)
	}
	bundle.SymptomGroups = symptoms.Groups

	return &bundle, nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

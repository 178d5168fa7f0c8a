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

import "github.com/SZabolotnii/structcore/pkg/kvt4"

// Fact is one scorer-ready clinical fact: the result of re-parsing a
// kvt4.Record's value against the rule bundle's numeric/plausibility
// contract. Value holds either a float64 (when IsNumeric) or the original
// trimmed string.
type Fact struct {
	Cluster       kvt4.Cluster
	Keyword       string
	Value         any
	Timestamp     kvt4.Timestamp
	IsNumeric     bool
	PlausibleOK   bool
}

// NumericValue returns Value as a float64, or (0, false) when the fact is
// not numeric.
func (f Fact) NumericValue() (float64, bool) {
	v, ok := f.Value.(float64)
	return v, ok
}

// StringValue returns Value rendered as a string, regardless of whether the
// underlying value is numeric or textual. Text is returned as stored, without
// case folding; callers that compare values lowercase them themselves.
func (f Fact) StringValue() string {
	switch v := f.Value.(type) {
	case float64:
		return formatFloat(v)
	case string:
		return v
	default:
		return ""
	}
}

// ClusterScore is the scored output of one cluster: an integer score
// capped at MaxScore, plus the human-readable factors that contributed to
// it, in the order they were found.
type ClusterScore struct {
	Cluster             kvt4.Cluster
	Score               int
	MaxScore            int
	ContributingFactors []string
}

// InteractionResult is one triggered cross-cluster pattern.
type InteractionResult struct {
	PatternID   string
	PatternName string
	Bonus       int
	Description string
}

// SurvivalCurve is P(readmit by day t) at the four fixed evaluation
// horizons.
type SurvivalCurve struct {
	Horizons map[int]float64 // keys: 7, 14, 21, 30
}

// Result is the complete scoring output for one document.
type Result struct {
	CompositeScore       int
	ClusterScores        map[kvt4.Cluster]ClusterScore
	InteractionBonus     int
	InteractionsTriggered []InteractionResult

	Probability float64
	RiskCategory string
	RiskColor    string

	EstimatedDays float64
	DaysBucket    string
	SurvivalCurve SurvivalCurve

	RiskFactors       []string
	ProtectiveFactors []string
	MissingClusters   []string
	DataCompleteness  float64
	Confidence        string

	NFactsParsed  int
	NFactsDropped int
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stage2 projects a Stage-1 digest's markdown into KVT4 facts (C7)
// and sanitizes the model's raw fact lines into the hygienic set the risk
// engine consumes (C8).
package stage2

// Policy is the sanitizer's feature-flag bundle. The Python reference reads
// these from MEDGEMMA_STAGE2_* environment variables, each with a different
// default for the "validated" and "experimental" profiles
// (_env_truthy_stage2); here they are two named constructors instead of
// environment state, per the no-ambient-globals Open Question decision.
type Policy struct {
	// Recover3PartLines completes a fact line missing one field (cluster or
	// timestamp) using a fixed keyword->cluster lookup, instead of dropping it.
	Recover3PartLines bool
	// ReclassifyNonNumericClusters moves a semantic-cluster line bearing a
	// canonical objective keyword (e.g. "Mental Status" under PROBLEMS) to
	// its correct objective cluster, unless that cluster is numeric — the
	// model's numeric mix-ups are not reclassified, only its label mix-ups.
	ReclassifyNonNumericClusters bool
	// ExpandSemanticLines splits a PROBLEMS/SYMPTOMS aggregate line (e.g.
	// "PMH/Comorbidities" with a comma-separated value) into one fact per item.
	ExpandSemanticLines bool
	// ObjectiveTimestampCanonicalAll forces canonical objective timestamps
	// (Admission/Discharge/Past by cluster) even in scope=all mode, instead
	// of keeping whatever timestamp the model produced.
	ObjectiveTimestampCanonicalAll bool
}

// ValidatedPolicy is the conservative, production-default sanitizer policy:
// every recovery/expansion heuristic off, keeping only facts the model
// emitted in the exact four-field shape the prompt specifies.
func ValidatedPolicy() Policy {
	return Policy{}
}

// ExperimentalPolicy turns on every recovery heuristic, trading precision
// for a higher fact-yield on off-format model output — intended for
// evaluation runs comparing yield against the validated baseline, not for
// production scoring.
func ExperimentalPolicy() Policy {
	return Policy{
		Recover3PartLines:              true,
		ReclassifyNonNumericClusters:   true,
		ExpandSemanticLines:            true,
		ObjectiveTimestampCanonicalAll: true,
	}
}

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
	"fmt"
	"sort"
)

// canonicalObjectiveTimestamp assigns the timestamp Stage-1's own objective
// clusters are always recorded under: Discharge Disposition/Mental Status
// reflect the discharge state, Utilization counters describe the
// pre-admission history window, and everything else (vitals, labs,
// demographics) is read at admission.
func canonicalObjectiveTimestamp(cluster string) string {
	switch cluster {
	case "DISPOSITION":
		return "Discharge"
	case "UTILIZATION":
		return "Past"
	default:
		return "Admission"
	}
}

// FactsLines renders a Stage-1 digest's objective clusters as KVT4 lines
// (CLUSTER|Keyword|Value|Timestamp), the stage1_facts.txt artifact — a
// deterministic fallback fact set Stage-2 can be supplemented from without
// another LM call, ported from _stage1_objective_to_kvt4_lines.
func (d *Digest) FactsLines() []string {
	var out []string
	for _, cluster := range objectiveClusterOrder {
		values := d.ObjectiveCluster(cluster)
		if len(values) == 0 {
			continue
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ts := canonicalObjectiveTimestamp(cluster)
		for _, k := range keys {
			out = append(out, fmt.Sprintf("%s|%s|%s|%s", cluster, k, values[k], ts))
		}
	}
	return out
}

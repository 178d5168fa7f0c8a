// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SZabolotnii/structcore/pkg/stage1"
)

func sampleDigest() *stage1.Digest {
	return &stage1.Digest{
		Demographics: map[string]string{"Age": "72", "Sex": "male"},
		Vitals:       map[string]string{"Heart Rate": "110"},
		Problems:     "Acute on chronic heart failure exacerbation",
		Symptoms:     "Dyspnea, orthopnea",
	}
}

func TestFromDigestRendersObjectiveAndSemanticSections(t *testing.T) {
	out := FromDigest(sampleDigest())
	assert.Contains(t, out, "## DEMOGRAPHICS")
	assert.Contains(t, out, "- Age: 72")
	assert.Contains(t, out, "## VITALS")
	assert.Contains(t, out, "## PROBLEMS")
	assert.Contains(t, out, "Acute on chronic heart failure exacerbation")
	assert.NotContains(t, out, "## LABS", "empty clusters must not emit a heading")
}

func TestFromDigestOmitsEmptyDigestEntirely(t *testing.T) {
	out := FromDigest(&stage1.Digest{})
	assert.Equal(t, "\n", out)
}

func TestFilterObjectiveOnlyDropsSemanticSections(t *testing.T) {
	rendered := FromDigest(sampleDigest())
	filtered := FilterObjectiveOnly(rendered)
	assert.Contains(t, filtered, "## DEMOGRAPHICS")
	assert.Contains(t, filtered, "## VITALS")
	assert.NotContains(t, filtered, "## PROBLEMS")
	assert.NotContains(t, filtered, "## SYMPTOMS")
}

func TestCompactCollapsesRepeatedBlankLines(t *testing.T) {
	raw := "## DEMOGRAPHICS\n- Age: 72  \n\n\n\n## VITALS\n- Heart Rate: 110\n"
	out := Compact(raw)
	assert.False(t, strings.Contains(out, "\n\n\n"))
	assert.Contains(t, out, "- Age: 72")
	assert.NotContains(t, out, "72  \n", "trailing whitespace per line should be trimmed")
}

func TestCompactPreservesAllFacts(t *testing.T) {
	rendered := FromDigest(sampleDigest())
	compacted := Compact(rendered)
	for _, want := range []string{"Age: 72", "Sex: male", "Heart Rate: 110", "Dyspnea, orthopnea"} {
		assert.Contains(t, compacted, want)
	}
}

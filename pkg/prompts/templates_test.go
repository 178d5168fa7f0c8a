// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintPrefixStableAcrossCalls(t *testing.T) {
	a := FingerprintPrefix(Stage1Digest)
	b := FingerprintPrefix(Stage1Digest)
	assert.Equal(t, a, b)
}

func TestFingerprintPrefixDiffersPerTemplate(t *testing.T) {
	assert.NotEqual(t, FingerprintPrefix(Stage1Digest), FingerprintPrefix(Stage2KVT4Lines))
}

func TestFingerprintPrefixExcludesEHRText(t *testing.T) {
	// FingerprintPrefix must be computed on the template, before
	// substitution — the whole point is that it stays identical
	// regardless of which document is about to be rendered into it.
	a := FingerprintPrefix(Stage1Digest)
	b := FingerprintPrefix(Stage1Digest + "document-specific EHR text after the placeholder")
	assert.Equal(t, a, b, "the fingerprint must be stable across documents for cache reuse")
}

func TestRenderSubstitutesPlaceholder(t *testing.T) {
	out := Render(Stage2KVT4Lines, "EHR TEXT GOES HERE")
	assert.Contains(t, out, "EHR TEXT GOES HERE")
	assert.NotContains(t, out, EHRPlaceholder)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "structcore.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "medgemma-27b-it", cfg.Backend.Model)
	assert.FileExists(t, path)
}

func TestLoadTwoIndependentConfigs(t *testing.T) {
	pathA := filepath.Join(t.TempDir(), "a.yaml")
	pathB := filepath.Join(t.TempDir(), "b.yaml")

	cfgA, err := Load(pathA)
	require.NoError(t, err)
	cfgA.Backend.Model = "mutated"

	cfgB, err := Load(pathB)
	require.NoError(t, err)

	assert.NotEqual(t, cfgA.Backend.Model, cfgB.Backend.Model)
}

func TestValidateRejectsMissingBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.BaseURL = ""
	assert.Error(t, Validate(&cfg))
}

func TestValidateRejectsUnknownProfile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stage2.Profile = "bogus"
	assert.Error(t, Validate(&cfg))
}

func TestBackendConfigDefaults(t *testing.T) {
	var c BackendConfig
	assert.Equal(t, DefaultTimeoutSeconds, c.GetTimeoutSeconds())
	assert.Equal(t, DefaultRateLimitRPS, c.GetRateLimitRPS())
}

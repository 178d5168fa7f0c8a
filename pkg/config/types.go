// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package config provides configuration types and loading for the structcore
pipeline.

# Overview

This package defines the configuration schema for structcore, including:
  - LM backend connection settings (base URL, model, timeout, pacing)
  - Stage-1/Stage-2 behavior toggles (the sanitizer policy profile)
  - Artifact store layout (cohort root, output root, rule-bundle config dir)
  - Observability toggles (tracing, metrics)

# Configuration File

The configuration is loaded from a caller-supplied path (typically
./structcore.yaml) via Load, or built fresh in memory via DefaultConfig.
Unlike the teacher CLI this package was adapted from, there is no
process-wide singleton: every caller holds its own *Config value, so a test
can load two independent configurations in the same process.

# Example

	cfg, err := config.Load("structcore.yaml")
	cfg.Backend.Model = "medgemma-27b-it"
*/
package config

import "time"

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	// DefaultTimeoutSeconds is the HTTP request timeout for the LM backend.
	DefaultTimeoutSeconds = 180

	// DefaultRateLimitRPS caps outbound requests per second to the backend.
	// Unlike the timeout, it has no environment-variable override.
	DefaultRateLimitRPS = 2.0

	// DefaultConfigDir is where the rule-bundle JSON files
	// (scoring_rules.json, snomed_problem_groups.json,
	// symptom_urgency_groups.json) are read from.
	DefaultConfigDir = "configs"

	// CurrentConfigVersion is the configuration schema version.
	CurrentConfigVersion = "1.0.0"
)

// Stage2Profile names which sanitizer/extraction behavior bundle is active.
type Stage2Profile string

const (
	// ProfileValidated is the default, clinically-reviewed behavior bundle.
	ProfileValidated Stage2Profile = "validated"

	// ProfileExperimental opts into behavior flags not yet promoted to
	// ProfileValidated (spec.md §9 Open Question 1).
	ProfileExperimental Stage2Profile = "experimental"
)

// IsValid reports whether p is a known profile name.
func (p Stage2Profile) IsValid() bool {
	switch p {
	case ProfileValidated, ProfileExperimental:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Root Configuration
// -----------------------------------------------------------------------------

// Config is the root configuration structure for the structcore pipeline.
//
// # Description
//
// Contains every configuration section needed to run Stage-1 extraction,
// Stage-2 projection, and risk scoring: the LM backend connection, the
// sanitizer behavior profile, the artifact store layout, and observability
// toggles.
type Config struct {
	// Meta contains versioning and audit information.
	Meta ConfigMeta `yaml:"meta"`

	// Backend configures the OpenAI-compatible LM backend connection.
	Backend BackendConfig `yaml:"backend"`

	// Stage2 configures the Stage-2 extraction/sanitization behavior.
	Stage2 Stage2Config `yaml:"stage2"`

	// Artifacts configures the filesystem layout for cohort input and run
	// output.
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// Observability toggles tracing and metrics.
	Observability ObservabilityConfig `yaml:"observability"`

	// Concurrency configures the bounded-parallelism orchestrator.
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
}

// -----------------------------------------------------------------------------
// LM Backend Configuration
// -----------------------------------------------------------------------------

// BackendConfig configures the OpenAI-compatible LM backend used by both
// Stage-1 and Stage-2.
//
// # Fields
//
//   - BaseURL: backend root, "/v1" root, or a full chat-completions endpoint
//   - Model: model id sent in every request
//   - TimeoutSeconds: HTTP client timeout
//   - RateLimitRPS: outbound request rate cap (0 disables limiting)
//   - RawCompletion: use the bare /completion endpoint instead of chat
type BackendConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`
	RawCompletion  bool    `yaml:"raw_completion,omitempty"`
}

// GetTimeoutSeconds returns the configured timeout or the default.
func (c *BackendConfig) GetTimeoutSeconds() int {
	if c == nil || c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds
	}
	return c.TimeoutSeconds
}

// GetRateLimitRPS returns the configured rate limit or the default.
func (c *BackendConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimitRPS <= 0 {
		return DefaultRateLimitRPS
	}
	return c.RateLimitRPS
}

// -----------------------------------------------------------------------------
// Stage-2 Behavior Configuration
// -----------------------------------------------------------------------------

// Stage2Config selects the sanitizer/extraction behavior bundle and lets a
// caller override individual flags within it for experimentation, mirroring
// the MEDGEMMA_STAGE2_* env-var overrides in the Python original.
type Stage2Config struct {
	// Profile selects the named behavior bundle ("validated" or
	// "experimental"). Default: "validated".
	Profile Stage2Profile `yaml:"profile,omitempty"`

	// RepetitionPenalty overrides the generation repetition penalty.
	// Default: 1.10 for scope=all prompts.
	RepetitionPenalty float64 `yaml:"repetition_penalty,omitempty"`

	// Scope selects which Stage-1 markdown sections are projected:
	// "objective" (numeric clusters only) or "all" (every cluster).
	Scope string `yaml:"scope,omitempty"`
}

// GetProfile returns the configured profile or the default.
func (c *Stage2Config) GetProfile() Stage2Profile {
	if c == nil || !c.Profile.IsValid() {
		return ProfileValidated
	}
	return c.Profile
}

// -----------------------------------------------------------------------------
// Artifact Store Configuration
// -----------------------------------------------------------------------------

// ArtifactsConfig configures where cohort input documents are read from and
// where per-run output is written (spec.md §6.2).
type ArtifactsConfig struct {
	// CohortDir holds one subdirectory per HADM id, each containing
	// ehr_<hadm>.txt.
	CohortDir string `yaml:"cohort_dir"`

	// OutputRoot is the parent directory under which each invocation's run
	// directory is created, named by a random UUID unless a run id is given.
	OutputRoot string `yaml:"output_root"`

	// ConfigDir holds the risk-scoring rule bundle JSON files.
	ConfigDir string `yaml:"config_dir,omitempty"`
}

// GetConfigDir returns the configured rule-bundle directory or the default.
func (c *ArtifactsConfig) GetConfigDir() string {
	if c == nil || c.ConfigDir == "" {
		return DefaultConfigDir
	}
	return c.ConfigDir
}

// -----------------------------------------------------------------------------
// Observability Configuration
// -----------------------------------------------------------------------------

// ObservabilityConfig toggles optional tracing/metrics surfaces.
type ObservabilityConfig struct {
	// Trace enables OpenTelemetry span emission for the Stage-1/Stage-2
	// acquisition loop and the risk scoring pipeline.
	Trace bool `yaml:"trace"`

	// MetricsAddr, if non-empty, serves a Prometheus /metrics endpoint on
	// this address (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// -----------------------------------------------------------------------------
// Concurrency Configuration
// -----------------------------------------------------------------------------

// ConcurrencyConfig bounds how many documents the orchestrator processes in
// parallel (spec.md §5).
type ConcurrencyConfig struct {
	// MaxInFlight caps simultaneous per-document pipelines. Default: 1
	// (strictly sequential, matching the Python reference's single-process
	// loop).
	MaxInFlight int `yaml:"max_in_flight,omitempty"`
}

// GetMaxInFlight returns the configured concurrency cap or the default.
func (c *ConcurrencyConfig) GetMaxInFlight() int {
	if c == nil || c.MaxInFlight <= 0 {
		return 1
	}
	return c.MaxInFlight
}

// -----------------------------------------------------------------------------
// Configuration Metadata
// -----------------------------------------------------------------------------

// ConfigMeta tracks schema version and modification provenance.
type ConfigMeta struct {
	Version    string `yaml:"version"`
	CreatedAt  int64  `yaml:"created_at"`
	ModifiedAt int64  `yaml:"modified_at"`
	ModifiedBy string `yaml:"modified_by"`
}

// CreatedAtTime returns CreatedAt as a time.Time.
func (m *ConfigMeta) CreatedAtTime() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// -----------------------------------------------------------------------------
// Defaults
// -----------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults for a
// local single-backend run.
func DefaultConfig() Config {
	return Config{
		Meta: ConfigMeta{
			Version:    CurrentConfigVersion,
			ModifiedBy: "structcore",
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000",
			Model:          "medgemma-27b-it",
			TimeoutSeconds: DefaultTimeoutSeconds,
			RateLimitRPS:   DefaultRateLimitRPS,
		},
		Stage2: Stage2Config{
			Profile:           ProfileValidated,
			RepetitionPenalty: 1.10,
			Scope:             "all",
		},
		Artifacts: ArtifactsConfig{
			CohortDir:  "cohort",
			OutputRoot: "runs",
			ConfigDir:  DefaultConfigDir,
		},
		Concurrency: ConcurrencyConfig{MaxInFlight: 1},
	}
}

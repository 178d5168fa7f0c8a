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
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Load reads the YAML configuration at path, creating it with defaults if
// it does not yet exist. Unlike the teacher this package was adapted from,
// Load returns a *Config value rather than populating a package-level
// singleton — every caller (including concurrent tests) owns an
// independent configuration.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks structural invariants beyond what struct tags alone
// enforce: an empty backend URL or model id would otherwise surface as an
// opaque HTTP failure deep inside the acquisition loop.
func Validate(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if cfg.Backend.Model == "" {
		return fmt.Errorf("backend.model is required")
	}
	if cfg.Artifacts.CohortDir == "" {
		return fmt.Errorf("artifacts.cohort_dir is required")
	}
	if cfg.Artifacts.OutputRoot == "" {
		return fmt.Errorf("artifacts.output_root is required")
	}
	if cfg.Stage2.Profile != "" && !cfg.Stage2.Profile.IsValid() {
		return fmt.Errorf("stage2.profile %q is not one of validated|experimental", cfg.Stage2.Profile)
	}
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

func writeDefault(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshaling default config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical
// operations: CLI-flag-derived values that flow into filesystem paths or HTTP
// requests. Using these validators prevents path traversal and malformed
// identifiers from reaching the artifact store or the LM backend.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// hadmPattern matches a bare admission identifier: digits only, matching the
// cohort layout's "<hadm>/ehr_<hadm>.txt" directory naming (spec.md §6.2).
var hadmPattern = regexp.MustCompile(`^[0-9]{1,12}$`)

// ValidateHADMID validates a single admission identifier used to derive a
// per-document directory name. Rejecting anything but digits prevents path
// traversal ("../../etc") or shell-metacharacter injection when the id is
// interpolated into a filesystem path or a log line.
func ValidateHADMID(hadm string) error {
	if hadm == "" {
		return fmt.Errorf("hadm id cannot be empty")
	}
	if !hadmPattern.MatchString(hadm) {
		return fmt.Errorf("invalid hadm id format: %q (must be 1-12 digits)", hadm)
	}
	return nil
}

// ValidateHADMIDs validates multiple admission identifiers, returning an
// error listing all invalid ones if any fail.
func ValidateHADMIDs(hadmIDs []string) error {
	var invalid []string
	for _, h := range hadmIDs {
		if err := ValidateHADMID(h); err != nil {
			invalid = append(invalid, h)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid hadm ids: %v", invalid)
	}
	return nil
}

// ParseHADMID validates and parses a single admission identifier to an int,
// matching the cohort discovery convention of integer HADM ids.
func ParseHADMID(hadm string) (int, error) {
	if err := ValidateHADMID(hadm); err != nil {
		return 0, err
	}
	return strconv.Atoi(hadm)
}

// modelIDPattern is deliberately permissive (backend model ids commonly
// contain slashes, colons, and dots — e.g. "org/model-name:quant") but still
// rejects whitespace and shell metacharacters that have no legitimate use in
// a model id and would be unsafe to place unescaped in a log line.
var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:/\-]{1,200}$`)

// ValidateModelID validates a model identifier before it is sent to the LM
// backend, catching obviously malformed configuration early instead of
// surfacing an opaque HTTP error.
func ValidateModelID(model string) error {
	normalized := strings.TrimSpace(model)
	if normalized == "" {
		return fmt.Errorf("model id cannot be empty")
	}
	if !modelIDPattern.MatchString(normalized) {
		return fmt.Errorf("invalid model id format: %q", model)
	}
	return nil
}

// runDirPattern matches the run-directory names the artifact store uses: a
// generated UUID or a caller-supplied name containing only filesystem-safe
// characters.
var runDirPattern = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,128}$`)

// ValidateRunDirName validates a run directory name before it is joined onto
// an output root, rejecting path separators and traversal sequences.
func ValidateRunDirName(name string) error {
	if name == "" {
		return fmt.Errorf("run directory name cannot be empty")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("run directory name must not contain path separators: %q", name)
	}
	if !runDirPattern.MatchString(name) {
		return fmt.Errorf("invalid run directory name: %q", name)
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
)

// LoadGroundTruth reads a ground_truth_<hadm>.json file and projects it into
// KVT4 records. Two shapes are accepted, matching _project_gt_to_kvt4_lines:
// a bare array of "CLUSTER|Keyword|Value|Timestamp" strings, or an array of
// objects with cluster/keyword/value/timestamp keys (all-lowercase or
// all-uppercase, single-letter aliases C/K/V/T accepted).
func LoadGroundTruth(path string) ([]kvt4.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read ground truth %s: %w", path, err)
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(b, &rawItems); err != nil {
		return nil, fmt.Errorf("orchestrator: ground truth %s is not a JSON array: %w", path, err)
	}

	var out []kvt4.Record
	for _, item := range rawItems {
		var asString string
		if err := json.Unmarshal(item, &asString); err == nil {
			if r, err := kvt4.ParseLine(strings.TrimSpace(asString)); err == nil {
				out = append(out, r)
			}
			continue
		}
		var asObject map[string]any
		if err := json.Unmarshal(item, &asObject); err != nil {
			continue
		}
		if r, ok := factFromObject(asObject); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func factFromObject(obj map[string]any) (kvt4.Record, bool) {
	cluster := firstNonEmpty(obj, "cluster", "CLUSTER", "C")
	keyword := firstNonEmpty(obj, "keyword", "KEYWORD", "K")
	value := firstNonEmpty(obj, "value", "VALUE", "V")
	timestamp := firstNonEmpty(obj, "timestamp", "TIMESTAMP", "T")
	if cluster == "" || keyword == "" {
		return kvt4.Record{}, false
	}
	if timestamp == "" {
		timestamp = "Unknown"
	}
	return kvt4.Record{
		Cluster:   kvt4.Cluster(strings.ToUpper(cluster)),
		Keyword:   keyword,
		Value:     value,
		Timestamp: kvt4.NormalizeTimestamp(timestamp),
	}, true
}

func firstNonEmpty(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return ""
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stage2

import (
	"context"
	"fmt"
	"strings"

	"github.com/SZabolotnii/structcore/pkg/kvt4"
	"github.com/SZabolotnii/structcore/pkg/llmclient"
	"github.com/SZabolotnii/structcore/pkg/prompts"
)

// minValidLineRate below which the extractor retries once with a
// compact-mode instruction appended, mirroring run_stage2's low-yield
// retry heuristic (_raw_kvt4_validity feeding a single retry decision).
const minValidLineRate = 0.5

// maxRetries bounds the low-yield retry to a single extra attempt.
const maxRetries = 1

// Result is one document's Stage-2 extraction outcome.
type Result struct {
	Facts         []kvt4.Record
	RawText       string
	Attempts      int
	ValidLineRate float64
	Retried       bool
}

// Extract runs the Stage-2 acquisition loop against a Stage-1 markdown
// digest: render the KVT4 extraction prompt, call the backend, recover
// candidate lines from whatever shape the model emitted, and sanitize them
// through the given Policy/Scope. A low raw-line validity rate triggers one
// compact-mode retry before the result is accepted as final.
func Extract(ctx context.Context, client llmclient.Client, digestMarkdown string, policy Policy, scope Scope) (Result, error) {
	res := Result{}
	userPrompt := prompts.Render(prompts.Stage2KVT4Lines, digestMarkdown)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		res.Attempts++
		chatRes, err := client.Chat(ctx, llmclient.ChatRequest{
			UserPrompt:  userPrompt,
			MaxTokens:   2048,
			Temperature: 0,
		})
		if err != nil {
			return res, fmt.Errorf("stage2: chat call failed: %w", err)
		}
		res.RawText = chatRes.Text

		rawLines := nonEmptyLines(chatRes.Text)
		candidateLines := DropPromptLeakageLines(rawLines)
		facts := Sanitize(candidateLines, policy, scope)

		res.ValidLineRate = validLineRate(candidateLines)
		res.Facts = facts

		if res.ValidLineRate < minValidLineRate && attempt < maxRetries {
			res.Retried = true
			userPrompt = userPrompt + "\n\nCOMPACT MODE: return ONLY valid CLUSTER|Keyword|Value|Timestamp lines, one per line, no prose."
			continue
		}
		return res, nil
	}
	return res, nil
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validLineRate(lines []string) float64 {
	if len(lines) == 0 {
		return 0
	}
	valid := 0
	for _, ln := range lines {
		if isValidKVT4Line(ln) {
			valid++
		}
	}
	return float64(valid) / float64(len(lines))
}

func isValidKVT4Line(line string) bool {
	ln := strings.TrimSpace(line)
	if ln == "" || strings.Count(ln, "|") != 3 {
		return false
	}
	parts := strings.Split(ln, "|")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return false
		}
	}
	return true
}

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
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SZabolotnii/structcore/pkg/jsonrepair"
	"github.com/SZabolotnii/structcore/pkg/llmclient"
	"github.com/SZabolotnii/structcore/pkg/prompts"
)

// maxHygieneRetries bounds the "mandatory hygiene" retry the extractor
// issues when the model echoes a literal de-identification placeholder
// back into its own output — a single retry resolves this in practice;
// more than that means the model is stuck, and Result is returned with
// RetriedHygiene set rather than looping.
const maxHygieneRetries = 1

// Result is one document's Stage-1 extraction outcome.
type Result struct {
	Digest         Digest
	RawText        string
	ParseOK        bool
	RetriedHygiene bool
	RetriedParse   bool
	Attempts       int
}

// Extract runs the Stage-1 acquisition loop for a single discharge note:
// render the digest prompt, call the backend, repair/parse the JSON
// response, and retry if the model echoed a redaction placeholder (at most
// once) or the response failed to parse at all (at most twice), for at most
// three backend calls in all. This mirrors run_stage1's retry
// cascade in the Python reference, simplified from its multi-strategy
// trim ladder to the two retry triggers that matter once the input has
// already been bounded by the caller (placeholder leakage, parse failure).
func Extract(ctx context.Context, client llmclient.Client, ehrText string) (Result, error) {
	ehrText = strings.ReplaceAll(ehrText, "___", "not stated")

	res := Result{}
	systemPrompt := prompts.Stage1Digest
	userPrompt := prompts.Render(systemPrompt, ehrText)

	for attempt := 0; attempt <= maxHygieneRetries+1; attempt++ {
		res.Attempts++
		req := llmclient.ChatRequest{
			UserPrompt:  userPrompt,
			MaxTokens:   4096,
			Temperature: 0,
		}
		chatRes, err := client.Chat(ctx, req)
		if err != nil {
			return res, fmt.Errorf("stage1: chat call failed: %w", err)
		}
		res.RawText = chatRes.Text

		var digest Digest
		_, jsonText, extractErr := jsonrepair.ExtractFirstObject(chatRes.Text)
		parseOK := false
		if extractErr == nil {
			if err := json.Unmarshal([]byte(jsonText), &digest); err == nil {
				parseOK = digest.HasRequiredTopKeys()
			}
		}

		if strings.Contains(chatRes.Text, "___") {
			res.RetriedHygiene = true
			userPrompt = userPrompt + "\n\nMANDATORY: never output the literal characters \"___\" — use \"not stated\" instead."
			if attempt < maxHygieneRetries {
				continue
			}
		}

		if !parseOK {
			res.RetriedParse = true
			userPrompt = userPrompt + "\n\nCOMPACT MODE: return ONLY the JSON object, no prose, no markdown fences."
			if attempt < maxHygieneRetries+1 {
				continue
			}
		}

		res.Digest = *NormalizeDigest(&digest)
		res.ParseOK = parseOK
		return res, nil
	}

	return res, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llmclient talks to an OpenAI-compatible chat-completions backend
// (LM Studio, llama.cpp server, vLLM, or the hosted OpenAI API) on behalf of
// the Stage-1 and Stage-2 extractors.
//
// # Architecture
//
// The package follows the interface-first pattern used across this module:
//   - Client defines the contract both extraction stages depend on.
//   - OpenAICompatClient talks raw HTTP to a local inference server, with a
//     response_format fallback cascade and an optional raw /completion
//     endpoint for prompt-completion-tuned adapters. It is the only Client
//     implementation in this package; there is no SDK-backed transport.
//
// # Thread Safety
//
// All implementations must be safe for concurrent use; the orchestrator
// calls Chat from multiple goroutines when run with bounded concurrency.
package llmclient

import (
	"context"
	"errors"
)

// ErrBackendUnreachable indicates the backend could not be reached at all
// (connection refused, DNS failure, timeout before any response).
var ErrBackendUnreachable = errors.New("llmclient: backend unreachable")

// ErrModelUnavailable indicates the backend responded but the requested
// model id is not among the ones it currently serves.
var ErrModelUnavailable = errors.New("llmclient: requested model unavailable")

// ChatRequest holds the parameters for a single chat-completion call.
//
// # Fields
//
//   - SystemPrompt: Optional system message. Empty means no system message.
//   - UserPrompt: The user message. Must not be empty.
//   - MaxTokens: Maximum tokens to generate.
//   - Temperature: Sampling temperature. 0 is deterministic.
//   - ResponseSchema: Optional JSON schema requesting structured output.
//     When nil, the backend can return free-form text.
type ChatRequest struct {
	SystemPrompt   string
	UserPrompt     string
	MaxTokens      int
	Temperature    float32
	ResponseSchema *ResponseSchema
}

// ResponseSchema requests JSON-schema-constrained structured output. Not
// every backend honors it; OpenAICompatClient falls back gracefully when
// the backend rejects it (see ChatResult.Meta.Final).
type ResponseSchema struct {
	Name   string
	Schema map[string]any
	Strict bool
}

// ChatResult is the outcome of a single chat-completion call.
//
// # Fields
//
//   - Text: The assistant's response text.
//   - Meta: Diagnostics about how the call was actually served, notably the
//     response_format fallback trail (see ResponseFormatMeta).
type ChatResult struct {
	Text string
	Meta ResponseFormatMeta
}

// ResponseFormatMeta records which response_format the backend ultimately
// accepted, after any fallback cascade (spec.md's "json_schema -> json_object
// -> omit" ladder).
type ResponseFormatMeta struct {
	Attempts      []string
	Final         string
	UsedFallback  bool
	FallbackCause string
}

// CompletionRequest is a raw, non-chat-templated prompt completion, used for
// models fine-tuned on bare text rather than a chat format.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
	Stop        []string
}

// Client is the contract both extraction stages depend on. Implementations
// must not retain UserPrompt/SystemPrompt beyond the call — callers may
// reuse buffers.
type Client interface {
	// Chat sends a single prompt exchange and returns the assistant's
	// response.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout.
	//   - req: The chat request. UserPrompt must not be empty.
	//
	// # Outputs
	//
	//   - ChatResult: The response text and response_format diagnostics.
	//   - error: ErrBackendUnreachable, ErrModelUnavailable, or a wrapped
	//     transport/decode error.
	Chat(ctx context.Context, req ChatRequest) (ChatResult, error)

	// ListModels returns the model ids the backend currently serves.
	ListModels(ctx context.Context) ([]string, error)

	// Model returns the model id this client is configured to request.
	Model() string
}

// RawCompleter is implemented by backends that also expose a bare
// prompt-completion endpoint (llama.cpp's /completion) for adapters tuned on
// raw text rather than chat-formatted turns. Not every Client implements
// this; callers should type-assert and fall back to Chat when absent.
type RawCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (ChatResult, error)
}

// AdapterController is implemented by backends that expose LoRA adapter
// hot-swapping (llama.cpp's /lora-adapters). Optional: most backends, and
// the hosted OpenAI API, do not implement it.
type AdapterController interface {
	SetLoRAAdapters(ctx context.Context, adapterScales map[string]float64) error
}

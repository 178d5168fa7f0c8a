// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// OpenAICompatClient is a minimal OpenAI-compatible chat-completions client
// over raw HTTP, intended for local inference backends (LM Studio,
// llama.cpp server, vLLM) that may only partially implement the OpenAI API
// surface.
type OpenAICompatClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	root       string // e.g. http://127.0.0.1:1245
	v1Root     string // e.g. http://127.0.0.1:1245/v1
	model      string
	debug      bool
}

// OpenAICompatOption configures an OpenAICompatClient at construction time.
type OpenAICompatOption func(*OpenAICompatClient)

// WithDebugLogging enables request-parameter logging to stderr, matching
// the original implementation's --debug flag.
func WithDebugLogging(enabled bool) OpenAICompatOption {
	return func(c *OpenAICompatClient) { c.debug = enabled }
}

// WithRateLimiter bounds outbound request rate, e.g. to stay under a shared
// backend's concurrency budget when the orchestrator fans out across
// documents.
func WithRateLimiter(l *rate.Limiter) OpenAICompatOption {
	return func(c *OpenAICompatClient) { c.limiter = l }
}

// NewOpenAICompatClient builds a client against rawURL, accepting either a
// root backend URL (http://127.0.0.1:1245), a /v1 URL, or a full endpoint
// URL (http://127.0.0.1:1245/v1/chat/completions) — the path is trimmed to
// the /v1 root in the last case. timeout is in seconds; it is overridden by
// OPENAI_COMPAT_TIMEOUT_S when that environment variable parses as an int,
// matching the original pipeline's override knob for slow quantized/CPU
// backends.
func NewOpenAICompatClient(rawURL, model string, timeoutSeconds int, opts ...OpenAICompatOption) *OpenAICompatClient {
	root, v1Root := NormalizeBackendURL(rawURL)
	if env := strings.TrimSpace(os.Getenv("OPENAI_COMPAT_TIMEOUT_S")); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			timeoutSeconds = n
		}
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 180
	}
	c := &OpenAICompatClient{
		httpClient: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		root:       root,
		v1Root:     v1Root,
		model:      model,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeBackendURL returns (root, v1Root) for rawURL. It accepts a root
// backend URL, a /v1 URL, or a full endpoint URL and trims to the /v1
// segment boundary in the last case — a real "/v1" path component, not a
// coincidental substring, so "/v10/x" is left untouched.
func NormalizeBackendURL(rawURL string) (root, v1Root string) {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return "", "/v1"
	}
	if !strings.Contains(u, "://") {
		u = "http://" + u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return strings.TrimSuffix(u, "/"), strings.TrimSuffix(u, "/") + "/v1"
	}
	path := strings.TrimSuffix(parsed.Path, "/")

	if idx := strings.Index(path, "/v1"); idx != -1 {
		after := path[idx+len("/v1"):]
		if after == "" || strings.HasPrefix(after, "/") {
			path = path[:idx]
		}
	}
	parsed.Path = path
	root = strings.TrimSuffix(parsed.String(), "/")
	return root, root + "/v1"
}

func (c *OpenAICompatClient) Model() string { return c.model }

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels queries GET /v1/models and returns the served model ids.
func (c *OpenAICompatClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.v1Root+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s/models: %v", ErrBackendUnreachable, c.v1Root, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading /models response: %v", ErrBackendUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s/models: status %d", ErrBackendUnreachable, c.v1Root, resp.StatusCode)
	}

	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("llmclient: decoding /models response: %w", err)
	}
	ids := make([]string, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		if id := strings.TrimSpace(item.ID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// AssertModelAvailable polls ListModels every two seconds until c.model is
// among the served ids or ctx is done. On ctx expiry it returns the last
// failure: the ListModels error, or ErrModelUnavailable listing the ids seen.
func (c *OpenAICompatClient) AssertModelAvailable(ctx context.Context) error {
	for {
		ids, err := c.ListModels(ctx)
		if err == nil {
			for _, id := range ids {
				if id == c.model {
					return nil
				}
			}
			preview := ids
			if len(preview) > 12 {
				preview = preview[:12]
			}
			err = fmt.Errorf("%w: requested %q, available: %v", ErrModelUnavailable, c.model, preview)
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(2 * time.Second):
		}
	}
}

type chatCompletionPayload struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float32        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	Stream         bool           `json:"stream"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Error   any `json:"error"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat issues a chat-completions request with the response_format fallback
// cascade: json_schema (if req.ResponseSchema is set) -> json_object -> no
// response_format at all. Each step is tried only after the previous one's
// HTTP call fails, mirroring backends that reject an unsupported
// response_format with a 4xx rather than silently ignoring it.
func (c *OpenAICompatClient) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	payload := chatCompletionPayload{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	}

	var attempts []string
	var fallbackCause string

	if req.ResponseSchema != nil {
		payload.ResponseFormat = jsonSchemaFormat(req.ResponseSchema)
		attempts = append(attempts, "json_schema")
		text, obj, err := c.callChatCompletions(ctx, payload)
		if err == nil {
			return chatResultOf(text, attempts, fallbackCause), nil
		}
		fallbackCause = err.Error()
		_ = obj

		payload.ResponseFormat = map[string]any{"type": "json_object"}
		attempts = append(attempts, "json_object")
		text, _, err = c.callChatCompletions(ctx, payload)
		if err == nil {
			return chatResultOf(text, attempts, fallbackCause), nil
		}
		fallbackCause = err.Error()

		payload.ResponseFormat = nil
		attempts = append(attempts, "none")
		text, _, err = c.callChatCompletions(ctx, payload)
		if err != nil {
			return ChatResult{}, err
		}
		return chatResultOf(text, attempts, fallbackCause), nil
	}

	attempts = append(attempts, "none")
	text, _, err := c.callChatCompletions(ctx, payload)
	if err != nil {
		return ChatResult{}, err
	}
	return chatResultOf(text, attempts, fallbackCause), nil
}

func chatResultOf(text string, attempts []string, fallbackCause string) ChatResult {
	final := "none"
	if len(attempts) > 0 {
		final = attempts[len(attempts)-1]
	}
	return ChatResult{
		Text: text,
		Meta: ResponseFormatMeta{
			Attempts:      attempts,
			Final:         final,
			UsedFallback:  len(attempts) > 1,
			FallbackCause: fallbackCause,
		},
	}
}

func jsonSchemaFormat(schema *ResponseSchema) map[string]any {
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   schema.Name,
			"schema": schema.Schema,
			"strict": schema.Strict,
		},
	}
}

func (c *OpenAICompatClient) callChatCompletions(ctx context.Context, payload chatCompletionPayload) (string, map[string]any, error) {
	if c.debug {
		fmt.Fprintf(os.Stderr, "[llmclient] POST %s/chat/completions model=%s response_format=%v\n",
			c.v1Root, c.model, payload.ResponseFormat)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("llmclient: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.v1Root+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("%w: POST %s/chat/completions: %v", ErrBackendUnreachable, c.v1Root, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: reading response: %v", ErrBackendUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("llmclient: chat/completions returned status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", nil, fmt.Errorf("llmclient: decoding chat/completions response: %w", err)
	}
	if parsed.Error != nil {
		return "", nil, fmt.Errorf("llmclient: backend error: %v", parsed.Error)
	}
	if len(parsed.Choices) == 0 {
		return "", nil, fmt.Errorf("llmclient: chat/completions returned no choices")
	}

	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)
	return parsed.Choices[0].Message.Content, obj, nil
}

func (c *OpenAICompatClient) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return c.httpClient.Do(req)
}

type completionPayload struct {
	Prompt      string   `json:"prompt"`
	Temperature float32  `json:"temperature"`
	NPredict    int      `json:"n_predict"`
	Stream      bool     `json:"stream"`
	Stop        []string `json:"stop,omitempty"`
}

type completionResponse struct {
	Content string `json:"content"`
}

// Complete issues a raw /completion request with no chat template applied,
// for models fine-tuned on bare prompt-completion text rather than chat
// turns. It satisfies RawCompleter.
func (c *OpenAICompatClient) Complete(ctx context.Context, req CompletionRequest) (ChatResult, error) {
	payload := completionPayload{
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		NPredict:    req.MaxTokens,
		Stream:      false,
		Stop:        req.Stop,
	}
	if c.debug {
		fmt.Fprintf(os.Stderr, "[llmclient] POST %s/completion prompt_len=%d max_tokens=%d\n",
			c.root, len(req.Prompt), req.MaxTokens)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ChatResult{}, fmt.Errorf("llmclient: encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.root+"/completion", bytes.NewReader(body))
	if err != nil {
		return ChatResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		return ChatResult{}, fmt.Errorf("%w: POST %s/completion: %v", ErrBackendUnreachable, c.root, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResult{}, fmt.Errorf("%w: reading response: %v", ErrBackendUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ChatResult{}, fmt.Errorf("llmclient: /completion returned status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ChatResult{}, fmt.Errorf("llmclient: decoding /completion response: %w", err)
	}
	return ChatResult{
		Text: parsed.Content,
		Meta: ResponseFormatMeta{Attempts: []string{"raw_completion"}, Final: "raw_completion"},
	}, nil
}

// SetLoRAAdapters posts adapter scale overrides to the backend's
// /lora-adapters endpoint (llama.cpp-specific). adapterScales maps adapter
// name to its active scale; a scale of 0 disables that adapter.
func (c *OpenAICompatClient) SetLoRAAdapters(ctx context.Context, adapterScales map[string]float64) error {
	type adapterEntry struct {
		ID    string  `json:"id"`
		Scale float64 `json:"scale"`
	}
	entries := make([]adapterEntry, 0, len(adapterScales))
	for id, scale := range adapterScales {
		entries = append(entries, adapterEntry{ID: id, Scale: scale})
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("llmclient: encoding lora-adapters request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.root+"/lora-adapters", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: POST %s/lora-adapters: %v", ErrBackendUnreachable, c.root, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("llmclient: /lora-adapters returned status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

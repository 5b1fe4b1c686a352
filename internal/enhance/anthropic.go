// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	llmtypes "github.com/aktagon/llmkit/anthropic/types"

	"github.com/pdiddy/vault-sync/internal/httputil"
	"github.com/pdiddy/vault-sync/pkg/types"
)

// AnthropicBackend calls the Anthropic Messages API using llmkit's wire types.
type AnthropicBackend struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	maxRetries int
}

// messagesRequest always serializes temperature, so zero reaches the API
// instead of falling back to the server default.
type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []llmtypes.Message `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type messagesResponse struct {
	llmtypes.AnthropicResponse
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicBackend returns a backend for cfg. The API key is required.
// cfg.BaseURL, when set, replaces the full Messages endpoint.
func NewAnthropicBackend(cfg types.AIConfig, timeout time.Duration) (*AnthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = llmtypes.Endpoint
	}
	if timeout <= 0 {
		timeout = types.DefaultEnhanceTimeout
	}
	return &AnthropicBackend{
		client:     &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Complete sends req as a system prompt plus one user message and returns
// the first text block. Rate limits and overload responses are retried.
func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Messages: []llmtypes.Message{{
			Role:    "user",
			Content: []llmtypes.Content{{Type: "text", Text: req.User}},
		}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", llmtypes.AnthropicVersion)

	resp, err := httputil.DoWithRetry(ctx, b.client, httpReq, b.maxRetries)
	if err != nil {
		return "", fmt.Errorf("anthropic: send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}

	var msg messagesResponse
	if err := json.Unmarshal(data, &msg); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("anthropic: status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if msg.Error != nil {
		return "", fmt.Errorf("anthropic: %s", msg.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: status %d", resp.StatusCode)
	}
	for _, c := range msg.Content {
		if c.Type == "text" && c.Text != "" {
			return c.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: %w", ErrEmptyCompletion)
}

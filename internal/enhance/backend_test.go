// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enhance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	llmtypes "github.com/aktagon/llmkit/anthropic/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/vault-sync/internal/httputil"
	"github.com/pdiddy/vault-sync/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func newOpenAITest(t *testing.T, handler http.HandlerFunc) *OpenAIBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	b, err := NewOpenAIBackend(types.AIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/", MaxRetries: 2}, time.Second)
	require.NoError(t, err)
	return b
}

func TestOpenAIBackend_Complete(t *testing.T) {
	var got map[string]any
	b := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"# Clean"},"finish_reason":"stop"}]}`))
	})

	out, err := b.Complete(context.Background(), Request{
		System: "sys", User: "usr", Model: "gpt-4o", MaxTokens: 13000, Temperature: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "# Clean", out)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.Equal(t, float64(13000), got["max_tokens"])
	temp, present := got["temperature"]
	assert.True(t, present, "temperature must be sent even when zero")
	assert.Equal(t, float64(0), temp)
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "usr", msgs[1].(map[string]any)["content"])
}

func TestOpenAIBackend_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "api error body",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
			wantErr: "Incorrect API key provided",
		},
		{
			name:    "non-json failure",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: "status 502",
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    `{"choices":[]}`,
			wantErr: ErrEmptyCompletion.Error(),
		},
		{
			name:    "malformed json",
			status:  http.StatusOK,
			body:    `{"choices":`,
			wantErr: "decode response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newOpenAITest(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := b.Complete(context.Background(), Request{Model: "gpt-4o"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOpenAIBackend_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	b := newOpenAITest(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})
	out, err := b.Complete(context.Background(), Request{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIBackend_NetworkErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b, err := NewOpenAIBackend(types.AIConfig{APIKey: "sk-test", BaseURL: url}, time.Second)
	require.NoError(t, err)

	cfg := types.EnhancementConfig{AIConfig: types.AIConfig{Model: "gpt-4o"}}
	got, ok := New(b, cfg).Enhance(context.Background(), "converted text")
	assert.False(t, ok)
	assert.Equal(t, "converted text", got)
}

func newAnthropicTest(t *testing.T, handler http.HandlerFunc) *AnthropicBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	b, err := NewAnthropicBackend(types.AIConfig{APIKey: "sk-ant", BaseURL: srv.URL + "/v1/messages", MaxRetries: 2}, time.Second)
	require.NoError(t, err)
	return b
}

func TestAnthropicBackend_Complete(t *testing.T) {
	var raw []byte
	b := newAnthropicTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, llmtypes.AnthropicVersion, r.Header.Get("anthropic-version"))
		var err error
		raw, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"# Clean"}],"stop_reason":"end_turn"}`))
	})

	out, err := b.Complete(context.Background(), Request{
		System: "sys", User: "usr", Model: "claude-sonnet-4-20250514", MaxTokens: 13000, Temperature: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "# Clean", out)

	assert.Contains(t, string(raw), `"temperature":0`)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "claude-sonnet-4-20250514", got["model"])
	assert.Equal(t, float64(13000), got["max_tokens"])
	assert.Equal(t, "sys", got["system"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	content := first["content"].([]any)
	require.Len(t, content, 1)
	assert.Equal(t, "usr", content[0].(map[string]any)["text"])
}

func TestAnthropicBackend_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "api error body",
			status:  http.StatusUnauthorized,
			body:    `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			wantErr: "invalid x-api-key",
		},
		{
			name:    "non-json failure",
			status:  http.StatusInternalServerError,
			body:    `<html>oops</html>`,
			wantErr: "status 500",
		},
		{
			name:    "no text content",
			status:  http.StatusOK,
			body:    `{"type":"message","content":[]}`,
			wantErr: ErrEmptyCompletion.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newAnthropicTest(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := b.Complete(context.Background(), Request{Model: "claude"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAnthropicBackend_RetriesOverloaded(t *testing.T) {
	var calls atomic.Int32
	b := newAnthropicTest(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(529)
			w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	})
	out, err := b.Complete(context.Background(), Request{Model: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewAnthropicBackend_DefaultEndpoint(t *testing.T) {
	b, err := NewAnthropicBackend(types.AIConfig{APIKey: "sk-ant"}, 0)
	require.NoError(t, err)
	assert.Equal(t, llmtypes.Endpoint, b.endpoint)

	_, err = NewAnthropicBackend(types.AIConfig{}, 0)
	require.Error(t, err)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enhance

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/vault-sync/pkg/types"
)

// fakeBackend returns a canned completion or error and records requests.
type fakeBackend struct {
	out  string
	err  error
	reqs []Request
}

func (f *fakeBackend) Complete(_ context.Context, req Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func testConfig() types.EnhancementConfig {
	return types.EnhancementConfig{
		AIConfig: types.AIConfig{Provider: types.ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test"},
		Enabled:  true,
	}
}

func TestEnhance(t *testing.T) {
	const input = "# Notes\n* one\n* two\n"

	tests := []struct {
		name      string
		backend   *fakeBackend
		input     string
		want      string
		wantOK    bool
		wantCalls int
	}{
		{
			name:      "returns rewritten text",
			backend:   &fakeBackend{out: "# Notes\n\n- one\n- two\n"},
			input:     input,
			want:      "# Notes\n\n- one\n- two\n",
			wantOK:    true,
			wantCalls: 1,
		},
		{
			name:      "network error falls back to input",
			backend:   &fakeBackend{err: errors.New("dial tcp: connection refused")},
			input:     input,
			want:      input,
			wantCalls: 1,
		},
		{
			name:      "empty response falls back to input",
			backend:   &fakeBackend{out: "  \n"},
			input:     input,
			want:      input,
			wantCalls: 1,
		},
		{
			name:      "fenced response is unwrapped",
			backend:   &fakeBackend{out: "```markdown\n# Notes\n```"},
			input:     input,
			want:      "# Notes\n",
			wantOK:    true,
			wantCalls: 1,
		},
		{
			name:    "blank input is not sent",
			backend: &fakeBackend{out: "anything"},
			input:   "\n",
			want:    "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.backend, testConfig())
			got, ok := e.Enhance(context.Background(), tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
			assert.Len(t, tt.backend.reqs, tt.wantCalls)
		})
	}
}

func TestEnhance_RequestShape(t *testing.T) {
	backend := &fakeBackend{out: "ok"}
	e := New(backend, testConfig())

	e.Enhance(context.Background(), "body text")

	require.Len(t, backend.reqs, 1)
	req := backend.reqs[0]
	assert.Equal(t, SystemInstruction, req.System)
	assert.Contains(t, req.User, "body text")
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, types.DefaultMaxTokens, req.MaxTokens)
	assert.Zero(t, req.Temperature)
}

func TestEnhanceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Weekly Sync (Transcript).md")
	const converted = "converted text\n"

	tests := []struct {
		name         string
		backend      *fakeBackend
		wantContent  string
		wantEnhanced bool
	}{
		{
			name:         "rewrites file on success",
			backend:      &fakeBackend{out: "enhanced text\n"},
			wantContent:  "enhanced text\n",
			wantEnhanced: true,
		},
		{
			name:        "leaves file unchanged on failure",
			backend:     &fakeBackend{err: errors.New("429 quota exceeded")},
			wantContent: converted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(converted), 0o644))
			doc := types.ConvertedDocument{LocalPath: path, BaseName: "Weekly Sync (Transcript)", Content: converted}

			var log bytes.Buffer
			got := New(tt.backend, testConfig()).EnhanceFile(context.Background(), doc, &log)

			assert.Equal(t, tt.wantEnhanced, got.Enhanced)
			assert.Equal(t, tt.wantContent, got.Content)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, string(data))
			assert.Contains(t, log.String(), "enhancing: Weekly Sync (Transcript)")

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

// blockingBackend waits for ctx to end.
type blockingBackend struct{}

func (blockingBackend) Complete(ctx context.Context, _ Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestEnhance_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	got, ok := New(blockingBackend{}, cfg).Enhance(context.Background(), "text")
	assert.False(t, ok)
	assert.Equal(t, "text", got)
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.EnhancementConfig
		wantErr string
	}{
		{name: "openai", cfg: testConfig()},
		{
			name: "anthropic",
			cfg: types.EnhancementConfig{
				AIConfig: types.AIConfig{Provider: types.ProviderAnthropic, APIKey: "sk-ant"},
			},
		},
		{
			name: "missing key",
			cfg: types.EnhancementConfig{
				AIConfig: types.AIConfig{Provider: types.ProviderAnthropic},
			},
			wantErr: "API key is required",
		},
		{
			name: "unknown provider",
			cfg: types.EnhancementConfig{
				AIConfig: types.AIConfig{Provider: "gemini", APIKey: "k"},
			},
			wantErr: `unknown enhancement provider "gemini"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewFromConfig(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, e)
		})
	}
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"```md\n# A\n```", "# A\n"},
		{"```\n# A\n\n```\n", "# A\n"},
		{"text with ``` inside", "text with ``` inside"},
		{"``````", "``````"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripFence(tt.in), "stripFence(%q)", tt.in)
	}
}

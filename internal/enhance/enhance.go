// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enhance runs converted Markdown through a text-completion model
// for formatting cleanup. The pass is best effort: any failure leaves the
// document exactly as the converter produced it.
package enhance

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/vault-sync/internal/logger"
	"github.com/pdiddy/vault-sync/pkg/types"
)

// SystemInstruction is sent with every completion request.
const SystemInstruction = "You are a markdown formatting expert. " +
	"Clean up the formatting of the document you are given without changing its meaning. " +
	"Return only the formatted markdown, with no commentary and no surrounding code fence."

var userTemplate = template.Must(template.New("user").Parse(`Reformat the following Markdown document.

- Use a consistent heading hierarchy starting at a single top-level heading.
- Normalize list markers and nesting.
- Put code in fenced blocks with a language tag where one is obvious.
- Render tabular data as pipe tables with a header row.
- Keep every sentence, speaker name and timestamp. Do not summarize or drop text.

Document:

{{.Markdown}}
`))

// Request is a single completion call.
type Request struct {
	System      string
	User        string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Backend abstracts the text-completion API so tests can supply a fake.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Enhancer applies the formatting pass through a Backend.
type Enhancer struct {
	backend   Backend
	model     string
	maxTokens int
	timeout   time.Duration
}

// New returns an Enhancer calling backend with the model, token ceiling and
// timeout from cfg.
func New(backend Backend, cfg types.EnhancementConfig) *Enhancer {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = types.DefaultMaxTokens
	}
	return &Enhancer{
		backend:   backend,
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   cfg.Timeout,
	}
}

// NewFromConfig builds the backend selected by cfg.Provider and wraps it.
func NewFromConfig(cfg types.EnhancementConfig) (*Enhancer, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		backend, err = NewOpenAIBackend(cfg.AIConfig, cfg.Timeout)
	case types.ProviderAnthropic:
		backend, err = NewAnthropicBackend(cfg.AIConfig, cfg.Timeout)
	default:
		err = fmt.Errorf("unknown enhancement provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, cfg), nil
}

// Enhance returns the model's rewrite of markdown and true, or markdown
// unchanged and false when the request fails or yields nothing usable.
// Sampling is deterministic (temperature 0).
func (e *Enhancer) Enhance(ctx context.Context, markdown string) (string, bool) {
	if strings.TrimSpace(markdown) == "" {
		return markdown, false
	}

	var user bytes.Buffer
	if err := userTemplate.Execute(&user, struct{ Markdown string }{markdown}); err != nil {
		logger.Warn("enhance: building prompt: %v", err)
		return markdown, false
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := e.backend.Complete(ctx, Request{
		System:      SystemInstruction,
		User:        user.String(),
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		logger.Warn("enhance: %v; keeping converted text", err)
		return markdown, false
	}

	out = stripFence(out)
	if strings.TrimSpace(out) == "" {
		logger.Warn("enhance: empty response; keeping converted text")
		return markdown, false
	}
	logger.Debug("enhance: %d -> %d bytes in %v", len(markdown), len(out), time.Since(start).Round(time.Millisecond))
	return out, true
}

// EnhanceFile runs the pass on doc and rewrites its Markdown file in place
// through a temp file and rename. On any failure doc is returned as is.
func (e *Enhancer) EnhanceFile(ctx context.Context, doc types.ConvertedDocument, w io.Writer) types.ConvertedDocument {
	fmt.Fprintf(w, "enhancing: %s\n", doc.BaseName)
	out, ok := e.Enhance(ctx, doc.Content)
	if !ok {
		fmt.Fprintf(w, "skipped: %s (enhancement unavailable, keeping converted text)\n", doc.BaseName)
		return doc
	}
	if err := replaceFile(doc.LocalPath, out); err != nil {
		logger.Warn("enhance: writing %s: %v", doc.LocalPath, err)
		return doc
	}
	doc.Content = out
	doc.Enhanced = true
	return doc
}

func replaceFile(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".enhance-*.md")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// stripFence removes a single code fence wrapping the whole response.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return s
	}
	body := t[nl+1 : len(t)-3]
	return strings.TrimSpace(body) + "\n"
}

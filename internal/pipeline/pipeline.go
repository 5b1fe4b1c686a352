// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs a full sync: list, filter, then per document
// download, convert and enhance, and finally place every converted file in
// the vault. Per-document failures are recorded and never stop the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/vault-sync/internal/acquire"
	"github.com/pdiddy/vault-sync/internal/convert"
	"github.com/pdiddy/vault-sync/internal/filter"
	"github.com/pdiddy/vault-sync/internal/logger"
	"github.com/pdiddy/vault-sync/internal/naming"
	"github.com/pdiddy/vault-sync/internal/vault"
	"github.com/pdiddy/vault-sync/pkg/types"
)

// ReportFileName is the run report written to the staging directory.
const ReportFileName = "last-run.yaml"

// Narrative end-of-run messages.
const (
	MsgNoMatches    = "No matching files found."
	MsgNoDownloads  = "No files were successfully downloaded."
	MsgNoConversion = "No files were successfully converted to markdown."
	MsgUpToDate     = "All matching files are already in the vault."
	MsgCompleted    = "Sync completed successfully!"
)

// Lister returns the remote documents eligible for sync.
type Lister interface {
	List(ctx context.Context) ([]types.RemoteDocument, error)
}

// Enhancer rewrites a converted document. It never fails.
type Enhancer interface {
	EnhanceFile(ctx context.Context, doc types.ConvertedDocument, w io.Writer) types.ConvertedDocument
}

// Recorder persists a finished run.
type Recorder interface {
	RecordRun(ctx context.Context, summary types.RunSummary, started, finished time.Time) error
}

// Deps are the collaborators of a run. Enhancer and Recorder are optional.
type Deps struct {
	Lister    Lister
	Fetcher   acquire.Fetcher
	Converter convert.Converter
	Enhancer  Enhancer
	Recorder  Recorder
}

// Report is the YAML document written after each run.
type Report struct {
	Started  time.Time        `yaml:"started"`
	Finished time.Time        `yaml:"finished"`
	Outcome  string           `yaml:"outcome"`
	Summary  types.RunSummary `yaml:"summary"`
}

// itemState tracks one document through the pre-placement stages.
type itemState struct {
	result          types.ItemResult
	downloaded      bool
	downloadSkipped bool
}

// Run executes a sync with cfg and writes progress to w. It returns an
// error only for fatal conditions: a missing vault, a failed listing, or
// cancellation of ctx.
func Run(ctx context.Context, cfg types.Config, deps Deps, w io.Writer) (types.RunSummary, error) {
	started := time.Now()
	summary := types.RunSummary{RunID: uuid.NewString()}

	placer := vault.New(cfg.Vault.Dir)
	if err := placer.Validate(); err != nil {
		return summary, err
	}

	fmt.Fprintln(w, "Fetching files...")
	docs, err := deps.Lister.List(ctx)
	if err != nil {
		return summary, err
	}
	for _, d := range docs {
		logger.Debug("found: %s (owner: %s, shared: %t, mime: %s)", d.Title, d.OwnerDisplayName, d.IsShared, d.MimeType)
	}

	matched := filter.ByPrefix(docs, cfg.Filter.Prefixes, cfg.Filter.Enabled)
	summary.Listed = len(docs)
	summary.Matched = len(matched)
	fmt.Fprintf(w, "Found %d files, %d matching\n", len(docs), len(matched))

	outcome := MsgNoMatches
	if len(matched) > 0 {
		outcome, err = process(ctx, cfg, deps, placer, matched, &summary, w)
		if err != nil {
			return summary, err
		}
	}
	fmt.Fprintln(w, outcome)

	finished := time.Now()
	writeReport(cfg.Acquisition.StagingDir, Report{
		Started:  started,
		Finished: finished,
		Outcome:  outcome,
		Summary:  summary,
	})
	if deps.Recorder != nil {
		if err := deps.Recorder.RecordRun(ctx, summary, started, finished); err != nil {
			logger.Warn("recording run in ledger: %v", err)
		}
	}
	return summary, nil
}

// process runs the per-document stages on a bounded pool, waits for all of
// them, then places the converted files. It returns the narrative outcome.
func process(ctx context.Context, cfg types.Config, deps Deps, placer *vault.Placer, docs []types.RemoteDocument, summary *types.RunSummary, w io.Writer) (string, error) {
	namer := naming.New(cfg.Naming.TaggedPrefixes)
	states := make([]itemState, len(docs))

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	out := w
	if workers > 1 {
		out = &syncWriter{w: w}
	}

	// Titles that normalize to a name already claimed earlier in the listing
	// would share staging paths, so only the first one is processed.
	claimed := make(map[string]string, len(docs))
	p := pool.New().WithMaxGoroutines(workers)
	for i, doc := range docs {
		base := namer.Normalize(doc.Title)
		if first, ok := claimed[base]; ok && base != "" {
			fmt.Fprintf(out, "skipped: %s (same name as %s)\n", doc.Title, first)
			states[i] = itemState{result: types.ItemResult{
				Document: doc,
				BaseName: base,
				Stage:    types.StageDownload,
				Outcome:  types.OutcomeSkipped,
				Reason:   types.ReasonDuplicateName,
			}}
			continue
		}
		claimed[base] = doc.Title
		p.Go(func() {
			states[i] = processDocument(ctx, cfg, deps, namer, placer, doc, out)
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("sync interrupted: %w", err)
	}

	var converted, inVault int
	for i := range states {
		st := &states[i]
		if st.result.Outcome == types.OutcomeSkipped {
			inVault++
		}
		if st.downloaded {
			summary.Downloaded++
		}
		if st.downloadSkipped {
			summary.DownloadSkipped++
		}
		if st.result.Converted != nil {
			converted++
		}
	}
	summary.Converted = converted

	fmt.Fprintf(w, "\nDownload summary: %d downloaded, %d skipped\n", summary.Downloaded, summary.DownloadSkipped)

	var outcome string
	switch {
	case inVault == len(states):
		outcome = MsgUpToDate
	case summary.Staged() == 0 && converted == 0:
		outcome = MsgNoDownloads
	case converted == 0:
		outcome = MsgNoConversion
	default:
		outcome = MsgCompleted
	}

	for i := range states {
		st := &states[i]
		if st.result.Converted == nil {
			continue
		}
		doc := *st.result.Converted
		if doc.Enhanced {
			summary.Enhanced++
		}
		st.result = placer.PlaceItem(doc, w)
	}

	for _, st := range states {
		switch st.result.Outcome {
		case types.OutcomePlaced:
			summary.Placed++
		case types.OutcomeSkipped:
			summary.PlaceSkipped++
		case types.OutcomeFailed:
			summary.Failed++
		}
		summary.Items = append(summary.Items, st.result)
	}
	fmt.Fprintf(w, "\nSync summary: %d placed, %d skipped, %d failed (total: %d)\n",
		summary.Placed, summary.PlaceSkipped, summary.Failed, len(summary.Items))
	return outcome, nil
}

// processDocument takes one document from listing to a converted (and
// possibly enhanced) Markdown file in staging.
func processDocument(ctx context.Context, cfg types.Config, deps Deps, namer *naming.Normalizer, placer *vault.Placer, doc types.RemoteDocument, w io.Writer) itemState {
	st := itemState{result: types.ItemResult{Document: doc, Stage: types.StageDownload}}

	if err := ctx.Err(); err != nil {
		st.result.Outcome = types.OutcomeFailed
		st.result.Reason = types.ReasonDownloadFailed
		st.result.Error = err.Error()
		return st
	}

	if base := namer.Normalize(doc.Title); base != "" && placer.Exists(base) {
		fmt.Fprintf(w, "skipped: %s (already in vault)\n", doc.Title)
		st.result.BaseName = base
		st.result.Stage = types.StagePlace
		st.result.Outcome = types.OutcomeSkipped
		st.result.Reason = types.ReasonAlreadyInVault
		st.result.VaultPath = placer.Target(base)
		return st
	}

	staged, skipped, err := acquire.AcquireDocument(ctx, deps.Fetcher, namer, doc, cfg.Acquisition, w)
	st.result.BaseName = staged.BaseName
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", doc.Title, err)
		st.result.Outcome = types.OutcomeFailed
		st.result.Reason = acquire.FailureReason(err)
		st.result.Error = err.Error()
		return st
	}
	st.downloaded = !skipped
	st.downloadSkipped = skipped

	st.result.Stage = types.StageConvert
	converted, _, err := convert.ConvertStaged(ctx, deps.Converter, staged, cfg.Acquisition, cfg.Conversion.KeepStaged, w)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", staged.BaseName, err)
		st.result.Outcome = types.OutcomeFailed
		st.result.Reason = types.ReasonConvertFailed
		st.result.Error = err.Error()
		return st
	}

	if deps.Enhancer != nil {
		st.result.Stage = types.StageEnhance
		converted = deps.Enhancer.EnhanceFile(ctx, converted, w)
	}
	st.result.Enhanced = converted.Enhanced
	st.result.Converted = &converted
	return st
}

// writeReport stores r as YAML in the staging directory. Failures are
// logged and otherwise ignored.
func writeReport(stagingDir string, r Report) {
	data, err := yaml.Marshal(r)
	if err != nil {
		logger.Warn("encoding run report: %v", err)
		return
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		logger.Warn("writing run report: %v", err)
		return
	}
	path := filepath.Join(stagingDir, ReportFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Warn("writing run report: %v", err)
		return
	}
	logger.Debug("run report written to %s", path)
}

// LoadReport reads the last run report from the staging directory.
func LoadReport(stagingDir string) (Report, error) {
	var r Report
	data, err := os.ReadFile(filepath.Join(stagingDir, ReportFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, fmt.Errorf("no run report in %s: %w", stagingDir, err)
		}
		return r, err
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parsing run report: %w", err)
	}
	return r, nil
}

// syncWriter serializes writes from concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

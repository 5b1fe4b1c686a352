// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads remote documents into the staging directory as
// .docx files. A non-empty file already present under the document's
// normalized name counts as downloaded, which keeps re-runs from fetching
// the same content twice.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/vault-sync/pkg/types"
)

// Errors reported for individual documents.
var (
	// ErrEmptyName means the title normalized to an empty base name.
	ErrEmptyName = errors.New("title normalizes to an empty file name")

	// ErrEmptyDownload means the transfer produced zero bytes.
	ErrEmptyDownload = errors.New("downloaded file is empty")
)

// Fetcher writes a remote document's .docx content to w.
type Fetcher interface {
	Fetch(ctx context.Context, doc types.RemoteDocument, w io.Writer) error
}

// Namer maps a remote title to a base name.
type Namer interface {
	Normalize(title string) string
}

// BatchResult holds the outcome of a batch download run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Files      []types.StagedFile
	Failures   []types.ItemResult
}

// Total returns the total number of documents processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any documents failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// StagedPath returns the staging path for a base name.
func StagedPath(cfg types.AcquisitionConfig, baseName string) string {
	return filepath.Join(cfg.StagingDir, baseName+types.ExtDocx)
}

// AcquireDocument downloads doc into the staging directory under its
// normalized name. If a non-empty file already exists there, the download
// is skipped and skipped is true. A transfer that yields zero bytes leaves
// nothing behind and returns ErrEmptyDownload. On error the returned
// StagedFile still carries the computed name for reporting.
func AcquireDocument(ctx context.Context, f Fetcher, namer Namer, doc types.RemoteDocument, cfg types.AcquisitionConfig, w io.Writer) (staged types.StagedFile, skipped bool, err error) {
	base := namer.Normalize(doc.Title)
	if base == "" {
		return types.StagedFile{}, false, fmt.Errorf("%q: %w", doc.Title, ErrEmptyName)
	}

	path := StagedPath(cfg, base)
	staged = types.StagedFile{LocalPath: path, BaseName: base, Document: doc}

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", doc.Title)
		return staged, true, nil
	}

	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		return staged, false, fmt.Errorf("creating staging directory %s: %w", cfg.StagingDir, err)
	}

	fmt.Fprintf(w, "downloading: %s -> %s\n", doc.Title, path)

	if err := downloadFile(ctx, f, doc, path); err != nil {
		return staged, false, err
	}
	return staged, false, nil
}

// AcquireBatch downloads each document in order, printing per-item status
// to w. Failures are recorded and do not stop the batch.
func AcquireBatch(ctx context.Context, f Fetcher, namer Namer, docs []types.RemoteDocument, cfg types.AcquisitionConfig, w io.Writer) BatchResult {
	var result BatchResult
	for _, doc := range docs {
		staged, wasSkipped, err := AcquireDocument(ctx, f, namer, doc, cfg, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", doc.Title, err)
			result.Failed++
			result.Failures = append(result.Failures, types.ItemResult{
				Document: doc,
				BaseName: staged.BaseName,
				Stage:    types.StageDownload,
				Outcome:  types.OutcomeFailed,
				Reason:   FailureReason(err),
				Error:    err.Error(),
			})
			continue
		}
		if wasSkipped {
			result.Skipped++
		} else {
			result.Downloaded++
		}
		result.Files = append(result.Files, staged)
	}
	fmt.Fprintf(w, "\nDownload summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result
}

// FailureReason maps a download error to its result reason.
func FailureReason(err error) types.Reason {
	switch {
	case errors.Is(err, ErrEmptyName):
		return types.ReasonEmptyName
	case errors.Is(err, ErrEmptyDownload):
		return types.ReasonEmptyDownload
	default:
		return types.ReasonDownloadFailed
	}
}

// downloadFile fetches doc into a temporary file next to destPath and
// renames it into place once it is known to be non-empty.
func downloadFile(ctx context.Context, f Fetcher, doc types.RemoteDocument, destPath string) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	fetchErr := f.Fetch(ctx, doc, tmpFile)
	closeErr := tmpFile.Close()
	if fetchErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("downloading %s: %w", doc.Title, fetchErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("checking download: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(tmpPath)
		return fmt.Errorf("%s: %w", destPath, ErrEmptyDownload)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

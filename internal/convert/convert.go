// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns staged .docx files into Markdown with pluggable
// backends. Both backends drive pandoc with the same reader and writer
// options; they differ only in where pandoc runs.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/vault-sync/internal/logger"
	"github.com/pdiddy/vault-sync/pkg/types"
)

// ErrEmptyOutput means the converter exited cleanly but wrote nothing.
var ErrEmptyOutput = errors.New("converter produced empty output")

// Converter transforms a .docx file at inputPath into Markdown written to
// outputPath. Implementations must not leave a partial file at outputPath
// when they fail.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
	Documents []types.ConvertedDocument
	Failures  []types.ItemResult
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any files failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// MarkdownPath returns the staging path of the Markdown form of a base name.
func MarkdownPath(cfg types.AcquisitionConfig, baseName string) string {
	return filepath.Join(cfg.StagingDir, baseName+types.ExtMarkdown)
}

// ConvertStaged converts one staged file next to its source. A non-empty
// Markdown file already present under the same base name is reused and
// skipped is true. Once the Markdown is in hand the staged .docx is removed
// unless keepStaged is set, whether it was converted or reused.
func ConvertStaged(ctx context.Context, c Converter, staged types.StagedFile, cfg types.AcquisitionConfig, keepStaged bool, w io.Writer) (doc types.ConvertedDocument, skipped bool, err error) {
	mdPath := MarkdownPath(cfg, staged.BaseName)
	doc = types.ConvertedDocument{
		LocalPath: mdPath,
		BaseName:  staged.BaseName,
		Document:  staged.Document,
	}

	if info, statErr := os.Stat(mdPath); statErr == nil && info.Size() > 0 {
		fmt.Fprintf(w, "skipped: %s (already converted)\n", staged.BaseName)
		skipped = true
	} else {
		fmt.Fprintf(w, "converting: %s -> %s\n", staged.LocalPath, mdPath)
		if err := c.Convert(ctx, staged.LocalPath, mdPath); err != nil {
			return doc, false, err
		}
	}

	data, err := os.ReadFile(mdPath)
	if err != nil {
		return doc, skipped, fmt.Errorf("reading converted file: %w", err)
	}
	doc.Content = string(data)

	if !keepStaged {
		if err := os.Remove(staged.LocalPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("could not remove staged file %s: %v", staged.LocalPath, err)
		}
	}
	return doc, skipped, nil
}

// ConvertBatch converts each staged file in order, printing per-file status
// to w and returning a summary. Failures do not stop the batch.
func ConvertBatch(ctx context.Context, c Converter, files []types.StagedFile, cfg types.AcquisitionConfig, keepStaged bool, w io.Writer) BatchResult {
	var result BatchResult
	for _, f := range files {
		doc, skipped, err := ConvertStaged(ctx, c, f, cfg, keepStaged, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", f.BaseName, err)
			result.Failed++
			result.Failures = append(result.Failures, types.ItemResult{
				Document: f.Document,
				BaseName: f.BaseName,
				Stage:    types.StageConvert,
				Outcome:  types.OutcomeFailed,
				Reason:   types.ReasonConvertFailed,
				Error:    err.Error(),
			})
			continue
		}
		if skipped {
			result.Skipped++
		} else {
			result.Converted++
		}
		result.Documents = append(result.Documents, doc)
	}
	fmt.Fprintf(w, "\nConvert summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

// commitOutput checks the temporary output and renames it onto outputPath.
func commitOutput(tmpPath, outputPath string) error {
	info, err := os.Stat(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("checking converter output: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(tmpPath)
		return fmt.Errorf("%s: %w", outputPath, ErrEmptyOutput)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming converter output: %w", err)
	}
	return nil
}

// tempOutput reserves a temporary file next to outputPath.
func tempOutput(outputPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(outputPath), ".convert-*.md")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return f, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/vault-sync/pkg/types"
)

type stubDrive struct {
	docs    []types.RemoteDocument
	listErr error
	bodies  map[string]string
}

func (s stubDrive) List(context.Context) ([]types.RemoteDocument, error) {
	return s.docs, s.listErr
}

func (s stubDrive) Fetch(_ context.Context, doc types.RemoteDocument, w io.Writer) error {
	body, ok := s.bodies[doc.ID]
	if !ok {
		return fmt.Errorf("HTTP 404 for %s", doc.ID)
	}
	_, err := io.WriteString(w, body)
	return err
}

func TestDownloadMatching(t *testing.T) {
	cfg := types.Config{
		Filter:      types.FilterConfig{Enabled: true},
		Acquisition: types.AcquisitionConfig{StagingDir: filepath.Join(t.TempDir(), "downloads")},
		Vault:       types.VaultConfig{Dir: t.TempDir()},
	}
	cfg.ApplyDefaults()

	d := stubDrive{
		docs: []types.RemoteDocument{
			{ID: "a", Title: "Transcript: Standup"},
			{ID: "b", Title: "Budget 2026"},
			{ID: "c", Title: "AI Notes Retro"},
		},
		bodies: map[string]string{"a": "standup", "b": "budget"},
	}

	var log bytes.Buffer
	result, err := downloadMatching(context.Background(), d, d, cfg, &log)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.HasFailures())
	require.Len(t, result.Files, 1)
	assert.Equal(t, "Standup (Transcript)", result.Files[0].BaseName)
	assert.Equal(t, types.ReasonDownloadFailed, result.Failures[0].Reason)

	data, err := os.ReadFile(filepath.Join(cfg.Acquisition.StagingDir, "Standup (Transcript).docx"))
	require.NoError(t, err)
	assert.Equal(t, "standup", string(data))
	assert.NoFileExists(t, filepath.Join(cfg.Acquisition.StagingDir, "Budget 2026.docx"))
	assert.Contains(t, log.String(), "Found 3 files, 2 matching")
	assert.Contains(t, log.String(), "Download summary: 1 downloaded, 0 skipped, 1 failed (total: 2)")

	// A second pass keeps what is already staged.
	log.Reset()
	result, err = downloadMatching(context.Background(), d, d, cfg, &log)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Downloaded)
}

func TestDownloadMatching_ListError(t *testing.T) {
	d := stubDrive{listErr: errors.New("unauthorized")}
	_, err := downloadMatching(context.Background(), d, d, types.Config{}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

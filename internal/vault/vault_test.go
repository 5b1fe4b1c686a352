// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vault

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/vault-sync/pkg/types"
)

func stage(t *testing.T, dir, base, content string) types.ConvertedDocument {
	t.Helper()
	path := filepath.Join(dir, base+types.ExtMarkdown)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return types.ConvertedDocument{LocalPath: path, BaseName: base, Content: content}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.NoError(t, New(dir).Validate())
	assert.ErrorIs(t, New(filepath.Join(dir, "missing")).Validate(), ErrVaultMissing)
	assert.ErrorIs(t, New(file).Validate(), ErrVaultMissing)
}

func TestPlace(t *testing.T) {
	tests := []struct {
		name        string
		existing    string // content already in the vault, "" for none
		wantSkipped bool
		wantVault   string
	}{
		{
			name:      "moves into empty slot",
			wantVault: "new notes",
		},
		{
			name:        "never overwrites existing file",
			existing:    "hand edited",
			wantSkipped: true,
			wantVault:   "hand edited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staging, vaultDir := t.TempDir(), t.TempDir()
			doc := stage(t, staging, "Weekly Sync (Transcript)", "new notes")
			target := filepath.Join(vaultDir, "Weekly Sync (Transcript).md")
			if tt.existing != "" {
				require.NoError(t, os.WriteFile(target, []byte(tt.existing), 0o644))
			}

			p := New(vaultDir)
			path, skipped, err := p.Place(doc)
			require.NoError(t, err)
			assert.Equal(t, target, path)
			assert.Equal(t, tt.wantSkipped, skipped)
			assert.NoFileExists(t, doc.LocalPath, "staged copy is consumed either way")

			data, err := os.ReadFile(target)
			require.NoError(t, err)
			assert.Equal(t, tt.wantVault, string(data))
		})
	}
}

func TestPlace_CrossDevice(t *testing.T) {
	staging, vaultDir := t.TempDir(), t.TempDir()
	doc := stage(t, staging, "Retro (AI Notes)", "retro content")

	var links []string
	p := New(vaultDir)
	p.link = func(oldpath, newpath string) error {
		links = append(links, filepath.Base(oldpath))
		if oldpath == doc.LocalPath {
			return &os.LinkError{Op: "link", Old: oldpath, New: newpath, Err: syscall.EXDEV}
		}
		return os.Link(oldpath, newpath)
	}

	path, skipped, err := p.Place(doc)
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Len(t, links, 2)
	assert.True(t, strings.HasPrefix(links[1], ".vault-sync-"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "retro content", string(data))
	assert.NoFileExists(t, doc.LocalPath)

	entries, err := os.ReadDir(vaultDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left in vault")
}

func TestPlace_TargetCreatedDuringMove(t *testing.T) {
	tests := []struct {
		name       string
		crossDevice bool
	}{
		{name: "same filesystem"},
		{name: "across filesystems", crossDevice: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staging, vaultDir := t.TempDir(), t.TempDir()
			doc := stage(t, staging, "Standup", "synced content")
			target := filepath.Join(vaultDir, "Standup.md")

			p := New(vaultDir)
			p.link = func(oldpath, newpath string) error {
				if tt.crossDevice && oldpath == doc.LocalPath {
					return &os.LinkError{Op: "link", Old: oldpath, New: newpath, Err: syscall.EXDEV}
				}
				// Another writer creates the note after the existence check.
				require.NoError(t, os.WriteFile(newpath, []byte("hand edited"), 0o644))
				return os.Link(oldpath, newpath)
			}

			path, skipped, err := p.Place(doc)
			require.NoError(t, err)
			assert.True(t, skipped)
			assert.Equal(t, target, path)
			assert.NoFileExists(t, doc.LocalPath)

			data, err := os.ReadFile(target)
			require.NoError(t, err)
			assert.Equal(t, "hand edited", string(data))

			entries, err := os.ReadDir(vaultDir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "no temp file left in vault")
		})
	}
}

func TestPlace_LinkUnsupported(t *testing.T) {
	staging, vaultDir := t.TempDir(), t.TempDir()
	doc := stage(t, staging, "Plan", "plan content")

	p := New(vaultDir)
	p.link = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "link", Old: oldpath, New: newpath, Err: syscall.EPERM}
	}

	path, skipped, err := p.Place(doc)
	require.NoError(t, err)
	assert.False(t, skipped)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "plan content", string(data))
	assert.NoFileExists(t, doc.LocalPath)

	again := stage(t, staging, "Plan", "newer content")
	assert.ErrorIs(t, copyExclusive(again.LocalPath, path), fs.ErrExist)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "plan content", string(data), "exclusive copy never replaces the target")
}

func TestPlace_LinkFailure(t *testing.T) {
	staging, vaultDir := t.TempDir(), t.TempDir()
	doc := stage(t, staging, "Plan", "plan")

	p := New(vaultDir)
	p.link = func(string, string) error {
		return &os.LinkError{Op: "link", Err: syscall.EACCES}
	}

	_, _, err := p.Place(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.EACCES))
	assert.FileExists(t, doc.LocalPath, "source is left for inspection")
}

func TestPlaceBatch(t *testing.T) {
	staging, vaultDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, "Beta.md"), []byte("kept"), 0o644))

	docs := []types.ConvertedDocument{
		stage(t, staging, "Alpha", "a"),
		stage(t, staging, "Beta", "b"),
		{LocalPath: filepath.Join(staging, "Gamma.md"), BaseName: "Gamma"},
	}
	docs[0].Enhanced = true

	var log bytes.Buffer
	result := New(vaultDir).PlaceBatch(docs, &log)

	assert.Equal(t, 1, result.Placed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.HasFailures())
	require.Len(t, result.Items, 3)
	assert.Equal(t, types.OutcomePlaced, result.Items[0].Outcome)
	assert.True(t, result.Items[0].Enhanced)
	assert.Equal(t, types.ReasonAlreadyInVault, result.Items[1].Reason)
	assert.Equal(t, types.ReasonPlaceFailed, result.Items[2].Reason)

	assert.Contains(t, log.String(), "skipped: Beta.md (already in vault)")
	assert.Contains(t, log.String(), "Place summary: 1 placed, 1 skipped, 1 failed (total: 3)")
}

func TestExists(t *testing.T) {
	vaultDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, "Here.md"), nil, 0o644))
	p := New(vaultDir)
	assert.True(t, p.Exists("Here"))
	assert.False(t, p.Exists("Gone"))
}

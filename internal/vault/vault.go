// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vault moves converted Markdown files into the destination vault.
// The vault is authoritative: a file that already exists there is never
// overwritten.
package vault

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/pdiddy/vault-sync/internal/logger"
	"github.com/pdiddy/vault-sync/pkg/types"
)

// ErrVaultMissing means the vault directory does not exist.
var ErrVaultMissing = errors.New("vault directory does not exist")

// Placer moves files into Dir.
type Placer struct {
	Dir string

	// link is os.Link; tests replace it to simulate EXDEV and races.
	link func(oldpath, newpath string) error
}

// New returns a Placer for dir.
func New(dir string) *Placer {
	return &Placer{Dir: dir, link: os.Link}
}

// BatchResult holds the outcome of a batch placement run.
type BatchResult struct {
	Placed  int
	Skipped int
	Failed  int
	Items   []types.ItemResult
}

// Total returns the total number of documents processed.
func (r BatchResult) Total() int {
	return r.Placed + r.Skipped + r.Failed
}

// HasFailures reports whether any placements failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Validate reports ErrVaultMissing unless Dir is an existing directory.
func (p *Placer) Validate() error {
	info, err := os.Stat(p.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", p.Dir, ErrVaultMissing)
		}
		return fmt.Errorf("checking vault %s: %w", p.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory: %w", p.Dir, ErrVaultMissing)
	}
	return nil
}

// Target returns the vault path a document with baseName would occupy.
func (p *Placer) Target(baseName string) string {
	return filepath.Join(p.Dir, baseName+types.ExtMarkdown)
}

// Exists reports whether the vault already holds a file for baseName.
func (p *Placer) Exists(baseName string) bool {
	_, err := os.Lstat(p.Target(baseName))
	return err == nil
}

// Place moves doc into the vault. When the target already exists the
// staged copy is removed and skipped is true. The move never replaces an
// existing file: the staged file is hard linked to the target, which fails
// if the target appeared since the check, and the source is then removed.
// Across filesystems the file is copied to a temp file in the vault, synced
// and linked into place the same way.
func (p *Placer) Place(doc types.ConvertedDocument) (vaultPath string, skipped bool, err error) {
	target := p.Target(doc.BaseName)

	if _, err := os.Lstat(target); err == nil {
		removeStaged(doc.LocalPath)
		return target, true, nil
	}

	err = p.commit(doc.LocalPath, target)
	if errors.Is(err, syscall.EXDEV) {
		logger.Debug("vault: %s is on another filesystem, copying", doc.LocalPath)
		err = p.copyInto(doc.LocalPath, target)
	}
	switch {
	case err == nil:
		removeStaged(doc.LocalPath)
		return target, false, nil
	case errors.Is(err, fs.ErrExist):
		logger.Debug("vault: %s appeared before the move, keeping it", target)
		removeStaged(doc.LocalPath)
		return target, true, nil
	default:
		return "", false, fmt.Errorf("moving %s into vault: %w", doc.LocalPath, err)
	}
}

func removeStaged(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove staged copy %s: %v", path, err)
	}
}

// commit creates dst with the contents of src, failing with fs.ErrExist if
// dst exists. Filesystems without hard links get an exclusive-create copy.
func (p *Placer) commit(src, dst string) error {
	link := p.link
	if link == nil {
		link = os.Link
	}
	err := link(src, dst)
	if err == nil || !linkUnsupported(err) {
		return err
	}
	logger.Debug("vault: hard links unsupported (%v), copying %s", err, src)
	return copyExclusive(src, dst)
}

func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, syscall.EMLINK)
}

// PlaceItem places doc and reports the outcome, printing its status to w.
func (p *Placer) PlaceItem(doc types.ConvertedDocument, w io.Writer) types.ItemResult {
	item := types.ItemResult{
		Document: doc.Document,
		BaseName: doc.BaseName,
		Stage:    types.StagePlace,
		Enhanced: doc.Enhanced,
	}

	path, skipped, err := p.Place(doc)
	switch {
	case err != nil:
		fmt.Fprintf(w, "failed:  %s (%v)\n", doc.BaseName, err)
		item.Outcome = types.OutcomeFailed
		item.Reason = types.ReasonPlaceFailed
		item.Error = err.Error()
	case skipped:
		fmt.Fprintf(w, "skipped: %s (already in vault)\n", doc.FileName())
		item.Outcome = types.OutcomeSkipped
		item.Reason = types.ReasonAlreadyInVault
		item.VaultPath = path
	default:
		fmt.Fprintf(w, "syncing: %s -> %s\n", doc.LocalPath, path)
		item.Outcome = types.OutcomePlaced
		item.VaultPath = path
	}
	return item
}

// PlaceBatch places each document in order, printing per-item status to w.
func (p *Placer) PlaceBatch(docs []types.ConvertedDocument, w io.Writer) BatchResult {
	var result BatchResult
	for _, doc := range docs {
		item := p.PlaceItem(doc, w)
		switch item.Outcome {
		case types.OutcomePlaced:
			result.Placed++
		case types.OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		result.Items = append(result.Items, item)
	}
	fmt.Fprintf(w, "\nPlace summary: %d placed, %d skipped, %d failed (total: %d)\n",
		result.Placed, result.Skipped, result.Failed, result.Total())
	return result
}

// copyInto copies src to a temp file next to dst and commits it to dst,
// so dst is either absent or complete. The temp file is always removed.
func (p *Placer) copyInto(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".vault-sync-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in vault: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		logger.Debug("vault: chmod %s: %v", tmpPath, err)
	}
	return p.commit(tmpPath, dst)
}

// copyExclusive writes src to a newly created dst. A partial dst is removed.
func copyExclusive(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("syncing %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records sync runs and vault placements in a SQLite
// database kept in the staging directory. The ledger is informational: the
// vault itself decides what is skipped.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/vault-sync/pkg/types"
)

// Store manages the ledger database.
type Store struct {
	db *sql.DB
}

// Run is one recorded pipeline run.
type Run struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Listed   int
	Matched  int
	Placed   int
	Skipped  int
	Failed   int
}

// Placement is one document moved into the vault.
type Placement struct {
	RunID        string
	DriveID      string
	Title        string
	BaseName     string
	VaultPath    string
	Enhanced     bool
	ModifiedTime time.Time
	PlacedAt     time.Time
}

// Open opens or creates the ledger at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started TEXT NOT NULL,
			finished TEXT NOT NULL,
			listed INTEGER,
			matched INTEGER,
			placed INTEGER,
			skipped INTEGER,
			failed INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS placements (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			drive_id TEXT NOT NULL,
			title TEXT,
			base_name TEXT NOT NULL,
			vault_path TEXT NOT NULL,
			enhanced INTEGER,
			modified_time TEXT,
			placed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_placements_drive_id ON placements(drive_id)`,
		`CREATE INDEX IF NOT EXISTS idx_placements_placed_at ON placements(placed_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun stores the run in summary together with every placed item.
func (s *Store) RecordRun(ctx context.Context, summary types.RunSummary, started, finished time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started, finished, listed, matched, placed, skipped, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, formatTime(started), formatTime(finished),
		summary.Listed, summary.Matched, summary.Placed,
		summary.DownloadSkipped+summary.PlaceSkipped, summary.Failed,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO placements (run_id, drive_id, title, base_name, vault_path, enhanced, modified_time, placed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range summary.Items {
		if item.Outcome != types.OutcomePlaced {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			summary.RunID, item.Document.ID, item.Document.Title, item.BaseName,
			item.VaultPath, item.Enhanced, formatTime(item.Document.ModifiedTime), formatTime(finished),
		)
		if err != nil {
			return fmt.Errorf("inserting placement %s: %w", item.BaseName, err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit placements, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Placement, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, drive_id, title, base_name, vault_path, enhanced, modified_time, placed_at
		 FROM placements ORDER BY placed_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying placements: %w", err)
	}
	defer rows.Close()

	var out []Placement
	for rows.Next() {
		var (
			p              Placement
			title, modTime sql.NullString
			enhanced       sql.NullBool
			placedAt       string
		)
		if err := rows.Scan(&p.RunID, &p.DriveID, &title, &p.BaseName, &p.VaultPath, &enhanced, &modTime, &placedAt); err != nil {
			return nil, fmt.Errorf("scanning placement: %w", err)
		}
		p.Title = title.String
		p.Enhanced = enhanced.Bool
		p.ModifiedTime = parseTime(modTime.String)
		p.PlacedAt = parseTime(placedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started, finished, listed, matched, placed, skipped, failed
		 FROM runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Listed, &r.Matched, &r.Placed, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Started = parseTime(started)
		r.Finished = parseTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest persists the append-only log of confirmed ROIs. One
// row is written per confirmation, never rewritten; the store is the
// single writer and serializes appends from concurrent export batches.
package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const dbFile = "roi_manifest.db"

// Row is one manifest entry, write-once.
type Row struct {
	Timestamp  time.Time
	CaseID     string
	SeriesUID  string
	Plane      string
	SliceIndex int
	Label      string
	CenterX    float64
	CenterY    float64
	CenterZ    float64
	RadiusMM   float64
}

// Store manages the manifest SQLite database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the manifest database under dir, creating the
// schema if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}

	path := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening manifest database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating manifest schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS roi_manifest (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			case_id TEXT NOT NULL,
			series_uid TEXT,
			plane TEXT,
			slice_index INTEGER,
			label TEXT NOT NULL,
			center_x REAL,
			center_y REAL,
			center_z REAL,
			radius_mm REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_manifest_case ON roi_manifest(case_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Append writes one row. Appends are serialized; rows are never updated
// or deleted afterwards.
func (s *Store) Append(r Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO roi_manifest
			(ts, case_id, series_uid, plane, slice_index, label, center_x, center_y, center_z, radius_mm)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.CaseID, r.SeriesUID, r.Plane, r.SliceIndex, r.Label,
		r.CenterX, r.CenterY, r.CenterZ, r.RadiusMM,
	)
	if err != nil {
		return fmt.Errorf("appending manifest row for %s/%s: %w", r.CaseID, r.Label, err)
	}
	return nil
}

// Rows returns all rows for a case in insertion order; caseID == ""
// returns the whole log.
func (s *Store) Rows(ctx context.Context, caseID string) ([]Row, error) {
	query := `SELECT ts, case_id, series_uid, plane, slice_index, label,
			center_x, center_y, center_z, radius_mm
		FROM roi_manifest`
	args := []any{}
	if caseID != "" {
		query += ` WHERE case_id = ?`
		args = append(args, caseID)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying manifest: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var ts string
		if err := rows.Scan(&ts, &r.CaseID, &r.SeriesUID, &r.Plane, &r.SliceIndex,
			&r.Label, &r.CenterX, &r.CenterY, &r.CenterZ, &r.RadiusMM); err != nil {
			return nil, fmt.Errorf("scanning manifest row: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			r.Timestamp = parsed
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

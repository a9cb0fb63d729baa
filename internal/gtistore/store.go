// Package gtistore archives computed GTI lists in a SQLite database so that
// runs can be listed and compared later.
package gtistore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/geometry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gti"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/metrics"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound reports a run id that is not archived.
var ErrNotFound = errors.New("gtistore: run not found")

// Interval kinds stored per run.
const (
	KindSun  = "sun"
	KindSAA  = "saa"
	KindGood = "good"
)

// Run is one archived GTI computation.
type Run struct {
	RunID     string   `json:"run_id"`
	Detector  string   `json:"detector"`
	Source    string   `json:"source"`
	StartMET  float64  `json:"start_met"`
	EndMET    float64  `json:"end_met"`
	Step      float64  `json:"step"`
	CreatedAt int64    `json:"created_at"` // unix nanoseconds
	Sun       gti.List `json:"sun,omitempty"`
	SAA       gti.List `json:"saa,omitempty"`
	Good      gti.List `json:"good,omitempty"`
}

// Store persists runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive at path. Use ":memory:" for a
// throwaway archive.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Insert archives run with its intervals. An empty RunID is replaced by a
// new UUID and a zero CreatedAt by the current time.
func (s *Store) Insert(ctx context.Context, run *Run) (err error) {
	defer func() {
		if err != nil {
			metrics.IncArchiveRuns("error")
			return
		}
		metrics.IncArchiveRuns("ok")
	}()

	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO gti_runs (run_id, detector, source, start_met, end_met, step, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Detector, run.Source, run.StartMET, run.EndMET, run.Step, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gti_intervals (run_id, kind, seq, start_met, end_met)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare intervals: %w", err)
	}
	defer stmt.Close()

	for _, kl := range []struct {
		kind string
		list gti.List
	}{{KindSun, run.Sun}, {KindSAA, run.SAA}, {KindGood, run.Good}} {
		for i, iv := range kl.list {
			if _, err := stmt.ExecContext(ctx, run.RunID, kl.kind, i, iv.Start, iv.End); err != nil {
				return fmt.Errorf("insert %s interval %d: %w", kl.kind, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns a run with its intervals.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, detector, source, start_met, end_met, step, created_at
		FROM gti_runs
		WHERE run_id = ?`, runID)

	var r Run
	err := row.Scan(&r.RunID, &r.Detector, &r.Source, &r.StartMET, &r.EndMET, &r.Step, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, start_met, end_met
		FROM gti_intervals
		WHERE run_id = ?
		ORDER BY kind, seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query intervals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var iv gti.Interval
		if err := rows.Scan(&kind, &iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		switch kind {
		case KindSun:
			r.Sun = append(r.Sun, iv)
		case KindSAA:
			r.SAA = append(r.SAA, iv)
		case KindGood:
			r.Good = append(r.Good, iv)
		}
	}
	return &r, rows.Err()
}

// List returns run headers, newest first, optionally filtered by detector.
// Intervals are not loaded. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, detector string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, detector, source, start_met, end_met, step, created_at
		FROM gti_runs
		WHERE ? = '' OR detector = ?
		ORDER BY created_at DESC, run_id
		LIMIT ?`, detector, detector, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Detector, &r.Source, &r.StartMET, &r.EndMET, &r.Step, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes a run and its intervals.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM gti_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// Compute evaluates the Sun, SAA and good interval lists of ds over times.
// The returned run is not yet archived.
func Compute(ds *geometry.Dataset, times []float64) (*Run, error) {
	sun, err := ds.Service.SunVisibilityIntervals(times)
	if err != nil {
		return nil, err
	}
	saa, err := ds.Service.SAAIntervals(times)
	if err != nil {
		return nil, err
	}
	good, err := ds.Service.GoodTimeIntervals(times)
	if err != nil {
		return nil, err
	}
	run := &Run{
		Detector: ds.Detector,
		Source:   ds.Source,
		Sun:      sun,
		SAA:      saa,
		Good:     good,
	}
	if len(times) > 0 {
		run.StartMET, run.EndMET = times[0], times[len(times)-1]
	}
	if len(times) > 1 {
		run.Step = times[1] - times[0]
	}
	return run, nil
}

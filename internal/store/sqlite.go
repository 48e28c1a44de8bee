package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/autosignin/internal/model"
)

// ErrNoReports is returned by LatestReport when no run has been saved yet.
var ErrNoReports = errors.New("no reports stored")

// Ensure SQLiteStore implements model.ReportStore.
var _ model.ReportStore = (*SQLiteStore)(nil)

// SQLiteStore keeps the history of run reports in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_jobs (
	run_id   TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	site_id  TEXT NOT NULL,
	title    TEXT NOT NULL,
	status   TEXT NOT NULL,
	result   TEXT NOT NULL DEFAULT '',
	messages TEXT NOT NULL DEFAULT '',
	details  TEXT NOT NULL DEFAULT '',
	reason   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`

// Status values stored in run_jobs.status.
const (
	statusOK       = "ok"
	statusFailed   = "failed"
	statusRejected = "rejected"
)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the runs and run_jobs tables exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection serializes writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating report tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveReport stores r and all its entries in one transaction.
func (s *SQLiteStore) SaveReport(r *model.Report) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("saving report %s: %w", r.RunID, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT INTO runs (run_id, started_at, finished_at) VALUES (?, ?, ?)",
		r.RunID, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli()); err != nil {
		return fmt.Errorf("saving report %s: %w", r.RunID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_jobs
		(run_id, seq, site_id, title, status, result, messages, details, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("saving report %s: %w", r.RunID, err)
	}
	defer stmt.Close()

	seq := 0
	insert := func(e model.ReportEntry, status string) error {
		seq++
		_, err := stmt.Exec(r.RunID, seq, e.SiteID, e.Title, status, e.Result, e.Messages, e.Details, e.Reason)
		return err
	}
	for _, e := range r.Entries {
		status := statusOK
		if e.Failed {
			status = statusFailed
		}
		if err := insert(e, status); err != nil {
			return fmt.Errorf("saving entry %s: %w", e.Title, err)
		}
	}
	for _, e := range r.Rejected {
		if err := insert(e, statusRejected); err != nil {
			return fmt.Errorf("saving rejection %s: %w", e.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving report %s: %w", r.RunID, err)
	}
	return nil
}

// LatestReport returns the most recently started run.
func (s *SQLiteStore) LatestReport() (*model.Report, error) {
	reports, err := s.Reports(1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNoReports
	}
	return reports[0], nil
}

// Reports returns up to limit runs, newest first.
func (s *SQLiteStore) Reports(limit int) ([]*model.Report, error) {
	rows, err := s.db.Query("SELECT run_id, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	var reports []*model.Report
	for rows.Next() {
		var (
			r                 model.Report
			started, finished int64
		)
		if err := rows.Scan(&r.RunID, &started, &finished); err != nil {
			rows.Close()
			return nil, fmt.Errorf("listing reports: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		reports = append(reports, &r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	for _, r := range reports {
		if err := s.loadEntries(r); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

func (s *SQLiteStore) loadEntries(r *model.Report) error {
	rows, err := s.db.Query(`SELECT site_id, title, status, result, messages, details, reason
		FROM run_jobs WHERE run_id = ? ORDER BY seq`, r.RunID)
	if err != nil {
		return fmt.Errorf("loading entries for %s: %w", r.RunID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e      model.ReportEntry
			status string
		)
		if err := rows.Scan(&e.SiteID, &e.Title, &status, &e.Result, &e.Messages, &e.Details, &e.Reason); err != nil {
			return fmt.Errorf("loading entries for %s: %w", r.RunID, err)
		}
		e.Failed = status != statusOK
		if status == statusRejected {
			r.Rejected = append(r.Rejected, e)
		} else {
			r.Entries = append(r.Entries, e)
		}
	}
	return rows.Err()
}

// Cleanup deletes runs started more than olderThan ago, with their entries.
func (s *SQLiteStore) Cleanup(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UnixMilli()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("cleaning up reports older than %v: %w", olderThan, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM run_jobs WHERE run_id IN (SELECT run_id FROM runs WHERE started_at < ?)", cutoff); err != nil {
		return fmt.Errorf("cleaning up reports older than %v: %w", olderThan, err)
	}
	if _, err := tx.Exec("DELETE FROM runs WHERE started_at < ?", cutoff); err != nil {
		return fmt.Errorf("cleaning up reports older than %v: %w", olderThan, err)
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

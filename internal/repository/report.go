// Package repository archives encoded report envelopes. Persisted reports
// are immutable: corrections are stored as new reports referencing the one
// they supersede, never as in-place edits, preserving the audit history.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/psma-report-engine/internal/domain"
)

// ReportRecord is one archived report: the opaque encoded envelope plus the
// metadata needed to retrieve and chain it.
type ReportRecord struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schemaVersion"`
	Supersedes    string    `json:"supersedes,omitempty"`
	Payload       []byte    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Store persists report records in an embedded SQLite database.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewStore opens (creating if needed) the report archive at dbPath.
func NewStore(dbPath string, logger *logrus.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency between writers and readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// NewStoreWithDB wraps an existing database handle; the caller owns table
// creation. Used by tests that substitute a mock connection.
func NewStoreWithDB(db *sql.DB, logger *logrus.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		supersedes TEXT NOT NULL DEFAULT '',
		payload BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_supersedes ON reports(supersedes);
	`
	_, err := db.Exec(schema)
	return err
}

// Save archives a report. A missing id is assigned; a non-empty Supersedes
// must reference an existing report. There is no update path: saved reports
// are immutable.
func (s *Store) Save(ctx context.Context, rec *ReportRecord) error {
	if rec == nil || len(rec.Payload) == 0 {
		return fmt.Errorf("report record has no payload")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if rec.Supersedes != "" {
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM reports WHERE id = ?", rec.Supersedes).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check superseded report: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("superseded report %s: %w", rec.Supersedes, domain.ErrNotFound)
		}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO reports (id, schema_version, supersedes, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.SchemaVersion, rec.Supersedes, rec.Payload, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"report_id":      rec.ID,
		"schema_version": rec.SchemaVersion,
		"supersedes":     rec.Supersedes,
	}).Info("Archived report")

	return nil
}

// Get retrieves a report by id, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*ReportRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, schema_version, supersedes, payload, created_at FROM reports WHERE id = ?", id)
	rec, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return rec, nil
}

// List returns archived report metadata, newest first. Payloads are
// included; callers wanting only metadata should drop them.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, schema_version, supersedes, payload, created_at FROM reports ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var records []*ReportRecord
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanner is an interface over sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(s scanner) (*ReportRecord, error) {
	rec := &ReportRecord{}
	if err := s.Scan(&rec.ID, &rec.SchemaVersion, &rec.Supersedes, &rec.Payload, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return rec, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

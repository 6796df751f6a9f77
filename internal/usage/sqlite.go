package usage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hession/exatool/internal/tools"
)

// SQLiteStore SQLite invocation ledger. It keeps metadata only: no
// parameters, queries or results are stored.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite ledger
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}

	// Initialize tables
	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database tables: %w", err)
	}

	return store, nil
}

// initTables initializes database tables
func (s *SQLiteStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			tool TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT NOT NULL,
			error_kind TEXT,
			error_code TEXT,
			duration_ms INTEGER NOT NULL,
			result_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_created_at ON invocations(created_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", query, err)
		}
	}

	return nil
}

// RecordInvocation stores the metadata of one finished dispatch
func (s *SQLiteStore) RecordInvocation(inv tools.Invocation) error {
	createdAt := inv.StartedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO invocations (id, tool, status, stage, error_kind, error_code, duration_ms, result_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Tool, inv.Status, inv.Stage.String(), inv.ErrorKind, inv.ErrorCode,
		inv.Duration.Milliseconds(), inv.Items, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record invocation: %w", err)
	}
	return nil
}

// Recent returns the latest invocations, newest first
func (s *SQLiteStore) Recent(limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, tool, status, stage, COALESCE(error_kind, ''), COALESCE(error_code, ''), duration_ms, result_count, created_at
		 FROM invocations ORDER BY seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Tool, &r.Status, &r.Stage, &r.ErrorKind, &r.ErrorCode, &r.DurationMS, &r.Items, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		records = append(records, &r)
	}

	return records, rows.Err()
}

// Summary aggregates the ledger per tool, ordered by tool name
func (s *SQLiteStore) Summary() ([]*ToolSummary, error) {
	rows, err := s.db.Query(
		`SELECT tool,
			COUNT(*),
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
			AVG(duration_ms),
			SUM(result_count)
		 FROM invocations GROUP BY tool ORDER BY tool`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize invocations: %w", err)
	}
	defer rows.Close()

	var summaries []*ToolSummary
	for rows.Next() {
		var ts ToolSummary
		if err := rows.Scan(&ts.Tool, &ts.Calls, &ts.Failures, &ts.AvgDurationMS, &ts.Items); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, &ts)
	}

	return summaries, rows.Err()
}

// Prune deletes invocations recorded before the given time
func (s *SQLiteStore) Prune(before time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM invocations WHERE created_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune invocations: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

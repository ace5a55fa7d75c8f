package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens dsn with the pure-Go SQLite driver and prepares the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	store, err := NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps db and ensures the schema exists.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("prepare audit schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Record stores entry.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_audit (
			invocation_id, action_id, capability_id, executor, outcome, error_code, error_text, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.InvocationID,
		e.ActionID,
		e.CapabilityID,
		e.Executor,
		e.Outcome,
		e.ErrorCode,
		e.Error,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// List returns matching entries, oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT invocation_id, action_id, capability_id, executor, outcome, error_code, error_text, started_at, finished_at
		FROM dispatch_audit
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.ActionID != "" {
		addFilter("action_id = ?", filter.ActionID)
	}
	if filter.Executor != "" {
		addFilter("executor = ?", filter.Executor)
	}
	if filter.Outcome != "" {
		addFilter("outcome = ?", filter.Outcome)
	}
	query += where + " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished string
		)
		if err := rows.Scan(
			&e.InvocationID,
			&e.ActionID,
			&e.CapabilityID,
			&e.Executor,
			&e.Outcome,
			&e.ErrorCode,
			&e.Error,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dispatch_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			invocation_id TEXT NOT NULL,
			action_id TEXT NOT NULL,
			capability_id TEXT NOT NULL DEFAULT '',
			executor TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			error_code TEXT NOT NULL DEFAULT '',
			error_text TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_dispatch_audit_action ON dispatch_audit(action_id);
		CREATE INDEX IF NOT EXISTS idx_dispatch_audit_outcome ON dispatch_audit(outcome);
	`)
	return err
}

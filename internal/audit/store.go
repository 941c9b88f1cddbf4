// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aplane-algo/jsguard/internal/fsutil"
)

// Store persists audit events in SQLite.
type Store struct {
	db         *sql.DB
	insertStmt *sql.Stmt
	recentStmt *sql.Stmt
}

// OpenStore opens or creates the audit database at path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("audit db path cannot be empty")
	}
	if err := fsutil.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	if err := fsutil.TouchPrivate(path); err != nil {
		return nil, fmt.Errorf("failed to create audit database: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare audit statements: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		verdict TEXT NOT NULL,
		message TEXT NOT NULL,
		source_hash TEXT NOT NULL,
		source_len INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_request ON events(request_id);
	`)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO events (request_id, verdict, message, source_hash, source_len, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.recentStmt, err = s.db.Prepare(`
		SELECT id, request_id, verdict, message, source_hash, source_len, created_at
		FROM events
		ORDER BY id DESC
		LIMIT ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare recent statement: %w", err)
	}
	return nil
}

// Insert writes ev and returns its assigned id.
func (s *Store) Insert(ctx context.Context, ev Event) (int64, error) {
	res, err := s.insertStmt.ExecContext(ctx,
		ev.RequestID, ev.Verdict, ev.Message, ev.SourceHash, ev.SourceLen, ev.CreatedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to insert audit event: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to n events, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.recentStmt.QueryContext(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var ev Event
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.RequestID, &ev.Verdict, &ev.Message, &ev.SourceHash, &ev.SourceLen, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.CreatedAt = time.Unix(0, createdAt)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit events: %w", err)
	}
	return events, nil
}

// Close releases the database.
func (s *Store) Close() error {
	_ = s.insertStmt.Close()
	_ = s.recentStmt.Close()
	return s.db.Close()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
    namespace  TEXT NOT NULL,
    id         TEXT NOT NULL,
    payload    TEXT NOT NULL,
    created_at INTEGER NOT NULL,  -- Unix nanoseconds
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, id)
) WITHOUT ROWID;
`

// SQLiteStore is a Store backed by a single SQLite database file.
type SQLiteStore struct {
	// Now overrides the clock used for timestamps.
	Now func() time.Time

	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path.
// The special path ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, namespace, id string) (Record, error) {
	if err := validateKey(namespace, id); err != nil {
		return Record{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at, updated_at FROM records WHERE namespace = ? AND id = ?`,
		namespace, id)

	var payload string
	var created, updated int64
	if err := row.Scan(&payload, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("failed to read %s/%s: %w", namespace, id, err)
	}
	return Record{
		ID:        id,
		Namespace: namespace,
		Payload:   []byte(payload),
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, namespace, id string, payload any) (Record, error) {
	if err := validateKey(namespace, id); err != nil {
		return Record{}, err
	}
	data, err := encodePayload(payload)
	if err != nil {
		return Record{}, err
	}
	now := nowFunc(s.Now)

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO records (namespace, id, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
		RETURNING created_at`,
		namespace, id, string(data), now.UnixNano(), now.UnixNano())

	var created int64
	if err := row.Scan(&created); err != nil {
		return Record{}, fmt.Errorf("failed to write %s/%s: %w", namespace, id, err)
	}
	return Record{
		ID:        id,
		Namespace: namespace,
		Payload:   data,
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: now,
	}, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, namespace, id string) error {
	if err := validateKey(namespace, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE namespace = ? AND id = ?`, namespace, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, id, err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, namespace string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, created_at, updated_at FROM records WHERE namespace = ? ORDER BY id`,
		namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", namespace, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var id, payload string
		var created, updated int64
		if err := rows.Scan(&id, &payload, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, Record{
			ID:        id,
			Namespace: namespace,
			Payload:   []byte(payload),
			CreatedAt: time.Unix(0, created).UTC(),
			UpdatedAt: time.Unix(0, updated).UTC(),
		})
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Package sqlitekv is a tiny key/value table on an on-device SQLite file.
package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver for database/sql

	"github.com/mpblatz/repeet/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

const (
	selectValue = `SELECT value FROM kv WHERE key = ?`
	upsertValue = `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

// Store holds opaque values by key.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite file at path and ensures the
// kv table exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	// Transactions start with BEGIN IMMEDIATE so a read-modify-write cycle
	// holds the write lock from its first read, across processes too.
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection keeps every write on the same file handle.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	for _, stmt := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Get returns the value stored under key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, selectValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("read "+key, err)
	}
	return value, true, nil
}

// Put replaces the value stored under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, upsertValue, key, value, now); err != nil {
		return unavailable("write "+key, err)
	}
	return nil
}

// Update replaces the value under key with the result of fn, called with the
// current value inside one write transaction. ok is false when the key is
// absent. An error from fn aborts the update and is returned unchanged.
func (s *Store) Update(ctx context.Context, key string, fn func(old []byte, ok bool) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin "+key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var old []byte
	ok := true
	err = tx.QueryRowContext(ctx, selectValue, key).Scan(&old)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		ok = false
	case err != nil:
		return unavailable("read "+key, err)
	}

	value, err := fn(old, ok)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, upsertValue, key, value, now); err != nil {
		return unavailable("write "+key, err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit "+key, err)
	}
	return nil
}

// Ping checks that the file is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("sqlitekv: %s: %w", op, err)
	}
	return fmt.Errorf("sqlitekv: %s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

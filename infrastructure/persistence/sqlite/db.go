package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	pkgerrors "path-backend/pkg/errors"
)

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file::memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = "file:" + path
	}
	dsn += "?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Migrate creates the schema if it does not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS point (
			id TEXT PRIMARY KEY,
			created_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS point_memo (
			point_id TEXT NOT NULL REFERENCES point(id),
			memo_id TEXT NOT NULL,
			PRIMARY KEY (point_id, memo_id)
		)`,
		`CREATE TABLE IF NOT EXISTS memo (
			id TEXT CONSTRAINT memo_pkey PRIMARY KEY,
			point_id TEXT CONSTRAINT memo_point_not_null NOT NULL,
			title TEXT CONSTRAINT memo_title_not_null NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			summary_ts INTEGER,
			latest_revision_id TEXT NOT NULL DEFAULT '',
			created_ts INTEGER NOT NULL,
			created_by TEXT NOT NULL,
			updated_ts INTEGER NOT NULL,
			external_marker TEXT NOT NULL DEFAULT '',
			CONSTRAINT memo_point_title_key UNIQUE (point_id, title)
		)`,
		`CREATE TABLE IF NOT EXISTS memo_draft (
			memo_id TEXT CONSTRAINT memo_draft_pkey PRIMARY KEY REFERENCES memo(id),
			editor_id TEXT NOT NULL,
			created_ts INTEGER NOT NULL,
			updated_ts INTEGER NOT NULL,
			body TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS memo_reserve (
			memo_id TEXT CONSTRAINT memo_reserve_pkey PRIMARY KEY REFERENCES memo(id),
			editor_id TEXT NOT NULL,
			code TEXT NOT NULL,
			reserved_ts INTEGER NOT NULL,
			expires_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS revision_content (
			id TEXT CONSTRAINT revision_content_pkey PRIMARY KEY,
			size INTEGER NOT NULL,
			address TEXT NOT NULL,
			compressed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS memo_revision (
			id TEXT CONSTRAINT memo_revision_pkey PRIMARY KEY,
			memo_id TEXT NOT NULL REFERENCES memo(id),
			actor_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			start_ts INTEGER NOT NULL,
			end_ts INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			content_id TEXT NOT NULL REFERENCES revision_content(id),
			summary TEXT NOT NULL DEFAULT '',
			minor_edit INTEGER NOT NULL DEFAULT 0,
			CONSTRAINT memo_revision_seq_key UNIQUE (memo_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS memo_contributor (
			memo_id TEXT NOT NULL REFERENCES memo(id),
			user_id TEXT NOT NULL,
			added_ts INTEGER NOT NULL,
			CONSTRAINT memo_contributor_pkey PRIMARY KEY (memo_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS blob (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing only if fn succeeds
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// guardAbsent fails with constraint when query finds a row. Writers hold
// the immediate transaction lock, so the check and the following insert
// cannot interleave with another writer.
func guardAbsent(ctx context.Context, tx *sql.Tx, constraint, key, query string, args ...interface{}) error {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("check %s: %w", constraint, err)
	default:
		return pkgerrors.NewConstraintViolation(constraint, key, nil)
	}
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

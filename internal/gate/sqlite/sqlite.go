// Package sqlite provides the SQLite-backed publish record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/postgram/postgram/internal/gate"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000 // milliseconds

// Store implements gate.RecordStore on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates the schema.
//
// The database is created with WAL mode, a 5 s busy timeout, and a single
// connection (SQLite serialises writes anyway). Close the store when done.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the record for postID, or nil when none exists.
func (s *Store) Get(ctx context.Context, postID string) (*gate.Record, error) {
	var rec gate.Record
	var published int
	err := s.db.QueryRowContext(ctx, `
		SELECT post_id, published_before, last_known_status
		FROM publish_records
		WHERE post_id = ?`,
		postID,
	).Scan(&rec.PostID, &published, &rec.LastKnownStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get publish record: %w", err)
	}
	rec.PublishedBefore = published != 0
	return &rec, nil
}

// CreateIfAbsent inserts the record unless one already exists for the same
// post ID. The INSERT OR IGNORE is the atomic check-and-set: the returned
// flag is true only for the call that actually created the row.
func (s *Store) CreateIfAbsent(ctx context.Context, rec gate.Record) (bool, error) {
	published := 0
	if rec.PublishedBefore {
		published = 1
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO publish_records (post_id, published_before, last_known_status)
		VALUES (?, ?, ?)`,
		rec.PostID, published, rec.LastKnownStatus,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: create publish record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n > 0, nil
}

// Package storage persists terminal run results to a local SQLite
// database. The archive is a history surface only: the live source of
// truth for a run is its workflow, and the store is written exactly once
// per run, at completion.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/ashita-ai/kotae/migrations"
)

// Store is a handle to the run archive. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the archive at path and applies any
// pending migrations. Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY on concurrent archive activities.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, migrations.FS, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("run archive opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

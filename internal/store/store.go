// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package store is the transactional persistence layer over the catalog
// schema (spec §4.2): a single DuckDB database, FK-enforced, WAL-journaled,
// with writers serialized and readers concurrent. Catalog services build on
// the generic List/ListWhere/Get/GetBulk/ValueUpdate helpers here instead of
// hand-writing SQL per entity.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/sonarhost/sonar/internal/config"
)

// Store wraps the DuckDB connection. All mutating access goes through
// WithTx, which serializes writers with a mutex; DuckDB itself allows
// concurrent readers against the same handle.
type Store struct {
	db     *sql.DB
	writeMu sync.Mutex
}

// Open opens (creating if absent) the DuckDB database at cfg.Path,
// configures its memory/thread limits, and applies the catalog schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %s: %w", cfg.Path, err)
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("SET threads TO %d", threads)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set threads: %w", err)
	}
	if cfg.MaxMemory != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET max_memory = '%s'", cfg.MaxMemory)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set max_memory: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA enable_checkpoint_on_shutdown"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable checkpoint on shutdown: %w", err)
	}
	// DuckDB enforces foreign keys by default once declared in the schema;
	// this pragma keeps the invariant explicit at the call site.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys"); err != nil {
		db.Close()
		return nil, fmt.Errorf("check foreign key support: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying DuckDB connection, flushing its WAL.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw *sql.DB for packages (audit) that keep their own
// tables in the same database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a single serialized write transaction, committing
// on success and rolling back on error or panic. Every catalog create/
// update/delete goes through this so row, property, genre, and join writes
// land atomically (spec §4.2, §5, §7).
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB (for reads outside a transaction)
// and *sql.Tx (for reads/writes inside WithTx).
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Reader returns a querier for read-only access outside any transaction,
// per spec §4.2's "reads may execute outside a transaction".
func (s *Store) Reader() querier {
	return s.db
}

// Package sqlite implements storage.Store on SQLite using the pure-Go
// modernc.org/sqlite driver.
//
// The schema is the seven-table relational layout: sources, raw_content,
// quotes, nodes, edges, quote_node_links and ideas. Every table carries an
// owner_id column and every query filters on it.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/quarry/storage"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// txKey carries an open transaction in a context.
type txKey struct{}

// querier is the subset of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements storage.Store on one SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore opens (or creates) the database file at path and applies the
// schema. Pass MemoryPath for a throwaway in-memory database.
//
// Returns storage.Store interface to enforce abstraction.
func NewStore(path string) (storage.Store, error) {
	return newStore(path)
}

// newStore is an internal constructor that returns the concrete type.
func newStore(path string) (*Store, error) {
	inMemory := path == "" || path == MemoryPath
	if inMemory {
		path = MemoryPath
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: pragmas stay in effect, an in-memory database is not
	// lost to a pool reconnect, and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if !inMemory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "sqlite"),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTransaction executes a function within a transaction.
// Implements storage.Transactor interface.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
	}
	return nil
}

// update runs fn in the transaction carried by ctx, or in a new one that
// commits when fn succeeds.
func (s *Store) update(ctx context.Context, fn func(q querier) error) error {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(tx)
	}
	return s.WithTransaction(ctx, func(txCtx context.Context) error {
		return fn(txCtx.Value(txKey{}).(*sql.Tx))
	})
}

// conn returns the transaction carried by ctx, or the database.
func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// requireRef verifies that table has a row with id under owner.
// table is always one of the package's table name constants.
func requireRef(ctx context.Context, q querier, table, owner string, id int64, what string) error {
	var one int
	err := q.QueryRowContext(ctx,
		"SELECT 1 FROM "+table+" WHERE id = ? AND owner_id = ?", id, owner).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", storage.ErrInvalidReference, what, id)
	}
	return mapError(err)
}

// mapError translates driver errors into storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || err.Error() == "sql: database is closed" {
		return fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w", storage.ErrDuplicateKey, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %w", storage.ErrInvalidReference, err)
		}
	}
	return err
}

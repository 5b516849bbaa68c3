package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrBusy indicates the database is locked by a concurrent invocation.
// A run hitting this must abort without mutation; it is a skip, not a fault.
var ErrBusy = errors.New("database is busy")

// DB wraps the SQLite connection. All per-run mutation goes through
// InTransaction; direct Store access is for reads outside the run boundary.
type DB struct {
	sql  *sql.DB
	path string
}

// Open opens (or creates) the database at path and runs migrations.
// The path can be ":memory:" for an in-memory database.
func Open(path string) (*DB, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps the immediate-transaction lock semantics
	// honest and avoids table-level races between pooled connections.
	db.SetMaxOpenConns(1)

	d := &DB{sql: db, path: path}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return d, nil
}

// migrate runs database migrations.
func (d *DB) migrate() error {
	var currentVersion int
	err := d.sql.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		// Table doesn't exist, run initial schema
		if _, err := d.sql.Exec(Schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		_, err = d.sql.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	for v := currentVersion + 1; v <= SchemaVersion; v++ {
		migration, ok := Migrations[v]
		if !ok {
			continue
		}
		if _, err := d.sql.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", v, err)
		}
		if _, err := d.sql.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", v, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Path returns the on-disk database path.
func (d *DB) Path() string {
	return d.path
}

// Store returns a store bound to the connection, outside any transaction.
func (d *DB) Store() *Store {
	return &Store{q: d.sql}
}

// VacuumInto writes a consistent snapshot of the database to dest. Unlike a
// plain file copy this is safe under WAL mode while other writers exist.
func (d *DB) VacuumInto(ctx context.Context, dest string) error {
	_, err := d.sql.ExecContext(ctx, `VACUUM INTO ?`, dest)
	return err
}

// InTransaction runs fn with a store bound to a single immediate
// transaction. Either every mutation fn performs commits, or none does.
// A lock held by an overlapping invocation surfaces as ErrBusy.
func (d *DB) InTransaction(ctx context.Context, fn func(*Store) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return busyOr(err)
	}
	if err := fn(&Store{q: tx}); err != nil {
		tx.Rollback()
		return busyOr(err)
	}
	if err := tx.Commit(); err != nil {
		return busyOr(err)
	}
	return nil
}

// busyOr maps SQLITE_BUSY / SQLITE_LOCKED onto ErrBusy.
func busyOr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		if se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", ErrBusy, err)
		}
	}
	return err
}

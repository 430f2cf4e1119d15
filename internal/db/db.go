// Package db provides database persistence for plannr.
//
// One database holds the user's projects and tasks: a SQLite file by
// default (~/.plannr/plannr.db) or a PostgreSQL database.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/randalmurphal/plannr/internal/db/driver"
)

//go:embed schema/*.sql schema/postgres/*.sql
var schemaFS embed.FS

// DB wraps a database connection with driver abstraction.
type DB struct {
	driver driver.Driver
	path   string
}

// Open opens a SQLite database at the given path.
// Creates the parent directory if it doesn't exist.
func Open(path string) (*DB, error) {
	return OpenWithDialect(path, driver.DialectSQLite)
}

// OpenInMemory opens an in-memory SQLite database.
// Each call creates a new isolated database.
func OpenInMemory() (*DB, error) {
	drv, err := driver.New(driver.DialectSQLite)
	if err != nil {
		return nil, err
	}
	if err := drv.Open(":memory:"); err != nil {
		return nil, err
	}
	return &DB{driver: drv, path: ":memory:"}, nil
}

// OpenWithDialect opens a database with a specific dialect.
// For SQLite, dsn is the file path. For PostgreSQL, dsn is the connection string.
func OpenWithDialect(dsn string, dialect driver.Dialect) (*DB, error) {
	if dialect == driver.DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	drv, err := driver.New(dialect)
	if err != nil {
		return nil, err
	}
	if err := drv.Open(dsn); err != nil {
		return nil, err
	}
	return &DB{driver: drv, path: dsn}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.driver.Close()
}

// Path returns the database DSN/path.
func (d *DB) Path() string {
	return d.path
}

// Driver returns the underlying driver for dialect-specific operations.
func (d *DB) Driver() driver.Driver {
	return d.driver
}

// Dialect returns the database dialect.
func (d *DB) Dialect() driver.Dialect {
	return d.driver.Dialect()
}

// Migrate runs all migrations for the given schema type.
// Schema files are named {type}_NNN.sql (e.g., store_001.sql).
func (d *DB) Migrate(ctx context.Context, schemaType string) error {
	return d.driver.Migrate(ctx, schemaFS, schemaType)
}

// QueryContext runs a ?-placeholder query.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.driver.Query(ctx, driver.Rebind(d.driver, query), args...)
}

// QueryRowContext runs a ?-placeholder query returning at most one row.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.driver.QueryRow(ctx, driver.Rebind(d.driver, query), args...)
}

// ExecContext runs a ?-placeholder statement.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.driver.Exec(ctx, driver.Rebind(d.driver, query), args...)
}

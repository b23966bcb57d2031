// Package db persists finished recordings in SQLite and serves the admin
// surface (tailsql console, gzip backup) the daemons hang under /debug.
//
// The schema is owned by golang-migrate over the migration files embedded in
// migrations/. NewDB opens a database and brings it to the latest version;
// Open leaves the schema alone for callers that manage versions themselves,
// such as the migrate subcommand.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle shared by the recorder and the admin routes.
type DB struct {
	*sql.DB
	path string
}

// Open opens the SQLite database at path, creating it if needed, and applies
// the session pragmas. The schema is not touched.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// Session pragmas only apply to the connection that ran them, so keep
	// the pool at a single connection.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens the database at path and migrates it to the latest schema
// version.
func NewDB(path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string { return db.path }

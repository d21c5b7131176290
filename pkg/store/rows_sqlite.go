package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// NewSQLiteRows opens (or creates) a SQLite database at path and returns an
// append-only row store over it.
func NewSQLiteRows(path string) (*Rows, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	return NewRowsDB(db, false), nil
}

// NewRowsDB wraps an existing database handle. Used by tests and by callers
// that manage their own connection pool.
func NewRowsDB(db *sql.DB, postgres bool) *Rows {
	d := dialectSQLite
	if postgres {
		d = dialectPostgres
	}
	return &Rows{db: db, dialect: d, migrated: make(map[string]bool)}
}

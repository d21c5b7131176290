package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// NewPostgresRows connects to Postgres with the given DSN and returns an
// append-only row store over it.
func NewPostgresRows(dsn string) (*Rows, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	return NewRowsDB(db, true), nil
}

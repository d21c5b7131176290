// Package store provides SQL-backed tabular sinks: append-only row tables
// whose columns mirror the sheet schema one-to-one. Deployments without
// Sheets credentials point the primary sink here instead.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/fieldwork-labs/intake/pkg/sheet"
	"github.com/fieldwork-labs/intake/pkg/sink"
)

const defaultTable = "responses"

var tableNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// dialect abstracts the placeholder syntax difference between SQLite and
// Postgres; everything else about the statements is shared.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Rows is an append-only tabular sink over database/sql.
type Rows struct {
	db      *sql.DB
	dialect dialect

	mu       sync.Mutex
	migrated map[string]bool
}

// Append inserts one fixed-width row. The destination names the target table
// (defaulting to "responses"); unsafe names are rejected rather than quoted
// around.
func (r *Rows) Append(ctx context.Context, row []string, destination string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("store: no database configured: %w", sink.ErrBackendUnavailable)
	}
	if len(row) != len(sheet.Columns) {
		return fmt.Errorf("store: row has %d cells, schema has %d: %w",
			len(row), len(sheet.Columns), sink.ErrSchemaMismatch)
	}

	table, err := tableName(destination)
	if err != nil {
		return err
	}
	if err := r.migrate(ctx, table); err != nil {
		return err
	}

	args := make([]any, len(row))
	for i, cell := range row {
		args[i] = cell
	}
	if _, err := r.db.ExecContext(ctx, r.insertSQL(table), args...); err != nil {
		return fmt.Errorf("store: append to %s failed: %w", table, err)
	}
	return nil
}

// migrate creates the destination table when absent, once per table per
// process. Columns are TEXT across the board: cells arrive pre-formatted and
// the store never interprets them.
func (r *Rows) migrate(ctx context.Context, table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.migrated[table] {
		return nil
	}

	defs := make([]string, 0, len(sheet.Columns)+1)
	defs = append(defs, "id "+r.serialColumn())
	for _, col := range sheet.Columns {
		defs = append(defs, col+" TEXT")
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("store: migrate %s failed: %w", table, err)
	}
	if r.migrated == nil {
		r.migrated = make(map[string]bool)
	}
	r.migrated[table] = true
	return nil
}

func (r *Rows) insertSQL(table string) string {
	marks := make([]string, len(sheet.Columns))
	for i := range marks {
		if r.dialect == dialectPostgres {
			marks[i] = fmt.Sprintf("$%d", i+1)
		} else {
			marks[i] = "?"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(sheet.Columns, ", "), strings.Join(marks, ", "))
}

func (r *Rows) serialColumn() string {
	if r.dialect == dialectPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func tableName(destination string) (string, error) {
	if destination == "" {
		return defaultTable, nil
	}
	if !tableNameRe.MatchString(destination) {
		return "", fmt.Errorf("store: unsafe table name %q", destination)
	}
	return destination, nil
}

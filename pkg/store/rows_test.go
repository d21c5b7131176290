package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/fieldwork-labs/intake/pkg/sheet"
	"github.com/fieldwork-labs/intake/pkg/sink"
)

func fullRow() []string {
	row := make([]string, len(sheet.Columns))
	for i := range row {
		row[i] = "cell"
	}
	return row
}

func TestRows_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS responses").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO responses").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rows := NewRowsDB(db, false)
	if err := rows.Append(context.Background(), fullRow(), ""); err != nil {
		t.Errorf("error was not expected while appending row: %s", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %s", err)
	}
}

func TestRows_MigrateOncePerTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %s", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS responses").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO responses").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO responses").
		WillReturnResult(sqlmock.NewResult(2, 1))

	rows := NewRowsDB(db, false)
	ctx := context.Background()
	if err := rows.Append(ctx, fullRow(), ""); err != nil {
		t.Fatalf("first append: %s", err)
	}
	if err := rows.Append(ctx, fullRow(), ""); err != nil {
		t.Fatalf("second append: %s", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %s", err)
	}
}

func TestRows_SchemaMismatch(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %s", err)
	}
	defer func() { _ = db.Close() }()

	rows := NewRowsDB(db, false)
	err = rows.Append(context.Background(), []string{"too", "short"}, "")
	if !errors.Is(err, sink.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRows_NilDBUnavailable(t *testing.T) {
	var rows *Rows
	err := rows.Append(context.Background(), fullRow(), "")
	if !errors.Is(err, sink.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestRows_RejectsUnsafeTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %s", err)
	}
	defer func() { _ = db.Close() }()

	rows := NewRowsDB(db, false)
	if err := rows.Append(context.Background(), fullRow(), "resp; DROP TABLE x"); err == nil {
		t.Error("expected error for unsafe table name")
	}
}

func TestRows_PostgresPlaceholders(t *testing.T) {
	rows := &Rows{dialect: dialectPostgres}
	stmt := rows.insertSQL("responses")
	if !strings.Contains(stmt, "$34") {
		t.Errorf("expected $34 in %s", stmt)
	}
	rows = &Rows{dialect: dialectSQLite}
	if stmt := rows.insertSQL("responses"); strings.Contains(stmt, "$1") {
		t.Errorf("sqlite statement should use ? placeholders: %s", stmt)
	}
}

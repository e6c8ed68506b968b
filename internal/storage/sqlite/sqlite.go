// Package sqlite stores ledger, employee, user and job data in a single
// SQLite file through the pure Go modernc driver. It backs local development
// and tests; production runs on Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

	// DSNPrefix marks a DATABASE_URL that points at a SQLite file.
	DSNPrefix = "sqlite:"
)

type DB struct {
	db *sql.DB
}

// IsDSN reports whether url selects the SQLite backend.
func IsDSN(url string) bool {
	return strings.HasPrefix(url, DSNPrefix)
}

// Open opens (creating if needed) the database at path and applies the schema.
// path may carry the "sqlite:" prefix used in DATABASE_URL.
func Open(path string) (*DB, error) {
	path = strings.TrimPrefix(path, DSNPrefix)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serialises anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Ledger() *LedgerStore {
	return &LedgerStore{db: d.db}
}

func (d *DB) Employees() *EmployeeStore {
	return &EmployeeStore{db: d.db}
}

func (d *DB) Users() *UserStore {
	return &UserStore{db: d.db}
}

func (d *DB) JobRuns() *JobRunStore {
	return &JobRunStore{db: d.db}
}

func (d *DB) Audit() *AuditStore {
	return &AuditStore{db: d.db}
}

func (d *DB) Idempotency() *IdempotencyStore {
	return &IdempotencyStore{db: d.db}
}

func (d *DB) Retention() *RetentionStore {
	return &RetentionStore{db: d.db}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

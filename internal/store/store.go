package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Store runs read-only statements against one database.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to dsn with the named driver and verifies the connection.
//
// SQLite connections are pinned to a single handle, wait up to five seconds
// on locks and enforce foreign keys. File databases also switch to WAL.
func Open(driver, dsn string) (*Store, error) {
	if _, err := DefaultDialect(driver); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if isSQLite(driver) {
		// One connection keeps in-memory databases and pragmas consistent.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db, dsn); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return &Store{db: db, driver: driver}, nil
}

// New wraps an open database. The caller keeps ownership of db.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Close releases the connection pool. A nil pool is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Exec runs a statement that returns no rows, such as a fixture script.
func (s *Store) Exec(ctx context.Context, text string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, text, args...); err != nil {
		return err
	}
	return nil
}

// Query executes text with args and reads every row. A query that matches
// nothing returns an empty result set, never an error.
func (s *Store) Query(ctx context.Context, text string, args []any) (*ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scan(rows)
}

func applyPragmas(db *sql.DB, dsn string) error {
	settings := []string{"busy_timeout = 5000", "foreign_keys = ON"}
	if !inMemory(dsn) {
		settings = append(settings, "journal_mode = WAL")
	}
	for _, setting := range settings {
		if _, err := db.Exec("PRAGMA " + setting); err != nil {
			return fmt.Errorf("failed to set %s: %w", setting, err)
		}
	}
	return nil
}

func inMemory(dsn string) bool {
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// pragma reads the current value of a SQLite pragma.
func (s *Store) pragma(name string) (string, error) {
	var v string
	err := s.db.QueryRow("PRAGMA " + name).Scan(&v)
	return v, err
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/vfpquery/internal/testutil"
)

func openNorthwind(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite3", testutil.NorthwindDSN(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "scott/tiger")
	if err == nil {
		t.Fatal("expected error for unknown driver, got nil")
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("sqlite3", "/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_FileDatabaseUsesWAL(t *testing.T) {
	s, err := Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	} {
		got, err := s.pragma(name)
		if err != nil {
			t.Fatalf("pragma %s: %v", name, err)
		}
		if got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestQuery_ReadsRows(t *testing.T) {
	s := openNorthwind(t)

	rs, err := s.Query(context.Background(),
		"SELECT productid, productname, unitprice FROM products WHERE categoryid = ? ORDER BY productid",
		[]any{int64(1)})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}

	if got := rs.Columns; len(got) != 3 || got[0] != "productid" || got[2] != "unitprice" {
		t.Fatalf("Columns = %v", got)
	}
	if rs.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", rs.Len())
	}
	first := rs.Rows[0]
	if first[0] != int64(1) || first[1] != "Chai" || first[2] != 18.0 {
		t.Errorf("first row = %#v", first)
	}
	if rs.Index("productname") != 1 || rs.Index("missing") != -1 {
		t.Error("Index() returned wrong positions")
	}
}

func TestQuery_EmptyResultIsNotAnError(t *testing.T) {
	s := openNorthwind(t)

	rs, err := s.Query(context.Background(), "SELECT orderid FROM orders WHERE orderid < 0", nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if rs.Rows == nil || rs.Len() != 0 {
		t.Errorf("want empty non-nil rows, got %#v", rs.Rows)
	}
}

func TestQuery_BackendError(t *testing.T) {
	s := openNorthwind(t)

	_, err := s.Query(context.Background(), "SELECT nosuchcolumn FROM orders", nil)
	if err == nil {
		t.Fatal("expected error for unknown column, got nil")
	}
}

func TestQuery_NullCells(t *testing.T) {
	s := openNorthwind(t)

	rs, err := s.Query(context.Background(),
		"SELECT shippeddate FROM orders WHERE orderid = 10004", nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if rs.Len() != 1 || rs.Rows[0][0] != nil {
		t.Errorf("want one NULL cell, got %#v", rs.Rows)
	}
}

func TestPureGoDriver(t *testing.T) {
	s, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Exec(ctx, "CREATE TABLE t (id INTEGER, name TEXT); INSERT INTO t VALUES (1, 'a'), (2, 'b');"); err != nil {
		t.Fatalf("Exec() failed: %v", err)
	}
	rs, err := s.Query(ctx, "SELECT name FROM t WHERE id > ?", []any{int64(1)})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if rs.Len() != 1 || rs.Rows[0][0] != "b" {
		t.Errorf("rows = %#v", rs.Rows)
	}
}

func TestDefaultDialect(t *testing.T) {
	tests := map[string]string{
		"sqlite3":  "sqlite",
		"sqlite":   "sqlite",
		"postgres": "postgres",
		"mysql":    "mysql",
	}
	for driver, want := range tests {
		got, err := DefaultDialect(driver)
		if err != nil {
			t.Fatalf("DefaultDialect(%q) failed: %v", driver, err)
		}
		if got != want {
			t.Errorf("DefaultDialect(%q) = %q, want %q", driver, got, want)
		}
	}
	if _, err := DefaultDialect("odbc"); err == nil {
		t.Error("expected error for unknown driver")
	}
}

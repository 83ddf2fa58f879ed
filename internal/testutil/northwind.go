// Package testutil provides the Northwind fixture shared by package tests:
// the schema, an in-memory SQLite database seeded with known rows, and
// deterministic execution IDs.
package testutil

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vfpquery/internal/schema"
)

//go:embed testdata/northwind.cue
var NorthwindSchema []byte

//go:embed testdata/northwind.sql
var NorthwindSQL string

// Row counts of the seeded tables.
const (
	CategoryCount    = 4
	ProductCount     = 11
	CustomerCount    = 7
	EmployeeCount    = 4
	OrderCount       = 25
	OrderDetailCount = 50
)

// Northwind compiles the Northwind schema.
func Northwind(t testing.TB) *schema.Model {
	t.Helper()
	m, err := schema.CompileBytes("northwind.cue", NorthwindSchema)
	require.NoError(t, err)
	return m
}

var dbSeq atomic.Int64

// NorthwindDB opens a private in-memory SQLite database seeded with the
// Northwind rows. It is closed when the test ends.
func NorthwindDB(t testing.TB) *sql.DB {
	t.Helper()
	return seed(t, nextDSN())
}

// NorthwindDSN returns the DSN of a fresh seeded database for code that
// opens its own connections. The database lives until the test ends.
func NorthwindDSN(t testing.TB) string {
	t.Helper()
	dsn := nextDSN()
	seed(t, dsn)
	return dsn
}

// Shared cache keeps a named in-memory database alive across connections
// while one of them is open.
func nextDSN() string {
	return fmt.Sprintf("file:northwind%d?mode=memory&cache=shared", dbSeq.Add(1))
}

func seed(t testing.TB, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), NorthwindSQL)
	require.NoError(t, err)
	return db
}

package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/store"
	"github.com/roach88/vfpquery/internal/testutil"
)

func newRunner(t *testing.T) *Runner {
	t.Helper()
	st := store.New(testutil.NorthwindDB(t), "sqlite3")
	return NewRunner(testutil.Northwind(t),
		WithBackend(st, "sqlite"),
		WithIDGenerator(testutil.NewSequenceIDs("")),
	)
}

func parse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(src))
	require.NoError(t, err)
	return doc
}

func TestGoldenDocuments(t *testing.T) {
	docs, err := LoadDir("testdata/queries")
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	for _, doc := range docs {
		t.Run(doc.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, newRunner(t), doc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunDocuments(t *testing.T) {
	docs, err := LoadDir("testdata/runs")
	require.NoError(t, err)

	for _, doc := range docs {
		t.Run(doc.Name, func(t *testing.T) {
			result, err := newRunner(t).Run(context.Background(), doc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Runs, len(doc.Runs))
		})
	}
}

func TestRunReadsParametersOnEachRun(t *testing.T) {
	doc := parse(t, `
name: freight
description: "count above a threshold"
params:
  minFreight: 50
query:
  from: Orders
  ops:
    - count: {gt: [{get: Freight}, {param: minFreight}]}
dialects:
  sqlite: {}
runs:
  - expect: {value: 20}
  - params: {minFreight: 100}
    expect: {value: 15}
  - params: {minFreight: 200}
    expect: {value: 5}
`)

	result, err := newRunner(t).Run(context.Background(), doc)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Runs, 3)
	for i, want := range []int64{20, 15, 5} {
		assert.Equal(t, ir.IRInt(want), result.Runs[i].Value)
		assert.Equal(t, []string{"exec-1", "exec-2", "exec-3"}[i], result.Runs[i].ExecutionID)
	}

	sqlite, ok := result.Statement("sqlite")
	require.True(t, ok)
	assert.Equal(t, []string{"minFreight"}, sqlite.Params)
	assert.NotEmpty(t, sqlite.Fingerprint)
}

func TestRunReportsFailedExpectations(t *testing.T) {
	doc := parse(t, `
name: wrong
description: "expectations that do not hold"
query:
  from: Customers
  ops:
    - where: {eq: [{get: City}, London]}
    - orderBy: {get: CustomerID}
    - select: {get: CompanyName}
dialects:
  sqlite: {}
runs:
  - expect:
      count: 3
      rows: [Around the Horn, South/North]
`)

	result, err := newRunner(t).Run(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: count")
	assert.Contains(t, result.Errors[1], "Assertion failed: rows")
	assert.Contains(t, result.Errors[1], `"North/South"`)
	assert.Contains(t, result.Errors[1], "Statement: SELECT")
}

func TestRunReportsUnexpectedCompileOutcome(t *testing.T) {
	doc := parse(t, `
name: atc
description: "expects the wrong outcome on both dialects"
query:
  from: Customers
  ops:
    - where: {gt: [{call: Atc, args: [market, {get: ContactName}]}, 0]}
dialects:
  sqlite: {}
  vfp: {error: UNSUPPORTED_FUNCTION}
`)

	result, err := NewRunner(testutil.Northwind(t)).Run(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "UNSUPPORTED_FUNCTION")
	assert.Contains(t, result.Errors[1], "Actual: compiled")

	sqlite, _ := result.Statement("sqlite")
	assert.Equal(t, "UNSUPPORTED_FUNCTION", sqlite.Error)
	assert.Empty(t, sqlite.Text)
}

func TestRunWithoutRunsNeedsNoBackend(t *testing.T) {
	doc := parse(t, `
name: compile_only
description: "compiles for every dialect"
query:
  from: Categories
`)

	result, err := NewRunner(testutil.Northwind(t)).Run(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Statements, 4)
	assert.Empty(t, result.Runs)
}

func TestRunNeedsBackendForRuns(t *testing.T) {
	doc := parse(t, `
name: needs_backend
description: "has runs"
query:
  from: Categories
runs:
  - expect: {count: 4}
`)

	_, err := NewRunner(testutil.Northwind(t)).Run(context.Background(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runs need a backend")
}

func TestRunBackendFailure(t *testing.T) {
	doc := parse(t, `
name: missing_table
description: "statement the backend rejects"
query:
  from: Categories
dialects:
  sqlite: {}
runs:
  - expect: {error: BACKEND_EXECUTION}
`)

	st := store.New(testutil.NorthwindDB(t), "sqlite3")
	require.NoError(t, st.Exec(context.Background(), "DROP TABLE categories"))
	r := NewRunner(testutil.Northwind(t), WithBackend(st, "sqlite"))

	result, err := r.Run(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "BACKEND_EXECUTION", result.Runs[0].Error)
	assert.Contains(t, result.Runs[0].Message, "categories")
}

package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	r := NewResult("example")
	r.Statements = []Rendered{
		{Dialect: "sqlite", Text: `SELECT t0.orderid AS "Value" FROM orders t0 WHERE t0.freight > ?`, Params: []string{"minFreight"}, Fingerprint: "abc"},
		{Dialect: "vfp", Error: "UNSUPPORTED_CONSTRUCT", Message: "ignored"},
	}

	want := `-- sqlite --
SELECT t0.orderid AS "Value" FROM orders t0 WHERE t0.freight > ?
params: minFreight
-- vfp --
error: UNSUPPORTED_CONSTRUCT
`
	assert.Equal(t, want, string(Snapshot(r)))
}

func TestSnapshotEmpty(t *testing.T) {
	assert.Empty(t, Snapshot(NewResult("empty")))
}

func TestResultAddError(t *testing.T) {
	r := NewResult("x")
	assert.True(t, r.Pass)

	r.AddError("first")
	r.AddError("second")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"first", "second"}, r.Errors)
}

package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/plan"
	"github.com/roach88/vfpquery/internal/testutil"
)

const freightDoc = `
name: freight
description: "orders above a threshold"
params:
  minFreight: 50
query:
  from: Orders
  ops:
    - count: {gt: [{get: Freight}, {param: minFreight}]}
runs:
  - expect: {value: 20}
`

func TestRenderSelectedDialects(t *testing.T) {
	doc := parse(t, freightDoc)
	r := NewRunner(testutil.Northwind(t))

	all, err := r.Render(doc)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	one, err := r.Render(doc, "vfp")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "vfp", one[0].Dialect)
	assert.Equal(t, []string{"minFreight"}, one[0].Params)
	assert.Empty(t, one[0].Error)

	_, err = r.Render(doc, "oracle")
	assert.Error(t, err)
}

func TestExecuteOnce(t *testing.T) {
	doc := parse(t, freightDoc)

	c, res, err := newRunner(t).Execute(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, c.Statement.Text)
	assert.Equal(t, "exec-1", res.ExecutionID)
	assert.Equal(t, ir.IRInt(20), res.Value)

	params, err := ParseParams([]string{"minFreight=200"})
	require.NoError(t, err)
	_, res, err = newRunner(t).Execute(context.Background(), doc, params)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(5), res.Value)
}

func TestExecuteErrors(t *testing.T) {
	doc := parse(t, freightDoc)

	_, _, err := NewRunner(testutil.Northwind(t)).Execute(context.Background(), doc, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backend configured")

	params, err := ParseParams([]string{"maxFreight=1"})
	require.NoError(t, err)
	_, _, err = newRunner(t).Execute(context.Background(), doc, params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown parameter "maxFreight"`)

	intersect := parse(t, `
name: intersect
description: "not supported on sqlite"
query:
  from: Customers
  ops:
    - select: {get: Country}
    - intersect: {from: Customers, ops: [{select: {get: City}}]}
`)
	_, _, err = newRunner(t).Execute(context.Background(), intersect, nil)
	require.Error(t, err)
	assert.True(t, plan.IsUnsupportedConstruct(err))
}

func TestParseParams(t *testing.T) {
	m, err := ParseParams([]string{"min=50", "price=18.5", "since=1996-07-20", "city=London", "none="})
	require.NoError(t, err)
	require.Len(t, m.Content, 10)

	got := map[string]any{}
	require.NoError(t, eachParam(m, func(name string, v any) { got[name] = v }))

	assert.Equal(t, int64(50), got["min"])
	assert.True(t, ir.Equal(ir.MustDecimal("18.5"), got["price"].(ir.IRDecimal)))
	assert.Equal(t, time.Date(1996, 7, 20, 0, 0, 0, 0, time.UTC), got["since"])
	assert.Equal(t, "London", got["city"])
	assert.Nil(t, got["none"])
}

func TestParseParamsErrors(t *testing.T) {
	for _, pair := range []string{"min", "=5", "list=[1, 2]"} {
		_, err := ParseParams([]string{pair})
		assert.Error(t, err, pair)
	}
}

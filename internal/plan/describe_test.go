package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/param"
	"github.com/roach88/vfpquery/internal/schema"
)

func TestDescribe(t *testing.T) {
	s := Binary{
		Op:   OpAnd,
		Left: Binary{Op: OpGt, Left: ColumnRef{Alias: "t0", Column: "freight", Type: schema.TypeDecimal}, Right: Literal{Value: ir.MustDecimal("50.5")}},
		Right: InList{
			Operand: ColumnRef{Alias: "t0", Column: "shipcity"},
			Values:  []Scalar{Literal{Value: ir.IRString("London")}, ParamRef{Param: param.New("city", nil)}},
		},
	}
	assert.Equal(t,
		`(and (gt t0.freight lit({"decimal":"50.5"})) (in t0.shipcity [lit("London"),@city]))`,
		Describe(s))

	assert.Equal(t, "count(*)", Describe(Aggregate{Op: AggCount}))
	assert.Equal(t, "StartsWith(t0.name,lit(\"C\"))", Describe(Func{Name: "StartsWith", Args: []Scalar{
		ColumnRef{Alias: "t0", Column: "name"}, Literal{Value: ir.IRString("C")},
	}}))
}

func TestDescribeDistinguishesLiteralTypes(t *testing.T) {
	assert.NotEqual(t, Describe(Literal{Value: ir.IRString("1")}), Describe(Literal{Value: ir.IRInt(1)}))
	assert.NotEqual(t, Describe(Literal{Value: ir.IRString(`{"decimal":"1"}`)}), Describe(Literal{Value: ir.MustDecimal("1")}))
}

func ordersOver(tr *tree, limit any) expr.Handle {
	q := tr.where(tr.source("Orders"), "o", tr.bin(expr.Gt, tr.get("o", "Freight"), tr.lit(limit)))
	return tr.orderBy(q, "o", "OrderID")
}

func TestFingerprintIsDeterministic(t *testing.T) {
	tr1, tr2 := newTree(), newTree()
	// extra nodes shift handles without changing the query
	tr2.lit("unused")

	p1 := translate(t, tr1, ordersOver(tr1, 50))
	p2 := translate(t, tr2, ordersOver(tr2, 50))

	f1, err := p1.Fingerprint()
	require.NoError(t, err)
	f2, err := p2.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64)

	tr3 := newTree()
	p3 := translate(t, tr3, ordersOver(tr3, 100))
	f3, err := p3.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, f1, f3)
}

func TestFingerprintIgnoresParameterValues(t *testing.T) {
	build := func(v int) string {
		tr := newTree()
		x := param.New("x", param.NewCell(v))
		q := tr.where(tr.source("Orders"), "o", tr.bin(expr.Gt, tr.get("o", "Freight"), tr.add(expr.ParameterRef{Param: x})))
		f, err := translate(t, tr, q).Fingerprint()
		require.NoError(t, err)
		return f
	}
	assert.Equal(t, build(50), build(200))
}

func TestPlanDescription(t *testing.T) {
	tr := newTree()
	p := translate(t, tr, tr.selectOf(tr.source("Categories"), "c", tr.get("c", "CategoryName")))

	d := p.Description().(ir.IRObject)
	assert.Equal(t, ir.IRString("sequence"), d["result"])
	assert.Equal(t, ir.IRString("source categories t0; project Value=t0.categoryname; rowkey t0.categoryid"), d["query"])
	assert.Equal(t, ir.IRObject{"kind": ir.IRString("scalar"), "column": ir.IRInt(0), "type": ir.IRString("string")}, d["shape"])
}

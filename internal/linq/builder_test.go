package linq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/param"
)

func node(t *testing.T, q Query, h expr.Handle) expr.Node {
	t.Helper()
	n, err := q.Arena().Node(h)
	require.NoError(t, err)
	return n
}

func TestWhereBuildsOperandsFirst(t *testing.T) {
	b := New()
	q := b.From("Products").Where(func(p Expr) Expr { return p.Get("UnitPrice").Gt(20) })
	require.NoError(t, q.Err())
	assert.Equal(t, 6, q.Arena().Len())

	f, ok := node(t, q, q.Root()).(expr.Filter)
	require.True(t, ok)
	assert.Equal(t, expr.Handle(0), f.Source)
	assert.Equal(t, []string{"x0"}, f.Predicate.Params)
	assert.Equal(t, expr.Source{Entity: "Products"}, node(t, q, f.Source))

	bin, ok := node(t, q, f.Predicate.Body).(expr.Binary)
	require.True(t, ok)
	assert.Equal(t, expr.Gt, bin.Op)
	assert.Equal(t, expr.MemberAccess{Target: 1, Member: "UnitPrice"}, node(t, q, bin.Left))
	assert.Equal(t, expr.Constant{Value: ir.IRInt(20)}, node(t, q, bin.Right))
}

func TestGetSplitsPath(t *testing.T) {
	b := New()
	q := b.From("Orders").Select(func(o Expr) Expr { return o.Get("Customer.City") })
	p := node(t, q, q.Root()).(expr.Project)

	city := node(t, q, p.Selector.Body).(expr.MemberAccess)
	assert.Equal(t, "City", city.Member)
	customer := node(t, q, city.Target).(expr.MemberAccess)
	assert.Equal(t, "Customer", customer.Member)
	assert.Equal(t, expr.Var{Name: "x0"}, node(t, q, customer.Target))
}

func TestLambdaVariablesAreUnique(t *testing.T) {
	b := New()
	q := b.From("Orders").Join(b.From("Customers"),
		func(o Expr) Expr { return o.Get("CustomerID") },
		func(c Expr) Expr { return c.Get("CustomerID") },
		func(o, c Expr) Expr { return b.Record(F("Order", o.Get("OrderID")), F("City", c.Get("City"))) },
	)
	require.NoError(t, q.Err())

	j := node(t, q, q.Root()).(expr.Join)
	assert.Equal(t, []string{"x0"}, j.OuterKey.Params)
	assert.Equal(t, []string{"x1"}, j.InnerKey.Params)
	assert.Equal(t, []string{"x2", "x3"}, j.Result.Params)

	rec := node(t, q, j.Result.Body).(expr.Record)
	require.Len(t, rec.Fields, 2)
	assert.Equal(t, "Order", rec.Fields[0].Name)
	assert.Equal(t, "City", rec.Fields[1].Name)
}

func TestOperands(t *testing.T) {
	b := New()
	price := 10
	p := param.New("price", param.NewRef(&price))

	q := b.From("Products").
		Where(func(x Expr) Expr { return x.Get("UnitPrice").Gt(p) }).
		Skip(b.Param("skip", param.Fixed{Value: ir.IRInt(5)})).
		Take(3)
	require.NoError(t, q.Err())

	take := node(t, q, q.Root()).(expr.Take)
	assert.Equal(t, expr.Constant{Value: ir.IRInt(3)}, node(t, q, take.Count))

	skip := node(t, q, take.Source).(expr.Skip)
	ref, ok := node(t, q, skip.Count).(expr.ParameterRef)
	require.True(t, ok)
	assert.Equal(t, "skip", ref.Param.Name)

	filter := node(t, q, skip.Source).(expr.Filter)
	bin := node(t, q, filter.Predicate.Body).(expr.Binary)
	assert.Equal(t, "price", node(t, q, bin.Right).(expr.ParameterRef).Param.Name)
}

func TestAggregatesAndQuantifiers(t *testing.T) {
	b := New()
	q := b.From("Customers").Where(func(c Expr) Expr {
		return c.Get("Orders").CountWhere(func(o Expr) Expr { return o.Get("Freight").Gt(10) }).Gt(2)
	})
	require.NoError(t, q.Err())

	f := node(t, q, q.Root()).(expr.Filter)
	gt := node(t, q, f.Predicate.Body).(expr.Binary)
	agg, ok := node(t, q, gt.Left).(expr.Aggregate)
	require.True(t, ok)
	assert.Equal(t, expr.Count, agg.Op)
	assert.Nil(t, agg.Selector)
	require.NotNil(t, agg.Predicate)
	assert.Equal(t, []string{"x1"}, agg.Predicate.Params)

	q = b.From("Customers").All(func(c Expr) Expr { return c.Get("Country").Ne("") })
	quant := node(t, q, q.Root()).(expr.Quantifier)
	assert.Equal(t, expr.All, quant.Kind)
}

func TestSetOperations(t *testing.T) {
	b := New()
	left, right := b.From("Customers"), b.From("Customers")

	for kind, q := range map[expr.SetKind]Query{
		expr.Union:     left.Union(right),
		expr.Concat:    left.Concat(right),
		expr.Intersect: left.Intersect(right),
		expr.Except:    left.Except(right),
	} {
		s := node(t, q, q.Root()).(expr.SetOp)
		assert.Equal(t, kind, s.Kind)
		assert.Equal(t, left.Root(), s.Left)
		assert.Equal(t, right.Root(), s.Right)
	}
}

func TestInvalidConstantStopsBuilding(t *testing.T) {
	b := New()
	q := b.From("Products").Where(func(p Expr) Expr { return p.Get("ProductName").Eq(make(chan int)) })
	require.Error(t, q.Err())
	assert.Contains(t, q.Err().Error(), "constant")

	n := q.Arena().Len()
	b.From("Orders").Take(1)
	assert.Equal(t, n, q.Arena().Len())
	assert.Equal(t, expr.NoHandle, q.Root())
}

func TestInList(t *testing.T) {
	b := New()
	q := b.From("Customers").Where(func(c Expr) Expr { return c.Get("Country").In("UK", "Germany") })
	f := node(t, q, q.Root()).(expr.Filter)
	in := node(t, q, f.Predicate.Body).(expr.InList)
	assert.Equal(t, []ir.IRValue{ir.IRString("UK"), ir.IRString("Germany")}, in.Values)

	q = b.From("Customers").Where(func(c Expr) Expr { return c.Get("Country").In(struct{}{}) })
	assert.Error(t, q.Err())
}

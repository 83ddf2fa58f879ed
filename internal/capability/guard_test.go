package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/param"
	"github.com/roach88/vfpquery/internal/plan"
	"github.com/roach88/vfpquery/internal/schema"
)

func col(alias, name string, typ schema.ColumnType) plan.ColumnRef {
	return plan.ColumnRef{Alias: alias, Column: name, Type: typ}
}

func orders(extra ...plan.Stage) *plan.Query {
	q := &plan.Query{
		Stages: []plan.Stage{
			plan.Source{Table: "orders", Alias: "t0"},
			plan.Project{Columns: []plan.Column{
				{Name: "OrderID", Expr: col("t0", "orderid", schema.TypeInt)},
				{Name: "ShipCity", Expr: col("t0", "shipcity", schema.TypeString)},
			}},
		},
		RowKey: []plan.Scalar{col("t0", "orderid", schema.TypeInt)},
	}
	q.Stages = append(q.Stages, extra...)
	return q
}

func literal(n int64) plan.Literal { return plan.Literal{Value: ir.IRInt(n)} }

func setPlan(op expr.SetKind) *plan.Plan {
	return &plan.Plan{Root: &plan.Query{Stages: []plan.Stage{
		plan.SetOp{Op: op, Left: orders(), Right: orders()},
	}}}
}

func TestCheckSetOperators(t *testing.T) {
	tests := []struct {
		op        expr.SetKind
		backend   Backend
		supported bool
		construct string
	}{
		{expr.Union, VFP, true, ""},
		{expr.Concat, VFP, true, ""},
		{expr.Intersect, VFP, false, "Intersect"},
		{expr.Except, VFP, false, "Except"},
		{expr.Intersect, SQLite, false, "Intersect"},
		{expr.Except, MySQL, false, "Except"},
		{expr.Intersect, Postgres, true, ""},
		{expr.Except, Postgres, true, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend)+"/"+string(tt.op), func(t *testing.T) {
			res, err := Check(setPlan(tt.op), tt.backend)
			if tt.supported {
				require.NoError(t, err)
				assert.Empty(t, res.Findings)
				return
			}
			require.Error(t, err)
			assert.True(t, plan.IsUnsupportedConstruct(err))
			var pe *plan.Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.construct, pe.Construct)
			assert.Empty(t, pe.Statement)
			require.Len(t, res.Findings, 1)
			assert.Equal(t, UnsupportedConstruct, res.Findings[0].Verdict)
		})
	}
}

func TestCheckFindsNestedSetOperators(t *testing.T) {
	inner := setPlan(expr.Except).Root

	tests := []struct {
		name string
		root *plan.Query
	}{
		{"derived table", &plan.Query{Stages: []plan.Stage{
			plan.Source{Sub: inner, Alias: "t1"},
			plan.Project{Columns: []plan.Column{{Name: "OrderID", Expr: col("t1", "OrderID", schema.TypeInt)}}},
		}}},
		{"exists", orders(plan.Filter{Predicate: plan.Exists{Query: inner}})},
		{"scalar subquery", orders(plan.Filter{Predicate: plan.Binary{
			Op:    plan.OpGt,
			Left:  col("t0", "orderid", schema.TypeInt),
			Right: plan.Subquery{Query: inner},
		}})},
		{"join", &plan.Query{Stages: []plan.Stage{
			plan.Source{Table: "customers", Alias: "t0"},
			plan.Join{Type: plan.LeftJoin, Sub: inner, Alias: "t2", On: plan.Literal{Value: ir.IRBool(true)}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Check(&plan.Plan{Root: tt.root}, VFP)
			require.Error(t, err)
			assert.True(t, plan.IsUnsupportedConstruct(err))
			assert.Contains(t, err.Error(), "Except")
		})
	}
}

func TestCheckPagingCounts(t *testing.T) {
	n := 10
	p := plan.ParamRef{Param: param.New("p0", param.NewRef(&n))}

	t.Run("literal counts pass on vfp", func(t *testing.T) {
		_, err := Check(&plan.Plan{Root: orders(plan.Skip{Count: literal(10)}, plan.Take{Count: literal(10)})}, VFP)
		assert.NoError(t, err)
	})

	t.Run("parameter take fails on vfp", func(t *testing.T) {
		_, err := Check(&plan.Plan{Root: orders(plan.Take{Count: p})}, VFP)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Take: the row count must be a constant")
	})

	t.Run("parameter skip passes on sqlite", func(t *testing.T) {
		_, err := Check(&plan.Plan{Root: orders(plan.Skip{Count: p}, plan.Take{Count: p})}, SQLite)
		assert.NoError(t, err)
	})

	t.Run("composite row key fails on vfp", func(t *testing.T) {
		q := orders(plan.Skip{Count: literal(1)})
		q.RowKey = append(q.RowKey, col("t0", "shipcity", schema.TypeString))
		_, err := Check(&plan.Plan{Root: q}, VFP)
		require.Error(t, err)
		var pe *plan.Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "Skip", pe.Construct)
	})

	t.Run("zero skip with composite row key passes on vfp", func(t *testing.T) {
		q := orders(plan.Skip{Count: literal(0)}, plan.Take{Count: literal(5)})
		q.RowKey = append(q.RowKey, col("t0", "shipcity", schema.TypeString))
		_, err := Check(&plan.Plan{Root: q}, VFP)
		assert.NoError(t, err)
	})

	t.Run("composite row key passes on postgres", func(t *testing.T) {
		q := orders(plan.Skip{Count: literal(1)})
		q.RowKey = nil
		_, err := Check(&plan.Plan{Root: q}, Postgres)
		assert.NoError(t, err)
	})
}

func TestCheckForwardsMemoComparisons(t *testing.T) {
	memo := &plan.Query{Stages: []plan.Stage{
		plan.Source{Table: "categories", Alias: "t0"},
		plan.Project{Columns: []plan.Column{{Name: "Value", Expr: col("t0", "description", schema.TypeMemo)}}},
		plan.Distinct{},
	}}

	res, err := Check(&plan.Plan{Root: memo}, VFP)
	require.NoError(t, err)
	require.Len(t, res.Runtime(), 1)
	assert.Equal(t, "Distinct", res.Runtime()[0].Construct)
	assert.Equal(t, "Distinct: compares memo column t0.description (unsupported_at_runtime)", res.Runtime()[0].String())

	res, err = Check(&plan.Plan{Root: memo}, SQLite)
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
}

func TestCheckStopsAtFirstFailure(t *testing.T) {
	n := 3
	q := &plan.Query{Stages: []plan.Stage{
		plan.SetOp{Op: expr.Intersect, Left: orders(plan.Take{Count: plan.ParamRef{Param: param.New("p0", param.NewRef(&n))}}), Right: orders()},
	}}

	res, err := Check(&plan.Plan{Root: q}, VFP)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Intersect")
	assert.Len(t, res.Findings, 1)
}

func TestCheckUnknownBackend(t *testing.T) {
	_, err := Check(&plan.Plan{Root: orders()}, Backend("oracle"))
	require.Error(t, err)
	assert.False(t, plan.IsUnsupportedConstruct(err))
}

func TestBackends(t *testing.T) {
	assert.Equal(t, []Backend{MySQL, Postgres, SQLite, VFP}, Backends())

	p, err := Lookup(VFP)
	require.NoError(t, err)
	assert.Equal(t, Supported, p.Rule(plan.KindFilter).Verdict)
	assert.Equal(t, UnsupportedConstruct, p.Rule(plan.KindExcept).Verdict)
}

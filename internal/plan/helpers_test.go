package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/testutil"
)

// tree builds expression trees for tests.
type tree struct {
	a *expr.Arena
}

func newTree() *tree {
	return &tree{a: expr.NewArena()}
}

func (tr *tree) add(n expr.Node) expr.Handle {
	return tr.a.MustAdd(n)
}

func (tr *tree) source(entity string) expr.Handle {
	return tr.add(expr.Source{Entity: entity})
}

// get reads a dotted member path of a variable.
func (tr *tree) get(v, path string) expr.Handle {
	h := tr.add(expr.Var{Name: v})
	if path == "" {
		return h
	}
	for _, m := range strings.Split(path, ".") {
		h = tr.add(expr.MemberAccess{Target: h, Member: m})
	}
	return h
}

func (tr *tree) lit(v any) expr.Handle {
	val, err := ir.FromGo(v)
	if err != nil {
		panic(err)
	}
	return tr.add(expr.Constant{Value: val})
}

func (tr *tree) bin(op expr.BinaryOp, l, r expr.Handle) expr.Handle {
	return tr.add(expr.Binary{Op: op, Left: l, Right: r})
}

func (tr *tree) call(name string, args ...expr.Handle) expr.Handle {
	return tr.add(expr.FunctionCall{Name: name, Args: args})
}

func (tr *tree) record(fields ...expr.Field) expr.Handle {
	return tr.add(expr.Record{Fields: fields})
}

func lam(body expr.Handle, params ...string) expr.Lambda {
	return expr.Lambda{Params: params, Body: body}
}

func (tr *tree) where(src expr.Handle, v string, body expr.Handle) expr.Handle {
	return tr.add(expr.Filter{Source: src, Predicate: lam(body, v)})
}

func (tr *tree) selectOf(src expr.Handle, v string, body expr.Handle) expr.Handle {
	return tr.add(expr.Project{Source: src, Selector: lam(body, v)})
}

func (tr *tree) orderBy(src expr.Handle, v, path string) expr.Handle {
	return tr.add(expr.OrderBy{Source: src, Key: lam(tr.get(v, path), v)})
}

func (tr *tree) take(src expr.Handle, n int) expr.Handle {
	return tr.add(expr.Take{Source: src, Count: tr.lit(n)})
}

func (tr *tree) skip(src expr.Handle, n int) expr.Handle {
	return tr.add(expr.Skip{Source: src, Count: tr.lit(n)})
}

func translate(t *testing.T, tr *tree, root expr.Handle) *Plan {
	t.Helper()
	p, err := Translate(testutil.Northwind(t), tr.a, root)
	require.NoError(t, err)
	return p
}

func translateErr(t *testing.T, tr *tree, root expr.Handle) error {
	t.Helper()
	_, err := Translate(testutil.Northwind(t), tr.a, root)
	require.Error(t, err)
	return err
}

func kinds(q *Query) []StageKind {
	out := make([]StageKind, len(q.Stages))
	for i, s := range q.Stages {
		out[i] = s.Kind()
	}
	return out
}

func stagesOf[T Stage](q *Query) []T {
	var out []T
	for _, s := range q.Stages {
		if v, ok := s.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func from(q *Query) Source {
	return q.Stages[0].(Source)
}

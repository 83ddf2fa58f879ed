package linq

import (
	"strings"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/ir"
)

// Expr is a node inside a lambda body: a scalar, an entity, a record, a
// group or a navigation collection.
type Expr struct {
	b *Builder
	h expr.Handle
}

// Handle returns the node handle.
func (e Expr) Handle() expr.Handle { return e.h }

// Get reads a dotted member path ("Customer.Address.City").
func (e Expr) Get(path string) Expr {
	h := e.h
	for _, m := range strings.Split(path, ".") {
		h = e.b.add(expr.MemberAccess{Target: h, Member: m})
	}
	return Expr{b: e.b, h: h}
}

func (e Expr) binary(op expr.BinaryOp, o any) Expr {
	return Expr{b: e.b, h: e.b.add(expr.Binary{Op: op, Left: e.h, Right: e.b.operand(o)})}
}

func (e Expr) Eq(o any) Expr  { return e.binary(expr.Eq, o) }
func (e Expr) Ne(o any) Expr  { return e.binary(expr.Ne, o) }
func (e Expr) Lt(o any) Expr  { return e.binary(expr.Lt, o) }
func (e Expr) Le(o any) Expr  { return e.binary(expr.Le, o) }
func (e Expr) Gt(o any) Expr  { return e.binary(expr.Gt, o) }
func (e Expr) Ge(o any) Expr  { return e.binary(expr.Ge, o) }
func (e Expr) And(o any) Expr { return e.binary(expr.And, o) }
func (e Expr) Or(o any) Expr  { return e.binary(expr.Or, o) }
func (e Expr) Add(o any) Expr { return e.binary(expr.Add, o) }
func (e Expr) Sub(o any) Expr { return e.binary(expr.Sub, o) }
func (e Expr) Mul(o any) Expr { return e.binary(expr.Mul, o) }
func (e Expr) Div(o any) Expr { return e.binary(expr.Div, o) }

// Not negates a predicate.
func (e Expr) Not() Expr {
	return Expr{b: e.b, h: e.b.add(expr.Unary{Op: expr.Not, Operand: e.h})}
}

// Neg negates a number.
func (e Expr) Neg() Expr {
	return Expr{b: e.b, h: e.b.add(expr.Unary{Op: expr.Neg, Operand: e.h})}
}

// Is tests the runtime type of an entity.
func (e Expr) Is(typeName string) Expr {
	return Expr{b: e.b, h: e.b.add(expr.TypeIs{Operand: e.h, Type: typeName})}
}

// In tests membership in a list of constants.
func (e Expr) In(values ...any) Expr {
	vals := make([]ir.IRValue, 0, len(values))
	for _, v := range values {
		iv, err := ir.FromGo(v)
		if err != nil {
			return Expr{b: e.b, h: e.b.fail("in list: %w", err)}
		}
		vals = append(vals, iv)
	}
	return Expr{b: e.b, h: e.b.add(expr.InList{Operand: e.h, Values: vals})}
}

// Call invokes a canonical function with e as the first argument.
func (e Expr) Call(name string, args ...any) Expr {
	return e.b.Call(name, append([]any{e}, args...)...)
}

func (e Expr) StartsWith(prefix any) Expr { return e.Call("StartsWith", prefix) }
func (e Expr) EndsWith(suffix any) Expr   { return e.Call("EndsWith", suffix) }
func (e Expr) Contains(part any) Expr     { return e.Call("Contains", part) }
func (e Expr) ToUpper() Expr              { return e.Call("ToUpper") }
func (e Expr) ToLower() Expr              { return e.Call("ToLower") }

// Collection operators on navigations and groups. They build the same
// nodes as the Query methods; the translator decides from the source
// whether the result is a subquery, a join or a nested collection.

func (e Expr) query() Query { return Query{b: e.b, h: e.h} }

// AsQuery exposes every Query operator on e. Operators the translator
// cannot place inside a nested collection fail at translation.
func (e Expr) AsQuery() Query { return e.query() }

func (e Expr) Where(fn func(Expr) Expr) Expr  { return e.query().Where(fn).expr() }
func (e Expr) Select(fn func(Expr) Expr) Expr { return e.query().Select(fn).expr() }
func (e Expr) OfType(typeName string) Expr    { return e.query().OfType(typeName).expr() }

func (e Expr) Count() Expr                        { return e.query().Count().expr() }
func (e Expr) CountWhere(fn func(Expr) Expr) Expr { return e.query().CountWhere(fn).expr() }
func (e Expr) Sum(fn func(Expr) Expr) Expr        { return e.query().Sum(fn).expr() }
func (e Expr) Min(fn func(Expr) Expr) Expr        { return e.query().Min(fn).expr() }
func (e Expr) Max(fn func(Expr) Expr) Expr        { return e.query().Max(fn).expr() }
func (e Expr) Average(fn func(Expr) Expr) Expr    { return e.query().Average(fn).expr() }
func (e Expr) Any() Expr                          { return e.query().Any().expr() }
func (e Expr) AnyWhere(fn func(Expr) Expr) Expr   { return e.query().AnyWhere(fn).expr() }
func (e Expr) All(fn func(Expr) Expr) Expr        { return e.query().All(fn).expr() }

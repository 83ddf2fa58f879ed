package linq

import (
	"fmt"
	"strconv"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/param"
)

// Builder owns the arena shared by every node of a query.
type Builder struct {
	arena *expr.Arena
	vars  int
	err   error
}

// New creates a builder with an empty arena.
func New() *Builder {
	return &Builder{arena: expr.NewArena()}
}

// Arena returns the arena nodes are added to.
func (b *Builder) Arena() *expr.Arena {
	return b.arena
}

// Err returns the first construction error.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) add(n expr.Node) expr.Handle {
	if b.err != nil {
		return expr.NoHandle
	}
	h, err := b.arena.Add(n)
	if err != nil {
		b.err = err
		return expr.NoHandle
	}
	return h
}

func (b *Builder) fail(format string, args ...any) expr.Handle {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
	return expr.NoHandle
}

// From starts a query over an entity set.
func (b *Builder) From(entity string) Query {
	return Query{b: b, h: b.add(expr.Source{Entity: entity})}
}

// Const is a constant known now.
func (b *Builder) Const(v any) Expr {
	val, err := ir.FromGo(v)
	if err != nil {
		return Expr{b: b, h: b.fail("constant: %w", err)}
	}
	return Expr{b: b, h: b.add(expr.Constant{Value: val})}
}

// Param is a value read from src each time the query executes.
func (b *Builder) Param(name string, src param.Source) Expr {
	return b.Parameter(param.New(name, src))
}

// Parameter adds an existing parameter.
func (b *Builder) Parameter(p param.Parameter) Expr {
	return Expr{b: b, h: b.add(expr.ParameterRef{Param: p})}
}

// Field is a named member of a record.
type Field struct {
	Name  string
	Value any
}

// F is shorthand for a Field.
func F(name string, value any) Field {
	return Field{Name: name, Value: value}
}

// Record builds an anonymous object.
func (b *Builder) Record(fields ...Field) Expr {
	fs := make([]expr.Field, len(fields))
	for i, f := range fields {
		fs[i] = expr.Field{Name: f.Name, Value: b.operand(f.Value)}
	}
	return Expr{b: b, h: b.add(expr.Record{Fields: fs})}
}

// Call invokes a canonical function.
func (b *Builder) Call(name string, args ...any) Expr {
	hs := make([]expr.Handle, len(args))
	for i, a := range args {
		hs[i] = b.operand(a)
	}
	return Expr{b: b, h: b.add(expr.FunctionCall{Name: name, Args: hs})}
}

// operand turns an Expr, Query, parameter or Go value into a handle.
func (b *Builder) operand(v any) expr.Handle {
	switch x := v.(type) {
	case Expr:
		return x.h
	case Query:
		return x.h
	case param.Parameter:
		return b.Parameter(x).h
	}
	return b.Const(v).h
}

func (b *Builder) nextVar() string {
	name := "x" + strconv.Itoa(b.vars)
	b.vars++
	return name
}

func (b *Builder) lambda(fn func(Expr) Expr) expr.Lambda {
	name := b.nextVar()
	v := Expr{b: b, h: b.add(expr.Var{Name: name})}
	return expr.Lambda{Params: []string{name}, Body: fn(v).h}
}

func (b *Builder) lambda2(fn func(Expr, Expr) Expr) expr.Lambda {
	n1, n2 := b.nextVar(), b.nextVar()
	v1 := Expr{b: b, h: b.add(expr.Var{Name: n1})}
	v2 := Expr{b: b, h: b.add(expr.Var{Name: n2})}
	return expr.Lambda{Params: []string{n1, n2}, Body: fn(v1, v2).h}
}

func (b *Builder) optLambda(fn func(Expr) Expr) *expr.Lambda {
	if fn == nil {
		return nil
	}
	l := b.lambda(fn)
	return &l
}

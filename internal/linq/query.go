package linq

import (
	"github.com/roach88/vfpquery/internal/expr"
)

// Query is a sequence-valued node and the root of a query expression.
type Query struct {
	b *Builder
	h expr.Handle
}

// Arena returns the arena holding the query's nodes.
func (q Query) Arena() *expr.Arena { return q.b.arena }

// Root returns the handle of the query node.
func (q Query) Root() expr.Handle { return q.h }

// Err returns the first error met while building the query.
func (q Query) Err() error { return q.b.err }

// Builder returns the builder the query belongs to.
func (q Query) Builder() *Builder { return q.b }

func (q Query) with(n expr.Node) Query {
	return Query{b: q.b, h: q.b.add(n)}
}

func (q Query) expr() Expr { return Expr{b: q.b, h: q.h} }

// AsExpr uses q as an operand of an enclosing expression, for example a
// nested collection inside a record.
func (q Query) AsExpr() Expr { return q.expr() }

// Where keeps elements satisfying fn.
func (q Query) Where(fn func(Expr) Expr) Query {
	return q.with(expr.Filter{Source: q.h, Predicate: q.b.lambda(fn)})
}

// Select maps elements through fn.
func (q Query) Select(fn func(Expr) Expr) Query {
	return q.with(expr.Project{Source: q.h, Selector: q.b.lambda(fn)})
}

// SelectMany flattens the collection fn returns for each element. result,
// when not nil, shapes each (element, item) pair.
func (q Query) SelectMany(fn func(Expr) Expr, result func(Expr, Expr) Expr) Query {
	n := expr.FlatMap{Source: q.h, Collection: q.b.lambda(fn)}
	if result != nil {
		l := q.b.lambda2(result)
		n.Result = &l
	}
	return q.with(n)
}

// Join pairs elements of q and inner with equal keys.
func (q Query) Join(inner Query, outerKey, innerKey func(Expr) Expr, result func(Expr, Expr) Expr) Query {
	return q.with(expr.Join{
		Outer:    q.h,
		Inner:    inner.h,
		OuterKey: q.b.lambda(outerKey),
		InnerKey: q.b.lambda(innerKey),
		Result:   q.b.lambda2(result),
	})
}

// GroupBy partitions elements by key. Elements of the result expose Key
// and aggregate over their members.
func (q Query) GroupBy(key func(Expr) Expr) Query {
	return q.with(expr.GroupBy{Source: q.h, Key: q.b.lambda(key)})
}

// OrderBy sorts ascending by key, replacing any earlier ordering.
func (q Query) OrderBy(key func(Expr) Expr) Query {
	return q.with(expr.OrderBy{Source: q.h, Key: q.b.lambda(key)})
}

// OrderByDescending sorts descending by key.
func (q Query) OrderByDescending(key func(Expr) Expr) Query {
	return q.with(expr.OrderBy{Source: q.h, Key: q.b.lambda(key), Descending: true})
}

// ThenBy adds an ascending key to the current ordering.
func (q Query) ThenBy(key func(Expr) Expr) Query {
	return q.with(expr.ThenBy{Source: q.h, Key: q.b.lambda(key)})
}

// ThenByDescending adds a descending key to the current ordering.
func (q Query) ThenByDescending(key func(Expr) Expr) Query {
	return q.with(expr.ThenBy{Source: q.h, Key: q.b.lambda(key), Descending: true})
}

// Skip bypasses n elements. n is an int, an Expr or a param.Parameter.
func (q Query) Skip(n any) Query {
	return q.with(expr.Skip{Source: q.h, Count: q.b.operand(n)})
}

// Take keeps the first n elements.
func (q Query) Take(n any) Query {
	return q.with(expr.Take{Source: q.h, Count: q.b.operand(n)})
}

func (q Query) setOp(kind expr.SetKind, other Query) Query {
	return q.with(expr.SetOp{Kind: kind, Left: q.h, Right: other.h})
}

// Union returns the distinct elements of q and other.
func (q Query) Union(other Query) Query {
	return q.setOp(expr.Union, other)
}

// Concat appends other to q, keeping duplicates.
func (q Query) Concat(other Query) Query {
	return q.setOp(expr.Concat, other)
}

// Intersect keeps the distinct elements found in both q and other.
func (q Query) Intersect(other Query) Query {
	return q.setOp(expr.Intersect, other)
}

// Except keeps the distinct elements of q missing from other.
func (q Query) Except(other Query) Query {
	return q.setOp(expr.Except, other)
}

// Distinct removes duplicate elements.
func (q Query) Distinct() Query {
	return q.with(expr.Distinct{Source: q.h})
}

// OfType keeps elements of typeName or its subtypes.
func (q Query) OfType(typeName string) Query {
	return q.with(expr.TypeFilter{Source: q.h, Type: typeName})
}

// Include eagerly loads a dotted navigation path.
func (q Query) Include(path string) Query {
	return q.with(expr.Include{Source: q.h, Path: path})
}

func (q Query) aggregate(op expr.AggregateOp, selector, predicate func(Expr) Expr) Query {
	return q.with(expr.Aggregate{
		Source:    q.h,
		Op:        op,
		Selector:  q.b.optLambda(selector),
		Predicate: q.b.optLambda(predicate),
	})
}

// Count returns the number of elements.
func (q Query) Count() Query {
	return q.aggregate(expr.Count, nil, nil)
}

// CountWhere returns the number of elements satisfying fn.
func (q Query) CountWhere(fn func(Expr) Expr) Query {
	return q.aggregate(expr.Count, nil, fn)
}

// Sum adds up selector over the elements. A nil selector sums the
// elements themselves, as do Min, Max and Average.
func (q Query) Sum(selector func(Expr) Expr) Query {
	return q.aggregate(expr.Sum, selector, nil)
}

// Min returns the smallest selected value.
func (q Query) Min(selector func(Expr) Expr) Query {
	return q.aggregate(expr.Min, selector, nil)
}

// Max returns the largest selected value.
func (q Query) Max(selector func(Expr) Expr) Query {
	return q.aggregate(expr.Max, selector, nil)
}

// Average returns the mean of the selected values.
func (q Query) Average(selector func(Expr) Expr) Query {
	return q.aggregate(expr.Average, selector, nil)
}

func (q Query) quantifier(kind expr.QuantifierKind, fn func(Expr) Expr) Query {
	return q.with(expr.Quantifier{Source: q.h, Kind: kind, Predicate: q.b.optLambda(fn)})
}

// Any reports whether the sequence has elements.
func (q Query) Any() Query { return q.quantifier(expr.Any, nil) }

// AnyWhere reports whether some element satisfies fn.
func (q Query) AnyWhere(fn func(Expr) Expr) Query { return q.quantifier(expr.Any, fn) }

// All reports whether every element satisfies fn.
func (q Query) All(fn func(Expr) Expr) Query { return q.quantifier(expr.All, fn) }

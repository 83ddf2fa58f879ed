package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/linq"
	"github.com/roach88/vfpquery/internal/param"
)

// Query trees are YAML mappings. A query is
//
//	{from: Orders, ops: [{where: ...}, {orderBy: ...}, {take: 10}]}
//
// where from is an entity name or an expression yielding a collection
// (a navigation, a group). Expressions are scalars (literals) or one-key
// mappings:
//
//	{get: Customer.City}        member path of the current element
//	{get: $outer.Freight}       member path of a named variable
//	{param: minFreight}         declared parameter
//	{date: "1996-07-04"}        datetime literal
//	{gt: [a, b]}                eq ne lt le gt ge and or add sub mul div
//	{not: e}  {neg: e}
//	{is: Featured}              type test of the current element
//	{in: [e, [v1, v2]]}
//	{call: StartsWith, args: [e, "Ch"]}
//	{record: {Name: e, ...}}
//	{from: ..., ops: [...]}     nested query
//
// Lambdas bind the element to $it; the enclosing element stays reachable
// as $parent. Join result selectors bind $outer and $inner, SelectMany
// result selectors $source and $item.

type scope map[string]linq.Expr

func (s scope) bind(x linq.Expr) scope {
	out := make(scope, len(s)+2)
	for k, v := range s {
		out[k] = v
	}
	if it, ok := s["it"]; ok {
		out["parent"] = it
	}
	out["it"] = x
	return out
}

func (s scope) bind2(n1 string, x1 linq.Expr, n2 string, x2 linq.Expr) scope {
	out := make(scope, len(s)+2)
	for k, v := range s {
		out[k] = v
	}
	out[n1] = x1
	out[n2] = x2
	return out
}

var binaryOps = map[string]func(linq.Expr, any) linq.Expr{
	"eq":  linq.Expr.Eq,
	"ne":  linq.Expr.Ne,
	"lt":  linq.Expr.Lt,
	"le":  linq.Expr.Le,
	"gt":  linq.Expr.Gt,
	"ge":  linq.Expr.Ge,
	"and": linq.Expr.And,
	"or":  linq.Expr.Or,
	"add": linq.Expr.Add,
	"sub": linq.Expr.Sub,
	"mul": linq.Expr.Mul,
	"div": linq.Expr.Div,
}

// built is a query constructed from a document together with the cells
// behind its parameters.
type built struct {
	query  linq.Query
	params *param.Bindings
}

type treeBuilder struct {
	b      *linq.Builder
	params *param.Bindings
	err    error
}

// buildQuery constructs the document's query. Parameters start with their
// declared values.
func buildQuery(doc *Document) (*built, error) {
	tb := &treeBuilder{b: linq.New(), params: param.NewBindings()}

	if err := eachParam(&doc.Params, func(name string, v any) {
		tb.params.Bind(name, v)
	}); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}

	q := tb.query(&doc.Query, scope{})
	if tb.err != nil {
		return nil, fmt.Errorf("query: %w", tb.err)
	}
	if err := q.Err(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return &built{query: q, params: tb.params}, nil
}

// apply sets the parameter overrides of a run.
func (b *built) apply(n *yaml.Node) error {
	var setErr error
	err := eachParam(n, func(name string, v any) {
		if err := b.params.Set(name, v); err != nil && setErr == nil {
			setErr = err
		}
	})
	if err != nil {
		return err
	}
	return setErr
}

func eachParam(n *yaml.Node, fn func(string, any)) error {
	if n.Kind == 0 {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		v, err := literal(n.Content[i+1])
		if err != nil {
			return fmt.Errorf("%s: %w", n.Content[i].Value, err)
		}
		fn(n.Content[i].Value, v)
	}
	return nil
}

func (tb *treeBuilder) fail(n *yaml.Node, format string, args ...any) {
	if tb.err == nil {
		tb.err = fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
	}
}

// failExpr records an error and returns a placeholder so construction can
// unwind without special cases.
func (tb *treeBuilder) failExpr(n *yaml.Node, format string, args ...any) linq.Expr {
	tb.fail(n, format, args...)
	return tb.b.Const(nil)
}

func (tb *treeBuilder) query(n *yaml.Node, sc scope) linq.Query {
	if n.Kind != yaml.MappingNode {
		tb.fail(n, "query must be a mapping")
		return tb.b.From("")
	}
	from := mapValue(n, "from")
	if from == nil {
		tb.fail(n, "query needs from")
		return tb.b.From("")
	}

	var q linq.Query
	if from.Kind == yaml.ScalarNode {
		q = tb.b.From(from.Value)
	} else {
		q = tb.expr(from, sc).AsQuery()
	}

	for key := range mappingKeys(n) {
		if key != "from" && key != "ops" {
			tb.fail(n, "unknown query field %q", key)
		}
	}

	ops := mapValue(n, "ops")
	if ops == nil {
		return q
	}
	if ops.Kind != yaml.SequenceNode {
		tb.fail(ops, "ops must be a list")
		return q
	}
	for _, op := range ops.Content {
		if op.Kind != yaml.MappingNode || len(op.Content) != 2 {
			tb.fail(op, "each op must be a one-key mapping")
			return q
		}
		q = tb.op(q, op.Content[0].Value, op.Content[1], sc)
		if tb.err != nil {
			return q
		}
	}
	return q
}

func (tb *treeBuilder) lambda(body *yaml.Node, sc scope) func(linq.Expr) linq.Expr {
	return func(x linq.Expr) linq.Expr {
		return tb.expr(body, sc.bind(x))
	}
}

// optLambda is nil for an absent or null body.
func (tb *treeBuilder) optLambda(body *yaml.Node, sc scope) func(linq.Expr) linq.Expr {
	if isNull(body) {
		return nil
	}
	return tb.lambda(body, sc)
}

func (tb *treeBuilder) op(q linq.Query, name string, v *yaml.Node, sc scope) linq.Query {
	switch name {
	case "where":
		return q.Where(tb.lambda(v, sc))
	case "select":
		return q.Select(tb.lambda(v, sc))
	case "selectMany":
		collection := mapValue(v, "collection")
		if collection == nil {
			tb.fail(v, "selectMany needs collection")
			return q
		}
		var result func(linq.Expr, linq.Expr) linq.Expr
		if r := mapValue(v, "result"); r != nil {
			result = func(s, i linq.Expr) linq.Expr {
				return tb.expr(r, sc.bind2("source", s, "item", i))
			}
		}
		return q.SelectMany(tb.lambda(collection, sc), result)
	case "join":
		inner, outerKey, innerKey, result := mapValue(v, "inner"), mapValue(v, "outerKey"), mapValue(v, "innerKey"), mapValue(v, "result")
		if inner == nil || outerKey == nil || innerKey == nil || result == nil {
			tb.fail(v, "join needs inner, outerKey, innerKey and result")
			return q
		}
		return q.Join(tb.query(inner, sc), tb.lambda(outerKey, sc), tb.lambda(innerKey, sc),
			func(o, i linq.Expr) linq.Expr {
				return tb.expr(result, sc.bind2("outer", o, "inner", i))
			})
	case "groupBy":
		return q.GroupBy(tb.lambda(v, sc))
	case "orderBy":
		return q.OrderBy(tb.lambda(v, sc))
	case "orderByDescending":
		return q.OrderByDescending(tb.lambda(v, sc))
	case "thenBy":
		return q.ThenBy(tb.lambda(v, sc))
	case "thenByDescending":
		return q.ThenByDescending(tb.lambda(v, sc))
	case "skip":
		return q.Skip(tb.expr(v, sc))
	case "take":
		return q.Take(tb.expr(v, sc))
	case "distinct":
		return q.Distinct()
	case "union":
		return q.Union(tb.query(v, sc))
	case "concat":
		return q.Concat(tb.query(v, sc))
	case "intersect":
		return q.Intersect(tb.query(v, sc))
	case "except":
		return q.Except(tb.query(v, sc))
	case "ofType":
		return q.OfType(v.Value)
	case "include":
		return q.Include(v.Value)
	case "count":
		if fn := tb.optLambda(v, sc); fn != nil {
			return q.CountWhere(fn)
		}
		return q.Count()
	case "sum":
		return q.Sum(tb.optLambda(v, sc))
	case "min":
		return q.Min(tb.optLambda(v, sc))
	case "max":
		return q.Max(tb.optLambda(v, sc))
	case "average":
		return q.Average(tb.optLambda(v, sc))
	case "any":
		if fn := tb.optLambda(v, sc); fn != nil {
			return q.AnyWhere(fn)
		}
		return q.Any()
	case "all":
		if isNull(v) {
			tb.fail(v, "all needs a predicate")
			return q
		}
		return q.All(tb.lambda(v, sc))
	}
	tb.fail(v, "unknown operator %q", name)
	return q
}

func (tb *treeBuilder) expr(n *yaml.Node, sc scope) linq.Expr {
	if tb.err != nil {
		return tb.b.Const(nil)
	}

	switch n.Kind {
	case yaml.ScalarNode:
		v, err := literal(n)
		if err != nil {
			return tb.failExpr(n, "%v", err)
		}
		return tb.b.Const(v)
	case yaml.MappingNode:
	default:
		return tb.failExpr(n, "expression must be a scalar or a mapping")
	}

	if mapValue(n, "from") != nil {
		return tb.query(n, sc).AsExpr()
	}
	if name := mapValue(n, "call"); name != nil {
		var args []any
		if a := mapValue(n, "args"); a != nil {
			for _, arg := range a.Content {
				args = append(args, tb.expr(arg, sc))
			}
		}
		return tb.b.Call(name.Value, args...)
	}
	if len(n.Content) != 2 {
		return tb.failExpr(n, "expression mapping must have exactly one key")
	}

	key, v := n.Content[0].Value, n.Content[1]
	if op, ok := binaryOps[key]; ok {
		if v.Kind != yaml.SequenceNode || len(v.Content) < 2 {
			return tb.failExpr(v, "%s needs a list of at least two operands", key)
		}
		acc := tb.expr(v.Content[0], sc)
		for _, operand := range v.Content[1:] {
			acc = op(acc, tb.expr(operand, sc))
		}
		return acc
	}

	switch key {
	case "get":
		return tb.get(v, sc)
	case "param":
		p, ok := tb.params.Lookup(v.Value)
		if !ok {
			return tb.failExpr(v, "parameter %q is not declared", v.Value)
		}
		return tb.b.Parameter(p)
	case "date":
		t, err := parseDate(v.Value)
		if err != nil {
			return tb.failExpr(v, "%v", err)
		}
		return tb.b.Const(t)
	case "not":
		return tb.expr(v, sc).Not()
	case "neg":
		return tb.expr(v, sc).Neg()
	case "is":
		it, ok := sc["it"]
		if !ok {
			return tb.failExpr(v, "is needs an element in scope")
		}
		return it.Is(v.Value)
	case "in":
		if v.Kind != yaml.SequenceNode || len(v.Content) != 2 || v.Content[1].Kind != yaml.SequenceNode {
			return tb.failExpr(v, "in needs [operand, [values...]]")
		}
		var values []any
		for _, item := range v.Content[1].Content {
			lit, err := literal(item)
			if err != nil {
				return tb.failExpr(item, "%v", err)
			}
			values = append(values, lit)
		}
		return tb.expr(v.Content[0], sc).In(values...)
	case "record":
		if v.Kind != yaml.MappingNode {
			return tb.failExpr(v, "record needs a mapping")
		}
		var fields []linq.Field
		for i := 0; i+1 < len(v.Content); i += 2 {
			fields = append(fields, linq.F(v.Content[i].Value, tb.expr(v.Content[i+1], sc)))
		}
		return tb.b.Record(fields...)
	}
	return tb.failExpr(n, "unknown expression %q", key)
}

// get resolves "$var.A.B" or "A.B" (relative to $it). A bare variable
// yields the variable itself.
func (tb *treeBuilder) get(v *yaml.Node, sc scope) linq.Expr {
	path := v.Value
	name := "it"
	if strings.HasPrefix(path, "$") {
		name, path, _ = strings.Cut(path[1:], ".")
	}
	x, ok := sc[name]
	if !ok {
		return tb.failExpr(v, "variable $%s is not in scope", name)
	}
	if path == "" {
		return x
	}
	return x.Get(path)
}

// literal converts a scalar node, or a {date: ...} mapping, to a Go value.
// Floats become exact decimals.
func literal(n *yaml.Node) (any, error) {
	if n.Kind == yaml.MappingNode {
		if d := mapValue(n, "date"); d != nil && len(n.Content) == 2 {
			return parseDate(d.Value)
		}
		return nil, fmt.Errorf("line %d: expected a scalar or {date: ...}", n.Line)
	}
	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("line %d: expected a scalar", n.Line)
	}

	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		err := n.Decode(&b)
		return b, err
	case "!!int":
		var i int64
		err := n.Decode(&i)
		return i, err
	case "!!float":
		return ir.NewIRDecimal(n.Value)
	case "!!timestamp":
		return parseDate(n.Value)
	}
	return n.Value, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, err)
	}
	return t, nil
}

func mapValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func mappingKeys(n *yaml.Node) map[string]bool {
	keys := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys[n.Content[i].Value] = true
	}
	return keys
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

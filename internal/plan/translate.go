package plan

import (
	"fmt"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/hierarchy"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/schema"
)

// Translate lowers the expression tree rooted at root into a logical plan.
// Translation never reads parameter values, so a plan can be emitted once
// and executed many times.
func Translate(model *schema.Model, arena *expr.Arena, root expr.Handle) (*Plan, error) {
	t := &translator{
		model:     model,
		arena:     arena,
		resolvers: make(map[string]*hierarchy.Resolver),
	}

	n, err := t.node(root)
	if err != nil {
		return nil, err
	}
	switch v := n.(type) {
	case expr.Aggregate:
		return t.terminalAggregate(v)
	case expr.Quantifier:
		return t.terminalQuantifier(v)
	}
	if !expr.IsQuery(n) {
		return nil, Translation("root node %s is not a query", expr.Name(n))
	}

	b, err := t.query(root, scope{})
	if err != nil {
		return nil, err
	}
	return b.plan()
}

type translator struct {
	model     *schema.Model
	arena     *expr.Arena
	aliases   int
	resolvers map[string]*hierarchy.Resolver
}

func (t *translator) alias() string {
	a := fmt.Sprintf("t%d", t.aliases)
	t.aliases++
	return a
}

func (t *translator) node(h expr.Handle) (expr.Node, error) {
	n, err := t.arena.Node(h)
	if err != nil {
		return nil, Translation("%v", err)
	}
	return n, nil
}

func (t *translator) entity(name string) (*schema.Entity, error) {
	e, ok := t.model.Entity(name)
	if !ok {
		return nil, Translation("unknown entity set %s", name)
	}
	return e, nil
}

func (t *translator) resolver(e *schema.Entity) (*hierarchy.Resolver, error) {
	if r, ok := t.resolvers[e.Name]; ok {
		return r, nil
	}
	r, err := hierarchy.New(e.Hierarchy)
	if err != nil {
		return nil, Translation("%s: %v", e.Name, err)
	}
	t.resolvers[e.Name] = r
	return r, nil
}

// env binds lambda parameters. It is never mutated; with returns a copy.
type env map[string]value

func (e env) with(names []string, vals ...value) env {
	out := make(env, len(e)+len(names))
	for k, v := range e {
		out[k] = v
	}
	for i, n := range names {
		out[n] = vals[i]
	}
	return out
}

// scope is where an expression is evaluated: the block receiving any
// joins it needs, and the variables in sight.
type scope struct {
	b   *builder
	env env
}

// builder accumulates one SELECT block.
type builder struct {
	t *translator

	from     Source
	joins    []Join
	where    []Scalar
	groupBy  []Scalar
	grouped  bool
	distinct bool
	order    []OrderKey
	skip     Scalar
	take     Scalar
	setOp    *SetOp

	elem value

	// rowKey identifies an element of the block; nil when unknown.
	rowKey []Scalar

	// carry holds scalars that must survive wrapping without being part of
	// the element, such as the correlation columns of a nested collection.
	carry []Scalar

	navJoins map[string]*entityVal
	spans    []spanRequest
	entity   string
}

type spanRequest struct {
	entity *schema.Entity
	path   string
}

func (t *translator) newSource(e *schema.Entity) *builder {
	alias := t.alias()
	ev := newEntityVal(e, alias)
	return &builder{
		t:        t,
		from:     Source{Table: e.Table, Alias: alias},
		elem:     ev,
		rowKey:   ev.keyScalars(),
		navJoins: make(map[string]*entityVal),
		entity:   e.Name,
	}
}

// op classifies what is about to be appended to a block.
type op int

const (
	opFilter op = iota
	opProject
	opOrder
	opSkip
	opTake
	opDistinct
	opGroupBy
	opJoin
	opAggregate
)

// needsWrap reports whether appending o would change the meaning of what
// the block already computes, in which case the block becomes a derived
// table first.
func (b *builder) needsWrap(o op) bool {
	if b.setOp != nil {
		return true
	}
	paged := b.skip != nil || b.take != nil
	switch o {
	case opFilter, opGroupBy, opJoin, opAggregate:
		return b.distinct || b.grouped || paged
	case opProject:
		return b.distinct
	case opOrder, opDistinct:
		return b.distinct || paged
	case opSkip:
		return paged
	case opTake:
		return b.take != nil
	}
	return false
}

func (b *builder) prepare(o op) (*builder, error) {
	if !b.needsWrap(o) {
		return b, nil
	}
	return b.wrap()
}

// query translates a query node evaluated in sc.
func (t *translator) query(h expr.Handle, sc scope) (*builder, error) {
	n, err := t.node(h)
	if err != nil {
		return nil, err
	}

	switch v := n.(type) {
	case expr.Source:
		e, err := t.entity(v.Entity)
		if err != nil {
			return nil, err
		}
		return t.newSource(e), nil
	case expr.Var, expr.MemberAccess:
		c, err := t.collection(h, sc)
		if err != nil {
			return nil, err
		}
		return t.realize(c, true)
	case expr.Join:
		outer, err := t.query(v.Outer, sc)
		if err != nil {
			return nil, err
		}
		inner, err := t.query(v.Inner, sc)
		if err != nil {
			return nil, err
		}
		return outer.join(inner, v, sc.env)
	case expr.SetOp:
		left, err := t.query(v.Left, sc)
		if err != nil {
			return nil, err
		}
		right, err := t.query(v.Right, sc)
		if err != nil {
			return nil, err
		}
		return t.setOperation(v.Kind, left, right)
	case expr.Aggregate, expr.Quantifier:
		return nil, Translation("%s produces a single value, not a sequence", expr.Name(n))
	}

	src, ok := chainSource(n)
	if !ok {
		return nil, Translation("%s is not a query", expr.Name(n))
	}
	b, err := t.query(src, sc)
	if err != nil {
		return nil, err
	}
	return t.apply(b, n, sc)
}

// chainSource returns the input sequence of single-input operators.
func chainSource(n expr.Node) (expr.Handle, bool) {
	switch v := n.(type) {
	case expr.Filter:
		return v.Source, true
	case expr.Project:
		return v.Source, true
	case expr.FlatMap:
		return v.Source, true
	case expr.GroupBy:
		return v.Source, true
	case expr.OrderBy:
		return v.Source, true
	case expr.ThenBy:
		return v.Source, true
	case expr.Skip:
		return v.Source, true
	case expr.Take:
		return v.Source, true
	case expr.Distinct:
		return v.Source, true
	case expr.TypeFilter:
		return v.Source, true
	case expr.Include:
		return v.Source, true
	}
	return expr.NoHandle, false
}

// apply appends a single-input operator to b. Lambdas see the variables
// of sc plus their own parameters.
func (t *translator) apply(b *builder, n expr.Node, sc scope) (*builder, error) {
	switch v := n.(type) {
	case expr.Filter:
		return b.filter(v.Predicate, sc.env)
	case expr.Project:
		return b.project(v.Selector, sc.env)
	case expr.FlatMap:
		return b.flatMap(v, sc.env)
	case expr.GroupBy:
		return b.groupByKey(v, sc)
	case expr.OrderBy:
		return b.orderBy(v.Key, v.Descending, true, sc.env)
	case expr.ThenBy:
		return b.orderBy(v.Key, v.Descending, false, sc.env)
	case expr.Skip:
		count, err := t.count(v.Count)
		if err != nil {
			return nil, err
		}
		return b.skipRows(count)
	case expr.Take:
		count, err := t.count(v.Count)
		if err != nil {
			return nil, err
		}
		return b.takeRows(count)
	case expr.Distinct:
		return b.makeDistinct()
	case expr.TypeFilter:
		return b.typeFilter(v.Type)
	case expr.Include:
		return b.include(v.Path)
	}
	return nil, Translation("%s is not a query operator", expr.Name(n))
}

func (b *builder) bind(lam expr.Lambda, e env, args ...value) (scope, error) {
	if len(lam.Params) != len(args) {
		return scope{}, Translation("lambda takes %d parameters, %d given", len(lam.Params), len(args))
	}
	return scope{b: b, env: e.with(lam.Params, args...)}, nil
}

// lambda evaluates lam in b with its parameters bound to args.
func (b *builder) lambda(lam expr.Lambda, e env, args ...value) (value, error) {
	sc, err := b.bind(lam, e, args...)
	if err != nil {
		return nil, err
	}
	return b.t.eval(lam.Body, sc)
}

func (b *builder) predicate(lam expr.Lambda, e env, args ...value) (Scalar, error) {
	v, err := b.lambda(lam, e, args...)
	if err != nil {
		return nil, err
	}
	return asScalar(v)
}

func (b *builder) filter(lam expr.Lambda, e env) (*builder, error) {
	b, err := b.prepare(opFilter)
	if err != nil {
		return nil, err
	}
	pred, err := b.predicate(lam, e, b.elem)
	if err != nil {
		return nil, err
	}
	b.where = append(b.where, pred)
	return b, nil
}

func (b *builder) project(lam expr.Lambda, e env) (*builder, error) {
	b, err := b.prepare(opProject)
	if err != nil {
		return nil, err
	}
	v, err := b.lambda(lam, e, b.elem)
	if err != nil {
		return nil, err
	}
	b.elem = v
	return b, nil
}

func (b *builder) orderBy(lam expr.Lambda, desc, reset bool, e env) (*builder, error) {
	b, err := b.prepare(opOrder)
	if err != nil {
		return nil, err
	}
	if !reset && len(b.order) == 0 {
		return nil, Translation("ThenBy requires a preceding OrderBy")
	}
	v, err := b.lambda(lam, e, b.elem)
	if err != nil {
		return nil, err
	}
	if hasCollections(v) {
		return nil, Translation("cannot order by a collection")
	}
	var keys []OrderKey
	for _, s := range compareLeaves(v) {
		keys = append(keys, OrderKey{Expr: s, Descending: desc})
	}
	if reset {
		b.order = keys
	} else {
		b.order = append(b.order, keys...)
	}
	return b, nil
}

// ensureOrder gives paging a total order: the current ordering followed
// by the row key columns it does not already sort on. Without an ordering
// the row key alone is used.
func (b *builder) ensureOrder(construct string) error {
	if len(b.rowKey) == 0 {
		if len(b.order) > 0 {
			return nil
		}
		return UnsupportedConstruct(construct, "paging requires an ordering and the sequence has no row identity")
	}
	sorted := make(map[string]bool, len(b.order))
	for _, k := range b.order {
		sorted[Describe(k.Expr)] = true
	}
	for _, s := range b.rowKey {
		if !sorted[Describe(s)] {
			b.order = append(b.order, OrderKey{Expr: s})
		}
	}
	return nil
}

func (b *builder) skipRows(count Scalar) (*builder, error) {
	b, err := b.prepare(opSkip)
	if err != nil {
		return nil, err
	}
	if err := b.ensureOrder("Skip"); err != nil {
		return nil, err
	}
	b.skip = count
	return b, nil
}

func (b *builder) takeRows(count Scalar) (*builder, error) {
	b, err := b.prepare(opTake)
	if err != nil {
		return nil, err
	}
	if err := b.ensureOrder("Take"); err != nil {
		return nil, err
	}
	b.take = count
	return b, nil
}

func (b *builder) makeDistinct() (*builder, error) {
	if b.distinct && b.setOp == nil && b.skip == nil && b.take == nil {
		return b, nil
	}
	b, err := b.prepare(opDistinct)
	if err != nil {
		return nil, err
	}
	if hasCollections(b.elem) {
		return nil, UnsupportedConstruct("Distinct", "elements containing collections cannot be compared")
	}
	if _, ok := b.elem.(*groupVal); ok {
		return nil, UnsupportedConstruct("Distinct", "groups cannot be compared")
	}
	b.distinct = true
	b.order = nil
	b.rowKey = scalarLeaves(b.elem)
	return b, nil
}

func (b *builder) typeFilter(typeName string) (*builder, error) {
	b, err := b.prepare(opFilter)
	if err != nil {
		return nil, err
	}
	ev, ok := b.elem.(*entityVal)
	if !ok {
		return nil, Translation("OfType(%s) applied to a %s", typeName, b.elem.describe())
	}
	pred, all, err := b.t.typePredicate(ev, typeName)
	if err != nil {
		return nil, err
	}
	if !all {
		b.where = append(b.where, pred)
	}
	return b, nil
}

func (b *builder) include(path string) (*builder, error) {
	ev, ok := b.elem.(*entityVal)
	if !ok {
		return b, nil
	}
	b.spans = append(b.spans, spanRequest{entity: ev.entity, path: path})
	return b, nil
}

func (b *builder) groupByKey(g expr.GroupBy, sc scope) (*builder, error) {
	b, err := b.prepare(opGroupBy)
	if err != nil {
		return nil, err
	}
	if hasCollections(b.elem) {
		return nil, UnsupportedConstruct("GroupBy", "cannot group elements containing collections")
	}
	key, err := b.lambda(g.Key, sc.env, b.elem)
	if err != nil {
		return nil, err
	}
	if hasCollections(key) {
		return nil, Translation("group key cannot contain a collection")
	}
	if _, ok := key.(*groupVal); ok {
		return nil, Translation("group key cannot be a group")
	}
	keys := scalarLeaves(key)
	gv := &groupVal{
		key:    key,
		source: g.Source,
		keyLam: g.Key,
		scope:  sc,
		direct: b,
		elem:   b.elem,
	}
	b.groupBy = keys
	b.grouped = true
	b.elem = gv
	b.order = nil
	b.rowKey = keys
	b.spans = nil
	return b, nil
}

// count translates the operand of Skip or Take.
func (t *translator) count(h expr.Handle) (Scalar, error) {
	n, err := t.node(h)
	if err != nil {
		return nil, err
	}
	switch v := n.(type) {
	case expr.Constant:
		if _, ok := v.Value.(ir.IRInt); !ok {
			return nil, Translation("row count must be an integer, got %T", v.Value)
		}
		return Literal{Value: v.Value}, nil
	case expr.ParameterRef:
		return ParamRef{Param: v.Param}, nil
	}
	return nil, Translation("row count must be a constant or a parameter, got %s", expr.Name(n))
}

// join translates an inner equi-join of b and inner.
func (b *builder) join(inner *builder, j expr.Join, e env) (*builder, error) {
	b, err := b.prepare(opJoin)
	if err != nil {
		return nil, err
	}
	outerKey, err := b.lambda(j.OuterKey, e, b.elem)
	if err != nil {
		return nil, err
	}

	if !inner.simple() {
		if inner, err = inner.wrap(); err != nil {
			return nil, err
		}
	}
	innerKey, err := inner.lambda(j.InnerKey, e, inner.elem)
	if err != nil {
		return nil, err
	}
	on, err := equate(compareLeaves(outerKey), compareLeaves(innerKey))
	if err != nil {
		return nil, err
	}

	b.merge(inner, on)
	if b.rowKey != nil && inner.rowKey != nil {
		b.rowKey = append(append([]Scalar(nil), b.rowKey...), inner.rowKey...)
	} else {
		b.rowKey = nil
	}
	b.elem, err = b.lambda(j.Result, e, b.elem, inner.elem)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// simple reports whether b is a plain table scan with joins and filters,
// which can be merged into another block.
func (b *builder) simple() bool {
	return b.setOp == nil && !b.grouped && !b.distinct && b.skip == nil && b.take == nil
}

// merge inner-joins the simple block inner into b. on relates the two.
func (b *builder) merge(inner *builder, on []Scalar) {
	j := Join{Type: InnerJoin, Table: inner.from.Table, Alias: inner.from.Alias, Sub: inner.from.Sub}
	if len(inner.joins) == 0 {
		j.On = conjunction(append(append([]Scalar(nil), on...), inner.where...))
		b.joins = append(b.joins, j)
	} else {
		j.On = Literal{Value: ir.IRBool(true)}
		b.joins = append(b.joins, j)
		b.joins = append(b.joins, inner.joins...)
		b.where = append(b.where, inner.where...)
		b.where = append(b.where, on...)
	}
	for k, v := range inner.navJoins {
		b.navJoins[k] = v
	}
}

// setOperation combines two blocks. Operand ordering is dropped; paging
// on an operand is kept by wrapping it.
func (t *translator) setOperation(kind expr.SetKind, left, right *builder) (*builder, error) {
	name := expr.Name(expr.SetOp{Kind: kind})
	var qs [2]*Query
	for i, side := range []*builder{left, right} {
		if side.skip != nil || side.take != nil {
			var err error
			if side, err = side.wrap(); err != nil {
				return nil, err
			}
		}
		if hasCollections(side.elem) {
			return nil, UnsupportedConstruct(name, "operands containing collections")
		}
		if _, ok := side.elem.(*groupVal); ok {
			return nil, UnsupportedConstruct(name, "operands that are groups")
		}
		side.order = nil
		q, _, err := side.finish(nil)
		if err != nil {
			return nil, err
		}
		qs[i] = q
		if i == 0 {
			left = side
		} else {
			right = side
		}
	}
	if signature(left.elem) != signature(right.elem) {
		return nil, Translation("%s operands have different shapes", name)
	}

	lcols, rcols := qs[0].Columns(), qs[1].Columns()
	if len(lcols) != len(rcols) {
		return nil, Translation("%s operands project %d and %d columns", name, len(lcols), len(rcols))
	}
	lay := newProjection()
	for _, c := range lcols {
		lay.add(c.Expr, c.Name)
	}
	ref := func(s Scalar) Scalar {
		c, _ := lay.lookup(s)
		return ColumnRef{Column: c.Name, Type: TypeOf(s)}
	}

	nb := &builder{
		t:        t,
		setOp:    &SetOp{Op: kind, Left: qs[0], Right: qs[1]},
		elem:     remap(left.elem, ref),
		navJoins: make(map[string]*entityVal),
		entity:   left.entity,
	}
	if kind != expr.Concat {
		nb.rowKey = scalarLeaves(nb.elem)
	}
	if kind == expr.Union || kind == expr.Concat {
		nb.spans = append(append([]spanRequest(nil), left.spans...), right.spans...)
	}
	return nb, nil
}

func conjunction(ps []Scalar) Scalar {
	if len(ps) == 0 {
		return Literal{Value: ir.IRBool(true)}
	}
	out := ps[0]
	for _, p := range ps[1:] {
		out = Binary{Op: OpAnd, Left: out, Right: p}
	}
	return out
}

// equate pairs up two key lists.
func equate(left, right []Scalar) ([]Scalar, error) {
	if len(left) != len(right) {
		return nil, Translation("cannot compare keys of %d and %d members", len(left), len(right))
	}
	out := make([]Scalar, len(left))
	for i := range left {
		out[i] = Binary{Op: OpEq, Left: left[i], Right: right[i]}
	}
	return out, nil
}

// nullSafeEq compares group keys, for which null equals null.
func nullSafeEq(a, b Scalar) Scalar {
	return Binary{
		Op:   OpOr,
		Left: Binary{Op: OpEq, Left: a, Right: b},
		Right: Binary{
			Op:    OpAnd,
			Left:  Unary{Op: OpIsNull, Operand: a},
			Right: Unary{Op: OpIsNull, Operand: b},
		},
	}
}

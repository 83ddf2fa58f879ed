package plan

import (
	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/ir"
)

// collection translates a collection-valued expression used inside a
// lambda. Operator chains over a navigation or a group are recorded on the
// collection and realized where the collection is consumed; any other
// query is translated as an independent block when consumed.
func (t *translator) collection(h expr.Handle, sc scope) (*collectionVal, error) {
	var chain []expr.Handle
	cur := h
	for {
		n, err := t.node(cur)
		if err != nil {
			return nil, err
		}
		src, ok := chainSource(n)
		if !ok {
			break
		}
		chain = append(chain, cur)
		cur = src
	}

	n, err := t.node(cur)
	if err != nil {
		return nil, err
	}
	switch n.(type) {
	case expr.Var, expr.MemberAccess:
	default:
		return &collectionVal{base: sourceBase{node: h}, scope: sc}, nil
	}

	v, err := t.eval(cur, sc)
	if err != nil {
		return nil, err
	}
	var c collectionVal
	switch cv := v.(type) {
	case *collectionVal:
		c = *cv
	case *groupVal:
		varName := ""
		if vr, ok := n.(expr.Var); ok {
			varName = vr.Name
		}
		c = collectionVal{base: groupBase{group: cv, varName: varName}, outer: scalarLeaves(cv.key)}
	default:
		return nil, Translation("a %s is not a collection", v.describe())
	}
	c.scope = sc
	c.ops = append([]expr.Handle(nil), c.ops...)
	for i := len(chain) - 1; i >= 0; i-- {
		c.ops = append(c.ops, chain[i])
	}
	return &c, nil
}

// realize turns c into a block of its own. When correlate is set the block
// is restricted to the rows related to the enclosing row, for use as a
// subquery; otherwise the correlation columns are carried for a join.
func (t *translator) realize(c *collectionVal, correlate bool) (*builder, error) {
	sc := c.scope
	var (
		b     *builder
		inner []Scalar
		group bool
	)

	switch base := c.base.(type) {
	case sourceBase:
		return t.query(base.node, sc)
	case navBase:
		b = t.newSource(base.target)
		ev := b.elem.(*entityVal)
		for _, p := range base.nav.To {
			inner = append(inner, ev.cols[p])
		}
	case groupBase:
		g := base.group
		src, err := t.query(g.source, g.scope)
		if err != nil {
			return nil, err
		}
		if src, err = src.prepare(opFilter); err != nil {
			return nil, err
		}
		key, err := src.lambda(g.keyLam, g.scope.env, src.elem)
		if err != nil {
			return nil, err
		}
		inner = scalarLeaves(key)
		b = src
		group = true
		if base.varName != "" {
			// Inside the collection the group variable denotes this
			// group, keyed by the inner rows.
			sc.env = sc.env.with([]string{base.varName}, &groupVal{
				key:    key,
				source: g.source,
				keyLam: g.keyLam,
				scope:  g.scope,
			})
		}
	}
	if len(inner) != len(c.outer) {
		return nil, Translation("collection correlates %d columns with %d", len(inner), len(c.outer))
	}

	if correlate {
		for i := range inner {
			if group {
				b.where = append(b.where, nullSafeEq(inner[i], c.outer[i]))
			} else {
				b.where = append(b.where, Binary{Op: OpEq, Left: inner[i], Right: c.outer[i]})
			}
		}
	} else {
		b.carry = inner
	}

	for _, h := range c.ops {
		n, err := t.node(h)
		if err != nil {
			return nil, err
		}
		if b, err = t.apply(b, n, sc); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// directGroup reports whether an aggregate over c can be computed by the
// grouped block in scope instead of a subquery.
func directGroup(c *collectionVal, sc scope) (*groupVal, bool) {
	gb, ok := c.base.(groupBase)
	if !ok || len(c.ops) > 0 || sc.b == nil {
		return nil, false
	}
	g := gb.group
	return g, g.direct != nil && g.direct == sc.b && sc.b.grouped
}

var aggregateOps = map[expr.AggregateOp]AggregateOp{
	expr.Count:   AggCount,
	expr.Sum:     AggSum,
	expr.Min:     AggMin,
	expr.Max:     AggMax,
	expr.Average: AggAvg,
}

// aggregateValue translates an aggregate over a collection inside a
// lambda.
func (t *translator) aggregateValue(a expr.Aggregate, sc scope) (value, error) {
	op, ok := aggregateOps[a.Op]
	if !ok {
		return nil, Translation("unknown aggregate %s", a.Op)
	}
	c, err := t.collection(a.Source, sc)
	if err != nil {
		return nil, err
	}

	if g, ok := directGroup(c, sc); ok && a.Predicate == nil {
		arg, err := aggregateArg(sc.b, op, a.Selector, sc.env, g.elem)
		if err != nil {
			return nil, err
		}
		return scalarVal{Aggregate{Op: op, Arg: arg}}, nil
	}

	b, err := t.realize(c, true)
	if err != nil {
		return nil, err
	}
	if a.Predicate != nil {
		if b, err = b.filter(*a.Predicate, sc.env); err != nil {
			return nil, err
		}
	}
	q, err := b.aggregate(op, a.Selector, sc.env)
	if err != nil {
		return nil, err
	}
	return scalarVal{Subquery{Query: q}}, nil
}

func aggregateArg(b *builder, op AggregateOp, selector *expr.Lambda, e env, elem value) (Scalar, error) {
	if selector != nil {
		v, err := b.lambda(*selector, e, elem)
		if err != nil {
			return nil, err
		}
		return asScalar(v)
	}
	if op == AggCount {
		return nil, nil
	}
	s, ok := elem.(scalarVal)
	if !ok {
		return nil, Translation("%s over a sequence of %s needs a selector", op, elem.describe())
	}
	return s.s, nil
}

// aggregate reduces b to a single-column query.
func (b *builder) aggregate(op AggregateOp, selector *expr.Lambda, e env) (*Query, error) {
	b, err := b.prepare(opAggregate)
	if err != nil {
		return nil, err
	}
	arg, err := aggregateArg(b, op, selector, e, b.elem)
	if err != nil {
		return nil, err
	}
	b.order = nil
	return b.query([]Column{{Name: "Value", Expr: Aggregate{Op: op, Arg: arg}}}, nil), nil
}

// exists builds the EXISTS test over b.
func (b *builder) exists() (Scalar, error) {
	if b.setOp != nil {
		var err error
		if b, err = b.wrap(); err != nil {
			return nil, err
		}
	}
	if b.skip == nil && b.take == nil {
		b.order = nil
	}
	return Exists{Query: b.query([]Column{{Name: "Value", Expr: Literal{Value: ir.IRInt(1)}}}, nil)}, nil
}

// quantifierValue translates Any and All inside a lambda.
func (t *translator) quantifierValue(q expr.Quantifier, sc scope) (value, error) {
	c, err := t.collection(q.Source, sc)
	if err != nil {
		return nil, err
	}
	b, err := t.realize(c, true)
	if err != nil {
		return nil, err
	}

	switch q.Kind {
	case expr.Any:
		if q.Predicate != nil {
			if b, err = b.filter(*q.Predicate, sc.env); err != nil {
				return nil, err
			}
		}
		ex, err := b.exists()
		if err != nil {
			return nil, err
		}
		return scalarVal{ex}, nil
	case expr.All:
		if q.Predicate == nil {
			return nil, Translation("All requires a predicate")
		}
		if b, err = b.prepare(opFilter); err != nil {
			return nil, err
		}
		pred, err := b.predicate(*q.Predicate, sc.env, b.elem)
		if err != nil {
			return nil, err
		}
		b.where = append(b.where, violates(pred))
		ex, err := b.exists()
		if err != nil {
			return nil, err
		}
		return scalarVal{negate(ex)}, nil
	}
	return nil, Translation("unknown quantifier %s", q.Kind)
}

// flatMap expands each element of b into a collection joined into the
// block.
func (b *builder) flatMap(fm expr.FlatMap, e env) (*builder, error) {
	b, err := b.prepare(opJoin)
	if err != nil {
		return nil, err
	}
	sc, err := b.bind(fm.Collection, e, b.elem)
	if err != nil {
		return nil, err
	}
	c, err := b.t.collection(fm.Collection.Body, sc)
	if err != nil {
		return nil, err
	}

	var item value
	switch base := c.base.(type) {
	case navBase:
		item, err = b.joinNavigation(c, base)
	case sourceBase:
		item, err = b.joinQuery(c)
	default:
		return nil, UnsupportedConstruct("SelectMany", "flattening the members of a group")
	}
	if err != nil {
		return nil, err
	}

	if fm.Result == nil {
		b.elem = item
		return b, nil
	}
	b.elem, err = b.lambda(*fm.Result, e, b.elem, item)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// joinNavigation inner-joins the target of a to-many navigation. Filters
// and projections applied to the navigation are folded into the block.
func (b *builder) joinNavigation(c *collectionVal, base navBase) (value, error) {
	alias := b.t.alias()
	ev := newEntityVal(base.target, alias)
	on := make([]Scalar, len(base.nav.To))
	for i, p := range base.nav.To {
		on[i] = Binary{Op: OpEq, Left: c.outer[i], Right: ev.cols[p]}
	}
	b.joins = append(b.joins, Join{Type: InnerJoin, Table: base.target.Table, Alias: alias, On: conjunction(on)})
	if b.rowKey != nil {
		b.rowKey = append(append([]Scalar(nil), b.rowKey...), ev.keyScalars()...)
	}

	var item value = ev
	for _, h := range c.ops {
		n, err := b.t.node(h)
		if err != nil {
			return nil, err
		}
		switch v := n.(type) {
		case expr.Filter:
			pred, err := b.predicate(v.Predicate, c.scope.env, item)
			if err != nil {
				return nil, err
			}
			b.where = append(b.where, pred)
		case expr.Project:
			if item, err = b.lambda(v.Selector, c.scope.env, item); err != nil {
				return nil, err
			}
		case expr.TypeFilter:
			iv, ok := item.(*entityVal)
			if !ok {
				return nil, Translation("OfType(%s) applied to a %s", v.Type, item.describe())
			}
			pred, all, err := b.t.typePredicate(iv, v.Type)
			if err != nil {
				return nil, err
			}
			if !all {
				b.where = append(b.where, pred)
			}
		default:
			return nil, UnsupportedConstruct("SelectMany", "%s on the flattened navigation", expr.Name(n))
		}
	}
	return item, nil
}

// joinQuery inner-joins an independent query. A simple query is merged
// into the block; anything else becomes a derived table, which cannot
// refer to the enclosing block.
func (b *builder) joinQuery(c *collectionVal) (value, error) {
	sub, err := b.t.realize(c, true)
	if err != nil {
		return nil, err
	}
	if !sub.simple() || hasCollections(sub.elem) {
		if sub, err = sub.wrap(); err != nil {
			return nil, err
		}
		if free := freeAliases(sub.from.Sub, nil); len(free) > 0 {
			return nil, UnsupportedConstruct("SelectMany", "a derived query refers to the enclosing query")
		}
	}
	b.merge(sub, nil)
	if b.rowKey != nil && sub.rowKey != nil {
		b.rowKey = append(append([]Scalar(nil), b.rowKey...), sub.rowKey...)
	} else {
		b.rowKey = nil
	}
	return sub.elem, nil
}

// terminalAggregate translates Count/Sum/Min/Max/Average applied to a
// whole query.
func (t *translator) terminalAggregate(a expr.Aggregate) (*Plan, error) {
	op, ok := aggregateOps[a.Op]
	if !ok {
		return nil, Translation("unknown aggregate %s", a.Op)
	}
	b, err := t.query(a.Source, scope{})
	if err != nil {
		return nil, err
	}
	if a.Predicate != nil {
		if b, err = b.filter(*a.Predicate, nil); err != nil {
			return nil, err
		}
	}
	q, err := b.aggregate(op, a.Selector, nil)
	if err != nil {
		return nil, err
	}
	col := q.Columns()[0]
	return &Plan{
		Root:   q,
		Shape:  &Shape{Kind: ShapeScalar, Column: 0, Type: TypeOf(col.Expr)},
		Result: ResultSingle,
		Entity: b.entity,
	}, nil
}

// terminalQuantifier translates Any and All applied to a whole query as a
// row count: Any holds when some row matches, All when no row fails.
func (t *translator) terminalQuantifier(q expr.Quantifier) (*Plan, error) {
	b, err := t.query(q.Source, scope{})
	if err != nil {
		return nil, err
	}
	result := ResultAny
	switch q.Kind {
	case expr.Any:
		if q.Predicate != nil {
			if b, err = b.filter(*q.Predicate, nil); err != nil {
				return nil, err
			}
		}
	case expr.All:
		if q.Predicate == nil {
			return nil, Translation("All requires a predicate")
		}
		result = ResultAll
		if b, err = b.prepare(opFilter); err != nil {
			return nil, err
		}
		pred, err := b.predicate(*q.Predicate, nil, b.elem)
		if err != nil {
			return nil, err
		}
		b.where = append(b.where, violates(pred))
	default:
		return nil, Translation("unknown quantifier %s", q.Kind)
	}
	agg, err := b.aggregate(AggCount, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Root:   agg,
		Shape:  &Shape{Kind: ShapeScalar, Column: 0, Type: TypeOf(agg.Columns()[0].Expr)},
		Result: result,
		Entity: b.entity,
	}, nil
}

package plan

import (
	"fmt"
	"strings"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/span"
)

// query renders the block with the given select list. extraOrder is
// appended to the block ordering.
func (b *builder) query(cols []Column, extraOrder []OrderKey) *Query {
	if b.setOp != nil {
		return &Query{Stages: []Stage{*b.setOp}}
	}

	q := &Query{RowKey: b.rowKey}
	q.Stages = append(q.Stages, b.from)
	for _, j := range b.joins {
		q.Stages = append(q.Stages, j)
	}
	for _, w := range b.where {
		q.Stages = append(q.Stages, Filter{Predicate: w})
	}
	if b.grouped {
		var keys []Scalar
		for _, k := range b.groupBy {
			if _, ok := k.(Literal); !ok {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			q.Stages = append(q.Stages, GroupBy{Keys: keys})
		}
	}
	q.Stages = append(q.Stages, Project{Columns: cols})
	if b.distinct {
		q.Stages = append(q.Stages, Distinct{})
	}
	for _, k := range b.order {
		q.Stages = append(q.Stages, k)
	}
	for _, k := range extraOrder {
		q.Stages = append(q.Stages, k)
	}
	if b.skip != nil {
		q.Stages = append(q.Stages, Skip{Count: b.skip})
	}
	if b.take != nil {
		q.Stages = append(q.Stages, Take{Count: b.take})
	}
	return q
}

// finish renders the block projecting the leaves of its element followed
// by extra. The returned projection locates every projected scalar.
func (b *builder) finish(extra []Scalar) (*Query, *projection, error) {
	p := newProjection()
	if b.setOp != nil {
		for _, l := range leaves(b.elem, "Value") {
			ref, ok := l.s.(ColumnRef)
			if !ok {
				return nil, nil, Translation("set operation column %s is not a column", Describe(l.s))
			}
			if i := p.add(ref, ref.Column); p.cols[i].Name != ref.Column {
				return nil, nil, Translation("set operation column %s projected twice", ref.Column)
			}
		}
		for _, s := range extra {
			if _, ok := p.lookup(s); !ok {
				return nil, nil, Translation("%s is not a column of the set operation", Describe(s))
			}
		}
		return b.query(nil, nil), p, nil
	}

	for _, l := range leaves(b.elem, "Value") {
		p.add(l.s, l.name)
	}
	for i, s := range extra {
		p.add(s, fmt.Sprintf("h%d", i))
	}
	return b.query(p.cols, nil), p, nil
}

// wrap turns the block into a derived table and returns a new block
// reading from it. Element, ordering, row key and carried scalars are
// rewritten to the columns of the derived table; the ordering only stays
// inside when paging depends on it.
func (b *builder) wrap() (*builder, error) {
	var extra []Scalar
	for _, k := range b.order {
		extra = append(extra, k.Expr)
	}
	extra = append(extra, b.rowKey...)
	extra = append(extra, b.carry...)

	order := b.order
	if b.skip == nil && b.take == nil {
		b.order = nil
	}
	q, p, err := b.finish(extra)
	b.order = order
	if err != nil {
		return nil, err
	}

	alias := b.t.alias()
	var missing []string
	ref := func(s Scalar) Scalar {
		c, ok := p.lookup(s)
		if !ok {
			missing = append(missing, Describe(s))
			return s
		}
		return ColumnRef{Alias: alias, Column: c.Name, Type: TypeOf(s)}
	}

	nb := &builder{
		t:        b.t,
		from:     Source{Alias: alias, Sub: q},
		elem:     remap(b.elem, ref),
		navJoins: make(map[string]*entityVal),
		spans:    b.spans,
		entity:   b.entity,
	}
	for _, k := range b.order {
		nb.order = append(nb.order, OrderKey{Expr: ref(k.Expr), Descending: k.Descending})
	}
	if b.rowKey != nil {
		nb.rowKey = make([]Scalar, len(b.rowKey))
		for i, s := range b.rowKey {
			nb.rowKey[i] = ref(s)
		}
	}
	for _, s := range b.carry {
		nb.carry = append(nb.carry, ref(s))
	}
	if len(missing) > 0 {
		return nil, Translation("cannot wrap block: %s not projected", strings.Join(missing, ", "))
	}
	return nb, nil
}

// plan finishes the outermost block.
func (b *builder) plan() (*Plan, error) {
	b.elem = expandGroups(b.elem)

	var tree *span.Tree
	if ev, ok := b.elem.(*entityVal); ok {
		for _, r := range b.spans {
			if r.entity != ev.entity {
				continue
			}
			if tree == nil {
				tree = span.New(b.t.model, ev.entity)
			}
			if err := tree.Add(r.path); err != nil {
				return nil, Translation("%v", err)
			}
		}
	}

	nested := hasCollections(b.elem) || (tree != nil && tree.HasMany())
	p := b
	var err error
	switch {
	case nested:
		if len(b.rowKey) == 0 {
			return nil, UnsupportedConstruct("Select", "nested collections need a row identity for their parent")
		}
		p, err = b.wrap()
	case b.setOp != nil && tree != nil && !tree.Empty():
		p, err = b.wrap()
	}
	if err != nil {
		return nil, err
	}

	f := &finisher{t: b.t, b: p, proj: newProjection()}
	var shape *Shape
	if ev, ok := p.elem.(*entityVal); ok && tree != nil {
		shape, err = f.entity(ev, tree.Children)
	} else {
		shape, err = f.shape(p.elem, "Value")
	}
	if err != nil {
		return nil, err
	}

	pl := &Plan{Shape: shape, Result: ResultSequence, Entity: b.entity}
	if p.setOp != nil {
		pl.Root = p.query(nil, nil)
		return pl, nil
	}

	var order []OrderKey
	if nested {
		for _, s := range p.rowKey {
			order = append(order, OrderKey{Expr: s})
			pl.RowKey = append(pl.RowKey, f.proj.add(s, "rk"))
		}
	}
	order = append(order, f.order...)
	for _, k := range p.order {
		f.proj.add(k.Expr, "o")
	}
	for _, k := range order {
		f.proj.add(k.Expr, "o")
	}
	pl.Root = p.query(f.proj.cols, order)
	return pl, nil
}

// expandGroups replaces groups in a final element by their key and
// members.
func expandGroups(v value) value {
	switch x := v.(type) {
	case *groupVal:
		return &recordVal{fields: []recordField{
			{name: "Key", v: x.key},
			{name: "Elements", v: &collectionVal{
				base:  groupBase{group: x},
				outer: scalarLeaves(x.key),
				scope: x.scope,
			}},
		}}
	case *recordVal:
		rv := &recordVal{fields: make([]recordField, len(x.fields))}
		for i, f := range x.fields {
			rv.fields[i] = recordField{name: f.name, v: expandGroups(f.v)}
		}
		return rv
	}
	return v
}

// finisher builds the final select list and shaping tree.
type finisher struct {
	t     *translator
	b     *builder
	proj  *projection
	order []OrderKey
}

func (f *finisher) shape(v value, name string) (*Shape, error) {
	switch x := v.(type) {
	case scalarVal:
		return &Shape{Kind: ShapeScalar, Column: f.proj.add(x.s, name), Type: TypeOf(x.s)}, nil
	case *entityVal:
		return f.entity(x, nil)
	case *complexVal:
		s := &Shape{Kind: ShapeRecord}
		for _, m := range x.members() {
			col, _ := x.ent.entity.Column(m)
			sh := &Shape{Kind: ShapeScalar, Column: f.proj.add(x.ent.cols[m], m), Type: col.Type}
			addField(&s.Fields, strings.Split(strings.TrimPrefix(m, x.prefix+"."), "."), sh)
		}
		return s, nil
	case *recordVal:
		s := &Shape{Kind: ShapeRecord}
		for _, fl := range x.fields {
			sh, err := f.shape(fl.v, fl.name)
			if err != nil {
				return nil, err
			}
			s.Fields = append(s.Fields, ShapeField{Name: fl.name, Shape: sh})
		}
		return s, nil
	case *collectionVal:
		return f.child(x, name)
	}
	return nil, Translation("cannot return a %s", v.describe())
}

// addField adds sh under a dotted path, creating records for complex
// properties.
func addField(fields *[]ShapeField, path []string, sh *Shape) {
	if len(path) == 1 {
		*fields = append(*fields, ShapeField{Name: path[0], Shape: sh})
		return
	}
	for _, fl := range *fields {
		if fl.Name == path[0] && fl.Shape.Kind == ShapeRecord {
			addField(&fl.Shape.Fields, path[1:], sh)
			return
		}
	}
	rec := &Shape{Kind: ShapeRecord}
	addField(&rec.Fields, path[1:], sh)
	*fields = append(*fields, ShapeField{Name: path[0], Shape: rec})
}

// entity shapes an entity and the spans below it.
func (f *finisher) entity(ev *entityVal, spans []*span.Node) (*Shape, error) {
	s := &Shape{Kind: ShapeEntity, Entity: ev.entity.Name, Discriminator: -1}
	for _, c := range ev.entity.Columns {
		sh := &Shape{Kind: ShapeScalar, Column: f.proj.add(ev.cols[c.Property], c.Property), Type: c.Type}
		addField(&s.Fields, strings.Split(c.Property, "."), sh)
	}
	if ev.disc != nil {
		s.Discriminator = f.proj.add(ev.disc, ev.entity.Hierarchy.Column)
	}
	for _, n := range spans {
		field, err := f.span(ev, n)
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, field)
	}
	return s, nil
}

// span left-joins the target of an included navigation.
func (f *finisher) span(parent *entityVal, n *span.Node) (ShapeField, error) {
	alias := f.t.alias()
	child := newEntityVal(n.Entity, alias)
	on := make([]Scalar, len(n.Nav.From))
	for i, p := range n.Nav.From {
		on[i] = Binary{Op: OpEq, Left: parent.cols[p], Right: child.cols[n.Nav.To[i]]}
	}
	f.b.joins = append(f.b.joins, Join{Type: LeftJoin, Table: n.Entity.Table, Alias: alias, On: conjunction(on)})

	var keys []int
	for _, k := range child.keyScalars() {
		keys = append(keys, f.proj.add(k, n.Path+"_key"))
		if n.Nav.Many {
			f.order = append(f.order, OrderKey{Expr: k})
		}
	}
	es, err := f.entity(child, n.Children)
	if err != nil {
		return ShapeField{}, err
	}
	if n.Nav.Many {
		return ShapeField{Name: n.Nav.Name, Shape: &Shape{Kind: ShapeCollection, Key: keys, Elem: es}}, nil
	}
	es.Kind = ShapeReference
	es.Key = keys
	return ShapeField{Name: n.Nav.Name, Shape: es}, nil
}

// child left-joins a nested collection as a derived table grouped back
// onto its parent by the correlation columns.
func (f *finisher) child(c *collectionVal, name string) (*Shape, error) {
	if _, ok := c.base.(sourceBase); ok {
		return nil, UnsupportedConstruct("Select", "nested collections must come from a navigation or a group")
	}
	for _, h := range c.ops {
		n, err := f.t.node(h)
		if err != nil {
			return nil, err
		}
		switch n.(type) {
		case expr.Filter, expr.Project, expr.TypeFilter:
		default:
			return nil, UnsupportedConstruct(expr.Name(n), "not supported inside a nested collection")
		}
	}

	sub, err := f.t.realize(c, false)
	if err != nil {
		return nil, err
	}
	if len(sub.rowKey) == 0 {
		return nil, UnsupportedConstruct("Select", "nested collection elements have no row identity")
	}
	if hasCollections(sub.elem) {
		return nil, UnsupportedConstruct("Select", "collections nested more than one level deep")
	}
	if _, ok := sub.elem.(*groupVal); ok {
		return nil, UnsupportedConstruct("Select", "groups nested in a collection")
	}

	var extra []Scalar
	for _, k := range sub.order {
		extra = append(extra, k.Expr)
	}
	extra = append(extra, sub.carry...)
	extra = append(extra, sub.rowKey...)
	order := sub.order
	sub.order = nil
	q, p, err := sub.finish(extra)
	if err != nil {
		return nil, err
	}
	if free := freeAliases(q, nil); len(free) > 0 {
		return nil, UnsupportedConstruct("Select", "a nested collection refers to the enclosing query (%s)", strings.Join(free, ", "))
	}

	alias := f.t.alias()
	ref := func(s Scalar) Scalar {
		col, _ := p.lookup(s)
		return ColumnRef{Alias: alias, Column: col.Name, Type: TypeOf(s)}
	}
	_, group := c.base.(groupBase)
	on := make([]Scalar, len(c.outer))
	for i, outer := range c.outer {
		inner := ref(sub.carry[i])
		if group {
			on[i] = nullSafeEq(outer, inner)
		} else {
			on[i] = Binary{Op: OpEq, Left: outer, Right: inner}
		}
	}
	f.b.joins = append(f.b.joins, Join{Type: LeftJoin, Alias: alias, Sub: q, On: conjunction(on)})

	var keys []int
	for _, k := range order {
		f.order = append(f.order, OrderKey{Expr: ref(k.Expr), Descending: k.Descending})
	}
	for _, s := range sub.rowKey {
		r := ref(s)
		f.order = append(f.order, OrderKey{Expr: r})
		keys = append(keys, f.proj.add(r, name+"_key"))
	}
	es, err := f.shape(remap(sub.elem, ref), name)
	if err != nil {
		return nil, err
	}
	return &Shape{Kind: ShapeCollection, Key: keys, Elem: es}, nil
}

// freeAliases lists the aliases q refers to without defining them. bound
// holds the aliases visible from enclosing blocks; derived tables see
// none.
func freeAliases(q *Query, bound map[string]bool) []string {
	local := make(map[string]bool, len(bound))
	for k := range bound {
		local[k] = true
	}
	var out []string
	for _, st := range q.Stages {
		switch v := st.(type) {
		case Source:
			local[v.Alias] = true
			if v.Sub != nil {
				out = append(out, freeAliases(v.Sub, nil)...)
			}
		case Join:
			local[v.Alias] = true
			if v.Sub != nil {
				out = append(out, freeAliases(v.Sub, nil)...)
			}
		case SetOp:
			out = append(out, freeAliases(v.Left, bound)...)
			out = append(out, freeAliases(v.Right, bound)...)
		}
	}

	var visit func(s Scalar)
	visit = func(s Scalar) {
		switch v := s.(type) {
		case ColumnRef:
			if v.Alias != "" && !local[v.Alias] {
				out = append(out, v.Alias)
			}
		case Binary:
			visit(v.Left)
			visit(v.Right)
		case Unary:
			visit(v.Operand)
		case Func:
			for _, a := range v.Args {
				visit(a)
			}
		case Aggregate:
			if v.Arg != nil {
				visit(v.Arg)
			}
		case InList:
			visit(v.Operand)
			for _, x := range v.Values {
				visit(x)
			}
		case Exists:
			out = append(out, freeAliases(v.Query, local)...)
		case Subquery:
			out = append(out, freeAliases(v.Query, local)...)
		}
	}
	for _, s := range QueryScalars(q) {
		visit(s)
	}
	for _, s := range q.RowKey {
		visit(s)
	}
	return out
}

// QueryScalars returns the scalars of the stages of q, in stage order,
// without descending into derived tables or subqueries.
func QueryScalars(q *Query) []Scalar {
	var out []Scalar
	for _, st := range q.Stages {
		switch v := st.(type) {
		case Join:
			out = append(out, v.On)
		case Filter:
			out = append(out, v.Predicate)
		case GroupBy:
			out = append(out, v.Keys...)
		case Project:
			for _, c := range v.Columns {
				out = append(out, c.Expr)
			}
		case OrderKey:
			out = append(out, v.Expr)
		case Skip:
			out = append(out, v.Count)
		case Take:
			out = append(out, v.Count)
		}
	}
	return out
}

package plan

import (
	"strings"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/schema"
)

// eval translates an expression node to a value in sc.
func (t *translator) eval(h expr.Handle, sc scope) (value, error) {
	n, err := t.node(h)
	if err != nil {
		return nil, err
	}

	switch v := n.(type) {
	case expr.Constant:
		return scalarVal{Literal{Value: v.Value}}, nil
	case expr.ParameterRef:
		return scalarVal{ParamRef{Param: v.Param}}, nil
	case expr.Var:
		val, ok := sc.env[v.Name]
		if !ok {
			return nil, Translation("unknown variable %s", v.Name)
		}
		return val, nil
	case expr.MemberAccess:
		target, err := t.eval(v.Target, sc)
		if err != nil {
			return nil, err
		}
		return t.member(target, v.Member, sc)
	case expr.Binary:
		return t.binary(v, sc)
	case expr.Unary:
		operand, err := t.scalar(v.Operand, sc)
		if err != nil {
			return nil, err
		}
		if v.Op == expr.Neg {
			return scalarVal{Unary{Op: OpNeg, Operand: operand}}, nil
		}
		return scalarVal{negate(operand)}, nil
	case expr.FunctionCall:
		args := make([]Scalar, len(v.Args))
		for i, a := range v.Args {
			if args[i], err = t.scalar(a, sc); err != nil {
				return nil, err
			}
		}
		return scalarVal{Func{Name: v.Name, Args: args}}, nil
	case expr.Record:
		rv := &recordVal{}
		seen := make(map[string]bool, len(v.Fields))
		for _, f := range v.Fields {
			if seen[f.Name] {
				return nil, Translation("record has duplicate field %s", f.Name)
			}
			seen[f.Name] = true
			fv, err := t.eval(f.Value, sc)
			if err != nil {
				return nil, err
			}
			rv.fields = append(rv.fields, recordField{name: f.Name, v: fv})
		}
		return rv, nil
	case expr.TypeIs:
		operand, err := t.eval(v.Operand, sc)
		if err != nil {
			return nil, err
		}
		ev, ok := operand.(*entityVal)
		if !ok {
			return nil, Translation("type test on a %s", operand.describe())
		}
		pred, all, err := t.typePredicate(ev, v.Type)
		if err != nil {
			return nil, err
		}
		if all {
			return scalarVal{Literal{Value: ir.IRBool(true)}}, nil
		}
		return scalarVal{pred}, nil
	case expr.InList:
		operand, err := t.scalar(v.Operand, sc)
		if err != nil {
			return nil, err
		}
		if len(v.Values) == 0 {
			return scalarVal{Literal{Value: ir.IRBool(false)}}, nil
		}
		vals := make([]Scalar, len(v.Values))
		for i, c := range v.Values {
			vals[i] = Literal{Value: c}
		}
		return scalarVal{InList{Operand: operand, Values: vals}}, nil
	case expr.Aggregate:
		return t.aggregateValue(v, sc)
	case expr.Quantifier:
		return t.quantifierValue(v, sc)
	}

	if expr.IsQuery(n) {
		return t.collection(h, sc)
	}
	return nil, Translation("cannot translate %s", expr.Name(n))
}

func (t *translator) scalar(h expr.Handle, sc scope) (Scalar, error) {
	v, err := t.eval(h, sc)
	if err != nil {
		return nil, err
	}
	return asScalar(v)
}

func asScalar(v value) (Scalar, error) {
	s, ok := v.(scalarVal)
	if !ok {
		return nil, Translation("expected a scalar, got a %s", v.describe())
	}
	return s.s, nil
}

func negate(s Scalar) Scalar {
	switch v := s.(type) {
	case Unary:
		switch v.Op {
		case OpNot:
			return v.Operand
		case OpIsNull:
			return Unary{Op: OpNotNull, Operand: v.Operand}
		case OpNotNull:
			return Unary{Op: OpIsNull, Operand: v.Operand}
		}
	case Literal:
		if b, ok := v.Value.(ir.IRBool); ok {
			return Literal{Value: !b}
		}
	}
	return Unary{Op: OpNot, Operand: s}
}

// violates is true for the rows that make All(p) false: those where p is
// false or unknown.
func violates(p Scalar) Scalar {
	if !nullable(p) {
		return negate(p)
	}
	return Binary{Op: OpOr, Left: negate(p), Right: Unary{Op: OpIsNull, Operand: p}}
}

// nullable reports whether a predicate can evaluate to NULL.
func nullable(p Scalar) bool {
	switch v := p.(type) {
	case Literal:
		_, null := v.Value.(ir.IRNull)
		return null
	case Unary:
		switch v.Op {
		case OpIsNull, OpNotNull:
			return false
		case OpNot:
			return nullable(v.Operand)
		}
	case Binary:
		if v.Op == OpAnd || v.Op == OpOr {
			return nullable(v.Left) || nullable(v.Right)
		}
	case Exists:
		return false
	}
	return true
}

func (t *translator) member(target value, name string, sc scope) (value, error) {
	switch v := target.(type) {
	case *entityVal:
		if s, ok := v.cols[name]; ok {
			return scalarVal{s}, nil
		}
		if v.entity.HasComplex(name) {
			return &complexVal{ent: v, prefix: name}, nil
		}
		if nav, ok := v.entity.Navigation(name); ok {
			return t.navigate(v, nav, sc)
		}
		return nil, Translation("%s has no member %s", v.entity.Name, name)
	case *complexVal:
		full := v.prefix + "." + name
		if s, ok := v.ent.cols[full]; ok {
			return scalarVal{s}, nil
		}
		if v.ent.entity.HasComplex(full) {
			return &complexVal{ent: v.ent, prefix: full}, nil
		}
		return nil, Translation("%s.%s has no member %s", v.ent.entity.Name, v.prefix, name)
	case *recordVal:
		if f, ok := v.field(name); ok {
			return f, nil
		}
		return nil, Translation("record has no field %s", name)
	case *groupVal:
		if name == "Key" {
			return v.key, nil
		}
		return nil, Translation("group has no member %s", name)
	case scalarVal:
		switch name {
		case "HasValue":
			return scalarVal{Func{Name: "HasValue", Args: []Scalar{v.s}}}, nil
		case "Value":
			return v, nil
		case "Length":
			return scalarVal{Func{Name: "Length", Args: []Scalar{v.s}}}, nil
		}
		return nil, Translation("scalar has no member %s", name)
	}
	return nil, Translation("cannot read %s of a %s", name, target.describe())
}

// navigate follows a navigation. To-one navigations join the target into
// the current block once per source row and navigation; to-many
// navigations become collections correlated on the navigation keys.
func (t *translator) navigate(from *entityVal, nav *schema.Navigation, sc scope) (value, error) {
	target, err := t.entity(nav.Target)
	if err != nil {
		return nil, err
	}
	outer := make([]Scalar, len(nav.From))
	for i, p := range nav.From {
		outer[i] = from.cols[p]
	}

	if nav.Many {
		return &collectionVal{
			base:  navBase{nav: nav, target: target},
			outer: outer,
			scope: sc,
		}, nil
	}

	b := sc.b
	if b == nil {
		return nil, Translation("navigation %s outside of a query", nav.Name)
	}
	var key strings.Builder
	for _, s := range outer {
		key.WriteString(Describe(s))
		key.WriteByte('|')
	}
	key.WriteString(nav.Name)
	if ev, ok := b.navJoins[key.String()]; ok {
		return ev, nil
	}

	alias := t.alias()
	ev := newEntityVal(target, alias)
	on := make([]Scalar, len(nav.To))
	for i, p := range nav.To {
		on[i] = Binary{Op: OpEq, Left: outer[i], Right: ev.cols[p]}
	}
	b.joins = append(b.joins, Join{Type: LeftJoin, Table: target.Table, Alias: alias, On: conjunction(on)})
	b.navJoins[key.String()] = ev
	return ev, nil
}

var binaryOps = map[expr.BinaryOp]ScalarOp{
	expr.Eq:  OpEq,
	expr.Ne:  OpNe,
	expr.Lt:  OpLt,
	expr.Le:  OpLe,
	expr.Gt:  OpGt,
	expr.Ge:  OpGe,
	expr.And: OpAnd,
	expr.Or:  OpOr,
	expr.Add: OpAdd,
	expr.Sub: OpSub,
	expr.Mul: OpMul,
	expr.Div: OpDiv,
}

func (t *translator) binary(v expr.Binary, sc scope) (value, error) {
	op, ok := binaryOps[v.Op]
	if !ok {
		return nil, Translation("unknown operator %s", v.Op)
	}
	left, err := t.eval(v.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := t.eval(v.Right, sc)
	if err != nil {
		return nil, err
	}

	if op == OpEq || op == OpNe {
		return equality(op, left, right)
	}

	l, err := asScalar(left)
	if err != nil {
		return nil, err
	}
	r, err := asScalar(right)
	if err != nil {
		return nil, err
	}
	if op == OpAdd && (TypeOf(l) == schema.TypeString || TypeOf(r) == schema.TypeString ||
		TypeOf(l) == schema.TypeMemo || TypeOf(r) == schema.TypeMemo) {
		op = OpConcat
	}
	return scalarVal{Binary{Op: op, Left: l, Right: r}}, nil
}

// equality compares two values. Entities compare by key, records member
// by member; comparison with null becomes a null test and comparison with
// a boolean constant becomes the operand itself.
func equality(op ScalarOp, left, right value) (value, error) {
	ls, lok := left.(scalarVal)
	rs, rok := right.(scalarVal)
	if !lok || !rok {
		if _, ok := left.(*collectionVal); ok {
			return nil, Translation("cannot compare collections")
		}
		if _, ok := right.(*collectionVal); ok {
			return nil, Translation("cannot compare collections")
		}
		if isNullLiteral(right) {
			return nullTest(op, compareLeaves(left)[0]), nil
		}
		if isNullLiteral(left) {
			return nullTest(op, compareLeaves(right)[0]), nil
		}
		if signature(left) != signature(right) {
			return nil, Translation("cannot compare a %s with a %s", left.describe(), right.describe())
		}
		eqs, err := equate(compareLeaves(left), compareLeaves(right))
		if err != nil {
			return nil, err
		}
		pred := conjunction(eqs)
		if op == OpNe {
			pred = negate(pred)
		}
		return scalarVal{pred}, nil
	}

	l, r := ls.s, rs.s
	if isNullLiteral(rs) {
		return nullTest(op, l), nil
	}
	if isNullLiteral(ls) {
		return nullTest(op, r), nil
	}
	if b, ok := boolLiteral(r); ok {
		return scalarVal{truth(op, l, b)}, nil
	}
	if b, ok := boolLiteral(l); ok {
		return scalarVal{truth(op, r, b)}, nil
	}
	return scalarVal{Binary{Op: op, Left: l, Right: r}}, nil
}

func isNullLiteral(v value) bool {
	s, ok := v.(scalarVal)
	if !ok {
		return false
	}
	lit, ok := s.s.(Literal)
	return ok && ir.IsNull(lit.Value)
}

func boolLiteral(s Scalar) (bool, bool) {
	lit, ok := s.(Literal)
	if !ok {
		return false, false
	}
	b, ok := lit.Value.(ir.IRBool)
	return bool(b), ok
}

func nullTest(op ScalarOp, s Scalar) value {
	if op == OpNe {
		return scalarVal{Unary{Op: OpNotNull, Operand: s}}
	}
	return scalarVal{Unary{Op: OpIsNull, Operand: s}}
}

func truth(op ScalarOp, s Scalar, b bool) Scalar {
	if (op == OpEq) == b {
		return s
	}
	return negate(s)
}

// typePredicate resolves a type test on ev. all is set when every row of
// the entity set qualifies.
func (t *translator) typePredicate(ev *entityVal, typeName string) (Scalar, bool, error) {
	e := ev.entity
	if e.Hierarchy == nil {
		if typeName == e.Name {
			return nil, true, nil
		}
		return nil, false, Translation("%s has no type hierarchy; cannot test for %s", e.Name, typeName)
	}
	r, err := t.resolver(e)
	if err != nil {
		return nil, false, err
	}
	p, err := r.Resolve(typeName)
	if err != nil {
		return nil, false, Translation("%s: %v", e.Name, err)
	}
	if p.All {
		return nil, true, nil
	}
	switch len(p.Values) {
	case 0:
		return Literal{Value: ir.IRBool(false)}, false, nil
	case 1:
		return Binary{Op: OpEq, Left: ev.disc, Right: Literal{Value: p.Values[0]}}, false, nil
	}
	vals := make([]Scalar, len(p.Values))
	for i, v := range p.Values {
		vals[i] = Literal{Value: v}
	}
	return InList{Operand: ev.disc, Values: vals}, false, nil
}

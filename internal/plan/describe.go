package plan

import (
	"fmt"
	"strings"

	"github.com/roach88/vfpquery/internal/ir"
)

// Describe renders s as a canonical, dialect-independent string. Two
// scalars with the same description are the same expression; the
// translator relies on this to deduplicate projected columns.
func Describe(s Scalar) string {
	var b strings.Builder
	describeScalar(&b, s)
	return b.String()
}

// DescribeQuery renders q canonically.
func DescribeQuery(q *Query) string {
	var b strings.Builder
	describeQuery(&b, q)
	return b.String()
}

func describeScalar(b *strings.Builder, s Scalar) {
	switch v := s.(type) {
	case nil:
		b.WriteString("nil")
	case ColumnRef:
		b.WriteString(v.Alias)
		b.WriteByte('.')
		b.WriteString(v.Column)
	case Literal:
		data, err := ir.MarshalCanonical(v.Value)
		if err != nil {
			fmt.Fprintf(b, "lit(%v)", v.Value)
			return
		}
		b.WriteString("lit(")
		b.Write(data)
		b.WriteByte(')')
	case ParamRef:
		b.WriteByte('@')
		b.WriteString(v.Param.Name)
	case Binary:
		fmt.Fprintf(b, "(%s ", v.Op)
		describeScalar(b, v.Left)
		b.WriteByte(' ')
		describeScalar(b, v.Right)
		b.WriteByte(')')
	case Unary:
		fmt.Fprintf(b, "(%s ", v.Op)
		describeScalar(b, v.Operand)
		b.WriteByte(')')
	case Func:
		b.WriteString(v.Name)
		b.WriteByte('(')
		for i, a := range v.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			describeScalar(b, a)
		}
		b.WriteByte(')')
	case Aggregate:
		b.WriteString(string(v.Op))
		b.WriteByte('(')
		if v.Arg == nil {
			b.WriteByte('*')
		} else {
			describeScalar(b, v.Arg)
		}
		b.WriteByte(')')
	case InList:
		b.WriteString("(in ")
		describeScalar(b, v.Operand)
		b.WriteString(" [")
		for i, x := range v.Values {
			if i > 0 {
				b.WriteByte(',')
			}
			describeScalar(b, x)
		}
		b.WriteString("])")
	case Exists:
		b.WriteString("exists{")
		describeQuery(b, v.Query)
		b.WriteByte('}')
	case Subquery:
		b.WriteString("sub{")
		describeQuery(b, v.Query)
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "%T", s)
	}
}

func describeQuery(b *strings.Builder, q *Query) {
	for i, st := range q.Stages {
		if i > 0 {
			b.WriteString("; ")
		}
		describeStage(b, st)
	}
	if len(q.RowKey) > 0 {
		b.WriteString("; rowkey")
		for _, k := range q.RowKey {
			b.WriteByte(' ')
			describeScalar(b, k)
		}
	}
}

func describeStage(b *strings.Builder, st Stage) {
	b.WriteString(string(st.Kind()))
	switch v := st.(type) {
	case Source:
		describeFrom(b, v.Table, v.Alias, v.Sub)
	case Join:
		fmt.Fprintf(b, " %s", v.Type)
		describeFrom(b, v.Table, v.Alias, v.Sub)
		b.WriteString(" on ")
		describeScalar(b, v.On)
	case Filter:
		b.WriteByte(' ')
		describeScalar(b, v.Predicate)
	case GroupBy:
		for _, k := range v.Keys {
			b.WriteByte(' ')
			describeScalar(b, k)
		}
	case Project:
		for _, c := range v.Columns {
			fmt.Fprintf(b, " %s=", c.Name)
			describeScalar(b, c.Expr)
		}
	case OrderKey:
		b.WriteByte(' ')
		describeScalar(b, v.Expr)
		if v.Descending {
			b.WriteString(" desc")
		}
	case Skip:
		b.WriteByte(' ')
		describeScalar(b, v.Count)
	case Take:
		b.WriteByte(' ')
		describeScalar(b, v.Count)
	case SetOp:
		b.WriteString(" (")
		describeQuery(b, v.Left)
		b.WriteString(") (")
		describeQuery(b, v.Right)
		b.WriteByte(')')
	}
}

func describeFrom(b *strings.Builder, table, alias string, sub *Query) {
	if sub != nil {
		b.WriteString(" (")
		describeQuery(b, sub)
		b.WriteByte(')')
	} else {
		b.WriteByte(' ')
		b.WriteString(table)
	}
	b.WriteByte(' ')
	b.WriteString(alias)
}

// Description returns the canonical description of the whole plan.
func (p *Plan) Description() ir.IRValue {
	rowKey := make(ir.IRArray, len(p.RowKey))
	for i, k := range p.RowKey {
		rowKey[i] = ir.IRInt(k)
	}
	return ir.IRObject{
		"query":  ir.IRString(DescribeQuery(p.Root)),
		"shape":  describeShape(p.Shape),
		"result": ir.IRString(p.Result),
		"rowkey": rowKey,
	}
}

// Fingerprint hashes Description. Identical plans share a fingerprint.
func (p *Plan) Fingerprint() (string, error) {
	return ir.PlanFingerprint(p.Description())
}

func describeShape(s *Shape) ir.IRValue {
	if s == nil {
		return ir.IRNull{}
	}
	obj := ir.IRObject{"kind": ir.IRString(s.Kind)}
	switch s.Kind {
	case ShapeScalar:
		obj["column"] = ir.IRInt(s.Column)
		obj["type"] = ir.IRString(s.Type)
	case ShapeCollection:
		obj["key"] = intArray(s.Key)
		obj["elem"] = describeShape(s.Elem)
	default:
		if s.Entity != "" {
			obj["entity"] = ir.IRString(s.Entity)
			obj["discriminator"] = ir.IRInt(s.Discriminator)
		}
		if s.Kind == ShapeReference {
			obj["key"] = intArray(s.Key)
		}
		fields := make(ir.IRArray, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = ir.IRObject{"name": ir.IRString(f.Name), "shape": describeShape(f.Shape)}
		}
		obj["fields"] = fields
	}
	return obj
}

func intArray(xs []int) ir.IRArray {
	out := make(ir.IRArray, len(xs))
	for i, x := range xs {
		out[i] = ir.IRInt(x)
	}
	return out
}

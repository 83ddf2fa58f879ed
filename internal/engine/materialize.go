package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/vfpquery/internal/hierarchy"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/plan"
	"github.com/roach88/vfpquery/internal/schema"
	"github.com/roach88/vfpquery/internal/store"
)

// TypeField is the member holding the runtime type name of an entity that
// belongs to a hierarchy.
const TypeField = "$type"

// materializer turns result rows into values following a shaping tree.
type materializer struct {
	resolvers map[string]*hierarchy.Resolver
}

func (m *materializer) result(p *plan.Plan, rs *store.ResultSet) (ir.IRValue, error) {
	switch p.Result {
	case plan.ResultSingle:
		if rs.Len() == 0 {
			return ir.IRNull{}, nil
		}
		return m.value(p.Shape, rs.Rows[:1])
	case plan.ResultAny, plan.ResultAll:
		if rs.Len() != 1 || len(rs.Rows[0]) == 0 {
			return nil, fmt.Errorf("quantifier expects one count, got %d rows", rs.Len())
		}
		n, err := decode(rs.Rows[0][0], schema.TypeInt)
		if err != nil {
			return nil, err
		}
		count, _ := n.(ir.IRInt)
		if p.Result == plan.ResultAny {
			return ir.IRBool(count > 0), nil
		}
		return ir.IRBool(count == 0), nil
	}

	var runs [][][]any
	if p.RowKey == nil {
		runs = make([][][]any, len(rs.Rows))
		for i := range rs.Rows {
			runs[i] = rs.Rows[i : i+1]
		}
	} else {
		runs = partition(rs.Rows, p.RowKey)
	}

	out := make(ir.IRArray, 0, len(runs))
	for _, rows := range runs {
		v, err := m.value(p.Shape, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// value builds one element from the rows that carry it. Scalars and
// entity members come from the first row; collections span all of them.
func (m *materializer) value(s *plan.Shape, rows [][]any) (ir.IRValue, error) {
	switch s.Kind {
	case plan.ShapeScalar:
		v, err := decode(rows[0][s.Column], s.Type)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", s.Column, err)
		}
		return v, nil

	case plan.ShapeReference:
		if allNull(rows[0], s.Key) {
			return ir.IRNull{}, nil
		}
		return m.object(s, rows)

	case plan.ShapeEntity, plan.ShapeRecord:
		return m.object(s, rows)

	case plan.ShapeCollection:
		groups := partition(rows, s.Key)
		out := make(ir.IRArray, 0, len(groups))
		for _, g := range groups {
			if allNull(g[0], s.Key) {
				continue
			}
			v, err := m.value(s.Elem, g)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown shape kind %q", s.Kind)
}

func (m *materializer) object(s *plan.Shape, rows [][]any) (ir.IRValue, error) {
	obj := make(ir.IRObject, len(s.Fields)+1)
	for _, f := range s.Fields {
		v, err := m.value(f.Shape, rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		obj[f.Name] = v
	}

	if s.Kind != plan.ShapeRecord && s.Discriminator >= 0 {
		name, err := m.typeName(s.Entity, rows[0][s.Discriminator])
		if err != nil {
			return nil, err
		}
		obj[TypeField] = ir.IRString(name)
	}
	return obj, nil
}

func (m *materializer) typeName(entity string, raw any) (string, error) {
	r, ok := m.resolvers[entity]
	if !ok {
		return "", fmt.Errorf("entity %s has no type hierarchy", entity)
	}
	v, err := decode(raw, "")
	if err != nil {
		return "", err
	}
	name, ok := r.TypeOf(v)
	if !ok {
		return "", fmt.Errorf("entity %s: no type has discriminator value %v", entity, v)
	}
	return name, nil
}

// partition groups rows by the values at cols, in order of first
// appearance. Rows need not be adjacent.
func partition(rows [][]any, cols []int) [][][]any {
	var groups [][][]any
	index := make(map[string]int)
	for _, row := range rows {
		k := rowKey(row, cols)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], row)
	}
	return groups
}

func rowKey(row []any, cols []int) string {
	var b strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&b, "%T:%v\x00", row[c], row[c])
	}
	return b.String()
}

func allNull(row []any, cols []int) bool {
	for _, c := range cols {
		if row[c] != nil {
			return false
		}
	}
	return true
}

package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/vfpquery/internal/expr"
	"github.com/roach88/vfpquery/internal/schema"
)

// value is what an element of a sequence (or a lambda variable) is bound
// to during translation, expressed as scalars over the current block.
type value interface {
	describe() string
}

type scalarVal struct {
	s Scalar
}

type entityVal struct {
	entity *schema.Entity
	cols   map[string]Scalar
	disc   Scalar
}

// complexVal is a complex-type property of an entity (Address).
type complexVal struct {
	ent    *entityVal
	prefix string
}

type recordField struct {
	name string
	v    value
}

type recordVal struct {
	fields []recordField
}

// groupVal is an element of a grouped sequence. direct is the grouped
// block while the group is still addressable there; aggregates over the
// group can then be written against elem directly.
type groupVal struct {
	key    value
	source expr.Handle
	keyLam expr.Lambda
	scope  scope
	direct *builder
	elem   value
}

// collectionVal is a collection-valued expression: a to-many navigation,
// the members of a group, or an independent query, plus the operators
// applied to it inside a lambda.
type collectionVal struct {
	base  collectionBase
	outer []Scalar
	ops   []expr.Handle
	scope scope
}

type collectionBase interface {
	baseName() string
}

type navBase struct {
	nav    *schema.Navigation
	target *schema.Entity
}

type groupBase struct {
	group   *groupVal
	varName string
}

type sourceBase struct {
	node expr.Handle
}

func (navBase) baseName() string    { return "navigation" }
func (groupBase) baseName() string  { return "group" }
func (sourceBase) baseName() string { return "query" }

func (v scalarVal) describe() string      { return "scalar" }
func (v *entityVal) describe() string     { return "entity " + v.entity.Name }
func (v *complexVal) describe() string    { return "complex " + v.prefix }
func (v *recordVal) describe() string     { return "record" }
func (v *groupVal) describe() string      { return "group" }
func (v *collectionVal) describe() string { return v.base.baseName() + " collection" }

func newEntityVal(e *schema.Entity, alias string) *entityVal {
	ev := &entityVal{entity: e, cols: make(map[string]Scalar, len(e.Columns))}
	for _, c := range e.Columns {
		ev.cols[c.Property] = ColumnRef{Alias: alias, Column: c.Name, Type: c.Type}
	}
	if h := e.Hierarchy; h != nil {
		ev.disc = ColumnRef{Alias: alias, Column: h.Column, Type: discriminatorType(h)}
		for _, c := range e.Columns {
			if c.Name == h.Column {
				ev.disc = ev.cols[c.Property]
			}
		}
	}
	return ev
}

func discriminatorType(h *schema.Hierarchy) schema.ColumnType {
	for _, td := range h.Types {
		if td.Value != nil {
			return literalType(td.Value)
		}
	}
	return schema.TypeString
}

func (v *entityVal) keyScalars() []Scalar {
	out := make([]Scalar, len(v.entity.Key))
	for i, k := range v.entity.Key {
		out[i] = v.cols[k]
	}
	return out
}

func (v *complexVal) members() []string {
	p := v.prefix + "."
	var out []string
	for _, c := range v.ent.entity.Columns {
		if strings.HasPrefix(c.Property, p) {
			out = append(out, c.Property)
		}
	}
	return out
}

func (v *recordVal) field(name string) (value, bool) {
	for _, f := range v.fields {
		if f.name == name {
			return f.v, true
		}
	}
	return nil, false
}

// leaf is a named scalar of a flattened value.
type leaf struct {
	name string
	s    Scalar
}

// leaves flattens v into the scalars a block must project to carry it.
// Collections contribute their correlation scalars.
func leaves(v value, name string) []leaf {
	switch x := v.(type) {
	case scalarVal:
		return []leaf{{name, x.s}}
	case *entityVal:
		var out []leaf
		for _, c := range x.entity.Columns {
			out = append(out, leaf{c.Property, x.cols[c.Property]})
		}
		if x.disc != nil {
			out = append(out, leaf{x.entity.Hierarchy.Column, x.disc})
		}
		return out
	case *complexVal:
		var out []leaf
		for _, m := range x.members() {
			out = append(out, leaf{m, x.ent.cols[m]})
		}
		return out
	case *recordVal:
		var out []leaf
		for _, f := range x.fields {
			out = append(out, leaves(f.v, f.name)...)
		}
		return out
	case *groupVal:
		return leaves(x.key, "Key")
	case *collectionVal:
		out := make([]leaf, len(x.outer))
		for i, s := range x.outer {
			out[i] = leaf{fmt.Sprintf("%s_k%d", name, i), s}
		}
		return out
	}
	return nil
}

func scalarLeaves(v value) []Scalar {
	ls := leaves(v, "")
	out := make([]Scalar, len(ls))
	for i, l := range ls {
		out[i] = l.s
	}
	return out
}

// compareLeaves are the scalars that decide equality of two values:
// the key of an entity, every member of anything else.
func compareLeaves(v value) []Scalar {
	if e, ok := v.(*entityVal); ok {
		return e.keyScalars()
	}
	return scalarLeaves(v)
}

// remap rewrites every scalar of v. Group values lose their direct block
// and pre-group element: after remapping they are only reachable through
// their key.
func remap(v value, f func(Scalar) Scalar) value {
	switch x := v.(type) {
	case scalarVal:
		return scalarVal{f(x.s)}
	case *entityVal:
		ev := &entityVal{entity: x.entity, cols: make(map[string]Scalar, len(x.cols))}
		for k, s := range x.cols {
			ev.cols[k] = f(s)
		}
		if x.disc != nil {
			ev.disc = f(x.disc)
		}
		return ev
	case *complexVal:
		return &complexVal{ent: remap(x.ent, f).(*entityVal), prefix: x.prefix}
	case *recordVal:
		rv := &recordVal{fields: make([]recordField, len(x.fields))}
		for i, fl := range x.fields {
			rv.fields[i] = recordField{fl.name, remap(fl.v, f)}
		}
		return rv
	case *groupVal:
		return &groupVal{key: remap(x.key, f), source: x.source, keyLam: x.keyLam, scope: x.scope}
	case *collectionVal:
		cv := *x
		cv.outer = make([]Scalar, len(x.outer))
		for i, s := range x.outer {
			cv.outer[i] = f(s)
		}
		return &cv
	}
	return v
}

// signature describes the structure of v so set operands can be checked
// for compatibility.
func signature(v value) string {
	switch x := v.(type) {
	case scalarVal:
		return "s"
	case *entityVal:
		return "e:" + x.entity.Name
	case *complexVal:
		return "c:" + strings.Join(x.members(), ",")
	case *recordVal:
		parts := make([]string, len(x.fields))
		for i, f := range x.fields {
			parts[i] = f.name + "=" + signature(f.v)
		}
		return "{" + strings.Join(parts, ",") + "}"
	case *groupVal:
		return "g:" + signature(x.key)
	case *collectionVal:
		return "coll"
	}
	return "?"
}

// hasCollections reports whether v embeds nested collections or groups,
// which cannot be carried by a flat row.
func hasCollections(v value) bool {
	switch x := v.(type) {
	case *collectionVal:
		return true
	case *recordVal:
		for _, f := range x.fields {
			if hasCollections(f.v) {
				return true
			}
		}
	}
	return false
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// namer assigns unique column names.
type namer struct {
	used map[string]bool
}

func newNamer() *namer {
	return &namer{used: make(map[string]bool)}
}

func (n *namer) name(base string) string {
	base = strings.Trim(nonIdent.ReplaceAllString(base, "_"), "_")
	if base == "" || (base[0] >= '0' && base[0] <= '9') {
		base = "c" + base
	}
	name := base
	for i := 1; n.used[strings.ToLower(name)]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	n.used[strings.ToLower(name)] = true
	return name
}

// projection accumulates a select list, projecting each distinct scalar
// once.
type projection struct {
	cols  []Column
	index map[string]int
	names *namer
}

func newProjection() *projection {
	return &projection{index: make(map[string]int), names: newNamer()}
}

func (p *projection) add(s Scalar, name string) int {
	key := Describe(s)
	if i, ok := p.index[key]; ok {
		return i
	}
	i := len(p.cols)
	p.cols = append(p.cols, Column{Name: p.names.name(name), Expr: s})
	p.index[key] = i
	return i
}

func (p *projection) lookup(s Scalar) (Column, bool) {
	i, ok := p.index[Describe(s)]
	if !ok {
		return Column{}, false
	}
	return p.cols[i], true
}

// Package hierarchy resolves type tests against a discriminator column.
package hierarchy

import (
	"fmt"
	"sort"

	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/schema"
)

// Predicate is the result of resolving a type test.
//
// All is set for the root type: every row qualifies and no predicate is
// needed. Otherwise Values lists the discriminator values of the requested
// type and all of its subtypes, sorted for stable rendering. An abstract
// type without concrete subtypes resolves to an empty list, which matches
// nothing.
type Predicate struct {
	Column string
	All    bool
	Values []ir.IRValue
}

// Resolver answers type questions for one hierarchy. It is immutable after
// New and safe for concurrent use.
type Resolver struct {
	h        *schema.Hierarchy
	children map[string][]string
	byValue  map[string]string
}

// New indexes h.
func New(h *schema.Hierarchy) (*Resolver, error) {
	if h == nil {
		return nil, fmt.Errorf("hierarchy: nil hierarchy")
	}
	r := &Resolver{
		h:        h,
		children: make(map[string][]string),
		byValue:  make(map[string]string),
	}
	for name, td := range h.Types {
		if td.Parent != "" {
			r.children[td.Parent] = append(r.children[td.Parent], name)
		}
		if td.Value != nil {
			r.byValue[valueKey(td.Value)] = name
		}
	}
	for _, c := range r.children {
		sort.Strings(c)
	}
	return r, nil
}

// Resolve maps a requested type to a discriminator predicate.
func (r *Resolver) Resolve(typeName string) (Predicate, error) {
	if _, ok := r.h.Types[typeName]; !ok {
		return Predicate{}, fmt.Errorf("hierarchy: unknown type %s", typeName)
	}
	p := Predicate{Column: r.h.Column}
	if typeName == r.h.Root {
		p.All = true
		return p, nil
	}
	p.Values = r.Values(typeName)
	return p, nil
}

// Values returns the discriminator values of typeName and its subtypes.
func (r *Resolver) Values(typeName string) []ir.IRValue {
	var vals []ir.IRValue
	var walk func(string)
	walk = func(name string) {
		if td, ok := r.h.Types[name]; ok && td.Value != nil {
			vals = append(vals, td.Value)
		}
		for _, c := range r.children[name] {
			walk(c)
		}
	}
	walk(typeName)
	sort.Slice(vals, func(i, j int) bool { return valueKey(vals[i]) < valueKey(vals[j]) })
	return vals
}

// TypeOf returns the type a row belongs to given its discriminator value.
func (r *Resolver) TypeOf(v ir.IRValue) (string, bool) {
	name, ok := r.byValue[valueKey(normalize(v))]
	return name, ok
}

// IsSubtype reports whether typeName is base or derives from it.
func (r *Resolver) IsSubtype(typeName, base string) bool {
	for cur := typeName; cur != ""; {
		if cur == base {
			return true
		}
		td, ok := r.h.Types[cur]
		if !ok {
			return false
		}
		cur = td.Parent
	}
	return false
}

// Root returns the root type name.
func (r *Resolver) Root() string { return r.h.Root }

// Column returns the discriminator column.
func (r *Resolver) Column() string { return r.h.Column }

// normalize folds driver representations onto the declared ones: drivers
// return integers for logical columns and may pad fixed-width character
// columns.
func normalize(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRString:
		s := string(val)
		for len(s) > 0 && s[len(s)-1] == ' ' {
			s = s[:len(s)-1]
		}
		return ir.IRString(s)
	}
	return v
}

func valueKey(v ir.IRValue) string {
	switch val := v.(type) {
	case ir.IRString:
		return "s:" + string(val)
	case ir.IRInt:
		return fmt.Sprintf("i:%020d", int64(val))
	case ir.IRBool:
		if val {
			return "b:1"
		}
		return "b:0"
	}
	return fmt.Sprintf("%T:%v", v, v)
}

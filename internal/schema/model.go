package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vfpquery/internal/ir"
)

// ColumnType is the logical type of a mapped column.
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeInt      ColumnType = "int"
	TypeBool     ColumnType = "bool"
	TypeDecimal  ColumnType = "decimal"
	TypeDateTime ColumnType = "datetime"
	// TypeMemo is a large character object. Backends may refuse it in
	// DISTINCT, GROUP BY and comparisons.
	TypeMemo ColumnType = "memo"
)

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeString, TypeInt, TypeBool, TypeDecimal, TypeDateTime, TypeMemo:
		return true
	}
	return false
}

// Column maps an entity property to a table column. Properties of complex
// types use dotted names ("Address.City").
type Column struct {
	Property string
	Name     string
	Type     ColumnType
}

// Navigation is a relationship from one entity to another. From lists
// properties of the owning entity, To the matching properties of Target.
type Navigation struct {
	Name   string
	Target string
	From   []string
	To     []string
	Many   bool
}

// TypeDef is one type of an entity hierarchy.
type TypeDef struct {
	Name   string
	Parent string
	// Value is the discriminator value of rows of exactly this type.
	// Abstract types have none.
	Value ir.IRValue
}

// Hierarchy describes the types stored in one table and the column that
// tells them apart.
type Hierarchy struct {
	Column string
	Root   string
	Types  map[string]*TypeDef
}

// Entity is a mapped entity set.
type Entity struct {
	Name        string
	Table       string
	Key         []string
	Columns     []*Column
	Navigations map[string]*Navigation
	Hierarchy   *Hierarchy

	byProperty map[string]*Column
}

// Column returns the column mapped to property.
func (e *Entity) Column(property string) (*Column, bool) {
	c, ok := e.byProperty[property]
	return c, ok
}

// HasComplex reports whether prefix names a complex-type property, i.e.
// whether some column is mapped as "prefix.<member>".
func (e *Entity) HasComplex(prefix string) bool {
	p := prefix + "."
	for _, c := range e.Columns {
		if strings.HasPrefix(c.Property, p) {
			return true
		}
	}
	return false
}

// Navigation returns the named navigation.
func (e *Entity) Navigation(name string) (*Navigation, bool) {
	n, ok := e.Navigations[name]
	return n, ok
}

// TypeName returns the root type name of the entity set.
func (e *Entity) TypeName() string {
	if e.Hierarchy != nil {
		return e.Hierarchy.Root
	}
	return e.Name
}

func (e *Entity) index() {
	e.byProperty = make(map[string]*Column, len(e.Columns))
	for _, c := range e.Columns {
		e.byProperty[c.Property] = c
	}
	if e.Navigations == nil {
		e.Navigations = make(map[string]*Navigation)
	}
}

// Model is the metadata provider consulted during translation.
type Model struct {
	entities map[string]*Entity
	names    []string
}

// NewModel indexes and validates entities.
func NewModel(entities ...*Entity) (*Model, error) {
	m := &Model{entities: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if e.Name == "" {
			return nil, fmt.Errorf("entity without name")
		}
		if _, dup := m.entities[e.Name]; dup {
			return nil, fmt.Errorf("entity %s defined twice", e.Name)
		}
		e.index()
		m.entities[e.Name] = e
		m.names = append(m.names, e.Name)
	}
	sort.Strings(m.names)
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Entity returns the named entity set.
func (m *Model) Entity(name string) (*Entity, bool) {
	e, ok := m.entities[name]
	return e, ok
}

// Names returns entity names in sorted order.
func (m *Model) Names() []string {
	return append([]string(nil), m.names...)
}

func (m *Model) validate() error {
	for _, name := range m.names {
		e := m.entities[name]
		if e.Table == "" {
			return fmt.Errorf("entity %s: table is required", name)
		}
		if len(e.Columns) == 0 {
			return fmt.Errorf("entity %s: at least one column is required", name)
		}
		for _, c := range e.Columns {
			if !c.Type.Valid() {
				return fmt.Errorf("entity %s: column %s: unknown type %q", name, c.Property, c.Type)
			}
		}
		if len(e.Key) == 0 {
			return fmt.Errorf("entity %s: key is required", name)
		}
		for _, k := range e.Key {
			if _, ok := e.byProperty[k]; !ok {
				return fmt.Errorf("entity %s: key property %s is not a column", name, k)
			}
		}
		for _, nav := range e.Navigations {
			if err := m.validateNavigation(e, nav); err != nil {
				return err
			}
		}
		if e.Hierarchy != nil {
			if err := validateHierarchy(e.Hierarchy); err != nil {
				return fmt.Errorf("entity %s: %w", name, err)
			}
		}
	}
	return nil
}

func (m *Model) validateNavigation(e *Entity, nav *Navigation) error {
	target, ok := m.entities[nav.Target]
	if !ok {
		return fmt.Errorf("entity %s: navigation %s: unknown target %s", e.Name, nav.Name, nav.Target)
	}
	if len(nav.From) == 0 || len(nav.From) != len(nav.To) {
		return fmt.Errorf("entity %s: navigation %s: from and to must be non-empty and the same length", e.Name, nav.Name)
	}
	for i := range nav.From {
		if _, ok := e.byProperty[nav.From[i]]; !ok {
			return fmt.Errorf("entity %s: navigation %s: unknown property %s", e.Name, nav.Name, nav.From[i])
		}
		if _, ok := target.byProperty[nav.To[i]]; !ok {
			return fmt.Errorf("entity %s: navigation %s: unknown property %s.%s", e.Name, nav.Name, nav.Target, nav.To[i])
		}
	}
	if _, clash := e.byProperty[nav.Name]; clash {
		return fmt.Errorf("entity %s: navigation %s clashes with a column", e.Name, nav.Name)
	}
	return nil
}

func validateHierarchy(h *Hierarchy) error {
	if h.Column == "" {
		return fmt.Errorf("hierarchy: column is required")
	}
	root, ok := h.Types[h.Root]
	if !ok {
		return fmt.Errorf("hierarchy: root type %s is not declared", h.Root)
	}
	if root.Parent != "" {
		return fmt.Errorf("hierarchy: root type %s cannot have a parent", h.Root)
	}
	for name, td := range h.Types {
		if name != h.Root && td.Parent == "" {
			return fmt.Errorf("hierarchy: type %s has no parent", name)
		}
		if td.Parent != "" {
			if _, ok := h.Types[td.Parent]; !ok {
				return fmt.Errorf("hierarchy: type %s: unknown parent %s", name, td.Parent)
			}
		}
	}
	seen := make(map[string]string)
	for name, td := range h.Types {
		// every chain must reach the root without revisiting a type
		visited := map[string]bool{}
		for cur := name; cur != h.Root; cur = h.Types[cur].Parent {
			if visited[cur] {
				return fmt.Errorf("hierarchy: cycle through type %s", cur)
			}
			visited[cur] = true
		}
		if td.Value != nil {
			key := fmt.Sprintf("%T:%v", td.Value, td.Value)
			if other, dup := seen[key]; dup {
				return fmt.Errorf("hierarchy: types %s and %s share discriminator value %v", other, name, td.Value)
			}
			seen[key] = name
		}
	}
	return nil
}

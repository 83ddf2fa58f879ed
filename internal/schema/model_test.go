package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vfpquery/internal/ir"
)

func entity(name string, cols ...string) *Entity {
	e := &Entity{Name: name, Table: name, Key: []string{cols[0]}}
	for _, c := range cols {
		e.Columns = append(e.Columns, &Column{Property: c, Name: c, Type: TypeInt})
	}
	return e
}

func TestNewModelValidation(t *testing.T) {
	tests := []struct {
		name    string
		build   func() []*Entity
		wantErr string
	}{
		{
			name: "valid",
			build: func() []*Entity {
				return []*Entity{entity("A", "id"), entity("B", "id", "a_id")}
			},
		},
		{
			name: "duplicate entity",
			build: func() []*Entity {
				return []*Entity{entity("A", "id"), entity("A", "id")}
			},
			wantErr: "defined twice",
		},
		{
			name: "navigation length mismatch",
			build: func() []*Entity {
				a := entity("A", "id")
				a.Navigations = map[string]*Navigation{
					"B": {Name: "B", Target: "B", From: []string{"id"}, To: nil},
				}
				return []*Entity{a, entity("B", "id")}
			},
			wantErr: "same length",
		},
		{
			name: "navigation clashes with column",
			build: func() []*Entity {
				a := entity("A", "id", "B")
				a.Navigations = map[string]*Navigation{
					"B": {Name: "B", Target: "B", From: []string{"id"}, To: []string{"id"}},
				}
				return []*Entity{a, entity("B", "id")}
			},
			wantErr: "clashes",
		},
		{
			name: "hierarchy unknown parent",
			build: func() []*Entity {
				a := entity("A", "id")
				a.Hierarchy = &Hierarchy{Column: "k", Root: "Base", Types: map[string]*TypeDef{
					"Base":    {Name: "Base"},
					"Derived": {Name: "Derived", Parent: "Ghost"},
				}}
				return []*Entity{a}
			},
			wantErr: "unknown parent Ghost",
		},
		{
			name: "hierarchy cycle",
			build: func() []*Entity {
				a := entity("A", "id")
				a.Hierarchy = &Hierarchy{Column: "k", Root: "Base", Types: map[string]*TypeDef{
					"Base": {Name: "Base"},
					"X":    {Name: "X", Parent: "Y"},
					"Y":    {Name: "Y", Parent: "X"},
				}}
				return []*Entity{a}
			},
			wantErr: "cycle",
		},
		{
			name: "hierarchy duplicate value",
			build: func() []*Entity {
				a := entity("A", "id")
				a.Hierarchy = &Hierarchy{Column: "k", Root: "Base", Types: map[string]*TypeDef{
					"Base": {Name: "Base", Value: ir.IRString("B")},
					"X":    {Name: "X", Parent: "Base", Value: ir.IRString("B")},
				}}
				return []*Entity{a}
			},
			wantErr: "share discriminator value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(tt.build()...)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEntityLookups(t *testing.T) {
	m, err := NewModel(entity("A", "id", "name"))
	require.NoError(t, err)

	a, ok := m.Entity("A")
	require.True(t, ok)
	_, ok = a.Column("name")
	assert.True(t, ok)
	_, ok = a.Column("missing")
	assert.False(t, ok)
	_, ok = a.Navigation("missing")
	assert.False(t, ok)
	_, ok = m.Entity("Z")
	assert.False(t, ok)
}

package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vfpquery/internal/ir"
)

const shopSchema = `
entity: Customers: {
	table: "customers"
	key: ["CustomerID"]
	columns: {
		CustomerID:     "string"
		CompanyName:    {column: "company", type: "string"}
		"Address.City": "string"
	}
	navigation: Orders: {target: "Orders", from: ["CustomerID"], to: ["CustomerID"], many: true}
}

entity: Orders: {
	table: "orders"
	key: ["OrderID"]
	columns: {
		OrderID:    "int"
		CustomerID: "string"
		Freight:    "decimal"
		Kind:       "string"
	}
	navigation: Customer: {target: "Customers", from: ["CustomerID"], to: ["CustomerID"]}
	hierarchy: {
		column: "kind"
		root:   "Order"
		types: {
			Order:       {value: "O"}
			RushOrder:   {parent: "Order", value: "R"}
			GiftOrder:   {parent: "Order"}
		}
	}
}
`

func TestCompileBytes(t *testing.T) {
	m, err := CompileBytes("shop.cue", []byte(shopSchema))
	require.NoError(t, err)

	assert.Equal(t, []string{"Customers", "Orders"}, m.Names())

	cust, ok := m.Entity("Customers")
	require.True(t, ok)
	assert.Equal(t, "customers", cust.Table)
	assert.Equal(t, []string{"CustomerID"}, cust.Key)

	// declaration order is kept
	require.Len(t, cust.Columns, 3)
	assert.Equal(t, "CustomerID", cust.Columns[0].Property)
	assert.Equal(t, "Address.City", cust.Columns[2].Property)

	col, ok := cust.Column("CompanyName")
	require.True(t, ok)
	assert.Equal(t, "company", col.Name)

	col, ok = cust.Column("Address.City")
	require.True(t, ok)
	assert.Equal(t, "address_city", col.Name)
	assert.True(t, cust.HasComplex("Address"))
	assert.False(t, cust.HasComplex("Addr"))

	nav, ok := cust.Navigation("Orders")
	require.True(t, ok)
	assert.True(t, nav.Many)
	assert.Equal(t, "Orders", nav.Target)

	orders, _ := m.Entity("Orders")
	require.NotNil(t, orders.Hierarchy)
	assert.Equal(t, "Order", orders.TypeName())
	assert.Equal(t, ir.IRString("R"), orders.Hierarchy.Types["RushOrder"].Value)
	assert.Nil(t, orders.Hierarchy.Types["GiftOrder"].Value)
	assert.Equal(t, "Customers", cust.TypeName())
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		field   string
		message string
	}{
		{
			name:    "no entities",
			src:     `other: 1`,
			field:   "entity",
			message: "at least one entity",
		},
		{
			name:    "missing table",
			src:     `entity: A: {key: ["id"], columns: {id: "int"}}`,
			field:   "entity.A.table",
			message: "table is required",
		},
		{
			name:    "missing key",
			src:     `entity: A: {table: "a", columns: {id: "int"}}`,
			field:   "entity.A.key",
			message: "key is required",
		},
		{
			name:    "bad column type",
			src:     `entity: A: {table: "a", key: ["id"], columns: {id: "float"}}`,
			field:   "entity.A.columns.id",
			message: "unknown column type",
		},
		{
			name:    "key not a column",
			src:     `entity: A: {table: "a", key: ["nope"], columns: {id: "int"}}`,
			field:   "entity",
			message: "key property nope",
		},
		{
			name: "unknown navigation target",
			src: `entity: A: {table: "a", key: ["id"], columns: {id: "int"},
				navigation: B: {target: "B", from: ["id"], to: ["id"]}}`,
			field:   "entity",
			message: "unknown target B",
		},
		{
			name: "float discriminator",
			src: `entity: A: {table: "a", key: ["id"], columns: {id: "int"},
				hierarchy: {column: "k", root: "A", types: A: {value: 1.5}}}`,
			field:   "entity.A.hierarchy.types.A.value",
			message: "discriminator value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileBytes("test.cue", []byte(tt.src))
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.message)
		})
	}
}

func TestCompileSyntaxErrorHasPosition(t *testing.T) {
	_, err := CompileBytes("broken.cue", []byte("entity: {"))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestCompileFromValue(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`entity: T: {table: "t", key: ["id"], columns: {id: "int"}}`)

	m, err := Compile(v)
	require.NoError(t, err)
	_, ok := m.Entity("T")
	assert.True(t, ok)
}

func TestLoadFileAndDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop.cue")
	require.NoError(t, os.WriteFile(path, []byte("package shop\n"+shopSchema), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Names(), 2)

	m, err = Load(dir)
	require.NoError(t, err)
	assert.Len(t, m.Names(), 2)

	_, err = Load(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files")
}

package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vfpquery/internal/engine"
	"github.com/roach88/vfpquery/internal/ir"
	"github.com/roach88/vfpquery/internal/querysql"
	"github.com/roach88/vfpquery/internal/testutil"
)

func scalarNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var n yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &n))
	require.Len(t, n.Content, 1)
	return n.Content[0]
}

func TestLiteral(t *testing.T) {
	july4 := time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		src  string
		want any
	}{
		{"int", "42", int64(42)},
		{"negative", "-3", int64(-3)},
		{"float is decimal", "18.50", ir.MustDecimal("18.50")},
		{"bool", "true", true},
		{"null", "~", nil},
		{"string", "London", "London"},
		{"quoted number", `"42"`, "42"},
		{"timestamp", "1996-07-04", july4},
		{"date mapping", `{date: "July 4, 1996"}`, july4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := literal(scalarNode(t, tt.src))
			require.NoError(t, err)
			if d, ok := tt.want.(ir.IRDecimal); ok {
				gd, ok := got.(ir.IRDecimal)
				require.True(t, ok, "got %T", got)
				assert.Equal(t, 0, d.Cmp(gd))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLiteralErrors(t *testing.T) {
	for _, src := range []string{"[1, 2]", "{get: City}", `{date: "not a date"}`} {
		_, err := literal(scalarNode(t, src))
		assert.Error(t, err, src)
	}
}

func buildDoc(t *testing.T, src string) (*built, error) {
	t.Helper()
	return buildQuery(parse(t, src))
}

func compileSQLite(t *testing.T, b *built) string {
	t.Helper()
	d, err := querysql.LookupDialect("sqlite")
	require.NoError(t, err)
	e, err := engine.New(testutil.Northwind(t), engine.WithDialect(d))
	require.NoError(t, err)
	c, err := e.Compile(b.query)
	require.NoError(t, err)
	return c.Statement.Text
}

func TestBuildMatchesFluentQuery(t *testing.T) {
	b, err := buildDoc(t, `
name: filter
description: "x"
query:
  from: Products
  ops:
    - where: {gt: [{get: UnitPrice}, 20]}
    - select: {get: ProductName}
`)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0.productname AS "Value" FROM products t0 WHERE t0.unitprice > 20`,
		compileSQLite(t, b))
}

func TestBuildVariables(t *testing.T) {
	// $parent reaches the customer from inside the nested lambda.
	b, err := buildDoc(t, `
name: vars
description: "x"
query:
  from: Customers
  ops:
    - select:
        record:
          Name: {get: CompanyName}
          Local:
            from: {get: Orders}
            ops:
              - where: {eq: [{get: ShipCity}, {get: $parent.City}]}
              - select: {get: $it.OrderID}
`)
	require.NoError(t, err)
	assert.NoError(t, b.query.Err())
}

func TestBuildJoinAndSelectMany(t *testing.T) {
	_, err := buildDoc(t, `
name: join
description: "x"
query:
  from: Orders
  ops:
    - join:
        inner: {from: Customers}
        outerKey: {get: CustomerID}
        innerKey: {get: CustomerID}
        result: {record: {Order: {get: $outer.OrderID}, Company: {get: $inner.CompanyName}}}
`)
	require.NoError(t, err)

	_, err = buildDoc(t, `
name: flatten
description: "x"
query:
  from: Customers
  ops:
    - selectMany:
        collection: {get: Orders}
        result: {record: {Customer: {get: $source.CustomerID}, Order: {get: $item.OrderID}}}
`)
	require.NoError(t, err)
}

func TestBuildParametersStartAtDeclaredValues(t *testing.T) {
	b, err := buildDoc(t, `
name: params
description: "x"
params:
  minFreight: 50
  since: {date: "1996-07-20"}
query:
  from: Orders
  ops:
    - where:
        and:
          - {gt: [{get: Freight}, {param: minFreight}]}
          - {ge: [{get: OrderDate}, {param: since}]}
`)
	require.NoError(t, err)

	p, ok := b.params.Lookup("minFreight")
	require.True(t, ok)
	v, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(50), v)

	require.NoError(t, b.apply(scalarNode(t, "{minFreight: 75.5}")))
	v, err = p.Value()
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.MustDecimal("75.5"), v))

	p, _ = b.params.Lookup("since")
	v, err = p.Value()
	require.NoError(t, err)
	assert.Equal(t, ir.IRTime(time.Date(1996, 7, 20, 0, 0, 0, 0, time.UTC)), v)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"no from", `{ops: []}`, "query needs from"},
		{"unknown query field", `{from: Orders, where: x}`, `unknown query field "where"`},
		{"ops not a list", `{from: Orders, ops: {where: x}}`, "ops must be a list"},
		{"op with two keys", `{from: Orders, ops: [{skip: 1, take: 2}]}`, "one-key mapping"},
		{"unknown operator", `{from: Orders, ops: [{shuffle: ~}]}`, `unknown operator "shuffle"`},
		{"unknown expression", `{from: Orders, ops: [{where: {like: [a, b]}}]}`, `unknown expression "like"`},
		{"binary arity", `{from: Orders, ops: [{where: {eq: [{get: ShipCity}]}}]}`, "at least two operands"},
		{"undeclared param", `{from: Orders, ops: [{where: {eq: [{get: ShipCity}, {param: city}]}}]}`, `parameter "city" is not declared`},
		{"unknown variable", `{from: Orders, ops: [{where: {eq: [{get: $inner.City}, x]}}]}`, "variable $inner is not in scope"},
		{"in shape", `{from: Orders, ops: [{where: {in: [{get: ShipCity}, London]}}]}`, "in needs [operand, [values...]]"},
		{"all without predicate", `{from: Orders, ops: [{all: ~}]}`, "all needs a predicate"},
		{"sequence expression", `{from: Orders, ops: [{where: [1]}]}`, "scalar or a mapping"},
		{"join parts", `{from: Orders, ops: [{join: {inner: {from: Customers}}}]}`, "join needs inner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildDoc(t, "name: x\ndescription: x\nquery: "+tt.query+"\n")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "line ")
		})
	}
}

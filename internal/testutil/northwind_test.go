package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNorthwindSchema(t *testing.T) {
	m := Northwind(t)
	assert.Equal(t, []string{"Categories", "Customers", "Employees", "OrderDetails", "Orders", "Products"}, m.Names())

	products, ok := m.Entity("Products")
	require.True(t, ok)
	require.NotNil(t, products.Hierarchy)
	assert.Equal(t, "producttype", products.Hierarchy.Column)
}

func TestNorthwindDB(t *testing.T) {
	db := NorthwindDB(t)

	counts := map[string]int{
		"categories":    CategoryCount,
		"products":      ProductCount,
		"customers":     CustomerCount,
		"employees":     EmployeeCount,
		"orders":        OrderCount,
		"order_details": OrderDetailCount,
	}
	for table, want := range counts {
		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Equal(t, want, n, table)
	}
}

func TestNorthwindDBIsolated(t *testing.T) {
	a := NorthwindDB(t)
	b := NorthwindDB(t)

	_, err := a.Exec("DELETE FROM orders")
	require.NoError(t, err)

	var n int
	require.NoError(t, b.QueryRow("SELECT COUNT(*) FROM orders").Scan(&n))
	assert.Equal(t, OrderCount, n)
}

package store

import (
	"fmt"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// driverDialects maps registered driver names to the dialect that renders
// statements for them.
var driverDialects = map[string]string{
	"sqlite3":  "sqlite",
	"sqlite":   "sqlite",
	"postgres": "postgres",
	"mysql":    "mysql",
}

// Drivers lists the supported driver names in sorted order.
func Drivers() []string {
	names := make([]string, 0, len(driverDialects))
	for n := range driverDialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultDialect returns the dialect name usually paired with driver.
func DefaultDialect(driver string) (string, error) {
	d, ok := driverDialects[driver]
	if !ok {
		return "", fmt.Errorf("unknown driver %q (known: %s)", driver, strings.Join(Drivers(), ", "))
	}
	return d, nil
}

func isSQLite(driver string) bool {
	return driver == "sqlite3" || driver == "sqlite"
}

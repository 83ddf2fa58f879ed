// Package store is the execution collaborator: it hands rendered statement
// text and bound arguments to a database/sql backend and reads the rows
// back as column-tagged values.
//
// The store never builds SQL of its own and holds no state beyond the
// connection pool. A failed statement is returned as the driver's error;
// the engine wraps it with the statement and arguments.
//
// # Drivers
//
//   - sqlite3: github.com/mattn/go-sqlite3 (cgo)
//   - sqlite: modernc.org/sqlite (pure Go)
//   - postgres: github.com/lib/pq
//   - mysql: github.com/go-sql-driver/mysql
//
// VFP tables are reached through whichever of these fronts them; the
// dialect is chosen separately.
//
// # SQLite configuration
//
//   - WAL mode for file databases: concurrent reads during writes
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
package store

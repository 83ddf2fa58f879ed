package store

import (
	"database/sql"
	"fmt"
)

// ResultSet holds the rows of one statement. Values are what the driver
// returned, except that byte slices become strings.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	return len(r.Rows)
}

// Index returns the position of column name, or -1.
func (r *ResultSet) Index(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func scan(rows *sql.Rows) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	rs := &ResultSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(rs.Rows), err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

package database

import (
	"database/sql"

	"github.com/juju/errors"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Cursor iterates the rows of a query once. It is not safe for concurrent
// use and cannot be rewound.
type Cursor struct {
	rows    *sql.Rows
	columns []string
	current Row
	err     error
	closed  bool
}

func newCursor(rows *sql.Rows) (*Cursor, error) {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, errors.Trace(err)
	}
	return &Cursor{rows: rows, columns: cols}, nil
}

// Next advances to the next row. It returns false when the rows are
// exhausted or an error occurred; the cursor is closed at that point.
func (c *Cursor) Next() bool {
	if c.closed {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		c.Close()
		return false
	}
	vals := make([]any, len(c.columns))
	ptrs := make([]any, len(c.columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.err = err
		c.Close()
		return false
	}
	row := make(Row, len(c.columns))
	for i, col := range c.columns {
		// Some drivers hand back TEXT as []byte.
		if b, ok := vals[i].([]byte); ok {
			row[col] = string(b)
			continue
		}
		row[col] = vals[i]
	}
	c.current = row
	return true
}

// Row returns the row Next moved to.
func (c *Cursor) Row() Row { return c.current }

// Err returns the error, if any, that stopped iteration.
func (c *Cursor) Err() error {
	if c.err != nil {
		return classify(c.err)
	}
	return nil
}

// Close releases the underlying rows. It is safe to call more than once.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rows.Close()
}

// All drains the cursor into a slice and closes it.
func (c *Cursor) All() ([]Row, error) {
	defer c.Close()
	var out []Row
	for c.Next() {
		out = append(out, c.Row())
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

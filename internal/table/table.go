// Package table holds the flat, row-by-column result of normalizing a JSON
// document, and its preview and CSV renderings.
package table

import (
	"github.com/backyonatan-alt/restable/internal/jsonvalue"
)

// Table is an immutable flat table. Every row holds one cell per column;
// cells a row has no value for are null.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]jsonvalue.Value
}

// New builds a table from columns and rows. Rows shorter than the column
// list are padded with nulls; cells past the last column are dropped. The
// table takes ownership of both slices.
func New(columns []string, rows [][]jsonvalue.Value) *Table {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	for i, row := range rows {
		switch {
		case len(row) < len(columns):
			padded := make([]jsonvalue.Value, len(columns))
			copy(padded, row)
			rows[i] = padded
		case len(row) > len(columns):
			rows[i] = row[:len(columns)]
		}
	}
	if columns == nil {
		columns = []string{}
	}
	if rows == nil {
		rows = [][]jsonvalue.Value{}
	}
	return &Table{columns: columns, index: index, rows: rows}
}

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Width is the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []jsonvalue.Value {
	out := make([]jsonvalue.Value, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Cell returns the value of column in row i.
func (t *Table) Cell(i int, column string) (jsonvalue.Value, bool) {
	c, ok := t.index[column]
	if !ok || i < 0 || i >= len(t.rows) {
		return jsonvalue.Value{}, false
	}
	return t.rows[i][c], true
}

// Head returns a table of the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	rows := make([][]jsonvalue.Value, n)
	for i := 0; i < n; i++ {
		rows[i] = t.Row(i)
	}
	return New(t.Columns(), rows)
}

// Records re-expresses every row as an object whose members follow the
// column order, nulls included.
func (t *Table) Records() []jsonvalue.Value {
	out := make([]jsonvalue.Value, len(t.rows))
	for i, row := range t.rows {
		members := make([]jsonvalue.Member, len(t.columns))
		for c, name := range t.columns {
			members[c] = jsonvalue.Member{Key: name, Value: row[c]}
		}
		out[i] = jsonvalue.ObjectValue(members...)
	}
	return out
}

// ScalarOnly returns a table without the columns that hold a list or object
// in any row.
func (t *Table) ScalarOnly() *Table {
	keep := make([]int, 0, len(t.columns))
	for c := range t.columns {
		scalar := true
		for _, row := range t.rows {
			if !row[c].IsScalar() {
				scalar = false
				break
			}
		}
		if scalar {
			keep = append(keep, c)
		}
	}

	columns := make([]string, len(keep))
	for i, c := range keep {
		columns[i] = t.columns[c]
	}
	rows := make([][]jsonvalue.Value, len(t.rows))
	for r, row := range t.rows {
		out := make([]jsonvalue.Value, len(keep))
		for i, c := range keep {
			out[i] = row[c]
		}
		rows[r] = out
	}
	return New(columns, rows)
}

// Equal reports whether both tables have the same columns and cells.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.columns) != len(o.columns) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != o.columns[i] {
			return false
		}
	}
	for r := range t.rows {
		for c := range t.rows[r] {
			if !t.rows[r][c].Equal(o.rows[r][c]) {
				return false
			}
		}
	}
	return true
}

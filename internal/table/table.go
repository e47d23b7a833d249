// Package table holds the in-memory tabular model used by the conversion
// pipeline together with everything that operates on it directly: format
// detection, parsing, cleaning, inspection and export.
//
// Every cell is text. Parsers coerce whatever the source contained into
// strings so that mixed-type columns never break display or export, and the
// numeric helpers re-interpret text on demand.
//
// Operations are pure: they never modify their input and always return a new
// *Table. Callers that keep a "current" table replace it only when an
// operation succeeds, which gives failed operations no side effects.
package table

import "slices"

// Table is an ordered list of named columns and rows indexed by position.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// New builds a table, padding or truncating rows to the column count.
func New(columns []string, rows [][]string) *Table {
	t := &Table{
		Columns: slices.Clone(columns),
		Rows:    make([][]string, len(rows)),
	}
	for i, row := range rows {
		t.Rows[i] = fitRow(row, len(columns))
	}
	return t
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = slices.Clone(row)
	}
	return out
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.Columns)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Columns, name)
}

// Column returns a copy of the values in column i.
func (t *Table) Column(i int) []string {
	values := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		values[r] = row[i]
	}
	return values
}

// withRows returns a table sharing t's column names but holding rows.
// Row slices are not copied; callers pass rows they already own.
func (t *Table) withRows(rows [][]string) *Table {
	return &Table{Columns: slices.Clone(t.Columns), Rows: rows}
}

func fitRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

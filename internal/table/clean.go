package table

import (
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sweeper/internal/filter"
)

// RemoveDuplicates drops rows that exactly repeat an earlier row, keeping
// the first occurrence and the order of what remains. It also returns the
// number of rows dropped.
func RemoveDuplicates(t *Table) (*Table, int) {
	seen := make(map[string]struct{}, len(t.Rows))
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		key := rowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, slices.Clone(row))
	}
	return t.withRows(rows), len(t.Rows) - len(rows)
}

// rowKey builds an unambiguous map key; quoting keeps ["a,b"] and ["a","b"] apart.
func rowKey(row []string) string {
	var b strings.Builder
	for i, cell := range row {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(cell))
	}
	return b.String()
}

// FillMissingNumeric replaces missing cells in numeric columns with the
// column mean over its present values. Non-numeric columns are untouched.
// It returns the names of the columns that received at least one value.
func FillMissingNumeric(t *Table) (*Table, []string) {
	out := t.Clone()
	var filled []string

	for c, name := range t.Columns {
		values := t.Column(c)
		nums, ok := numericColumn(values)
		if !ok || len(nums) == len(values) {
			continue
		}

		var sum float64
		for _, f := range nums {
			sum += f
		}
		mean := FormatNumber(sum / float64(len(nums)))

		for r, v := range values {
			if IsMissing(v) {
				out.Rows[r][c] = mean
			}
		}
		filled = append(filled, name)
	}

	return out, filled
}

// FilterRows keeps the rows for which expression holds. The expression
// language is restricted to comparisons and boolean connectives over column
// references and literals; anything else fails with *FilterError.
func FilterRows(t *Table, expression string) (*Table, error) {
	pred, err := filter.Compile(expression, t.Columns,
		filter.WithNumberParser(ParseNumber),
		filter.WithMissing(IsMissing),
	)
	if err != nil {
		return nil, &FilterError{Expression: expression, Err: err}
	}

	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if pred.Match(row) {
			rows = append(rows, slices.Clone(row))
		}
	}
	return t.withRows(rows), nil
}

// RenameColumns renames the columns named by mapping keys to the mapped
// targets. Entries with blank targets and keys that name no column are
// ignored. A rename that leaves two columns with the same name is rejected
// with *RenameError.
func RenameColumns(t *Table, mapping map[string]string) (*Table, error) {
	columns := make([]string, len(t.Columns))
	for i, name := range t.Columns {
		columns[i] = name
		if target, ok := mapping[name]; ok {
			if target = strings.TrimSpace(target); target != "" {
				columns[i] = target
			}
		}
	}

	owners := make(map[string][]string, len(columns))
	var order []string
	for i, name := range columns {
		if _, ok := owners[name]; !ok {
			order = append(order, name)
		}
		owners[name] = append(owners[name], t.Columns[i])
	}
	for _, name := range order {
		if len(owners[name]) > 1 {
			return nil, &RenameError{Target: name, Sources: owners[name]}
		}
	}

	out := t.Clone()
	out.Columns = columns
	return out, nil
}

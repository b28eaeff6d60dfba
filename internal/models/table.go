package models

import (
	"fmt"
	"math"
)

// ColumnKind is the inferred type of a table column.
type ColumnKind string

const (
	ColumnKindEmpty   ColumnKind = "empty"
	ColumnKindInteger ColumnKind = "integer"
	ColumnKindFloat   ColumnKind = "float"
	ColumnKindBoolean ColumnKind = "boolean"
	ColumnKindString  ColumnKind = "string"
	ColumnKindMixed   ColumnKind = "mixed"
)

// IsNumeric reports whether values of this kind can be summed and plotted
// on a continuous axis.
func (k ColumnKind) IsNumeric() bool {
	return k == ColumnKindInteger || k == ColumnKindFloat
}

// Table is a parsed tabular file. Cell values are nil (missing), int64,
// float64, bool or string. Column names are unique.
type Table struct {
	Name    string   `json:"name" msgpack:"name"`
	Columns []string `json:"columns" msgpack:"columns"`
	Rows    [][]any  `json:"rows" msgpack:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns []string) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
		Rows:    make([][]any, 0),
	}
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns the values of a column in row order.
func (t *Table) Column(name string) ([]any, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column not found: %s", name)
	}
	values := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			values[i] = row[idx]
		}
	}
	return values, nil
}

// Head returns a table holding the first n rows. Rows are shared, not copied.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	return &Table{
		Name:    t.Name,
		Columns: t.Columns,
		Rows:    t.Rows[:n],
	}
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]any, len(row))
		copy(r, row)
		rows[i] = r
	}
	return &Table{Name: t.Name, Columns: cols, Rows: rows}
}

// IsMissing reports whether v is a missing-value sentinel.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	}
	return false
}

// HasMissing reports whether any cell in the table is missing.
func (t *Table) HasMissing() bool {
	for _, row := range t.Rows {
		if len(row) < len(t.Columns) {
			return true
		}
		for _, v := range row {
			if IsMissing(v) {
				return true
			}
		}
	}
	return false
}

// ColumnKind infers the kind of a column from its values. Missing cells are
// ignored; an empty string counts as a string value.
func (t *Table) ColumnKind(name string) ColumnKind {
	values, err := t.Column(name)
	if err != nil {
		return ColumnKindEmpty
	}
	return KindOf(values)
}

// KindOf infers the column kind of a list of values.
func KindOf(values []any) ColumnKind {
	kind := ColumnKindEmpty
	for _, v := range values {
		if IsMissing(v) {
			continue
		}
		var k ColumnKind
		switch v.(type) {
		case int64, int:
			k = ColumnKindInteger
		case float64:
			k = ColumnKindFloat
		case bool:
			k = ColumnKindBoolean
		case string:
			k = ColumnKindString
		default:
			k = ColumnKindMixed
		}
		switch {
		case kind == ColumnKindEmpty:
			kind = k
		case kind == k:
		case kind.IsNumeric() && k.IsNumeric():
			kind = ColumnKindFloat
		default:
			return ColumnKindMixed
		}
	}
	return kind
}

// NumericColumns returns the columns whose values are all integers or floats.
func (t *Table) NumericColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if t.ColumnKind(c).IsNumeric() {
			cols = append(cols, c)
		}
	}
	return cols
}

// NonNumericColumns returns the complement of NumericColumns.
func (t *Table) NonNumericColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if !t.ColumnKind(c).IsNumeric() {
			cols = append(cols, c)
		}
	}
	return cols
}

// ToFloat converts a numeric cell to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, !math.IsNaN(x)
	}
	return 0, false
}

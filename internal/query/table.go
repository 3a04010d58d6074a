package query

// Column describes one result column.
type Column struct {
	Name         string
	DatabaseType string
}

// Table is a fully materialized result set. Rows hold driver values
// (int64, float64, string, []byte, bool, time.Time, or nil).
type Table struct {
	Columns []Column
	Rows    [][]any
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}

	return len(t.Rows)
}

// ColumnNames returns the column names in result order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}

	return names
}

// Column returns the values of the named column, or false if there is no
// such column.
func (t *Table) Column(name string) ([]any, bool) {
	idx := -1

	for i, c := range t.Columns {
		if c.Name == name {
			idx = i
			break
		}
	}

	if idx < 0 {
		return nil, false
	}

	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}

	return out, true
}

// Records returns each row as a column-name keyed map.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))

	for i, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			rec[c.Name] = row[j]
		}

		out[i] = rec
	}

	return out
}

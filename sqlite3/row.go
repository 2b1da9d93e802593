package sqlite3

import "fmt"

// ColumnValue is one (name, value) pair in declared column order.
type ColumnValue struct {
	Name  string
	Value Value
}

// Row binds a TableDescriptor's column names to one decoded record,
// substituting the rowid for sqlite's NULL rowid-alias placeholder when the
// table declares an integer primary key (spec.md §4.H).
type Row struct {
	table  *TableDescriptor
	rowID  int64
	values []Value
}

// RowID is the table b-tree rowid this row was stored under.
func (r *Row) RowID() int64 { return r.rowID }

// Columns returns the column names in declared order.
func (r *Row) Columns() []string {
	names := make([]string, len(r.table.Columns))
	for i, c := range r.table.Columns {
		names[i] = c.Name
	}
	return names
}

// Get returns the value of column name and whether it exists.
func (r *Row) Get(name string) (Value, bool) {
	idx, ok := r.table.columnIndex(name)
	if !ok {
		return Value{}, false
	}
	return r.values[idx], true
}

// Pairs returns (name, value) for every column in declared order -- the
// form spec.md §6 describes as `row[col]` iteration.
func (r *Row) Pairs() []ColumnValue {
	out := make([]ColumnValue, len(r.table.Columns))
	for i, c := range r.table.Columns {
		out[i] = ColumnValue{Name: c.Name, Value: r.values[i]}
	}
	return out
}

func (r *Row) String() string {
	return fmt.Sprintf("%v", r.Pairs())
}

// materialiseRow decodes one leaf cell's payload into a Row, applying the
// table descriptor's column list and rowid-substitution rule.
func materialiseRow(table *TableDescriptor, cell leafCell, enc Encoding) (*Row, error) {
	_, decoded, err := decodeRecordFromBytes(cell.Payload, enc)
	if err != nil {
		return nil, fmt.Errorf("table %q row %d: %w", table.Name, cell.RowID, err)
	}

	values := make([]Value, len(table.Columns))
	for i := range table.Columns {
		if i < len(decoded) {
			values[i] = decoded[i]
		} else {
			values[i] = Value{Kind: KindNull}
		}
	}

	// Only an INTEGER PRIMARY KEY is a true rowid alias; sqlite stores any
	// other affinity's primary key as a real column value (spec.md §4.H).
	if table.PrimaryKey != "" {
		if idx, ok := table.columnIndex(table.PrimaryKey); ok &&
			table.Columns[idx].Affinity == "integer" &&
			values[idx].Kind == KindNull {
			values[idx] = Value{Kind: KindInt, Int: cell.RowID}
		}
	}

	return &Row{table: table, rowID: cell.RowID, values: values}, nil
}

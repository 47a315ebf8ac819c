package database

// Column describes one column of a result set.
type Column struct {
	Name       string
	TypeOID    uint32
	DataType   string
	OrdinalPos int
}

// Row holds one value per column, as decoded by the driver, aligned with
// the column list by position.
type Row []any

// ColumnNames returns the names of cols in order.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

package results

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/joacominatel/pgstream/internal/database"
)

// Page is a snapshot of what the pane shows: either a whole eager result or
// the current batch of a stream. Snapshots are taken where the data is
// fetched so the view never touches a live cursor.
type Page struct {
	Query   string
	Columns []string
	Types   []string
	Rows    [][]pgtype.Text

	// Start is the offset of Rows[0] within the whole result.
	Start int64
	// Total is database.UnknownTotal until the stream is exhausted.
	Total int64

	Streaming    bool
	More         bool
	Disconnected bool

	// Command is set for statements that returned no columns.
	Command  bool
	Affected uint64
	Duration time.Duration
}

// FromResult snapshots an eager result.
func FromResult(query string, r *database.QueryResult) Page {
	p := Page{
		Query:    query,
		Columns:  database.ColumnNames(r.Columns()),
		Types:    dataTypes(r.Columns()),
		Total:    int64(r.NumRows()),
		Command:  r.NumFields() == 0,
		Affected: r.AffectedRows(),
		Duration: r.Duration(),
	}
	for i := 0; i < r.NumRows(); i++ {
		row, _ := r.Row(i)
		p.Rows = append(p.Rows, row)
	}
	return p
}

// FromCursor snapshots the current batch of c.
func FromCursor(query string, c *database.Cursor) Page {
	p := Page{
		Query:        query,
		Columns:      c.ColumnNames(),
		Types:        dataTypes(c.Columns()),
		Start:        c.BatchStart(),
		Total:        c.TotalRows(),
		Streaming:    true,
		More:         c.HasMore(),
		Disconnected: c.Disconnected(),
	}
	for i := 0; i < c.CurrentBatchSize(); i++ {
		row, _ := c.BatchRow(i)
		p.Rows = append(p.Rows, row)
	}
	return p
}

// Cell returns the value at (row, col) of the page.
func (p Page) Cell(row, col int) (pgtype.Text, bool) {
	if row < 0 || row >= len(p.Rows) || col < 0 || col >= len(p.Rows[row]) {
		return pgtype.Text{}, false
	}
	return p.Rows[row][col], true
}

func dataTypes(cols []database.Column) []string {
	types := make([]string, len(cols))
	for i, c := range cols {
		types[i] = c.DataType
	}
	return types
}

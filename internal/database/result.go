package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/joacominatel/pgstream/internal/decode"
)

// QueryResult is the fully materialized result of a statement. It is not
// modified after construction.
type QueryResult struct {
	rows     []Row
	columns  []Column
	affected uint64
	duration time.Duration
}

// NewQueryResult builds a result from fetched rows and the columns of the
// prepared statement that produced them. Columns survive a zero-row result.
func NewQueryResult(rows []Row, columns []Column) *QueryResult {
	return &QueryResult{
		rows:     rows,
		columns:  columns,
		affected: uint64(len(rows)),
	}
}

// NewCommandResult builds a result for a statement that returned no rows.
func NewCommandResult(affected uint64) *QueryResult {
	return &QueryResult{affected: affected}
}

// Duration returns the wall time the statement took, or zero when the
// result was not produced by Execute.
func (r *QueryResult) Duration() time.Duration {
	return r.duration
}

// NumRows returns the number of rows.
func (r *QueryResult) NumRows() int {
	return len(r.rows)
}

// NumFields returns the number of columns.
func (r *QueryResult) NumFields() int {
	return len(r.columns)
}

// AffectedRows returns the row count for data-returning statements, or the
// server-reported count for commands.
func (r *QueryResult) AffectedRows() uint64 {
	return r.affected
}

// Columns returns the column descriptions.
func (r *QueryResult) Columns() []Column {
	return r.columns
}

// FieldName returns the name of column i.
func (r *QueryResult) FieldName(i int) (string, bool) {
	if i < 0 || i >= len(r.columns) {
		return "", false
	}
	return r.columns[i].Name, true
}

// FieldTypeOID returns the type OID of column i.
func (r *QueryResult) FieldTypeOID(i int) (uint32, bool) {
	if i < 0 || i >= len(r.columns) {
		return 0, false
	}
	return r.columns[i].TypeOID, true
}

// Value returns the canonical text of the value at (row, col). It returns
// false for NULL and for positions out of range.
func (r *QueryResult) Value(row, col int) (string, bool) {
	if row < 0 || row >= len(r.rows) {
		return "", false
	}
	return cellText(r.rows[row], r.columns, col)
}

// Row returns every value of row i. Invalid entries are NULL.
func (r *QueryResult) Row(i int) ([]pgtype.Text, bool) {
	if i < 0 || i >= len(r.rows) {
		return nil, false
	}
	return rowText(r.rows[i], r.columns), true
}

// Execute runs sql eagerly. The statement is prepared first so its columns
// are known even when no rows come back; statements without columns are
// treated as commands.
func Execute(ctx context.Context, s Session, sql string) (*QueryResult, error) {
	if s == nil || !s.Alive() {
		return nil, ErrNotConnected
	}
	start := time.Now()

	columns, err := s.Prepare(ctx, sql)
	if err != nil {
		return nil, &ErrQuery{Query: sql, Cause: err}
	}

	var result *QueryResult
	if len(columns) == 0 {
		n, err := s.Execute(ctx, sql)
		if err != nil {
			return nil, &ErrQuery{Query: sql, Cause: err}
		}
		if n < 0 {
			n = 0
		}
		result = NewCommandResult(uint64(n))
	} else {
		rows, _, err := s.Query(ctx, sql)
		if err != nil {
			return nil, &ErrQuery{Query: sql, Cause: err}
		}
		result = NewQueryResult(rows, columns)
	}

	result.duration = time.Since(start)
	return result, nil
}

func cellText(row Row, columns []Column, col int) (string, bool) {
	if col < 0 || col >= len(row) {
		return "", false
	}
	var oid uint32
	if col < len(columns) {
		oid = columns[col].TypeOID
	}
	return decode.Value(oid, row[col])
}

func rowText(row Row, columns []Column) []pgtype.Text {
	values := make([]pgtype.Text, len(columns))
	for i := range columns {
		s, ok := cellText(row, columns, i)
		values[i] = pgtype.Text{String: s, Valid: ok}
	}
	return values
}

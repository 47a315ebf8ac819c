package database

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"
)

// UnknownTotal is reported by TotalRows until the cursor is exhausted.
const UnknownTotal int64 = -1

const (
	sqlDeclare  = "DECLARE %s SCROLL CURSOR FOR %s"
	sqlFetch    = "FETCH FORWARD %d FROM %s"
	sqlRewind   = "MOVE BACKWARD 1 IN %s"
	sqlClose    = "CLOSE %s"
	// The newline ends a trailing line comment in the wrapped query.
	sqlDescribe = "SELECT * FROM (%s\n) AS pgstream_meta LIMIT 0"
)

// Option configures a Cursor.
type Option func(*Cursor)

// WithLogger sets the logger used for cleanup failures.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Cursor) {
		c.log = l
	}
}

// WithCursorName overrides the generated server-side cursor name.
func WithCursorName(name string) Option {
	return func(c *Cursor) {
		c.name = name
	}
}

// Cursor streams the rows of a query through a named server-side cursor,
// holding at most one batch in memory.
//
// The cursor does not own its session. It checks Session.Alive before every
// network operation and is also told directly through MarkDisconnected.
// A Cursor is not safe for concurrent use, except for MarkDisconnected.
type Cursor struct {
	session Session
	release func()
	log     *logrus.Entry

	name  string
	ident string
	query string

	columns    []Column
	batch      []Row
	batchStart int64
	fetched    int64
	batchSize  int
	total      int64

	ownsTx       bool
	finished     bool
	closed       bool
	disconnected atomic.Bool

	cleanupFailures int
}

// OpenCursor declares a scrollable cursor for query on s and reads its
// column metadata. If no transaction is active, one is started and the
// cursor becomes responsible for committing it on Close.
func OpenCursor(ctx context.Context, s Session, query string, batchSize int, opts ...Option) (*Cursor, error) {
	if s == nil || !s.Alive() {
		return nil, ErrNotConnected
	}
	if batchSize <= 0 {
		return nil, &ErrInvalidParameter{Name: "batch size", Reason: fmt.Sprintf("must be positive, got %d", batchSize)}
	}
	query = trimQuery(query)
	if query == "" {
		return nil, &ErrInvalidParameter{Name: "query", Reason: "empty statement"}
	}

	c := &Cursor{
		session:   s,
		query:     query,
		batchSize: batchSize,
		total:     UnknownTotal,
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.name == "" {
		c.name = newCursorName()
	}
	c.ident = pgx.Identifier{c.name}.Sanitize()
	c.log = c.log.WithField("cursor", c.name)

	err := s.Begin(ctx)
	if err == nil {
		c.ownsTx = true
	} else {
		c.log.WithError(err).Debug("Joining the caller's transaction")
	}

	declared, err := c.declare(ctx, query)
	if err != nil {
		c.abandon(ctx, declared)
		return nil, err
	}

	if w, ok := s.(Watcher); ok {
		c.release = w.Watch(c)
	}

	return c, nil
}

// WithCursor opens a cursor, passes it to fn and closes it when fn returns,
// whatever the outcome.
func WithCursor(ctx context.Context, s Session, query string, batchSize int, fn func(*Cursor) error, opts ...Option) error {
	c, err := OpenCursor(ctx, s, query, batchSize, opts...)
	if err != nil {
		return err
	}
	defer c.Close(context.WithoutCancel(ctx))

	return fn(c)
}

func (c *Cursor) declare(ctx context.Context, query string) (bool, error) {
	_, err := c.session.Execute(ctx, fmt.Sprintf(sqlDeclare, c.ident, query))
	if err != nil {
		return false, &ErrQuery{Query: query, Cause: fmt.Errorf("declare cursor: %w", err)}
	}

	rows, columns, err := c.session.Query(ctx, fmt.Sprintf(sqlFetch, 1, c.ident))
	if err != nil {
		return true, &ErrQuery{Query: query, Cause: fmt.Errorf("probe cursor: %w", err)}
	}

	if len(rows) > 0 {
		c.columns = columns
		_, err = c.session.Execute(ctx, fmt.Sprintf(sqlRewind, c.ident))
		if err != nil {
			return true, &ErrQuery{Query: query, Cause: fmt.Errorf("rewind cursor: %w", err)}
		}
		return true, nil
	}

	// Empty result: describe the query on its own so the columns are
	// still known.
	columns, err = c.session.Prepare(ctx, fmt.Sprintf(sqlDescribe, query))
	if err != nil {
		return true, &ErrQuery{Query: query, Cause: fmt.Errorf("describe query: %w", err)}
	}
	c.columns = columns
	return true, nil
}

// abandon releases what a failed open acquired.
func (c *Cursor) abandon(ctx context.Context, declared bool) {
	c.closed = true
	c.finished = true
	if !c.session.Alive() {
		return
	}
	if declared && !c.ownsTx {
		_, err := c.session.Execute(ctx, fmt.Sprintf(sqlClose, c.ident))
		if err != nil {
			c.cleanupFailed("close cursor", err)
		}
	}
	if c.ownsTx {
		err := c.session.Commit(ctx)
		if err != nil {
			c.cleanupFailed("end transaction", err)
		}
	}
}

// NextBatch fetches up to the batch size of rows and makes them the current
// batch, replacing the previous one. It returns an empty batch without I/O
// once the cursor is finished or disconnected.
func (c *Cursor) NextBatch(ctx context.Context) ([]Row, error) {
	if c.Finished() {
		return nil, nil
	}
	if !c.session.Alive() {
		c.MarkDisconnected()
		c.batch = nil
		return nil, nil
	}

	rows, _, err := c.session.Query(ctx, fmt.Sprintf(sqlFetch, c.batchSize, c.ident))
	if err != nil {
		return nil, &ErrQuery{Query: c.query, Cause: fmt.Errorf("fetch: %w", err)}
	}

	c.batchStart = c.fetched
	if len(rows) == 0 {
		c.finished = true
		c.batch = nil
		c.total = c.fetched
		return nil, nil
	}

	c.batch = rows
	c.fetched += int64(len(rows))
	return rows, nil
}

// Each calls fn with every remaining batch and the offset of its first row.
func (c *Cursor) Each(ctx context.Context, fn func(batch []Row, start int64) error) error {
	for {
		batch, err := c.NextBatch(ctx)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		err = fn(batch, c.batchStart)
		if err != nil {
			return err
		}
	}
}

// MarkDisconnected tells the cursor its session is gone. No network
// operation is issued afterwards and Close becomes a no-op.
func (c *Cursor) MarkDisconnected() {
	if c.disconnected.CompareAndSwap(false, true) {
		c.log.Debug("Session gone, cursor disconnected")
	}
}

// Close releases the server-side cursor and, when the cursor started the
// transaction, commits it. Failures are logged and never returned, and the
// cursor is closed regardless. Close is idempotent.
func (c *Cursor) Close(ctx context.Context) error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	c.finished = true
	c.batch = nil
	if c.release != nil {
		c.release()
		c.release = nil
	}

	if c.disconnected.Load() {
		return nil
	}
	if !c.session.Alive() {
		c.MarkDisconnected()
		return nil
	}

	_, err := c.session.Execute(ctx, fmt.Sprintf(sqlClose, c.ident))
	if err != nil {
		c.cleanupFailed("close cursor", err)
	}
	if c.ownsTx {
		err = c.session.Commit(ctx)
		if err != nil {
			c.cleanupFailed("commit", err)
		}
	}

	return nil
}

func (c *Cursor) cleanupFailed(step string, err error) {
	c.cleanupFailures++
	c.log.WithFields(logrus.Fields{
		"step":  step,
		"error": err,
	}).Warn("Cursor cleanup failed, server-side resources may be held until the session ends")
}

// Name returns the server-side cursor name.
func (c *Cursor) Name() string {
	return c.name
}

// HasMore reports whether another fetch may return rows.
func (c *Cursor) HasMore() bool {
	return !c.Finished()
}

// Finished reports whether no further rows will be fetched.
func (c *Cursor) Finished() bool {
	return c.finished || c.disconnected.Load()
}

// Closed reports whether Close has run.
func (c *Cursor) Closed() bool {
	return c.closed
}

// Disconnected reports whether the session went away under the cursor.
func (c *Cursor) Disconnected() bool {
	return c.disconnected.Load()
}

// OwnsTransaction reports whether the cursor started the transaction it
// runs in.
func (c *Cursor) OwnsTransaction() bool {
	return c.ownsTx
}

// TotalRows returns the number of rows in the result, or UnknownTotal
// until a fetch comes back empty.
func (c *Cursor) TotalRows() int64 {
	return c.total
}

// Columns returns the column descriptions.
func (c *Cursor) Columns() []Column {
	return c.columns
}

// ColumnNames returns the column names.
func (c *Cursor) ColumnNames() []string {
	return ColumnNames(c.columns)
}

// NumColumns returns the number of columns.
func (c *Cursor) NumColumns() int {
	return len(c.columns)
}

// TypeOID returns the type OID of column i.
func (c *Cursor) TypeOID(i int) (uint32, bool) {
	if i < 0 || i >= len(c.columns) {
		return 0, false
	}
	return c.columns[i].TypeOID, true
}

// BatchSize returns the configured number of rows per fetch.
func (c *Cursor) BatchSize() int {
	return c.batchSize
}

// CurrentBatchSize returns the number of rows in the current batch.
func (c *Cursor) CurrentBatchSize() int {
	return len(c.batch)
}

// BatchStart returns the offset of the current batch's first row within
// the whole result.
func (c *Cursor) BatchStart() int64 {
	return c.batchStart
}

// BatchValue returns the canonical text at (row, col) of the current
// batch. row is relative to the batch.
func (c *Cursor) BatchValue(row, col int) (string, bool) {
	if row < 0 || row >= len(c.batch) {
		return "", false
	}
	return cellText(c.batch[row], c.columns, col)
}

// BatchRow returns every value of row in the current batch.
func (c *Cursor) BatchRow(row int) ([]pgtype.Text, bool) {
	if row < 0 || row >= len(c.batch) {
		return nil, false
	}
	return rowText(c.batch[row], c.columns), true
}

// CleanupFailures returns how many cleanup steps failed.
func (c *Cursor) CleanupFailures() int {
	return c.cleanupFailures
}

func newCursorName() string {
	id := uuid.New()
	return "pgstream_" + hex.EncodeToString(id[:])
}

func trimQuery(q string) string {
	return strings.TrimRightFunc(strings.TrimSpace(q), func(r rune) bool {
		return r == ';' || unicode.IsSpace(r)
	})
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/joacominatel/pgstream/internal/database"
)

// Transaction status bytes reported by the server.
const (
	txIdle   = 'I'
	txFailed = 'E'
)

// Session is a database.Session bound to one pooled connection.
type Session struct {
	conn    *pgxpool.Conn
	pg      *pgx.Conn
	log     *logrus.Entry
	onClose func(*Session)

	closed atomic.Bool

	mu        sync.Mutex
	watchers  map[database.Disconnecter]struct{}
	lastErr   error
	typeNames map[uint32]string
}

func newSession(conn *pgxpool.Conn, log *logrus.Entry, onClose func(*Session)) *Session {
	return &Session{
		conn:      conn,
		pg:        conn.Conn(),
		log:       log.WithField("pid", conn.Conn().PgConn().PID()),
		onClose:   onClose,
		watchers:  map[database.Disconnecter]struct{}{},
		typeNames: map[uint32]string{},
	}
}

// Begin starts a transaction unless one is already active.
func (s *Session) Begin(ctx context.Context) error {
	if !s.Alive() {
		return database.ErrNotConnected
	}
	if s.pg.PgConn().TxStatus() != txIdle {
		return database.ErrTransactionActive
	}
	_, err := s.Execute(ctx, "BEGIN")
	return err
}

// Commit commits the current transaction.
func (s *Session) Commit(ctx context.Context) error {
	_, err := s.Execute(ctx, "COMMIT")
	return err
}

// Execute runs sql over the simple protocol and returns the affected count.
func (s *Session) Execute(ctx context.Context, sql string) (int64, error) {
	if !s.Alive() {
		return 0, database.ErrNotConnected
	}
	s.log.WithField("sql", sql).Debug("Execute")

	tag, err := s.conn.Exec(ctx, sql, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return 0, s.fail(fmt.Errorf("exec: %w", err))
	}
	s.setLastError(nil)
	return tag.RowsAffected(), nil
}

// Query runs sql over the simple protocol and collects every row. Cursor
// statements such as FETCH are never cached as prepared statements this way.
func (s *Session) Query(ctx context.Context, sql string) ([]database.Row, []database.Column, error) {
	if !s.Alive() {
		return nil, nil, database.ErrNotConnected
	}
	s.log.WithField("sql", sql).Debug("Query")

	rows, err := s.conn.Query(ctx, sql, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return nil, nil, s.fail(fmt.Errorf("query: %w", err))
	}

	fields := append([]pgconn.FieldDescription(nil), rows.FieldDescriptions()...)

	var result []database.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			rows.Close()
			return nil, nil, s.fail(fmt.Errorf("read row: %w", err))
		}
		result = append(result, values)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, nil, s.fail(fmt.Errorf("rows: %w", err))
	}

	s.setLastError(nil)
	return result, s.describe(ctx, fields), nil
}

// Prepare describes sql through an unnamed prepared statement.
func (s *Session) Prepare(ctx context.Context, sql string) ([]database.Column, error) {
	if !s.Alive() {
		return nil, database.ErrNotConnected
	}
	s.log.WithField("sql", sql).Debug("Prepare")

	sd, err := s.pg.PgConn().Prepare(ctx, "", sql, nil)
	if err != nil {
		return nil, s.fail(fmt.Errorf("prepare: %w", err))
	}

	s.setLastError(nil)
	return s.describe(ctx, sd.Fields), nil
}

// Alive reports whether the session is open and its connection usable. It
// may race with Close: the released pool conn is never touched.
func (s *Session) Alive() bool {
	return !s.closed.Load() && !s.pg.IsClosed()
}

// Watch registers d to be told when the session closes.
func (s *Session) Watch(d database.Disconnecter) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watchers[d] = struct{}{}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, d)
	}
}

// Close disconnects watchers and returns the connection to the pool. A
// connection left inside a transaction is discarded by the pool.
func (s *Session) Close(_ context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	watchers := make([]database.Disconnecter, 0, len(s.watchers))
	for d := range s.watchers {
		watchers = append(watchers, d)
	}
	s.watchers = map[database.Disconnecter]struct{}{}
	s.mu.Unlock()

	for _, d := range watchers {
		d.MarkDisconnected()
	}

	s.conn.Release()
	if s.onClose != nil {
		s.onClose(s)
	}
	return nil
}

// LastError returns the message of the most recent failure, or "" if the
// last operation succeeded.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastErr == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(s.lastErr, &pgErr) {
		return pgErr.Message
	}
	return s.lastErr.Error()
}

func (s *Session) fail(err error) error {
	s.setLastError(err)
	return err
}

func (s *Session) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Session) describe(ctx context.Context, fields []pgconn.FieldDescription) []database.Column {
	columns := make([]database.Column, len(fields))
	for i, f := range fields {
		columns[i] = database.Column{
			Name:       f.Name,
			TypeOID:    f.DataTypeOID,
			DataType:   s.typeName(ctx, f.DataTypeOID),
			OrdinalPos: i + 1,
		}
	}
	return columns
}

// typeName resolves oid through the connection's type map, falling back to
// the catalog for enums, domains and extension types.
func (s *Session) typeName(ctx context.Context, oid uint32) string {
	if t, ok := s.pg.TypeMap().TypeForOID(oid); ok {
		return t.Name
	}

	s.mu.Lock()
	name, ok := s.typeNames[oid]
	s.mu.Unlock()
	if ok {
		return name
	}

	// Statements are rejected until an aborted transaction ends.
	if s.pg.PgConn().TxStatus() == txFailed {
		return ""
	}

	err := s.conn.QueryRow(ctx, queryTypeName, oid).Scan(&name)
	if err != nil {
		s.log.WithFields(logrus.Fields{"oid": oid, "error": err}).Debug("Type name lookup failed")
		return ""
	}

	s.mu.Lock()
	s.typeNames[oid] = name
	s.mu.Unlock()
	return name
}

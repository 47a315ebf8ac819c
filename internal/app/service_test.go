package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/pgstream/internal/config"
	"github.com/joacominatel/pgstream/internal/database"
)

type stubSession struct {
	alive    bool
	inTx     bool
	executed []string

	// started, when set, makes the next Prepare signal it and block until
	// its context is cancelled.
	started     chan struct{}
	interrupted bool
}

func (s *stubSession) Begin(context.Context) error {
	if s.inTx {
		return database.ErrTransactionActive
	}
	s.inTx = true
	s.executed = append(s.executed, "BEGIN")
	return nil
}

func (s *stubSession) Commit(context.Context) error {
	s.inTx = false
	s.executed = append(s.executed, "COMMIT")
	return nil
}

func (s *stubSession) Execute(_ context.Context, sql string) (int64, error) {
	s.executed = append(s.executed, sql)
	return 3, nil
}

func (s *stubSession) Query(_ context.Context, sql string) ([]database.Row, []database.Column, error) {
	s.executed = append(s.executed, sql)
	return nil, nil, nil
}

func (s *stubSession) Prepare(ctx context.Context, sql string) ([]database.Column, error) {
	s.executed = append(s.executed, sql)
	if started := s.started; started != nil {
		s.started = nil
		close(started)
		<-ctx.Done()
		s.interrupted = true
		return nil, ctx.Err()
	}
	if strings.HasPrefix(sql, "DELETE") {
		return nil, nil
	}
	return []database.Column{{Name: "n", TypeOID: pgtype.Int4OID, DataType: "int4", OrdinalPos: 1}}, nil
}

func (s *stubSession) Alive() bool { return s.alive }

func (s *stubSession) Close(context.Context) error {
	s.alive = false
	return nil
}

func (s *stubSession) count(prefix string) int {
	n := 0
	for _, e := range s.executed {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

type stubDriver struct {
	session    *stubSession
	connectErr error
	closed     bool
}

func (d *stubDriver) Connect(context.Context, string) error { return d.connectErr }
func (d *stubDriver) Close() error                          { d.closed = true; return nil }
func (d *stubDriver) Ping(context.Context) error            { return nil }
func (d *stubDriver) DatabaseName() string                  { return "app" }

func (d *stubDriver) Session(context.Context) (database.SessionCloser, error) {
	d.session = &stubSession{alive: true}
	return d.session, nil
}

func TestResolveDSN(t *testing.T) {
	cfg := &config.Config{Connections: []config.Connection{
		{Name: "one", Host: "h1", Port: 5432, Database: "a"},
		{Name: "two", Host: "h2", Port: 5432, Database: "b"},
	}}

	dsn, err := ResolveDSN(cfg, "postgres://x/y", "two")
	require.NoError(t, err)
	assert.Equal(t, "postgres://x/y", dsn)

	dsn, err = ResolveDSN(cfg, "", "two")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://h2:5432/b", dsn)

	dsn, err = ResolveDSN(cfg, "", "")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://h1:5432/a", dsn)

	var cfgErr *ErrConfig
	_, err = ResolveDSN(cfg, "", "three")
	assert.ErrorAs(t, err, &cfgErr)

	_, err = ResolveDSN(&config.Config{}, "", "")
	assert.ErrorAs(t, err, &cfgErr)
}

func TestServiceNotConnected(t *testing.T) {
	s := NewService(&stubDriver{})
	ctx := context.Background()

	assert.False(t, s.Connected())
	_, err := s.ExecuteQuery(ctx, "SELECT 1")
	assert.ErrorIs(t, err, database.ErrNotConnected)
	_, err = s.OpenStream(ctx, "SELECT 1", 10)
	assert.ErrorIs(t, err, database.ErrNotConnected)
}

func TestServiceConnectFailure(t *testing.T) {
	s := NewService(&stubDriver{connectErr: errors.New("refused")})

	err := s.Connect(context.Background(), "postgres://nowhere/db")
	var connErr *database.ErrConnection
	require.ErrorAs(t, err, &connErr)
	assert.False(t, s.Connected())
}

func TestServiceSingleStream(t *testing.T) {
	d := &stubDriver{}
	s := NewService(d)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "postgres://localhost/app"))
	assert.Equal(t, "app", s.DatabaseName())

	first, err := s.OpenStream(ctx, "SELECT 1", 10)
	require.NoError(t, err)
	second, err := s.OpenStream(ctx, "SELECT 2", 10)
	require.NoError(t, err)

	assert.True(t, first.Closed())
	assert.False(t, second.Closed())
	assert.Same(t, second, s.Stream())
	assert.Equal(t, 1, d.session.count("CLOSE"))

	s.CloseStream(ctx)
	assert.Nil(t, s.Stream())
	assert.True(t, second.Closed())
}

func TestServiceExecuteAndDisconnect(t *testing.T) {
	d := &stubDriver{}
	s := NewService(d)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "postgres://localhost/app"))

	r, err := s.ExecuteQuery(ctx, "DELETE FROM t")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.AffectedRows())

	_, err = s.OpenStream(ctx, "SELECT 1", 10)
	require.NoError(t, err)

	require.NoError(t, s.Disconnect())
	assert.True(t, d.closed)
	assert.False(t, d.session.Alive())
	assert.Nil(t, s.Stream())
}

func TestServiceNextBatch(t *testing.T) {
	d := &stubDriver{}
	s := NewService(d)
	ctx := context.Background()

	_, err := s.NextBatch(ctx, nil)
	assert.ErrorIs(t, err, ErrNoStream)

	require.NoError(t, s.Connect(ctx, "postgres://localhost/app"))
	_, err = s.OpenStream(ctx, "SELECT n FROM t", 10)
	require.NoError(t, err)

	var total int64
	c, err := s.NextBatch(ctx, func(c *database.Cursor) {
		total = c.TotalRows()
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), total)
	assert.True(t, c.Closed(), "an exhausted stream is closed")
	assert.Nil(t, s.Stream())
	assert.Equal(t, 1, d.session.count("COMMIT"))
}

func TestServiceExecuteClosesStream(t *testing.T) {
	d := &stubDriver{}
	s := NewService(d)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "postgres://localhost/app"))

	c, err := s.OpenStream(ctx, "SELECT 1", 10)
	require.NoError(t, err)

	_, err = s.ExecuteQuery(ctx, "SELECT 2")
	require.NoError(t, err)
	assert.True(t, c.Closed())
	assert.Nil(t, s.Stream())
}

func TestDisconnectCancelsRunningQuery(t *testing.T) {
	d := &stubDriver{}
	s := NewService(d)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx, "postgres://localhost/app"))

	started := make(chan struct{})
	d.session.started = started

	done := make(chan error, 1)
	go func() {
		_, err := s.ExecuteQuery(ctx, "SELECT pg_sleep(60)")
		done <- err
	}()
	<-started

	require.NoError(t, s.Disconnect())

	// Disconnect only returns once the query has given the session back.
	assert.True(t, d.session.interrupted)
	assert.False(t, d.session.Alive())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("query was not cancelled")
	}

	assert.False(t, s.Connected())
}

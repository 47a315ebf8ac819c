package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/pgstream/internal/database"
)

// testDSN points at a scratch server; tests that need one are skipped
// without it.
func testDSN(t *testing.T) string {
	dsn := os.Getenv("PGSTREAM_TEST_DSN")
	if dsn == "" {
		t.Skip("PGSTREAM_TEST_DSN not set")
	}
	return dsn
}

func connect(t *testing.T) (*Driver, database.SessionCloser) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d := New()
	require.NoError(t, d.Connect(ctx, testDSN(t)))
	t.Cleanup(func() { _ = d.Close() })

	s, err := d.Session(ctx)
	require.NoError(t, err)
	return d, s
}

func TestNotConnected(t *testing.T) {
	d := New()
	ctx := context.Background()

	_, err := d.Session(ctx)
	assert.ErrorIs(t, err, database.ErrNotConnected)
	assert.ErrorIs(t, d.Ping(ctx), database.ErrNotConnected)
	assert.NoError(t, d.Close())
}

func TestStreamGenerateSeries(t *testing.T) {
	_, s := connect(t)
	ctx := context.Background()

	c, err := database.OpenCursor(ctx, s, "SELECT g AS n, g::text AS label FROM generate_series(1, 5) g", 2)
	require.NoError(t, err)
	assert.True(t, c.OwnsTransaction())
	assert.Equal(t, []string{"n", "label"}, c.ColumnNames())
	assert.Equal(t, "int4", c.Columns()[0].DataType)

	var got []string
	for {
		batch, err := c.NextBatch(ctx)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			v, ok := c.BatchValue(i, 0)
			require.True(t, ok)
			got = append(got, v)
		}
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, got)
	assert.Equal(t, int64(5), c.TotalRows())

	require.NoError(t, c.Close(ctx))
	assert.Empty(t, s.(*Session).LastError())
}

func TestStreamEmptyResult(t *testing.T) {
	_, s := connect(t)
	ctx := context.Background()

	c, err := database.OpenCursor(ctx, s, "SELECT 1 AS a, now() AS b WHERE false", 10)
	require.NoError(t, err)
	defer c.Close(ctx)

	assert.Equal(t, []string{"a", "b"}, c.ColumnNames())
	assert.Equal(t, "timestamptz", c.Columns()[1].DataType)
}

func TestStreamInsideCallerTransaction(t *testing.T) {
	_, s := connect(t)
	ctx := context.Background()

	_, err := s.Execute(ctx, "BEGIN")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Begin(ctx), database.ErrTransactionActive)

	c, err := database.OpenCursor(ctx, s, "SELECT 1", 10)
	require.NoError(t, err)
	assert.False(t, c.OwnsTransaction())
	require.NoError(t, c.Close(ctx))

	// Still inside the caller's transaction.
	assert.ErrorIs(t, s.Begin(ctx), database.ErrTransactionActive)
	require.NoError(t, s.Commit(ctx))
}

func TestSessionCloseDisconnectsCursor(t *testing.T) {
	_, s := connect(t)
	ctx := context.Background()

	c, err := database.OpenCursor(ctx, s, "SELECT generate_series(1, 100)", 10)
	require.NoError(t, err)

	require.NoError(t, s.Close(ctx))
	assert.True(t, c.Disconnected())
	assert.False(t, s.Alive())

	batch, err := c.NextBatch(ctx)
	assert.NoError(t, err)
	assert.Empty(t, batch)
	assert.NoError(t, c.Close(ctx))
}

func TestExecuteEager(t *testing.T) {
	_, s := connect(t)
	ctx := context.Background()

	r, err := database.Execute(ctx, s, "SELECT true AS flag, '2024-01-02 03:04:05'::timestamp AS ts")
	require.NoError(t, err)
	v, _ := r.Value(0, 0)
	assert.Equal(t, "t", v)
	v, _ = r.Value(0, 1)
	assert.Equal(t, "2024-01-02 03:04:05.000000", v)

	r, err = database.Execute(ctx, s, "CREATE TEMP TABLE pgstream_t (id int)")
	require.NoError(t, err)
	assert.Equal(t, 0, r.NumRows())

	_, err = database.Execute(ctx, s, "SELEC 1")
	assert.Error(t, err)
	assert.Contains(t, s.(*Session).LastError(), "syntax error")
}

func TestStreamEmptyResultTrailingComment(t *testing.T) {
	_, s := connect(t)
	ctx := context.Background()

	c, err := database.OpenCursor(ctx, s, "SELECT 1 AS a WHERE false -- none", 10)
	require.NoError(t, err)
	defer c.Close(ctx)

	assert.Equal(t, []string{"a"}, c.ColumnNames())
}

func TestAliveDuringClose(t *testing.T) {
	_, s := connect(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Alive()
		}
	}()

	require.NoError(t, s.Close(context.Background()))
	wg.Wait()
	assert.False(t, s.Alive())
}

func TestExecuteNetworkAndInterval(t *testing.T) {
	_, s := connect(t)
	ctx := context.Background()

	r, err := database.Execute(ctx, s, `SELECT '1 year 2 mons 3 days 04:05:06.5'::interval,
		'192.168.0.1'::inet, '10.1.0.0/16'::cidr, '08:00:2b:01:02:03'::macaddr`)
	require.NoError(t, err)

	row, ok := r.Row(0)
	require.True(t, ok)
	got := make([]string, len(row))
	for i, v := range row {
		require.True(t, v.Valid)
		got[i] = v.String
	}
	assert.Equal(t, []string{"1 year 2 mons 3 days 04:05:06.5", "192.168.0.1", "10.1.0.0/16", "08:00:2b:01:02:03"}, got)
}

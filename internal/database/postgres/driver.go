package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/joacominatel/pgstream/internal/database"
)

// Driver implements the database.Driver interface for PostgreSQL.
type Driver struct {
	pool   *pgxpool.Pool
	dbName string
	log    *logrus.Entry

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// New creates a new PostgreSQL driver.
func New() *Driver {
	return &Driver{
		log:      logrus.WithField("component", "postgres"),
		sessions: map[*Session]struct{}{},
	}
}

// Connect establishes a connection pool to PostgreSQL.
func (d *Driver) Connect(ctx context.Context, dsn string) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 5
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	d.pool = pool
	d.dbName = cfg.ConnConfig.Database
	d.log.WithFields(logrus.Fields{
		"host":     cfg.ConnConfig.Host,
		"database": d.dbName,
	}).Info("Connected")
	return nil
}

// Close disconnects every open session and closes the pool.
func (d *Driver) Close() error {
	d.mu.Lock()
	sessions := make([]*Session, 0, len(d.sessions))
	for s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close(context.Background())
	}

	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}

// Ping checks if the connection is alive.
func (d *Driver) Ping(ctx context.Context) error {
	if d.pool == nil {
		return database.ErrNotConnected
	}
	return d.pool.Ping(ctx)
}

// Session acquires a connection from the pool and holds it until the
// session is closed, so transactions and cursors stay on one backend.
func (d *Driver) Session(ctx context.Context) (database.SessionCloser, error) {
	if d.pool == nil {
		return nil, database.ErrNotConnected
	}

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}

	s := newSession(conn, d.log, d.forget)

	d.mu.Lock()
	d.sessions[s] = struct{}{}
	d.mu.Unlock()

	return s, nil
}

// DatabaseName returns the name of the connected database.
func (d *Driver) DatabaseName() string {
	return d.dbName
}

func (d *Driver) forget(s *Session) {
	d.mu.Lock()
	delete(d.sessions, s)
	d.mu.Unlock()
}

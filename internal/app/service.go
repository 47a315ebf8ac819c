package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/joacominatel/pgstream/internal/config"
	"github.com/joacominatel/pgstream/internal/database"
)

// Service coordinates application-level operations between the front ends
// and the database. It keeps one session and at most one open stream, and
// is safe for concurrent use: operations on the session run one at a time.
type Service struct {
	driver database.Driver
	log    *logrus.Entry

	// mu serializes every use of the session and the stream.
	mu      sync.Mutex
	session database.SessionCloser
	stream  *database.Cursor

	// ops is cancelled by Disconnect to interrupt running operations.
	opsMu   sync.Mutex
	ops     context.Context
	stopOps context.CancelFunc
}

// NewService creates a new application service.
func NewService(driver database.Driver) *Service {
	ops, stop := context.WithCancel(context.Background())
	return &Service{
		driver:  driver,
		log:     logrus.WithField("component", "service"),
		ops:     ops,
		stopOps: stop,
	}
}

// ResolveDSN picks the DSN to connect with: an explicit DSN wins, then the
// named saved connection, then the default saved connection.
func ResolveDSN(cfg *config.Config, dsn, name string) (string, error) {
	if dsn != "" {
		return dsn, nil
	}
	if name != "" {
		c, ok := cfg.Find(name)
		if !ok {
			return "", &ErrConfig{Cause: fmt.Errorf("no saved connection named %q", name)}
		}
		return c.DSN(), nil
	}
	if c, ok := cfg.DefaultConnection(); ok {
		return c.DSN(), nil
	}
	return "", &ErrConfig{Cause: errors.New("no DSN given and no saved connections")}
}

// lock takes the session lock and derives from ctx a context that
// Disconnect cancels. The returned func releases both.
func (s *Service) lock(ctx context.Context) (context.Context, func()) {
	s.opsMu.Lock()
	ops := s.ops
	s.opsMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ops, cancel)

	s.mu.Lock()
	return ctx, func() {
		s.mu.Unlock()
		stop()
		cancel()
	}
}

// Connect establishes a database connection and reserves a session.
func (s *Service) Connect(ctx context.Context, dsn string) error {
	ctx, unlock := s.lock(ctx)
	defer unlock()

	if err := s.driver.Connect(ctx, dsn); err != nil {
		return &database.ErrConnection{Cause: err}
	}

	session, err := s.driver.Session(ctx)
	if err != nil {
		_ = s.driver.Close()
		return &database.ErrConnection{Cause: err}
	}
	s.session = session
	return nil
}

// Disconnect closes the stream, the session and the pool. A running
// operation is cancelled and Disconnect waits for it to return before
// releasing anything.
func (s *Service) Disconnect() error {
	s.opsMu.Lock()
	s.stopOps()
	s.ops, s.stopOps = context.WithCancel(context.Background())
	s.opsMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	s.closeStream(ctx)
	if s.session != nil {
		_ = s.session.Close(ctx)
		s.session = nil
	}
	return s.driver.Close()
}

// Connected reports whether a live session is held.
func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected()
}

func (s *Service) connected() bool {
	return s.session != nil && s.session.Alive()
}

// Session returns the live session. Callers using it directly must not
// share the service with other goroutines meanwhile.
func (s *Service) Session() (database.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected() {
		return nil, database.ErrNotConnected
	}
	return s.session, nil
}

// ExecuteQuery runs a statement eagerly and returns the whole result. Any
// open stream is closed first.
func (s *Service) ExecuteQuery(ctx context.Context, query string) (*database.QueryResult, error) {
	ctx, unlock := s.lock(ctx)
	defer unlock()

	if !s.connected() {
		return nil, database.ErrNotConnected
	}
	s.closeStream(ctx)
	return database.Execute(ctx, s.session, query)
}

// OpenStream opens a cursor over query. Any stream still open on the
// session is closed first.
func (s *Service) OpenStream(ctx context.Context, query string, batchSize int) (*database.Cursor, error) {
	ctx, unlock := s.lock(ctx)
	defer unlock()

	if !s.connected() {
		return nil, database.ErrNotConnected
	}
	s.closeStream(ctx)

	cursor, err := database.OpenCursor(ctx, s.session, query, batchSize, database.WithLogger(s.log))
	if err != nil {
		return nil, err
	}
	s.stream = cursor
	return cursor, nil
}

// NextBatch fetches the next batch of the open stream and hands the cursor
// to snapshot while the session is still held. A stream that fails or is
// exhausted is closed afterwards, so the transaction it owns ends. The
// returned cursor reports Closed in that case.
func (s *Service) NextBatch(ctx context.Context, snapshot func(*database.Cursor)) (*database.Cursor, error) {
	ctx, unlock := s.lock(ctx)
	defer unlock()

	c := s.stream
	if c == nil {
		return nil, ErrNoStream
	}

	if _, err := c.NextBatch(ctx); err != nil {
		s.closeStream(context.WithoutCancel(ctx))
		return c, err
	}

	if snapshot != nil {
		snapshot(c)
	}
	if c.Finished() {
		s.closeStream(context.WithoutCancel(ctx))
	}
	return c, nil
}

// Stream returns the open stream, if any.
func (s *Service) Stream() *database.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// CloseStream closes the open stream, if any.
func (s *Service) CloseStream(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeStream(ctx)
}

func (s *Service) closeStream(ctx context.Context) {
	if s.stream == nil {
		return
	}
	_ = s.stream.Close(ctx)
	s.stream = nil
}

// DatabaseName returns the current database name.
func (s *Service) DatabaseName() string {
	return s.driver.DatabaseName()
}

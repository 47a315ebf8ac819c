package database

import "context"

// Session is a single live connection to the server. It is not safe for
// concurrent use; callers serialize access.
type Session interface {
	// Begin starts a transaction. It returns ErrTransactionActive when one
	// is already open on the session.
	Begin(ctx context.Context) error

	// Commit commits the current transaction.
	Commit(ctx context.Context) error

	// Execute runs a statement that returns no rows and reports the number
	// of rows it affected.
	Execute(ctx context.Context, sql string) (int64, error)

	// Query runs a statement and returns every row it produced with the
	// column descriptions.
	Query(ctx context.Context, sql string) ([]Row, []Column, error)

	// Prepare describes a statement without running it.
	Prepare(ctx context.Context, sql string) ([]Column, error)

	// Alive reports whether the session can still reach the server.
	Alive() bool
}

// Disconnecter is notified when the session it depends on goes away.
type Disconnecter interface {
	MarkDisconnected()
}

// Watcher is implemented by sessions that notify dependents when closed.
// The returned func unregisters d.
type Watcher interface {
	Watch(d Disconnecter) (release func())
}

// SessionCloser is a Session that owns its connection.
type SessionCloser interface {
	Session
	Close(ctx context.Context) error
}

// Driver defines the interface for establishing sessions.
type Driver interface {
	// Connect establishes a connection pool to the database.
	Connect(ctx context.Context, dsn string) error

	// Close closes the pool. Sessions still open are disconnected.
	Close() error

	// Ping checks if the connection is alive.
	Ping(ctx context.Context) error

	// Session reserves one connection for exclusive use.
	Session(ctx context.Context) (SessionCloser, error)

	// DatabaseName returns the name of the connected database.
	DatabaseName() string
}

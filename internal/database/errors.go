package database

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an operation needs a live session.
var ErrNotConnected = errors.New("not connected to PostgreSQL server")

// ErrTransactionActive is returned by Session.Begin when the session is
// already inside a transaction.
var ErrTransactionActive = errors.New("transaction already in progress")

// ErrConnection represents a failure to establish a session.
type ErrConnection struct {
	Cause error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("connection failed: %v", e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}

// ErrQuery represents a statement the server rejected, including cursor
// declaration, probing and fetching.
type ErrQuery struct {
	Query string
	Cause error
}

func (e *ErrQuery) Error() string {
	return fmt.Sprintf("query failed: %v", e.Cause)
}

func (e *ErrQuery) Unwrap() error {
	return e.Cause
}

// ErrInvalidParameter represents malformed caller input.
type ErrInvalidParameter struct {
	Name   string
	Reason string
}

func (e *ErrInvalidParameter) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}

package server

import (
	"errors"
	"fmt"
)

var (
	// ErrSlowConsumer is reported when a session's send buffer is full.
	ErrSlowConsumer = errors.New("server: slow consumer")

	// ErrSessionClosed is returned when sending on a closed session.
	ErrSessionClosed = errors.New("server: session closed")

	// ErrServerClosed is returned by ListenAndServe after Shutdown.
	ErrServerClosed = errors.New("server: closed")
)

// SessionError wraps an error with session context.
type SessionError struct {
	SessionID string
	Op        string // Operation that failed
	Err       error  // Underlying error
}

// Error returns the error message with session context.
func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}

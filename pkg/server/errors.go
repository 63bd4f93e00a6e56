package server

import "errors"

// Sentinel errors for common session and server error conditions.
var (
	// ErrSessionClosed is returned when an operation is attempted on a closed session.
	ErrSessionClosed = errors.New("server: session closed")

	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("server: session not found")

	// ErrMaxSessionsReached is returned when the maximum number of sessions is reached.
	ErrMaxSessionsReached = errors.New("server: max sessions reached")

	// ErrNoConnection is returned when attempting to send on a detached session.
	ErrNoConnection = errors.New("server: no connection")

	// ErrInvalidHandshake is returned when the opening hello is malformed.
	ErrInvalidHandshake = errors.New("server: invalid handshake")
)

package realtime

import "errors"

var (
	// ErrUnknownConnection means an operation referenced a connection id the
	// dispatcher is not tracking (already closed or never registered).
	ErrUnknownConnection = errors.New("realtime: unknown connection")

	// ErrAlreadyAuthenticated means a bind was attempted on a connection that
	// already carries an identity. Re-binding is always rejected; a client
	// wanting a new identity must reconnect.
	ErrAlreadyAuthenticated = errors.New("realtime: connection already authenticated")

	// ErrAuthGraceExpired is the close reason for connections that never
	// completed the authenticate handshake in time.
	ErrAuthGraceExpired = errors.New("realtime: authentication grace period expired")

	// ErrSessionSuperseded is the close reason for a connection whose session
	// was re-bound by a newer connection.
	ErrSessionSuperseded = errors.New("realtime: session superseded by newer connection")

	// ErrSessionInvalidated is the close reason for a forced teardown.
	ErrSessionInvalidated = errors.New("realtime: session invalidated")
)

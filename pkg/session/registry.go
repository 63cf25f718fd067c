// Package session defines the session registry: the authoritative record of
// active login sessions consulted by both the REST layer and the realtime
// layer. Revocation decisions are made here; forced connection teardown is a
// downstream effect handled by the realtime dispatcher.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidSession is returned by Validate when the (user, session) pair is
// unknown, expired or revoked.
var ErrInvalidSession = errors.New("session: invalid or unknown session")

// Session is one authenticated login instance (device/browser), distinct
// from the user account. AreaID is the owning user's area at lookup time.
type Session struct {
	ID        string
	UserID    string
	DeviceID  string
	AreaID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Registry is the lookup/create/revoke interface over persisted sessions.
type Registry interface {
	// Validate confirms the pair is live and returns the session snapshot,
	// including the user's current area. Returns ErrInvalidSession when the
	// pair is unknown, expired, revoked or mismatched.
	Validate(ctx context.Context, userID, sessionID string) (*Session, error)

	// Create persists a new session for the user/device with the given TTL.
	Create(ctx context.Context, userID, deviceID string, ttl time.Duration) (*Session, error)

	// Revoke marks a session invalid. Revoking an already-revoked or unknown
	// session is not an error.
	Revoke(ctx context.Context, sessionID string) error

	// ActiveForDevice returns the live session for a (user, device) pair, or
	// ErrInvalidSession when none exists. Used to enforce the single active
	// session per device rule at login.
	ActiveForDevice(ctx context.Context, userID, deviceID string) (*Session, error)
}

// Package realtime implements the server-side push channel: it authenticates
// WebSocket connections against the session registry, maintains the identity
// map from sessions, users and areas to live connections, fans out domain
// events, and forcibly invalidates superseded or revoked sessions.
package realtime

import (
	"strconv"
	"time"
)

// EventName identifies a domain event in the fixed catalog. Using a closed
// set of constants instead of free-form strings keeps producers honest.
type EventName string

const (
	EventDocumentCreated   EventName = "document:created"
	EventDocumentDerived   EventName = "document:derived"
	EventDocumentUpdated   EventName = "document:updated"
	EventDocumentAssigned  EventName = "document:assigned"
	EventDocumentFinalized EventName = "document:finalized"
	EventDocumentArchived  EventName = "document:archived"
	EventUserUpdated       EventName = "user:updated"
)

// Control message names exchanged with the client outside the domain catalog.
const (
	msgAuthenticate          = "authenticate"
	eventAuthenticated       = "authenticated"
	eventAuthenticationError = "authentication-failed"
	eventSessionInvalidated  = "session-invalidated"
	eventError               = "error"
)

// InvalidationReason explains a forced session teardown to the client.
type InvalidationReason string

const (
	// ReasonSuperseded means a newer connection or login took over the session.
	ReasonSuperseded InvalidationReason = "superseded"
	// ReasonRevoked means the session was revoked elsewhere (logout, admin).
	ReasonRevoked InvalidationReason = "revoked"
)

// Envelope is the immutable wire frame for one domain event. The dispatcher
// serializes it as-is and routes purely by the Target it is handed; it never
// derives targeting from the payload fields.
type Envelope struct {
	Event     EventName `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`

	// Document events.
	Document       any    `json:"document,omitempty"`
	FromAreaID     int64  `json:"fromAreaId,omitempty"`
	ToAreaID       int64  `json:"toAreaId,omitempty"`
	AssignedUserID string `json:"assignedUserId,omitempty"`

	// User events.
	UserID        string   `json:"userId,omitempty"`
	ChangedFields []string `json:"changedFields,omitempty"`
	User          any      `json:"user,omitempty"`
}

// NewEnvelope stamps a fresh envelope for the given event.
func NewEnvelope(event EventName) Envelope {
	return Envelope{Event: event, Timestamp: time.Now().UTC()}
}

type targetKind int

const (
	targetBroadcast targetKind = iota
	targetUser
	targetArea
)

// Target selects which authenticated connections receive an emitted event.
type Target struct {
	kind   targetKind
	userID string
	areaID int64
}

// Broadcast targets every authenticated connection.
func Broadcast() Target { return Target{kind: targetBroadcast} }

// ByUser targets every connection bound to the given user, across sessions.
func ByUser(userID string) Target { return Target{kind: targetUser, userID: userID} }

// ByArea targets every connection whose identity was bound to the given area.
func ByArea(areaID int64) Target { return Target{kind: targetArea, areaID: areaID} }

func (t Target) String() string {
	switch t.kind {
	case targetUser:
		return "user:" + t.userID
	case targetArea:
		return "area:" + strconv.FormatInt(t.areaID, 10)
	default:
		return "broadcast"
	}
}

package realtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/osk4114/GestionDocumentaria-sub001/pkg/logging"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/session"
)

type fakeRegistry struct {
	sessions map[string]*session.Session // keyed by session id
	err      error
}

func (f *fakeRegistry) Validate(_ context.Context, userID, sessionID string) (*session.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, session.ErrInvalidSession
	}
	return s, nil
}

func (f *fakeRegistry) Create(context.Context, string, string, time.Duration) (*session.Session, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRegistry) Revoke(context.Context, string) error { return nil }

func (f *fakeRegistry) ActiveForDevice(context.Context, string, string) (*session.Session, error) {
	return nil, session.ErrInvalidSession
}

func newTestAuthenticator(reg session.Registry) (*Authenticator, *Dispatcher) {
	d := newTestDispatcher()
	a := NewAuthenticator(logging.Discard(), reg, d, time.Second)
	return a, d
}

func authMessage(userID, sessionID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"authenticate","payload":{"userId":%q,"sessionId":%q}}`,
		userID, sessionID))
}

func TestAuthenticateSuccess(t *testing.T) {
	reg := &fakeRegistry{sessions: map[string]*session.Session{
		"session-10": {ID: "session-10", UserID: "user-1", AreaID: 5},
	}}
	a, d := newTestAuthenticator(reg)

	conn := newFakeConn()
	d.Register(conn)

	a.HandleMessage(context.Background(), conn.ID(), authMessage("user-1", "session-10"))

	frames := conn.frames(t)
	if len(frames) != 1 || frames[0].Event != "authenticated" {
		t.Fatalf("expected an authenticated ack, got %+v", frames)
	}

	ident, ok := d.Identity(conn.ID())
	if !ok {
		t.Fatal("connection was not bound")
	}
	if ident.UserID != "user-1" || ident.SessionID != "session-10" || ident.AreaID != 5 {
		t.Errorf("unexpected identity: %+v", ident)
	}
}

func TestAuthenticateInvalidSession(t *testing.T) {
	reg := &fakeRegistry{sessions: map[string]*session.Session{}}
	a, d := newTestAuthenticator(reg)

	conn := newFakeConn()
	d.Register(conn)

	a.HandleMessage(context.Background(), conn.ID(), authMessage("user-1", "stale"))

	frames := conn.frames(t)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Event != "authentication-failed" || frames[0].Reason != "invalid-session" {
		t.Errorf("unexpected frame: %+v", frames[0])
	}
	if _, ok := d.Identity(conn.ID()); ok {
		t.Error("rejected connection must not be bound")
	}
	if conn.isClosed() {
		t.Error("connection should remain open for a retry")
	}
}

func TestAuthenticateUserMismatch(t *testing.T) {
	reg := &fakeRegistry{sessions: map[string]*session.Session{
		"session-10": {ID: "session-10", UserID: "user-1", AreaID: 5},
	}}
	a, d := newTestAuthenticator(reg)

	conn := newFakeConn()
	d.Register(conn)

	a.HandleMessage(context.Background(), conn.ID(), authMessage("user-2", "session-10"))

	frames := conn.frames(t)
	if len(frames) != 1 || frames[0].Event != "authentication-failed" {
		t.Fatalf("expected authentication-failed, got %+v", frames)
	}
}

func TestAuthenticateFailsClosedOnRegistryError(t *testing.T) {
	reg := &fakeRegistry{err: errors.New("store unavailable")}
	a, d := newTestAuthenticator(reg)

	conn := newFakeConn()
	d.Register(conn)

	a.HandleMessage(context.Background(), conn.ID(), authMessage("user-1", "session-10"))

	frames := conn.frames(t)
	if len(frames) != 1 || frames[0].Event != "authentication-failed" {
		t.Fatalf("registry outage must reject, got %+v", frames)
	}
	if _, ok := d.Identity(conn.ID()); ok {
		t.Error("unverifiable session must never be bound")
	}
}

func TestAuthenticateMissingFields(t *testing.T) {
	reg := &fakeRegistry{sessions: map[string]*session.Session{}}
	a, d := newTestAuthenticator(reg)

	conn := newFakeConn()
	d.Register(conn)

	a.HandleMessage(context.Background(), conn.ID(), []byte(`{"event":"authenticate","payload":{}}`))

	frames := conn.frames(t)
	if len(frames) != 1 || frames[0].Event != "authentication-failed" {
		t.Fatalf("expected authentication-failed, got %+v", frames)
	}
}

func TestMalformedMessageIgnored(t *testing.T) {
	reg := &fakeRegistry{sessions: map[string]*session.Session{}}
	a, d := newTestAuthenticator(reg)

	conn := newFakeConn()
	d.Register(conn)

	a.HandleMessage(context.Background(), conn.ID(), []byte(`{{{not json`))

	if conn.sentCount() != 0 {
		t.Errorf("malformed input should be dropped silently, got %d frames", conn.sentCount())
	}
}

func TestDoubleAuthenticateRejected(t *testing.T) {
	reg := &fakeRegistry{sessions: map[string]*session.Session{
		"session-10": {ID: "session-10", UserID: "user-1", AreaID: 5},
		"session-11": {ID: "session-11", UserID: "user-1", AreaID: 5},
	}}
	a, d := newTestAuthenticator(reg)

	conn := newFakeConn()
	d.Register(conn)

	a.HandleMessage(context.Background(), conn.ID(), authMessage("user-1", "session-10"))
	a.HandleMessage(context.Background(), conn.ID(), authMessage("user-1", "session-11"))

	frames := conn.frames(t)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[1].Event != "error" || frames[1].Reason != "already-authenticated" {
		t.Errorf("expected already-authenticated error, got %+v", frames[1])
	}

	ident, _ := d.Identity(conn.ID())
	if ident.SessionID != "session-10" {
		t.Errorf("identity must not be rebound, got %+v", ident)
	}
}

func TestNonAuthenticateEventRejected(t *testing.T) {
	reg := &fakeRegistry{sessions: map[string]*session.Session{}}
	a, d := newTestAuthenticator(reg)

	conn := newFakeConn()
	d.Register(conn)

	a.HandleMessage(context.Background(), conn.ID(), []byte(`{"event":"subscribe","payload":{}}`))

	frames := conn.frames(t)
	if len(frames) != 1 || frames[0].Event != "error" || frames[0].Reason != "unsupported-event" {
		t.Fatalf("expected unsupported-event error, got %+v", frames)
	}
}

func TestSecondClientSupersedesFirstViaHandshake(t *testing.T) {
	reg := &fakeRegistry{sessions: map[string]*session.Session{
		"session-10": {ID: "session-10", UserID: "user-1", AreaID: 5},
	}}
	a, d := newTestAuthenticator(reg)

	connA := newFakeConn()
	d.Register(connA)
	a.HandleMessage(context.Background(), connA.ID(), authMessage("user-1", "session-10"))

	connB := newFakeConn()
	d.Register(connB)
	a.HandleMessage(context.Background(), connB.ID(), authMessage("user-1", "session-10"))

	if !connA.isClosed() {
		t.Error("first client must be closed when its session is re-bound")
	}
	if _, ok := d.Identity(connB.ID()); !ok {
		t.Error("second client must hold the binding")
	}

	d.Emit(NewEnvelope(EventDocumentCreated), ByUser("user-1"))
	if connB.sentCount() != 2 { // authenticated ack + event
		t.Errorf("expected second client to receive the event, got %d frames", connB.sentCount())
	}
}

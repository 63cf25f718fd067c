package users

import (
	"context"
	"errors"
	"testing"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/osk4114/GestionDocumentaria-sub001/pkg/logging"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/realtime"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/session"
)

type memUserRepo struct {
	users   map[string]*User
	saveErr error
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) Save(_ context.Context, u *User) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

type memRegistry struct {
	active  map[string]*session.Session // keyed by userID+"/"+deviceID
	revoked []string
}

func newMemRegistry() *memRegistry {
	return &memRegistry{active: map[string]*session.Session{}}
}

func (m *memRegistry) Validate(_ context.Context, userID, sessionID string) (*session.Session, error) {
	for _, s := range m.active {
		if s.ID == sessionID && s.UserID == userID {
			return s, nil
		}
	}
	return nil, session.ErrInvalidSession
}

func (m *memRegistry) Create(_ context.Context, userID, deviceID string, ttl time.Duration) (*session.Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	s := &session.Session{
		ID: id, UserID: userID, DeviceID: deviceID,
		CreatedAt: now, ExpiresAt: now.Add(ttl),
	}
	m.active[userID+"/"+deviceID] = s
	return s, nil
}

func (m *memRegistry) Revoke(_ context.Context, sessionID string) error {
	m.revoked = append(m.revoked, sessionID)
	for k, s := range m.active {
		if s.ID == sessionID {
			delete(m.active, k)
		}
	}
	return nil
}

func (m *memRegistry) ActiveForDevice(_ context.Context, userID, deviceID string) (*session.Session, error) {
	s, ok := m.active[userID+"/"+deviceID]
	if !ok {
		return nil, session.ErrInvalidSession
	}
	return s, nil
}

type captureEmitter struct {
	events  []realtime.Envelope
	targets []string
}

func (c *captureEmitter) Emit(env realtime.Envelope, target realtime.Target) {
	c.events = append(c.events, env)
	c.targets = append(c.targets, target.String())
}

type captureInvalidator struct {
	calls []struct {
		sessionID string
		reason    realtime.InvalidationReason
	}
}

func (c *captureInvalidator) Invalidate(sessionID string, reason realtime.InvalidationReason, _ string) {
	c.calls = append(c.calls, struct {
		sessionID string
		reason    realtime.InvalidationReason
	}{sessionID, reason})
}

func newTestService() (*Service, *memUserRepo, *memRegistry, *captureEmitter, *captureInvalidator) {
	repo := &memUserRepo{users: map[string]*User{
		"user-1": {ID: "user-1", AreaID: 5, Name: "Ana", Email: "ana@example.org", Role: "operador"},
	}}
	reg := newMemRegistry()
	em := &captureEmitter{}
	inv := &captureInvalidator{}
	svc := NewService(logging.Discard(), repo, reg, em, inv, time.Hour)
	return svc, repo, reg, em, inv
}

func TestLoginCreatesSession(t *testing.T) {
	svc, _, reg, _, inv := newTestService()

	sess, err := svc.Login(context.Background(), "user-1", "dev-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.UserID != "user-1" || sess.DeviceID != "dev-1" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if len(reg.revoked) != 0 || len(inv.calls) != 0 {
		t.Error("first login must not revoke or invalidate anything")
	}
}

func TestLoginSupersedesPriorDeviceSession(t *testing.T) {
	svc, _, reg, _, inv := newTestService()

	first, err := svc.Login(context.Background(), "user-1", "dev-1")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	second, err := svc.Login(context.Background(), "user-1", "dev-1")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("second login must mint a new session")
	}

	if len(reg.revoked) != 1 || reg.revoked[0] != first.ID {
		t.Errorf("expected first session revoked, got %v", reg.revoked)
	}
	if len(inv.calls) != 1 {
		t.Fatalf("expected 1 invalidation, got %d", len(inv.calls))
	}
	if inv.calls[0].sessionID != first.ID || inv.calls[0].reason != realtime.ReasonSuperseded {
		t.Errorf("unexpected invalidation: %+v", inv.calls[0])
	}
}

func TestLoginDifferentDevicesCoexist(t *testing.T) {
	svc, _, _, _, inv := newTestService()

	if _, err := svc.Login(context.Background(), "user-1", "dev-1"); err != nil {
		t.Fatalf("Login dev-1: %v", err)
	}
	if _, err := svc.Login(context.Background(), "user-1", "dev-2"); err != nil {
		t.Fatalf("Login dev-2: %v", err)
	}
	if len(inv.calls) != 0 {
		t.Error("sessions on different devices must not supersede each other")
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	if _, err := svc.Login(context.Background(), "ghost", "dev-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLogoutRevokesAndInvalidates(t *testing.T) {
	svc, _, reg, _, inv := newTestService()

	sess, err := svc.Login(context.Background(), "user-1", "dev-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(context.Background(), sess.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if len(reg.revoked) != 1 || reg.revoked[0] != sess.ID {
		t.Errorf("expected session revoked, got %v", reg.revoked)
	}
	if len(inv.calls) != 1 || inv.calls[0].reason != realtime.ReasonRevoked {
		t.Errorf("expected a revoked invalidation, got %+v", inv.calls)
	}
}

func TestUpdateEmitsChangedFields(t *testing.T) {
	svc, _, _, em, _ := newTestService()

	u, err := svc.Update(context.Background(), "user-1", UpdateInput{Name: "Ana Maria", AreaID: 7})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u.Name != "Ana Maria" || u.AreaID != 7 {
		t.Errorf("update not applied: %+v", u)
	}

	if len(em.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(em.events))
	}
	env := em.events[0]
	if env.Event != realtime.EventUserUpdated || env.UserID != "user-1" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if len(env.ChangedFields) != 2 {
		t.Errorf("changedFields = %v", env.ChangedFields)
	}
	if em.targets[0] != "user:user-1" {
		t.Errorf("target = %s, want user:user-1", em.targets[0])
	}
}

func TestUpdateNoChangesEmitsNothing(t *testing.T) {
	svc, _, _, em, _ := newTestService()

	if _, err := svc.Update(context.Background(), "user-1", UpdateInput{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(em.events) != 0 {
		t.Error("a no-op update must not emit")
	}
}

func TestUpdateEmitsNothingOnSaveFailure(t *testing.T) {
	svc, repo, _, em, _ := newTestService()
	repo.saveErr = errors.New("db down")

	if _, err := svc.Update(context.Background(), "user-1", UpdateInput{Name: "x"}); err == nil {
		t.Fatal("expected an error")
	}
	if len(em.events) != 0 {
		t.Error("no event may be emitted when the write fails")
	}
}

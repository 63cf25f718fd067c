package users

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/osk4114/GestionDocumentaria-sub001/pkg/realtime"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/session"
)

// Emitter and Invalidator are the two slivers of the dispatcher this service
// touches: pushing user snapshots and tearing down revoked sessions.
type Emitter interface {
	Emit(env realtime.Envelope, target realtime.Target)
}

type Invalidator interface {
	Invalidate(sessionID string, reason realtime.InvalidationReason, message string)
}

type Service struct {
	repo        Repository
	registry    session.Registry
	emitter     Emitter
	invalidator Invalidator
	sessionTTL  time.Duration
	logger      *slog.Logger
}

func NewService(logger *slog.Logger, repo Repository, registry session.Registry, emitter Emitter, invalidator Invalidator, sessionTTL time.Duration) *Service {
	return &Service{
		repo:        repo,
		registry:    registry,
		emitter:     emitter,
		invalidator: invalidator,
		sessionTTL:  sessionTTL,
		logger:      logger.With(slog.String("component", "users")),
	}
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

type UpdateInput struct {
	AreaID int64
	Name   string
	Email  string
	Role   string
}

// Update edits a user's profile and pushes the new snapshot to that user's
// live connections so open clients can refresh.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	if in.AreaID != 0 && in.AreaID != u.AreaID {
		u.AreaID = in.AreaID
		changed = append(changed, "areaId")
	}
	if in.Name != "" && in.Name != u.Name {
		u.Name = in.Name
		changed = append(changed, "name")
	}
	if in.Email != "" && in.Email != u.Email {
		u.Email = in.Email
		changed = append(changed, "email")
	}
	if in.Role != "" && in.Role != u.Role {
		u.Role = in.Role
		changed = append(changed, "role")
	}
	if len(changed) == 0 {
		return u, nil
	}

	u.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}

	env := realtime.NewEnvelope(realtime.EventUserUpdated)
	env.UserID = u.ID
	env.ChangedFields = changed
	env.User = u
	s.emitter.Emit(env, realtime.ByUser(u.ID))
	return u, nil
}

// Login opens a session for an already-verified identity on a given device.
// Any prior live session for the same (user, device) is revoked in the
// registry and its connection force-closed as superseded, keeping exactly one
// active session per device.
func (s *Service) Login(ctx context.Context, userID, deviceID string) (*session.Session, error) {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	prior, err := s.registry.ActiveForDevice(ctx, userID, deviceID)
	switch {
	case err == nil:
		if err := s.registry.Revoke(ctx, prior.ID); err != nil {
			return nil, err
		}
		s.invalidator.Invalidate(prior.ID, realtime.ReasonSuperseded,
			"se inició sesión en otro lugar con este dispositivo")
	case errors.Is(err, session.ErrInvalidSession):
		// no prior session, nothing to supersede
	default:
		return nil, err
	}

	sess, err := s.registry.Create(ctx, userID, deviceID, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session created",
		slog.String("userID", userID),
		slog.String("sessionID", sess.ID),
		slog.String("deviceID", deviceID))
	return sess, nil
}

// Logout revokes a session and tears down its live connection, if any.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.registry.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.invalidator.Invalidate(sessionID, realtime.ReasonRevoked, "la sesión fue cerrada")
	return nil
}

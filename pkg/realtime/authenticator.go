package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/osk4114/GestionDocumentaria-sub001/pkg/session"
)

// Authenticator handles inbound messages on unauthenticated and
// authenticated connections alike. Its only job is the authenticate
// handshake: everything else a client sends is rejected, since this channel
// is server-push only.
type Authenticator struct {
	registry   session.Registry
	dispatcher *Dispatcher

	// Upper bound on a single registry lookup so a slow store cannot stall
	// the connection's read loop indefinitely.
	registryTimeout time.Duration

	logger *slog.Logger
}

func NewAuthenticator(logger *slog.Logger, registry session.Registry, dispatcher *Dispatcher, registryTimeout time.Duration) *Authenticator {
	return &Authenticator{
		registry:        registry,
		dispatcher:      dispatcher,
		registryTimeout: registryTimeout,
		logger:          logger.With(slog.String("component", "authenticator")),
	}
}

// HandleMessage is wired as the transport's message handler.
func (a *Authenticator) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	if !gjson.ValidBytes(msg) {
		a.logger.Warn("discarding malformed message", slog.String("connID", connID.String()))
		return
	}
	event := gjson.GetBytes(msg, "event").String()

	if event != msgAuthenticate {
		a.rejectNonAuth(connID, event)
		return
	}

	if _, bound := a.dispatcher.Identity(connID); bound {
		// Re-authentication on a live binding is ambiguous (token refresh vs.
		// client bug); it is rejected outright rather than silently re-bound.
		a.logger.Warn("double authenticate rejected", slog.String("connID", connID.String()))
		a.sendControl(connID, controlFrame{
			Event:   eventError,
			Reason:  "already-authenticated",
			Message: "connection is already authenticated; reconnect to change identity",
		})
		return
	}

	userID := gjson.GetBytes(msg, "payload.userId").String()
	sessionID := gjson.GetBytes(msg, "payload.sessionId").String()
	if userID == "" || sessionID == "" {
		a.failAuthentication(connID, "authenticate requires userId and sessionId")
		return
	}

	lookupCtx := ctx
	if a.registryTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, a.registryTimeout)
		defer cancel()
	}

	sess, err := a.registry.Validate(lookupCtx, userID, sessionID)
	if err != nil {
		// Fail closed: a registry outage is indistinguishable from an
		// invalid session as far as the client is concerned.
		if !errors.Is(err, session.ErrInvalidSession) {
			a.logger.Error("session registry lookup failed, rejecting",
				slog.String("connID", connID.String()), slog.Any("error", err))
		}
		a.failAuthentication(connID, "session is not valid; log in again")
		return
	}

	err = a.dispatcher.Bind(connID, Identity{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		AreaID:    sess.AreaID,
	})
	if err != nil {
		a.logger.Warn("bind failed after successful validation",
			slog.String("connID", connID.String()), slog.Any("error", err))
		if errors.Is(err, ErrAlreadyAuthenticated) {
			a.sendControl(connID, controlFrame{
				Event:   eventError,
				Reason:  "already-authenticated",
				Message: "connection is already authenticated",
			})
		}
		return
	}

	a.sendControl(connID, controlFrame{Event: eventAuthenticated})
}

// rejectNonAuth answers anything that is not an authenticate message. The
// connection is left open; unauthenticated ones will be reaped by the grace
// timer if they never complete the handshake.
func (a *Authenticator) rejectNonAuth(connID uuid.UUID, event string) {
	a.logger.Warn("unexpected client message",
		slog.String("connID", connID.String()), slog.String("event", event))
	a.sendControl(connID, controlFrame{
		Event:   eventError,
		Reason:  "unsupported-event",
		Message: "this channel only accepts authenticate messages",
	})
}

// failAuthentication reports a rejected handshake. The connection stays open
// and unauthenticated so the client may retry until the grace timer fires.
func (a *Authenticator) failAuthentication(connID uuid.UUID, message string) {
	a.dispatcher.metrics.AuthenticationFailed()
	a.sendControl(connID, controlFrame{
		Event:   eventAuthenticationError,
		Reason:  "invalid-session",
		Message: message,
	})
}

func (a *Authenticator) sendControl(connID uuid.UUID, frame controlFrame) {
	conn, ok := a.dispatcher.Conn(connID)
	if !ok {
		return
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}

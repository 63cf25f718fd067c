package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conn is the slice of the transport layer the dispatcher needs. The concrete
// *transport.Connection satisfies it; tests substitute fakes. Send queues the
// message behind the connection's write pump; SendNow writes it synchronously
// and exists because Close does not drain the queue, so a frame that must
// precede teardown would otherwise be lost.
type Conn interface {
	ID() uuid.UUID
	Send(msg []byte) error
	SendNow(msg []byte) error
	Close(err error)
}

// Identity is the (user, session, area) tuple bound to a connection after a
// successful authenticate handshake. AreaID is a snapshot taken at bind time.
type Identity struct {
	UserID    string
	SessionID string
	AreaID    int64
}

// client is one tracked connection plus its binding state. All fields are
// guarded by the dispatcher mutex.
type client struct {
	conn       Conn
	identity   *Identity // nil until authenticated
	graceTimer *time.Timer
}

// Dispatcher owns the identity map and fans domain events out to the live
// connections matching a target. It is the only mutator of the map and is
// safe for concurrent use from connection callbacks and request handlers.
type Dispatcher struct {
	mu       sync.Mutex
	clients  map[uuid.UUID]*client
	sessions map[string]*client
	users    map[string]map[uuid.UUID]*client
	areas    map[int64]map[uuid.UUID]*client

	authGrace time.Duration
	logger    *slog.Logger
	metrics   Recorder
}

// NewDispatcher builds a dispatcher. authGrace bounds how long an
// unauthenticated connection may linger before being dropped; zero disables
// the timer. rec may be nil, in which case metrics are discarded.
func NewDispatcher(logger *slog.Logger, rec Recorder, authGrace time.Duration) *Dispatcher {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Dispatcher{
		clients:   make(map[uuid.UUID]*client),
		sessions:  make(map[string]*client),
		users:     make(map[string]map[uuid.UUID]*client),
		areas:     make(map[int64]map[uuid.UUID]*client),
		authGrace: authGrace,
		logger:    logger.With(slog.String("component", "dispatcher")),
		metrics:   rec,
	}
}

// Register starts tracking a freshly accepted, unauthenticated connection and
// arms the authentication grace timer.
func (d *Dispatcher) Register(conn Conn) {
	connID := conn.ID()

	d.mu.Lock()
	if _, exists := d.clients[connID]; exists {
		d.mu.Unlock()
		d.logger.Warn("connection already registered", slog.String("connID", connID.String()))
		return
	}
	c := &client{conn: conn}
	if d.authGrace > 0 {
		c.graceTimer = time.AfterFunc(d.authGrace, func() {
			d.dropUnauthenticated(connID)
		})
	}
	d.clients[connID] = c
	d.mu.Unlock()

	d.metrics.ConnectionRegistered()
	d.logger.Debug("connection registered", slog.String("connID", connID.String()))
}

// dropUnauthenticated closes a connection that never completed the
// authenticate handshake within the grace period.
func (d *Dispatcher) dropUnauthenticated(connID uuid.UUID) {
	d.mu.Lock()
	c, ok := d.clients[connID]
	if !ok || c.identity != nil {
		d.mu.Unlock()
		return
	}
	d.evictLocked(connID, c)
	d.mu.Unlock()

	d.logger.Info("dropping connection: authenticate grace period expired",
		slog.String("connID", connID.String()))
	c.conn.Close(ErrAuthGraceExpired)
	d.metrics.ConnectionClosed(false)
}

// Identity reports the binding of a connection, if any.
func (d *Dispatcher) Identity(connID uuid.UUID) (Identity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[connID]
	if !ok || c.identity == nil {
		return Identity{}, false
	}
	return *c.identity, true
}

// Conn returns the tracked transport for a connection id.
func (d *Dispatcher) Conn(connID uuid.UUID) (Conn, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[connID]
	if !ok {
		return nil, false
	}
	return c.conn, true
}

// Bind attaches an identity to a registered connection and indexes it by
// session, user and area. If another live connection is already bound to the
// same session it is superseded: told so, closed, and fully evicted before
// the new binding becomes visible.
func (d *Dispatcher) Bind(connID uuid.UUID, id Identity) error {
	d.mu.Lock()
	c, ok := d.clients[connID]
	if !ok {
		d.mu.Unlock()
		return ErrUnknownConnection
	}
	if c.identity != nil {
		d.mu.Unlock()
		return ErrAlreadyAuthenticated
	}

	var superseded Conn
	if old, exists := d.sessions[id.SessionID]; exists && old != c {
		d.evictLocked(old.conn.ID(), old)
		superseded = old.conn
	}

	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
	ident := id
	c.identity = &ident
	d.sessions[id.SessionID] = c
	if d.users[id.UserID] == nil {
		d.users[id.UserID] = make(map[uuid.UUID]*client)
	}
	d.users[id.UserID][connID] = c
	if d.areas[id.AreaID] == nil {
		d.areas[id.AreaID] = make(map[uuid.UUID]*client)
	}
	d.areas[id.AreaID][connID] = c
	d.mu.Unlock()

	if superseded != nil {
		d.sendInvalidation(superseded, ReasonSuperseded, "session re-authenticated from another connection")
		superseded.Close(ErrSessionSuperseded)
		d.metrics.ConnectionClosed(true)
		d.metrics.Invalidated(string(ReasonSuperseded))
	}

	d.metrics.ConnectionAuthenticated()
	d.logger.Info("connection bound",
		slog.String("connID", connID.String()),
		slog.String("userID", id.UserID),
		slog.String("sessionID", id.SessionID),
		slog.Int64("areaID", id.AreaID))
	return nil
}

// Unbind removes a connection from every index. Invoked on transport
// disconnect, voluntary or forced; calling it repeatedly is harmless.
func (d *Dispatcher) Unbind(connID uuid.UUID) {
	d.mu.Lock()
	c, ok := d.clients[connID]
	if !ok {
		d.mu.Unlock()
		return
	}
	wasAuthenticated := c.identity != nil
	d.evictLocked(connID, c)
	d.mu.Unlock()

	d.metrics.ConnectionClosed(wasAuthenticated)
	d.logger.Debug("connection unbound", slog.String("connID", connID.String()))
}

// evictLocked removes a client from all four indexes. Caller holds d.mu.
func (d *Dispatcher) evictLocked(connID uuid.UUID, c *client) {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
	delete(d.clients, connID)
	if c.identity == nil {
		return
	}
	if d.sessions[c.identity.SessionID] == c {
		delete(d.sessions, c.identity.SessionID)
	}
	if conns := d.users[c.identity.UserID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(d.users, c.identity.UserID)
		}
	}
	if conns := d.areas[c.identity.AreaID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(d.areas, c.identity.AreaID)
		}
	}
	c.identity = nil
}

// Emit serializes the envelope once and writes it to every authenticated
// connection matched by target. Delivery is at-most-once and best-effort: a
// failed write evicts the stale connection and is otherwise ignored. Emit
// never returns an error to the producer.
func (d *Dispatcher) Emit(env Envelope, target Target) {
	payload, err := json.Marshal(env)
	if err != nil {
		d.logger.Error("failed to marshal event envelope",
			slog.String("event", string(env.Event)), slog.Any("error", err))
		return
	}

	d.mu.Lock()
	conns := d.matchLocked(target)
	d.mu.Unlock()

	d.metrics.EventEmitted(env.Event)
	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			d.logger.Warn("dropping stale connection after failed delivery",
				slog.String("connID", conn.ID().String()),
				slog.String("event", string(env.Event)))
			d.metrics.DeliveryFailed()
			d.Unbind(conn.ID())
			conn.Close(err)
			continue
		}
		d.metrics.Delivered()
	}
	d.logger.Debug("event emitted",
		slog.String("event", string(env.Event)),
		slog.String("target", target.String()),
		slog.Int("recipients", len(conns)))
}

// matchLocked copies the connection set for a target out of the indexes so
// network writes happen outside the lock. Caller holds d.mu.
func (d *Dispatcher) matchLocked(target Target) []Conn {
	var conns []Conn
	switch target.kind {
	case targetUser:
		for _, c := range d.users[target.userID] {
			conns = append(conns, c.conn)
		}
	case targetArea:
		for _, c := range d.areas[target.areaID] {
			conns = append(conns, c.conn)
		}
	default:
		for _, c := range d.clients {
			if c.identity != nil {
				conns = append(conns, c.conn)
			}
		}
	}
	return conns
}

// Invalidate forcibly tears down the connection bound to a session: the
// client receives exactly one session-invalidated message, then the transport
// is closed and all index entries removed. A session with no live connection
// is a no-op.
func (d *Dispatcher) Invalidate(sessionID string, reason InvalidationReason, message string) {
	d.mu.Lock()
	c, ok := d.sessions[sessionID]
	if !ok {
		d.mu.Unlock()
		return
	}
	connID := c.conn.ID()
	d.evictLocked(connID, c)
	d.mu.Unlock()

	d.sendInvalidation(c.conn, reason, message)
	c.conn.Close(ErrSessionInvalidated)

	d.metrics.ConnectionClosed(true)
	d.metrics.Invalidated(string(reason))
	d.logger.Info("session invalidated",
		slog.String("sessionID", sessionID),
		slog.String("connID", connID.String()),
		slog.String("reason", string(reason)))
}

func (d *Dispatcher) sendInvalidation(conn Conn, reason InvalidationReason, message string) {
	frame, err := json.Marshal(controlFrame{
		Event:   eventSessionInvalidated,
		Reason:  string(reason),
		Message: message,
	})
	if err != nil {
		return
	}
	// Written synchronously: the caller closes the connection right after,
	// which would discard anything still sitting in the send queue. Best
	// effort beyond that; the peer may already be gone.
	_ = conn.SendNow(frame)
}

// Shutdown closes every tracked connection. Used during graceful shutdown
// after the HTTP listener has stopped accepting upgrades.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	conns := make([]Conn, 0, len(d.clients))
	for _, c := range d.clients {
		conns = append(conns, c.conn)
	}
	d.mu.Unlock()

	for _, conn := range conns {
		conn.Close(nil)
	}
}

// ConnectionCount reports how many connections are tracked, authenticated or
// not. Primarily for health reporting and tests.
func (d *Dispatcher) ConnectionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

// controlFrame is the wire shape of non-domain server messages.
type controlFrame struct {
	Event   string `json:"event"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

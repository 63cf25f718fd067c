// Package server wires the HTTP surface: the REST API, the WebSocket upgrade
// endpoint feeding the realtime dispatcher, metrics and health.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/osk4114/GestionDocumentaria-sub001/internal/areas"
	"github.com/osk4114/GestionDocumentaria-sub001/internal/documents"
	"github.com/osk4114/GestionDocumentaria-sub001/internal/metrics"
	"github.com/osk4114/GestionDocumentaria-sub001/internal/server/middleware"
	"github.com/osk4114/GestionDocumentaria-sub001/internal/users"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/config"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/realtime"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/session"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/transport"
)

// Deps carries the explicitly-constructed collaborators. The dispatcher is
// built once in main and shared by the transport layer and the command
// handlers; there are no ambient singletons.
type Deps struct {
	Registry      session.Registry
	Dispatcher    *realtime.Dispatcher
	Authenticator *realtime.Authenticator
	Documents     *documents.Handler
	Users         *users.Handler
	Areas         *areas.Handler
	Metrics       *metrics.Collector
}

type App struct {
	logger      *slog.Logger
	config      *config.Config
	deps        Deps
	wg          sync.WaitGroup
	http        *http.Server
	rateLimiter *middleware.RateLimiter

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, deps Deps) *App {
	app := &App{
		logger: logger,
		config: cfg,
		deps:   deps,
		ctx:    rootCtx,
	}

	app.rateLimiter = middleware.NewRateLimiter(
		cfg.Server.RateLimit.PerUserPerMinute,
		cfg.Server.RateLimit.Burst,
	)

	authMw := middleware.NewAuthMiddleware(
		logger, cfg.Server.Auth.JWTSecret, cfg.Server.Auth.CookieName,
		deps.Registry, deps.Dispatcher,
	)

	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		// Public surface: citizen intake, tracking, login.
		r.Group(func(r chi.Router) {
			deps.Documents.RegisterPublic(r)
			deps.Users.RegisterPublic(r)
		})
		// Staff surface.
		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Use(middleware.NewRateLimitMiddleware(logger, app.rateLimiter))
			deps.Documents.Register(r)
			deps.Users.Register(r)
			deps.Areas.Register(r)
		})
	})

	// The websocket endpoint authenticates in-band (authenticate message),
	// not at upgrade time.
	r.Get("/ws", app.upgradeHandler)
	r.Handle("/metrics", deps.Metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Metadata runs outermost so the logger and handlers below it can read
	// the request context it populates.
	handler := middleware.Chain(r,
		middleware.RequestMetadataMiddleware(),
		middleware.NewRecovery(logger),
		middleware.NewRequestLogger(logger),
	)

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: handler,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}
	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger
	if reqMeta != nil {
		connLogger = a.logger.With(slog.String("remoteAddr", reqMeta.IP))
	}

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{
			PingInterval: a.config.Transport.PingInterval,
			WriteTimeout: a.config.Transport.WriteTimeout,
		},
		connLogger,
	)
	conn.SetOnMessageHandler(a.deps.Authenticator.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		a.deps.Dispatcher.Unbind(id)
	})

	a.deps.Dispatcher.Register(conn)
	conn.Run()
	<-conn.Done()
}

// Shutdown stops accepting requests, then closes every live websocket
// connection and waits for their goroutines to drain.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.deps.Dispatcher.Shutdown()
	a.rateLimiter.Stop()
	a.wg.Wait()
	a.logger.Info("server shut down gracefully")
	return nil
}

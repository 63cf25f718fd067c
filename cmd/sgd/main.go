package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/osk4114/GestionDocumentaria-sub001/internal/areas"
	"github.com/osk4114/GestionDocumentaria-sub001/internal/database"
	"github.com/osk4114/GestionDocumentaria-sub001/internal/documents"
	"github.com/osk4114/GestionDocumentaria-sub001/internal/metrics"
	"github.com/osk4114/GestionDocumentaria-sub001/internal/server"
	"github.com/osk4114/GestionDocumentaria-sub001/internal/users"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/config"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/logging"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/realtime"
	"github.com/osk4114/GestionDocumentaria-sub001/pkg/session"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.URL, database.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("database unreachable", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	registry := session.NewPostgresRegistry(db)

	dispatcher := realtime.NewDispatcher(logger, collector, cfg.Realtime.AuthGracePeriod)
	authenticator := realtime.NewAuthenticator(logger, registry, dispatcher, cfg.Realtime.RegistryTimeout)

	docSvc := documents.NewService(logger, documents.NewPostgresRepository(db), dispatcher)
	userSvc := users.NewService(logger, users.NewPostgresRepository(db), registry,
		dispatcher, dispatcher, cfg.Realtime.SessionTTL)

	app := server.NewApp(logger, ctx, cfg, server.Deps{
		Registry:      registry,
		Dispatcher:    dispatcher,
		Authenticator: authenticator,
		Documents:     documents.NewHandler(logger, docSvc),
		Users:         users.NewHandler(logger, userSvc, cfg.Server.Auth.JWTSecret, cfg.Server.Auth.CookieName),
		Areas:         areas.NewHandler(logger, areas.NewPostgresRepository(db)),
		Metrics:       collector,
	})

	if err := app.Run(); err != nil {
		logger.Error("application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application shut down successfully")
}

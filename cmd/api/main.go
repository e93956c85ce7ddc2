package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/naosaki/naowatt-backend/api/routes"
	"github.com/naosaki/naowatt-backend/internal/accounts"
	"github.com/naosaki/naowatt-backend/internal/auth"
	"github.com/naosaki/naowatt-backend/internal/catalog"
	"github.com/naosaki/naowatt-backend/internal/invitations"
	"github.com/naosaki/naowatt-backend/internal/memberships"
	"github.com/naosaki/naowatt-backend/internal/organizations"
	"github.com/naosaki/naowatt-backend/internal/users"
	"github.com/naosaki/naowatt-backend/pkg/auth/session"
	"github.com/naosaki/naowatt-backend/pkg/config"
	"github.com/naosaki/naowatt-backend/pkg/db"
	"github.com/naosaki/naowatt-backend/pkg/logger"
	"github.com/naosaki/naowatt-backend/pkg/mailer"
	"github.com/naosaki/naowatt-backend/pkg/metrics"
	"github.com/naosaki/naowatt-backend/pkg/migrate"
	"github.com/naosaki/naowatt-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	var mail mailer.Mailer
	if cfg.Mailer.APIKey != "" {
		mail, err = mailer.NewClient(context.Background(), cfg.Mailer, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create mailer", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "mailer API key not set, using log-only mailer")
		mail = mailer.LogOnly{Logger: logg}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	invitationMetrics := metrics.NewInvitationMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	orgRepo := organizations.NewRepository(conn)
	invitationRepo := invitations.NewRepository(conn)
	catalogRepo := catalog.NewRepository(conn)

	membershipSvc := memberships.NewService(dbClient, userRepo, orgRepo, invitationMetrics, logg, cfg.Invitations)
	provisioner := accounts.NewProvisioner(dbClient, userRepo, orgRepo, membershipSvc, sessionManager, mail, logg, cfg.Password, cfg.Invitations)
	invitationSvc := invitations.NewService(dbClient, invitationRepo, userRepo, provisioner, mail, invitationMetrics, logg, cfg.Invitations, cfg.App.PortalURL)
	authSvc := auth.NewService(userRepo, sessionManager, logg, cfg.JWT)

	router := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		Sessions:      sessionManager,
		Database:      dbClient,
		Cache:         redisClient,
		AuthService:   authSvc,
		Invitations:   invitationSvc,
		Memberships:   membershipSvc,
		Organizations: organizations.NewService(orgRepo, userRepo),
		Catalog:       catalog.NewService(catalogRepo),
		Provisioner:   provisioner,
		UserRepo:      userRepo,
		OrgRepo:       orgRepo,
		Metrics:       httpMetrics,
		PromGatherer:  registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server stopped")
}

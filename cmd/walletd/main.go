package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel"

	"github.com/350ops/walleybranch/internal/auth"
	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/backend/graphstore"
	"github.com/350ops/walleybranch/internal/backend/memory"
	"github.com/350ops/walleybranch/internal/backend/postgrest"
	"github.com/350ops/walleybranch/internal/backend/sqlstore"
	"github.com/350ops/walleybranch/internal/config"
	"github.com/350ops/walleybranch/internal/events"
	"github.com/350ops/walleybranch/internal/graph"
	"github.com/350ops/walleybranch/internal/lifecycle"
	"github.com/350ops/walleybranch/internal/logging"
	"github.com/350ops/walleybranch/internal/obs"
	"github.com/350ops/walleybranch/internal/payments"
	"github.com/350ops/walleybranch/internal/server"
	"github.com/350ops/walleybranch/internal/session"
	"github.com/350ops/walleybranch/internal/store"
	"github.com/350ops/walleybranch/internal/views"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	if err := run(cfg, logger); err != nil {
		logger.Error("walletd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
		Environment: cfg.Tracing.Environment,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	persister, err := buildPersister(cfg.Session)
	if err != nil {
		return err
	}
	authClient := auth.New(cfg.Backend.URL, cfg.Backend.APIKey, persister, logger,
		auth.WithJWTSecret(cfg.Auth.JWTSecret),
		auth.WithRefreshSkew(cfg.Auth.RefreshSkew),
	)
	provider := session.NewProvider(authClient, logger)

	src, closeSrc, err := buildBackend(ctx, cfg, provider)
	if err != nil {
		return err
	}
	defer closeSrc()

	opts := []store.Option{
		store.WithTracer(otel.Tracer("github.com/350ops/walleybranch/internal/store")),
		store.WithOpeningBalance(cfg.Sync.OpeningBalance),
	}
	if cfg.Events.URL != "" {
		pub, err := events.NewPublisher(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			return fmt.Errorf("connect events broker: %w", err)
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Warn("closing events publisher failed", "error", err)
			}
		}()
		opts = append(opts, store.WithPublisher(pub))
	}
	st := store.New(src, logger, opts...)

	loc, err := cfg.Sync.Location()
	if err != nil {
		return err
	}
	monitor := lifecycle.NewMonitor()

	var (
		sheets       payments.SheetProvider
		sheetHandler http.Handler
	)
	switch {
	case cfg.Payments.SecretKey != "":
		stripeSheets := payments.NewStripeSheets(client.New(cfg.Payments.SecretKey, nil), cfg.Payments.PublishableKey)
		sheets = stripeSheets
		sheetHandler = payments.NewSheetHandler(stripeSheets, logger)
	case cfg.Payments.SheetURL != "":
		sheets = payments.NewSheetClient(cfg.Payments.SheetURL, cfg.Backend.APIKey, provider, nil)
	}

	deps := server.APIDependencies{
		Store:     st,
		Views:     views.NewMemo(loc, nil),
		Lifecycle: monitor,
		Auth:      authClient,
		Sessions:  authClient,
	}
	if sheets != nil {
		deps.TopUp = payments.NewTopUp(sheets, st)
	}

	var health server.HealthService
	if p, ok := src.(server.Pinger); ok {
		health = server.BackendHealthService{Backend: p}
	}
	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           health,
		API:              server.NewAPIHandlers(logger, deps),
		PaymentSheet:     sheetHandler,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowCredentials: cfg.HTTP.AllowCredentials,
	})
	srv := server.New(logger, cfg.HTTP, router)

	sessions, unsubscribeSessions := provider.Subscribe()
	defer unsubscribeSessions()
	transitions, unsubscribeTransitions := monitor.Subscribe()
	defer unsubscribeTransitions()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- provider.Run(runCtx) }()
	go func() { errCh <- st.Run(runCtx, sessions, transitions) }()
	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Run(runCtx) }()

	var (
		runErr        error
		serverStopped bool
	)
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	case err := <-serverDone:
		serverStopped = true
		runErr = err
	}
	cancel()

	if !serverStopped {
		if err := <-serverDone; err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
	return runErr
}

func buildPersister(cfg config.SessionConfig) (session.Persister, error) {
	if cfg.Store != "redis" {
		return &session.MemoryPersister{}, nil
	}
	sealer, err := session.NewSealer([]byte(cfg.Secret), cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("session sealer: %w", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return session.NewRedisPersister(rdb, cfg.Key, sealer, cfg.TTL), nil
}

func buildBackend(ctx context.Context, cfg config.Config, tokens postgrest.TokenSource) (backend.Source, func(), error) {
	noop := func() {}
	switch cfg.Backend.Driver {
	case config.DriverREST:
		return postgrest.New(cfg.Backend.URL, cfg.Backend.APIKey, tokens), noop, nil
	case config.DriverPostgres, config.DriverSQLite:
		db, err := sqlstore.Open(cfg.Backend.Driver, cfg.Backend.DSN)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		s := sqlstore.New(db)
		if cfg.Backend.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				closeDB()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return s, closeDB, nil
	case config.DriverNeo4j:
		graphClient, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			return nil, nil, err
		}
		return graphstore.New(graphClient), func() { _ = graphClient.Close(context.Background()) }, nil
	case config.DriverMemory:
		return memory.New(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/backend/graphstore"
	"github.com/350ops/walleybranch/internal/backend/postgrest"
	"github.com/350ops/walleybranch/internal/backend/sqlstore"
	"github.com/350ops/walleybranch/internal/config"
	"github.com/350ops/walleybranch/internal/graph"
	"github.com/350ops/walleybranch/internal/logging"
	"github.com/350ops/walleybranch/internal/seed"
)

func main() {
	defaults := seed.DefaultConfig()
	var (
		userIDs       = flag.String("users", "", "comma-separated user ids to seed")
		cards         = flag.Int("cards", defaults.Cards, "cards per user")
		recipients    = flag.Int("recipients", defaults.Recipients, "recipients per user")
		transactions  = flag.Int("transactions", defaults.Transactions, "transactions per user")
		notifications = flag.Int("notifications", defaults.Notifications, "notifications per user")
		months        = flag.Int("months", defaults.Months, "months of history to spread transactions over")
		income        = flag.Float64("income-chance", defaults.IncomeChance, "probability that a transaction is income")
		opening       = flag.String("opening-balance", defaults.OpeningBalance.StringFixed(2), "opening balance before transactions")
		seedValue     = flag.Int64("seed", defaults.Seed, "random seed for deterministic generation")
		input         = flag.String("input", "", "load datasets from this JSON file instead of generating")
		output        = flag.String("output", "", "write datasets to this JSON file instead of loading them")
		workers       = flag.Int("workers", 4, "number of concurrent workers per stage")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging).With("component", "seed")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var datasets []seed.Dataset
	if *input != "" {
		datasets, err = seed.ReadDataset(*input)
		if err != nil {
			logger.Error("failed to read datasets", "error", err, "path", *input)
			os.Exit(1)
		}
	} else {
		balance, err := decimal.NewFromString(*opening)
		if err != nil {
			logger.Error("invalid opening balance", "value", *opening, "error", err)
			os.Exit(1)
		}
		gen := seed.New(seed.Config{
			Cards:          *cards,
			Recipients:     *recipients,
			Transactions:   *transactions,
			Notifications:  *notifications,
			Months:         *months,
			IncomeChance:   clampProbability(*income),
			OpeningBalance: balance,
			Seed:           *seedValue,
		})
		ids := splitIDs(*userIDs)
		if len(ids) == 0 {
			logger.Error("at least one user id is required", "flag", "-users")
			os.Exit(1)
		}
		now := time.Now()
		for _, id := range ids {
			ds, err := gen.Generate(ctx, id, now)
			if err != nil {
				logger.Error("generation failed", "userId", id, "error", err)
				os.Exit(1)
			}
			datasets = append(datasets, ds)
		}
	}

	if *output != "" {
		if err := seed.WriteDataset(datasets, *output); err != nil {
			logger.Error("failed to write datasets", "error", err)
			os.Exit(1)
		}
		logger.Info("datasets written", "users", len(datasets), "path", *output)
		return
	}

	src, closeSrc, err := buildBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to open backend", "driver", cfg.Backend.Driver, "error", err)
		os.Exit(1)
	}
	defer closeSrc()

	loader := seed.NewLoader(src, logger, *workers)
	start := time.Now()
	var failed bool
	for _, ds := range datasets {
		res, err := loader.Load(ctx, ds)
		if err != nil {
			failed = true
			logger.Error("seeding failed", "userId", ds.UserID, "error", err)
			if errors.Is(err, context.Canceled) {
				break
			}
			continue
		}
		logger.Info("seeded wallet",
			"userId", ds.UserID,
			"cards", res.Cards,
			"recipients", res.Recipients,
			"transactions", res.Transactions,
			"notifications", res.Notifications,
		)
	}
	logger.Info("seeding complete", "users", len(datasets), "duration", time.Since(start).String())
	if failed {
		os.Exit(1)
	}
}

// buildBackend opens the configured backend. The REST driver must be given a
// service-role key since no user is signed in.
func buildBackend(ctx context.Context, logger *slog.Logger, cfg config.Config) (backend.Source, func(), error) {
	switch cfg.Backend.Driver {
	case config.DriverREST:
		return postgrest.New(cfg.Backend.URL, cfg.Backend.APIKey, nil), func() {}, nil
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
		if err := s.Migrate(ctx); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return s, closeDB, nil
	case config.DriverNeo4j:
		client, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := client.VerifyConnectivity(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, nil, err
		}
		logger.Info("connected to graph", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
		return graphstore.New(client), func() { _ = client.Close(context.Background()) }, nil
	default:
		return nil, nil, fmt.Errorf("driver %q cannot be seeded", cfg.Backend.Driver)
	}
}

func splitIDs(csv string) []string {
	var ids []string
	for _, part := range strings.Split(csv, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

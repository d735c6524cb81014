package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stripe/stripe-go/v76/client"

	"github.com/350ops/walleybranch/internal/config"
	"github.com/350ops/walleybranch/internal/logging"
	"github.com/350ops/walleybranch/internal/payments"
	"github.com/350ops/walleybranch/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "paymentsheet")
	if cfg.Payments.SecretKey == "" {
		logger.Error("STRIPE_SECRET_KEY is required")
		os.Exit(1)
	}

	sheets := payments.NewStripeSheets(client.New(cfg.Payments.SecretKey, nil), cfg.Payments.PublishableKey)
	router := server.NewRouter(logger, server.RouterDependencies{
		PaymentSheet:     payments.NewSheetHandler(sheets, logger),
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowCredentials: cfg.HTTP.AllowCredentials,
	})
	srv := server.New(logger, cfg.HTTP, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

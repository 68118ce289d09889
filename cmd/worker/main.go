package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/tradeconnect/tradeconnect/internal"
	"github.com/tradeconnect/tradeconnect/internal/fel"
	"github.com/tradeconnect/tradeconnect/internal/jobs"
	"github.com/tradeconnect/tradeconnect/internal/notification"
	"github.com/tradeconnect/tradeconnect/internal/payment"
	"github.com/tradeconnect/tradeconnect/internal/repository"
	"github.com/tradeconnect/tradeconnect/internal/service"
)

// The worker runs the background sweeps: expiring overdue reservation
// holds and flagging or purging stale carts. It shares the service layer
// with the API server so both paths apply identical lifecycle rules.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	repo := repository.New(pool)

	var notifier notification.Dispatcher
	if cfg.NatsUrl != "" {
		nc, err := nats.Connect(cfg.NatsUrl)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer nc.Drain()
		notifier = notification.NewNatsDispatcher(nc)
	} else {
		notifier = notification.NewMockDispatcher()
		logger.Warn("NATS_URL not set, notifications are discarded")
	}

	cartService := service.NewCartService(repo, logger)
	registrationService := service.NewRegistrationService(
		repo,
		service.NewCapacityChecker(repo),
		payment.NewStripeProvider(cfg.Stripe.SecretKey),
		fel.NewClient(cfg.Fel.BaseURL, cfg.Fel.APIKey, cfg.Fel.IssuerNIT),
		notifier,
		logger,
	)

	sweeper := jobs.NewSweeper(registrationService, cartService, jobs.Config{
		ReservationInterval: cfg.Sweep.ReservationInterval,
		CartInterval:        cfg.Sweep.CartInterval,
	}, logger)

	logger.Info("worker started",
		"reservation_interval", cfg.Sweep.ReservationInterval,
		"cart_interval", cfg.Sweep.CartInterval,
	)
	if err := sweeper.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("sweeper failed: %w", err)
	}
	logger.Info("worker stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"

	"github.com/tradeconnect/tradeconnect/internal"
	"github.com/tradeconnect/tradeconnect/internal/fel"
	"github.com/tradeconnect/tradeconnect/internal/handler"
	"github.com/tradeconnect/tradeconnect/internal/middleware"
	"github.com/tradeconnect/tradeconnect/internal/notification"
	"github.com/tradeconnect/tradeconnect/internal/payment"
	"github.com/tradeconnect/tradeconnect/internal/repository"
	"github.com/tradeconnect/tradeconnect/internal/router"
	"github.com/tradeconnect/tradeconnect/internal/service"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	repo := repository.New(pool)

	// Notification bus; falls back to a no-op recorder when NATS is not
	// configured so notifications never block local development.
	var notifier notification.Dispatcher
	if cfg.NatsUrl != "" {
		nc, err := nats.Connect(cfg.NatsUrl)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer nc.Drain()
		notifier = notification.NewNatsDispatcher(nc)
		logger.Info("NATS notification dispatcher initialized")
	} else {
		notifier = notification.NewMockDispatcher()
		logger.Warn("NATS_URL not set, notifications are discarded")
	}

	gateway := payment.NewStripeProvider(cfg.Stripe.SecretKey)
	certifier := fel.NewClient(cfg.Fel.BaseURL, cfg.Fel.APIKey, cfg.Fel.IssuerNIT)

	cartService := service.NewCartService(repo, logger)
	registrationService := service.NewRegistrationService(
		repo,
		service.NewCapacityChecker(repo),
		gateway,
		certifier,
		notifier,
		logger,
	)

	// HTTP surface
	metrics := middleware.NewMetrics("tradeconnect")
	r := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		metrics.Middleware,
	)

	handler.NewCartHandler(cartService).RegisterRoutes(r)
	handler.NewRegistrationHandler(registrationService).RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := pool.Ping(req.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle(http.MethodGet, "/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

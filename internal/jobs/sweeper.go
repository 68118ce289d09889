// Package jobs runs the periodic lifecycle sweeps: expiring lapsed
// reservation holds and flagging or deleting stale carts. Sweeps are
// idempotent, so overlapping runs or a second worker instance are safe.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Config holds sweeper configuration.
type Config struct {
	// ReservationInterval is how often lapsed holds are swept.
	ReservationInterval time.Duration

	// CartInterval is how often carts are swept for abandonment and
	// TTL expiry.
	CartInterval time.Duration

	// JobTimeout bounds a single sweep run.
	JobTimeout time.Duration
}

// RegistrationSweeper is the registration-side sweep dependency.
type RegistrationSweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// CartSweeper is the cart-side sweep dependency.
type CartSweeper interface {
	SweepAbandoned(ctx context.Context) (int64, int64, error)
}

// Sweeper drives both sweeps on independent tickers.
type Sweeper struct {
	config        Config
	registrations RegistrationSweeper
	carts         CartSweeper
	logger        *slog.Logger
}

// NewSweeper creates a sweeper with defaulted intervals.
func NewSweeper(registrations RegistrationSweeper, carts CartSweeper, config Config, logger *slog.Logger) *Sweeper {
	if config.ReservationInterval == 0 {
		config.ReservationInterval = 30 * time.Second
	}
	if config.CartInterval == 0 {
		config.CartInterval = 5 * time.Minute
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = time.Minute
	}
	return &Sweeper{
		config:        config,
		registrations: registrations,
		carts:         carts,
		logger:        logger.With(slog.String("component", "sweeper")),
	}
}

// Start runs the sweeps until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("sweeper starting",
		slog.Duration("reservation_interval", s.config.ReservationInterval),
		slog.Duration("cart_interval", s.config.CartInterval))

	reservationTicker := time.NewTicker(s.config.ReservationInterval)
	defer reservationTicker.Stop()
	cartTicker := time.NewTicker(s.config.CartInterval)
	defer cartTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper shutting down")
			return ctx.Err()

		case <-reservationTicker.C:
			s.run(ctx, "reservation sweep", func(jobCtx context.Context) error {
				_, err := s.registrations.ExpireOverdue(jobCtx)
				return err
			})

		case <-cartTicker.C:
			s.run(ctx, "cart sweep", func(jobCtx context.Context) error {
				_, _, err := s.carts.SweepAbandoned(jobCtx)
				return err
			})
		}
	}
}

// run executes one sweep under the per-job timeout.
func (s *Sweeper) run(ctx context.Context, name string, job func(context.Context) error) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	if err := job(jobCtx); err != nil {
		s.logger.Error(name+" failed", slog.String("error", err.Error()))
	}
}

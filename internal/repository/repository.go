// Package repository implements PostgreSQL persistence for the pricing
// and reservation core. Entities are plain domain structs mapped by
// explicit column lists; there is no ORM and no implicit soft-delete
// filtering. Queries that skip expired rows say so in their SQL.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

// Repository-level sentinels. Services translate these to domain errors.
var (
	ErrNotFound = pgx.ErrNoRows

	// ErrUsageExhausted means the conditional usage-ledger increment
	// matched zero rows: the cap was reached, possibly by a concurrent
	// claim.
	ErrUsageExhausted = errors.New("promo code usage exhausted")

	// ErrUserLimitReached means the per-user claim count is at the cap.
	ErrUserLimitReached = errors.New("promo code per-user limit reached")

	// ErrStaleStatus means a compare-and-set status update matched zero
	// rows because the row was no longer in the expected status.
	ErrStaleStatus = errors.New("registration status changed concurrently")
)

// DB is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the persistence interface the services depend on. Tests
// substitute a function-field mock.
type Store interface {
	// WithTx runs fn inside a transaction; the Store passed to fn routes
	// every call through that transaction. Rolls back on error.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Events and discount rules
	GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error)
	ListVolumeDiscounts(ctx context.Context, eventID uuid.UUID) ([]domain.VolumeDiscount, error)
	ListEarlyBirdDiscounts(ctx context.Context, eventID uuid.UUID) ([]domain.EarlyBirdDiscount, error)
	CountHeldRegistrations(ctx context.Context, eventID uuid.UUID) (int, error)

	// Carts
	CreateCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	GetCartByID(ctx context.Context, id uuid.UUID, includeExpired bool) (domain.Cart, error)
	GetCartBySession(ctx context.Context, sessionID string, includeExpired bool) (domain.Cart, error)
	LockCart(ctx context.Context, id uuid.UUID) error
	UpsertCartItem(ctx context.Context, item domain.CartItem) (domain.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, cartID, eventID uuid.UUID, quantity int) error
	RemoveCartItem(ctx context.Context, cartID, eventID uuid.UUID) error
	SetCartPromoCode(ctx context.Context, cartID uuid.UUID, code *string) error
	SaveCartTotals(ctx context.Context, cart domain.Cart) error
	MarkAbandonedCarts(ctx context.Context, inactiveSince time.Time) (int64, error)
	DeleteExpiredCarts(ctx context.Context, now time.Time) (int64, error)

	// Promo codes and usage ledger
	GetPromoCodeByCode(ctx context.Context, code string) (domain.PromoCode, error)
	CountUserClaims(ctx context.Context, promoCodeID uuid.UUID, userID uuid.UUID) (int, error)
	ClaimPromoCode(ctx context.Context, claim domain.PromoClaim, maxPerUser int) (domain.PromoClaim, error)
	ReleaseClaim(ctx context.Context, claimID uuid.UUID) error

	// Registrations
	CreateRegistration(ctx context.Context, reg domain.Registration) (domain.Registration, error)
	GetRegistration(ctx context.Context, id uuid.UUID) (domain.Registration, error)
	LockRegistration(ctx context.Context, id uuid.UUID) (domain.Registration, error)
	UpdateRegistrationStatus(ctx context.Context, id uuid.UUID, from, to domain.RegistrationStatus) error
	SetRegistrationPricing(ctx context.Context, id uuid.UUID, discountAmount, finalPrice domain.Money, promoClaimID *uuid.UUID) error
	SetRegistrationFelAuthorization(ctx context.Context, id uuid.UUID, authorization string) error
	ExpireOverdueRegistrations(ctx context.Context, now time.Time) ([]domain.Registration, error)

	// Payments
	CreatePayment(ctx context.Context, p domain.Payment) (domain.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, retryCount int) error
	RecordPaymentSuccess(ctx context.Context, id uuid.UUID, transactionID string, fee domain.Money, retryCount int) error
	GetPaymentByRegistration(ctx context.Context, registrationID uuid.UUID) (domain.Payment, error)
	CreateRefund(ctx context.Context, r domain.Refund) (domain.Refund, error)
}

// Repository is the pgx implementation of Store.
type Repository struct {
	pool *pgxpool.Pool
	db   DB
}

// Compile-time check.
var _ Store = (*Repository)(nil)

// New creates a Repository over a connection pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// WithTx runs fn inside a transaction. Nested calls reuse the current
// transaction rather than opening a second one.
func (r *Repository) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, ok := r.db.(pgx.Tx); ok {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repository{pool: r.pool, db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Package payment abstracts the card payment gateway behind a small
// charge/refund interface. Amounts cross the boundary in cents; money
// arithmetic stays in the domain package.
package payment

import (
	"context"
	"errors"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

var (
	// ErrChargeDeclined means the gateway rejected the charge; retrying
	// with the same card will not help.
	ErrChargeDeclined = errors.New("payment: charge declined")

	// ErrGatewayUnavailable means the gateway could not be reached or
	// returned a transient failure. Callers may retry.
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
)

// Provider defines the interface for payment processing.
// Implementations can use Stripe, a bank rail, or a test double.
type Provider interface {
	// Charge captures a payment for a registration. Idempotent per
	// params.IdempotencyKey: retrying a charge that already succeeded
	// returns the original result.
	Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error)

	// Refund returns funds for a previously captured charge. Amount may
	// be less than the original charge for partial refunds.
	Refund(ctx context.Context, params RefundParams) (*RefundResult, error)
}

// ChargeParams describes one capture attempt.
type ChargeParams struct {
	// AmountCents is the amount in centavos (GTQ smallest unit).
	AmountCents int64
	Currency    string

	// PaymentMethodID is the gateway's token for the customer's card.
	PaymentMethodID string

	// IdempotencyKey dedupes retries of the same logical charge.
	IdempotencyKey string

	Description string
	Method      domain.PaymentMethod
	Metadata    map[string]string
}

// ChargeResult is the gateway's record of a captured payment.
type ChargeResult struct {
	// TransactionID is the gateway's charge identifier.
	TransactionID string

	// FeeCents is the gateway processing fee, when the gateway reports it.
	FeeCents int64

	Status domain.PaymentStatus
}

// RefundParams describes one refund.
type RefundParams struct {
	TransactionID string
	AmountCents   int64
	Reason        string
}

// RefundResult is the gateway's record of a refund.
type RefundResult struct {
	RefundID string
	Status   domain.PaymentStatus
}

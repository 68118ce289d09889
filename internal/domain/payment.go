package domain

import (
	"time"

	"github.com/google/uuid"
)

var (
	ErrPaymentNotFound = &Error{Code: ENOTFOUND, Message: "Payment not found"}
	ErrPaymentFailed   = &Error{Code: EPAYMENT, Message: "Payment could not be processed"}
)

// PaymentStatus tracks a gateway charge.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentMethod names the gateway used for a charge.
type PaymentMethod string

const (
	MethodCard     PaymentMethod = "card"
	MethodPayPal   PaymentMethod = "paypal"
	MethodTransfer PaymentMethod = "transfer"
)

// Payment records one gateway charge for a registration.
// NetAmount = Amount - Fee.
type Payment struct {
	ID             uuid.UUID
	TransactionID  string
	RegistrationID uuid.UUID

	Gateway string
	Method  PaymentMethod
	Status  PaymentStatus

	Amount    Money
	Fee       Money
	NetAmount Money

	RetryCount int
	ExpiresAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Refund is one refund against a payment; a payment may have several
// partial refunds.
type Refund struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Amount    Money
	Reason    string
	GatewayID string
	CreatedAt time.Time
}

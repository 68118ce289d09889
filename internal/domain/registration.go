package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRegistrationNotFound = &Error{Code: ENOTFOUND, Message: "Registration not found"}
	ErrReservationExpired   = &Error{Code: EGONE, Message: "Reservation expired, please reserve again"}
	ErrInvalidTransition    = &Error{Code: ECONFLICT, Message: "Invalid registration status transition"}
	ErrNoCapacity           = &Error{Code: ECONFLICT, Message: "Event has no remaining capacity"}
)

// ReservationTTL is how long a reservation holds before payment must
// complete.
const ReservationTTL = 15 * time.Minute

// RegistrationStatus is the registration state machine.
type RegistrationStatus string

const (
	StatusBorrador      RegistrationStatus = "BORRADOR"
	StatusPendientePago RegistrationStatus = "PENDIENTE_PAGO"
	StatusPagado        RegistrationStatus = "PAGADO"
	StatusConfirmado    RegistrationStatus = "CONFIRMADO"
	StatusExpirado      RegistrationStatus = "EXPIRADO"
	StatusCancelado     RegistrationStatus = "CANCELADO"
	StatusReembolsado   RegistrationStatus = "REEMBOLSADO"
)

// transitions encodes the one-directional state machine. Expiration is
// the only path that skips states.
var transitions = map[RegistrationStatus][]RegistrationStatus{
	StatusBorrador:      {StatusPendientePago, StatusExpirado},
	StatusPendientePago: {StatusPagado, StatusExpirado, StatusCancelado},
	StatusPagado:        {StatusConfirmado, StatusCancelado, StatusReembolsado},
	StatusConfirmado:    {StatusReembolsado},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to RegistrationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Registration holds one user's place in an event through the
// reservation, payment and confirmation flow.
type Registration struct {
	ID uuid.UUID

	// RegistrationCode is unique, format INS-YYYYMMDD-XXXXX.
	RegistrationCode string

	EventID uuid.UUID
	UserID  uuid.UUID

	Status RegistrationStatus

	Quantity       int
	BasePrice      Money
	DiscountAmount Money
	FinalPrice     Money

	// PromoClaimID links the usage-ledger claim consumed by this
	// registration, if a promo code was redeemed.
	PromoClaimID *uuid.UUID

	// ReservationExpiresAt bounds BORRADOR/PENDIENTE_PAGO; nil once paid.
	ReservationExpiresAt *time.Time

	GroupRegistrationID *uuid.UUID

	// FelAuthorization is the certifier's authorization number, set on
	// CONFIRMADO.
	FelAuthorization *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReservationExpired reports whether the hold has lapsed at the given
// instant. Both the lazy check on read and the eager sweep use this same
// comparison so a registration is never ambiguously payable.
func (r Registration) ReservationExpired(now time.Time) bool {
	if r.Status != StatusBorrador && r.Status != StatusPendientePago {
		return false
	}
	return r.ReservationExpiresAt != nil && !now.Before(*r.ReservationExpiresAt)
}

// NewRegistrationCode builds an INS-YYYYMMDD-XXXXX code. The suffix is
// five base36 characters taken from a fresh UUID; the repository's unique
// constraint catches the rare collision.
func NewRegistrationCode(now time.Time) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	suffix := make([]byte, 0, 5)
	for i := 0; i < len(raw) && len(suffix) < 5; i++ {
		c := raw[i]
		if (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') {
			suffix = append(suffix, c)
		}
	}
	return fmt.Sprintf("INS-%s-%s", now.Format("20060102"), string(suffix))
}

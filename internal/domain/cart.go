package domain

import (
	"time"

	"github.com/google/uuid"
)

var (
	ErrCartNotFound     = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrCartExpired      = &Error{Code: EGONE, Message: "Cart has expired"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be between 1 and 50"}
)

const (
	// MaxItemQuantity bounds the participants per cart item.
	MaxItemQuantity = 50

	// CartTTL is how long a cart lives after creation.
	CartTTL = 24 * time.Hour

	// AbandonAfter is the inactivity window after which a cart is flagged
	// abandoned. Abandoned carts survive until CartTTL removes them.
	AbandonAfter = 2 * time.Hour
)

// ParticipantType distinguishes individual from company registrations.
type ParticipantType string

const (
	ParticipantIndividual ParticipantType = "individual"
	ParticipantCompany    ParticipantType = "empresa"
)

// CartItem is one event line in a cart. Money fields are derived by the
// pricing engine and hold the last recalculation result:
// FinalPrice = max(minPrice*quantity, BasePrice*Quantity - DiscountAmount).
type CartItem struct {
	ID     uuid.UUID
	CartID uuid.UUID

	EventID        uuid.UUID
	EventName      string
	EventStartDate time.Time

	Quantity        int
	ParticipantType ParticipantType

	// BasePrice is the per-unit price snapshotted when the item was added.
	BasePrice Money

	// MinPrice is the per-unit floor snapshotted from the event.
	MinPrice Money

	DiscountAmount Money
	FinalPrice     Money

	// AppliedRules lists the discount rule IDs that produced
	// DiscountAmount, in application order, for audit and receipts.
	AppliedRules []string

	// GroupData holds company/group participant details for empresa items.
	GroupData []byte
}

// Subtotal returns BasePrice * Quantity before any discount.
func (i CartItem) Subtotal() Money {
	return i.BasePrice.Multiply(i.Quantity)
}

// Cart is a session-scoped shopping cart. Totals are derived: only the
// pricing engine writes Subtotal, DiscountAmount and Total.
type Cart struct {
	ID        uuid.UUID
	SessionID string

	// UserID is nil for guest carts.
	UserID *uuid.UUID

	Items []CartItem

	TotalItems     int
	Subtotal       Money
	DiscountAmount Money
	Total          Money

	// PromoCode is the code currently applied to the cart, if any.
	PromoCode     *string
	PromoDiscount Money

	ExpiresAt    time.Time
	LastActivity time.Time
	IsAbandoned  bool
	AbandonedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the cart is past its TTL at the given instant.
func (c Cart) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Inactive reports whether the cart qualifies for abandonment at the
// given instant.
func (c Cart) Inactive(now time.Time, threshold time.Duration) bool {
	return now.Sub(c.LastActivity) >= threshold
}

// Item returns the line for the given event, or nil.
func (c *Cart) Item(eventID uuid.UUID) *CartItem {
	for idx := range c.Items {
		if c.Items[idx].EventID == eventID {
			return &c.Items[idx]
		}
	}
	return nil
}

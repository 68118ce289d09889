package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrPromoCodeNotFound = &Error{Code: ENOTFOUND, Message: "Promo code not found"}

// PromotionType scopes a promotion's eligibility.
type PromotionType string

const (
	PromotionGeneral       PromotionType = "GENERAL"
	PromotionEventSpecific PromotionType = "EVENT_SPECIFIC"
	PromotionCategory      PromotionType = "CATEGORY_SPECIFIC"
	PromotionMembership    PromotionType = "MEMBERSHIP"
)

// Promotion is a named eligibility and stacking policy. It may have zero
// or more promo codes attached.
type Promotion struct {
	ID   uuid.UUID
	Name string
	Type PromotionType

	// Eligibility scoping; empty slices mean unrestricted.
	EventIDs    []uuid.UUID
	CategoryIDs []string
	UserTypes   []ParticipantType

	MinPurchaseAmount Money

	IsStackable bool
	Priority    int

	StartDate time.Time
	EndDate   time.Time
	IsActive  bool
}

// AppliesTo reports whether the promotion's scoping admits the given
// event and category.
func (p Promotion) AppliesTo(eventID uuid.UUID, category string) bool {
	switch p.Type {
	case PromotionEventSpecific:
		for _, id := range p.EventIDs {
			if id == eventID {
				return true
			}
		}
		return false
	case PromotionCategory:
		for _, c := range p.CategoryIDs {
			if c == category {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// DiscountType is how a promo code's value translates into a discount.
type DiscountType string

const (
	DiscountPercentage   DiscountType = "PERCENTAGE"
	DiscountFixedAmount  DiscountType = "FIXED_AMOUNT"
	DiscountBuyXGetY     DiscountType = "BUY_X_GET_Y"
	DiscountSpecialPrice DiscountType = "SPECIAL_PRICE"
)

// BuyXGetYConfig is the explicit ratio contract for BUY_X_GET_Y codes:
// for every BuyQuantity paid units the buyer gets FreeQuantity units free.
// A zero or negative quantity renders the code ineligible.
type BuyXGetYConfig struct {
	BuyQuantity  int
	FreeQuantity int
}

// Valid reports whether the ratio is usable.
func (c BuyXGetYConfig) Valid() bool {
	return c.BuyQuantity > 0 && c.FreeQuantity > 0
}

// PromoCode is a redeemable code attached to an optional parent promotion.
// CurrentUsesTotal is a monotonic counter maintained exclusively by the
// usage ledger's conditional update; application code never read-then-writes it.
type PromoCode struct {
	ID          uuid.UUID
	Code        string // stored uppercase; matching is case-insensitive
	PromotionID *uuid.UUID

	DiscountType  DiscountType
	DiscountValue decimal.Decimal

	// BuyXGetY holds the ratio for BUY_X_GET_Y codes; nil otherwise.
	BuyXGetY *BuyXGetYConfig

	// MaxUsesTotal nil means unlimited.
	MaxUsesTotal    *int
	MaxUsesPerUser  int
	CurrentUsesTotal int

	MinPurchaseAmount Money

	// MaxDiscountAmount caps percentage discounts; nil means uncapped.
	MaxDiscountAmount *Money

	IsStackable bool
	Priority    int

	StartDate time.Time
	EndDate   time.Time
	IsActive  bool
}

// WithinWindow reports whether the code's validity window contains now.
func (c PromoCode) WithinWindow(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// Exhausted reports whether the global usage cap has been reached.
func (c PromoCode) Exhausted() bool {
	return c.MaxUsesTotal != nil && c.CurrentUsesTotal >= *c.MaxUsesTotal
}

// IneligibleReason explains why a promo code was rejected.
type IneligibleReason string

const (
	ReasonNotFound       IneligibleReason = "not_found"
	ReasonInactive       IneligibleReason = "inactive"
	ReasonNotStarted     IneligibleReason = "not_started"
	ReasonExpired        IneligibleReason = "expired"
	ReasonUsageExhausted IneligibleReason = "usage_exhausted"
	ReasonUserLimit      IneligibleReason = "user_limit_reached"
	ReasonBelowMinimum   IneligibleReason = "below_minimum_purchase"
	ReasonBadConfig      IneligibleReason = "invalid_configuration"
	ReasonNotApplicable  IneligibleReason = "not_applicable"
)

// PromoCodeIneligibleError rejects a promo code with a specific reason,
// surfaced verbatim to the user. The cart is left unchanged.
type PromoCodeIneligibleError struct {
	Code   string
	Reason IneligibleReason
}

func (e *PromoCodeIneligibleError) Error() string {
	return fmt.Sprintf("promo code %q ineligible: %s", e.Code, e.Reason)
}

// PromoCodeIneligible builds the typed rejection error.
func PromoCodeIneligible(code string, reason IneligibleReason) error {
	return &Error{
		Code:    EINVALID,
		Message: fmt.Sprintf("Promo code rejected: %s", reason),
		Err:     &PromoCodeIneligibleError{Code: code, Reason: reason},
	}
}

// IneligibleReasonOf extracts the rejection reason from an error chain,
// or "" when err is not a promo rejection.
func IneligibleReasonOf(err error) IneligibleReason {
	var pe *PromoCodeIneligibleError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}

// PromoClaim records a granted usage of a promo code by a user for one
// registration or cart checkout. Released claims keep their row with
// ReleasedAt set so a sweep cannot double-decrement.
type PromoClaim struct {
	ID         uuid.UUID
	PromoCodeID uuid.UUID
	UserID     *uuid.UUID
	CartID     *uuid.UUID
	ClaimedAt  time.Time
	ReleasedAt *time.Time
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountSource identifies which rule family produced a discount.
type DiscountSource string

const (
	SourceVolume    DiscountSource = "volume"
	SourceEarlyBird DiscountSource = "early_bird"
	SourcePromoCode DiscountSource = "promo_code"
)

// VolumeDiscount is a quantity-tier discount attached to an event.
// MaxQuantity nil means the tier is unbounded above.
type VolumeDiscount struct {
	ID      uuid.UUID
	EventID uuid.UUID

	MinQuantity int
	MaxQuantity *int

	// DiscountPercentage is 0-100.
	DiscountPercentage decimal.Decimal

	Priority int
	IsActive bool
}

// Matches reports whether the tier's quantity range contains qty.
func (v VolumeDiscount) Matches(qty int) bool {
	if !v.IsActive || qty < v.MinQuantity {
		return false
	}
	return v.MaxQuantity == nil || qty <= *v.MaxQuantity
}

// EarlyBirdDiscount rewards registering well before the event starts.
type EarlyBirdDiscount struct {
	ID      uuid.UUID
	EventID uuid.UUID

	// DaysBeforeEvent is the minimum whole days between now and the
	// event start for the tier to apply.
	DaysBeforeEvent int

	DiscountPercentage decimal.Decimal

	Priority  int
	AutoApply bool
	IsActive  bool
}

// Matches reports whether the tier applies at the given instant for an
// event starting at eventStart.
func (e EarlyBirdDiscount) Matches(now, eventStart time.Time) bool {
	if !e.IsActive || !e.AutoApply {
		return false
	}
	days := int(eventStart.Sub(now).Hours() / 24)
	return days >= e.DaysBeforeEvent
}

// DiscountResult is one applicable discount computed by an evaluator,
// before conflict resolution.
type DiscountResult struct {
	// RuleID identifies the rule for audit trails and receipts.
	RuleID string

	Source DiscountSource
	Amount Money

	Priority  int
	Stackable bool
}

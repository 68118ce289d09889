// Package pricing computes discounts for cart items. Evaluators and the
// conflict resolver are pure functions of their inputs: no I/O, no clock
// reads, no side effects. Persistence and usage-ledger claims live in
// the service layer.
package pricing

import (
	"fmt"
	"time"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

// ItemContext carries everything the rule evaluators may consult for one
// cart item.
type ItemContext struct {
	Quantity   int
	UnitPrice  domain.Money
	UnitFloor  domain.Money
	EventStart time.Time
	Now        time.Time
}

// Gross returns the undiscounted line total.
func (c ItemContext) Gross() domain.Money {
	return c.UnitPrice.Multiply(c.Quantity)
}

// Floor returns the line total floor below which no discount combination
// may push the final price.
func (c ItemContext) Floor() domain.Money {
	return c.UnitFloor.Multiply(c.Quantity)
}

// EvaluateVolume selects the applicable volume tier for the item quantity
// and returns its discount, or nil when no tier matches. Among matching
// tiers the highest priority wins; ties break on the larger percentage.
func EvaluateVolume(tiers []domain.VolumeDiscount, ctx ItemContext) *domain.DiscountResult {
	var best *domain.VolumeDiscount
	for i := range tiers {
		t := &tiers[i]
		if !t.Matches(ctx.Quantity) {
			continue
		}
		if best == nil ||
			t.Priority > best.Priority ||
			(t.Priority == best.Priority && t.DiscountPercentage.GreaterThan(best.DiscountPercentage)) {
			best = t
		}
	}
	if best == nil {
		return nil
	}

	return &domain.DiscountResult{
		RuleID:    fmt.Sprintf("volume:%s", best.ID),
		Source:    domain.SourceVolume,
		Amount:    ctx.Gross().PercentageOf(best.DiscountPercentage),
		Priority:  best.Priority,
		Stackable: true,
	}
}

// EvaluateEarlyBird selects the applicable early-bird tier given the time
// remaining before the event, or nil. Only active auto-apply tiers are
// considered; the highest priority wins, ties break on percentage.
func EvaluateEarlyBird(tiers []domain.EarlyBirdDiscount, ctx ItemContext) *domain.DiscountResult {
	var best *domain.EarlyBirdDiscount
	for i := range tiers {
		t := &tiers[i]
		if !t.Matches(ctx.Now, ctx.EventStart) {
			continue
		}
		if best == nil ||
			t.Priority > best.Priority ||
			(t.Priority == best.Priority && t.DiscountPercentage.GreaterThan(best.DiscountPercentage)) {
			best = t
		}
	}
	if best == nil {
		return nil
	}

	return &domain.DiscountResult{
		RuleID:    fmt.Sprintf("early_bird:%s", best.ID),
		Source:    domain.SourceEarlyBird,
		Amount:    ctx.Gross().PercentageOf(best.DiscountPercentage),
		Priority:  best.Priority,
		Stackable: true,
	}
}

// PromoContext carries the cart-level inputs for promo code evaluation.
type PromoContext struct {
	// Subtotal is the cart's current pre-discount subtotal; eligibility
	// minimums and percentage discounts are computed against it.
	Subtotal domain.Money

	// Quantity and UnitPrice describe the item the code applies to; only
	// BUY_X_GET_Y codes consult them.
	Quantity  int
	UnitPrice domain.Money

	// UserPriorUses is how many times the caller has already redeemed
	// this code.
	UserPriorUses int

	Now time.Time
}

// EvaluatePromoCode validates eligibility and computes the code's
// discount. Returns a PromoCodeIneligible error naming the specific
// rejection reason when the code cannot apply.
//
// The global usage check here is advisory (reads a possibly stale
// counter); the authoritative check-and-increment happens in the usage
// ledger at claim time.
func EvaluatePromoCode(code *domain.PromoCode, ctx PromoContext) (*domain.DiscountResult, error) {
	if code == nil {
		return nil, domain.PromoCodeIneligible("", domain.ReasonNotFound)
	}
	if !code.IsActive {
		return nil, domain.PromoCodeIneligible(code.Code, domain.ReasonInactive)
	}
	if ctx.Now.Before(code.StartDate) {
		return nil, domain.PromoCodeIneligible(code.Code, domain.ReasonNotStarted)
	}
	if ctx.Now.After(code.EndDate) {
		return nil, domain.PromoCodeIneligible(code.Code, domain.ReasonExpired)
	}
	if code.Exhausted() {
		return nil, domain.PromoCodeIneligible(code.Code, domain.ReasonUsageExhausted)
	}
	if code.MaxUsesPerUser > 0 && ctx.UserPriorUses >= code.MaxUsesPerUser {
		return nil, domain.PromoCodeIneligible(code.Code, domain.ReasonUserLimit)
	}
	if ctx.Subtotal.LessThan(code.MinPurchaseAmount) {
		return nil, domain.PromoCodeIneligible(code.Code, domain.ReasonBelowMinimum)
	}

	var amount domain.Money
	switch code.DiscountType {
	case domain.DiscountPercentage:
		amount = ctx.Subtotal.PercentageOf(code.DiscountValue)
		if code.MaxDiscountAmount != nil {
			amount = domain.MinMoney(amount, *code.MaxDiscountAmount)
		}

	case domain.DiscountFixedAmount:
		fixed := domain.NewMoneyFromCents(0)
		if v, err := domain.NewMoneyFromString(code.DiscountValue.String()); err == nil {
			fixed = v
		}
		amount = domain.MinMoney(fixed, ctx.Subtotal)

	case domain.DiscountSpecialPrice:
		// DiscountValue is the resulting special price, not the discount.
		special, err := domain.NewMoneyFromString(code.DiscountValue.String())
		if err != nil {
			return nil, domain.PromoCodeIneligible(code.Code, domain.ReasonBadConfig)
		}
		amount = ctx.Subtotal.Subtract(special)

	case domain.DiscountBuyXGetY:
		if code.BuyXGetY == nil || !code.BuyXGetY.Valid() {
			return nil, domain.PromoCodeIneligible(code.Code, domain.ReasonBadConfig)
		}
		freeUnits := (ctx.Quantity / code.BuyXGetY.BuyQuantity) * code.BuyXGetY.FreeQuantity
		if freeUnits > ctx.Quantity {
			freeUnits = ctx.Quantity
		}
		amount = domain.MinMoney(ctx.UnitPrice.Multiply(freeUnits), ctx.Subtotal)

	default:
		return nil, domain.PromoCodeIneligible(code.Code, domain.ReasonBadConfig)
	}

	return &domain.DiscountResult{
		RuleID:    fmt.Sprintf("promo_code:%s", code.Code),
		Source:    domain.SourcePromoCode,
		Amount:    amount,
		Priority:  code.Priority,
		Stackable: code.IsStackable,
	}, nil
}

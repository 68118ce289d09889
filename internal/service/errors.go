// Package service implements the business logic of the pricing and
// reservation core: the cart pricing engine, the registration lifecycle
// and the checkout orchestration. Services own all writes to cart
// totals, registration status and the promo usage ledger.
package service

import (
	"errors"

	"github.com/tradeconnect/tradeconnect/internal/domain"
	"github.com/tradeconnect/tradeconnect/internal/repository"
)

var (
	ErrCartEmpty       = domain.Errorf(domain.EINVALID, "", "Cart is empty")
	ErrEventNotForSale = domain.Errorf(domain.EINVALID, "", "Event is not open for registration")
)

// translateClaimError maps usage-ledger failures onto promo rejection
// reasons. A conditional update losing the race is user-visible as
// ineligibility, never as a system error.
func translateClaimError(code string, err error) error {
	switch {
	case errors.Is(err, repository.ErrUsageExhausted):
		return domain.PromoCodeIneligible(code, domain.ReasonUsageExhausted)
	case errors.Is(err, repository.ErrUserLimitReached):
		return domain.PromoCodeIneligible(code, domain.ReasonUserLimit)
	case errors.Is(err, repository.ErrNotFound):
		return domain.PromoCodeIneligible(code, domain.ReasonNotFound)
	default:
		return err
	}
}

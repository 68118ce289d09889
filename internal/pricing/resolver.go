package pricing

import (
	"sort"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

// AppliedRule is one rule that survived conflict resolution, with its
// post-clamp amount.
type AppliedRule struct {
	RuleID string
	Source domain.DiscountSource
	Amount domain.Money
}

// Resolution is the resolver's output for one cart item.
type Resolution struct {
	// Discount is the final combined discount, floor-clamped.
	Discount domain.Money

	// Applied lists surviving rules in application order (highest
	// priority first) for audit trails and receipts.
	Applied []AppliedRule
}

// Resolve applies stacking rules to the set of applicable discounts for
// one item and clamps the total against the floor price.
//
// If any discount is non-stackable, only the single highest-priority
// non-stackable discount applies (ties: larger amount wins) and all
// others are discarded. Otherwise all stackable discounts sum. The
// combined discount is then clamped so gross - discount >= floor,
// reducing the lowest-priority rule first.
//
// The result is deterministic and independent of the order results were
// produced in: candidates are canonically sorted before selection.
func Resolve(results []domain.DiscountResult, gross, floor domain.Money) Resolution {
	selected := make([]domain.DiscountResult, 0, len(results))
	for _, r := range results {
		if r.Amount.IsZero() || r.Amount.IsNegative() {
			continue
		}
		selected = append(selected, r)
	}
	if len(selected) == 0 {
		return Resolution{}
	}

	if exclusive := pickNonStackable(selected); exclusive != nil {
		selected = []domain.DiscountResult{*exclusive}
	} else {
		sortCanonical(selected)
	}

	// Clamp against the floor, eating into the lowest-priority rules
	// first. maxDiscount is zero when gross is already at or below floor.
	maxDiscount := gross.Subtract(floor)
	total := domain.Money{}
	for _, r := range selected {
		total = total.Add(r.Amount)
	}

	applied := make([]AppliedRule, 0, len(selected))
	if total.Compare(maxDiscount) <= 0 {
		for _, r := range selected {
			applied = append(applied, AppliedRule{RuleID: r.RuleID, Source: r.Source, Amount: r.Amount})
		}
		return Resolution{Discount: total, Applied: applied}
	}

	excess := total.Subtract(maxDiscount)
	for i := len(selected) - 1; i >= 0; i-- {
		if excess.IsZero() {
			break
		}
		cut := domain.MinMoney(selected[i].Amount, excess)
		selected[i].Amount = selected[i].Amount.Subtract(cut)
		excess = excess.Subtract(cut)
	}

	total = domain.Money{}
	for _, r := range selected {
		if r.Amount.IsZero() {
			continue // clamped away entirely; drop from the receipt
		}
		total = total.Add(r.Amount)
		applied = append(applied, AppliedRule{RuleID: r.RuleID, Source: r.Source, Amount: r.Amount})
	}

	return Resolution{Discount: total, Applied: applied}
}

// pickNonStackable returns the winning exclusive discount, or nil when
// every candidate is stackable.
func pickNonStackable(results []domain.DiscountResult) *domain.DiscountResult {
	var winner *domain.DiscountResult
	for i := range results {
		r := &results[i]
		if r.Stackable {
			continue
		}
		if winner == nil || betterExclusive(r, winner) {
			winner = r
		}
	}
	return winner
}

// betterExclusive orders exclusive candidates: higher priority wins,
// ties break on larger amount, then on RuleID for determinism.
func betterExclusive(a, b *domain.DiscountResult) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if cmp := a.Amount.Compare(b.Amount); cmp != 0 {
		return cmp > 0
	}
	return a.RuleID < b.RuleID
}

// sortCanonical orders stackable discounts by descending priority, then
// descending amount, then RuleID. Application (and receipt) order, and
// the first candidates to survive floor clamping, follow this order.
func sortCanonical(results []domain.DiscountResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Priority != results[j].Priority {
			return results[i].Priority > results[j].Priority
		}
		if cmp := results[i].Amount.Compare(results[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return results[i].RuleID < results[j].RuleID
	})
}

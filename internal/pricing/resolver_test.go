package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

func result(id string, amount string, priority int, stackable bool) domain.DiscountResult {
	return domain.DiscountResult{
		RuleID:    id,
		Source:    domain.SourcePromoCode,
		Amount:    domain.MustMoney(amount),
		Priority:  priority,
		Stackable: stackable,
	}
}

func TestResolve_StackableSum(t *testing.T) {
	res := Resolve([]domain.DiscountResult{
		result("a", "100.00", 1, true),
		result("b", "50.00", 2, true),
	}, domain.MustMoney("1000.00"), domain.MustMoney("0.00"))

	assert.Equal(t, "150.00", res.Discount.String())
	require.Len(t, res.Applied, 2)
	// Receipt ordered by descending priority.
	assert.Equal(t, "b", res.Applied[0].RuleID)
	assert.Equal(t, "a", res.Applied[1].RuleID)
}

func TestResolve_NonStackableWinsAlone(t *testing.T) {
	// Non-stackable promotion (priority 10) vs stackable early-bird
	// (priority 1): only the promotion applies, the early-bird is
	// discarded entirely, not summed.
	res := Resolve([]domain.DiscountResult{
		result("early_bird:x", "80.00", 1, true),
		result("promo:big", "120.00", 10, false),
	}, domain.MustMoney("1000.00"), domain.MustMoney("0.00"))

	assert.Equal(t, "120.00", res.Discount.String())
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "promo:big", res.Applied[0].RuleID)
}

func TestResolve_NonStackableTieBreakOnAmount(t *testing.T) {
	res := Resolve([]domain.DiscountResult{
		result("small", "40.00", 5, false),
		result("large", "90.00", 5, false),
	}, domain.MustMoney("1000.00"), domain.MustMoney("0.00"))

	assert.Equal(t, "90.00", res.Discount.String())
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "large", res.Applied[0].RuleID)
}

func TestResolve_FloorClampReducesLowestPriorityFirst(t *testing.T) {
	// gross 1000, floor 800: max combined discount is 200. The
	// priority-1 rule is cut before the priority-9 rule is touched.
	res := Resolve([]domain.DiscountResult{
		result("low", "150.00", 1, true),
		result("high", "150.00", 9, true),
	}, domain.MustMoney("1000.00"), domain.MustMoney("800.00"))

	assert.Equal(t, "200.00", res.Discount.String())
	require.Len(t, res.Applied, 2)
	assert.Equal(t, "high", res.Applied[0].RuleID)
	assert.Equal(t, "150.00", res.Applied[0].Amount.String())
	assert.Equal(t, "low", res.Applied[1].RuleID)
	assert.Equal(t, "50.00", res.Applied[1].Amount.String())
}

func TestResolve_FloorClampDropsZeroedRules(t *testing.T) {
	// Max discount 100: the low-priority rule is clamped to zero and
	// disappears from the receipt.
	res := Resolve([]domain.DiscountResult{
		result("low", "80.00", 1, true),
		result("high", "100.00", 9, true),
	}, domain.MustMoney("1000.00"), domain.MustMoney("900.00"))

	assert.Equal(t, "100.00", res.Discount.String())
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "high", res.Applied[0].RuleID)
}

func TestResolve_GrossAlreadyAtFloor(t *testing.T) {
	res := Resolve([]domain.DiscountResult{
		result("any", "50.00", 1, true),
	}, domain.MustMoney("300.00"), domain.MustMoney("300.00"))

	assert.True(t, res.Discount.IsZero())
	assert.Empty(t, res.Applied)
}

func TestResolve_OrderIndependent(t *testing.T) {
	a := []domain.DiscountResult{
		result("a", "60.00", 1, true),
		result("b", "90.00", 3, true),
		result("c", "30.00", 2, true),
	}
	b := []domain.DiscountResult{a[2], a[0], a[1]}

	gross := domain.MustMoney("500.00")
	floor := domain.MustMoney("400.00")

	ra := Resolve(a, gross, floor)
	rb := Resolve(b, gross, floor)

	assert.Equal(t, ra.Discount.String(), rb.Discount.String())
	require.Equal(t, len(ra.Applied), len(rb.Applied))
	for i := range ra.Applied {
		assert.Equal(t, ra.Applied[i].RuleID, rb.Applied[i].RuleID)
		assert.Equal(t, ra.Applied[i].Amount.String(), rb.Applied[i].Amount.String())
	}
}

func TestResolve_VolumeScenario(t *testing.T) {
	// basePrice Q500, minPrice Q300, quantity 5, 20% tier.
	// Gross 2500, discount 500, floor 1500 untouched.
	gross := domain.MustMoney("500.00").Multiply(5)
	floor := domain.MustMoney("300.00").Multiply(5)

	res := Resolve([]domain.DiscountResult{
		result("volume:t1", "500.00", 1, true),
	}, gross, floor)

	assert.Equal(t, "500.00", res.Discount.String())
	final := gross.Subtract(res.Discount)
	assert.Equal(t, "2000.00", final.String())
	assert.True(t, final.Compare(floor) >= 0)
}

func TestResolve_IgnoresZeroAmounts(t *testing.T) {
	res := Resolve([]domain.DiscountResult{
		result("zero", "0.00", 9, false),
		result("real", "20.00", 1, true),
	}, domain.MustMoney("100.00"), domain.MustMoney("0.00"))

	// The zero-amount non-stackable candidate must not suppress the
	// real stackable discount.
	assert.Equal(t, "20.00", res.Discount.String())
}

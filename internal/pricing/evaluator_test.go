package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

func intPtr(n int) *int { return &n }

func moneyPtr(s string) *domain.Money {
	m := domain.MustMoney(s)
	return &m
}

func baseItemCtx(qty int, unit string) ItemContext {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return ItemContext{
		Quantity:   qty,
		UnitPrice:  domain.MustMoney(unit),
		UnitFloor:  domain.MustMoney("0.00"),
		EventStart: now.Add(60 * 24 * time.Hour),
		Now:        now,
	}
}

func TestEvaluateVolume_PicksMatchingTier(t *testing.T) {
	// basePrice=Q500, tier min=5 at 20%: quantity 5 discounts Q500 of the
	// Q2500 gross.
	tiers := []domain.VolumeDiscount{
		{ID: uuid.New(), MinQuantity: 5, DiscountPercentage: decimal.NewFromInt(20), Priority: 1, IsActive: true},
		{ID: uuid.New(), MinQuantity: 10, DiscountPercentage: decimal.NewFromInt(30), Priority: 2, IsActive: true},
	}

	res := EvaluateVolume(tiers, baseItemCtx(5, "500.00"))
	require.NotNil(t, res)
	assert.Equal(t, "500.00", res.Amount.String())
	assert.Equal(t, domain.SourceVolume, res.Source)
	assert.True(t, res.Stackable)
}

func TestEvaluateVolume_NoMatch(t *testing.T) {
	tiers := []domain.VolumeDiscount{
		{ID: uuid.New(), MinQuantity: 5, DiscountPercentage: decimal.NewFromInt(20), Priority: 1, IsActive: true},
	}

	assert.Nil(t, EvaluateVolume(tiers, baseItemCtx(4, "500.00")))
}

func TestEvaluateVolume_RespectsUpperBoundAndActive(t *testing.T) {
	tiers := []domain.VolumeDiscount{
		{ID: uuid.New(), MinQuantity: 1, MaxQuantity: intPtr(4), DiscountPercentage: decimal.NewFromInt(10), Priority: 1, IsActive: true},
		{ID: uuid.New(), MinQuantity: 5, DiscountPercentage: decimal.NewFromInt(50), Priority: 9, IsActive: false},
	}

	res := EvaluateVolume(tiers, baseItemCtx(5, "100.00"))
	assert.Nil(t, res, "inactive tiers and out-of-range tiers must not apply")
}

func TestEvaluateVolume_PriorityThenPercentageTieBreak(t *testing.T) {
	low := uuid.New()
	high := uuid.New()
	tiers := []domain.VolumeDiscount{
		{ID: low, MinQuantity: 5, DiscountPercentage: decimal.NewFromInt(15), Priority: 2, IsActive: true},
		{ID: high, MinQuantity: 5, DiscountPercentage: decimal.NewFromInt(25), Priority: 2, IsActive: true},
		{ID: uuid.New(), MinQuantity: 5, DiscountPercentage: decimal.NewFromInt(40), Priority: 1, IsActive: true},
	}

	res := EvaluateVolume(tiers, baseItemCtx(5, "100.00"))
	require.NotNil(t, res)
	// Priority 2 beats the 40% priority-1 tier; within priority 2 the
	// larger percentage wins.
	assert.Equal(t, "125.00", res.Amount.String())
	assert.Equal(t, "volume:"+high.String(), res.RuleID)
}

func TestEvaluateEarlyBird_AppliesWhenFarEnoughOut(t *testing.T) {
	ctx := baseItemCtx(2, "300.00")
	tiers := []domain.EarlyBirdDiscount{
		{ID: uuid.New(), DaysBeforeEvent: 30, DiscountPercentage: decimal.NewFromInt(10), Priority: 1, AutoApply: true, IsActive: true},
	}

	res := EvaluateEarlyBird(tiers, ctx)
	require.NotNil(t, res)
	assert.Equal(t, "60.00", res.Amount.String())
	assert.Equal(t, domain.SourceEarlyBird, res.Source)
}

func TestEvaluateEarlyBird_TooClose(t *testing.T) {
	ctx := baseItemCtx(2, "300.00")
	ctx.EventStart = ctx.Now.Add(10 * 24 * time.Hour)

	tiers := []domain.EarlyBirdDiscount{
		{ID: uuid.New(), DaysBeforeEvent: 30, DiscountPercentage: decimal.NewFromInt(10), Priority: 1, AutoApply: true, IsActive: true},
	}

	assert.Nil(t, EvaluateEarlyBird(tiers, ctx))
}

func TestEvaluateEarlyBird_ManualTiersSkipped(t *testing.T) {
	ctx := baseItemCtx(1, "300.00")
	tiers := []domain.EarlyBirdDiscount{
		{ID: uuid.New(), DaysBeforeEvent: 30, DiscountPercentage: decimal.NewFromInt(10), Priority: 1, AutoApply: false, IsActive: true},
	}

	assert.Nil(t, EvaluateEarlyBird(tiers, ctx))
}

func validPromoCode(t domain.DiscountType, value int64) *domain.PromoCode {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.PromoCode{
		ID:            uuid.New(),
		Code:          "TEST10",
		DiscountType:  t,
		DiscountValue: decimal.NewFromInt(value),
		MaxUsesPerUser: 1,
		StartDate:     now.Add(-24 * time.Hour),
		EndDate:       now.Add(24 * time.Hour),
		IsActive:      true,
	}
}

func promoCtx(subtotal string) PromoContext {
	return PromoContext{
		Subtotal: domain.MustMoney(subtotal),
		Quantity: 1,
		UnitPrice: domain.MustMoney(subtotal),
		Now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEvaluatePromoCode_PercentageCappedAtMaxDiscount(t *testing.T) {
	// 50% of Q500 is Q250, capped to Q100.
	code := validPromoCode(domain.DiscountPercentage, 50)
	code.MaxDiscountAmount = moneyPtr("100.00")

	res, err := EvaluatePromoCode(code, promoCtx("500.00"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", res.Amount.String())
}

func TestEvaluatePromoCode_FixedAmountCappedAtSubtotal(t *testing.T) {
	code := validPromoCode(domain.DiscountFixedAmount, 800)

	res, err := EvaluatePromoCode(code, promoCtx("500.00"))
	require.NoError(t, err)
	assert.Equal(t, "500.00", res.Amount.String())
}

func TestEvaluatePromoCode_SpecialPrice(t *testing.T) {
	// DiscountValue is the resulting price: subtotal 500, special 350.
	code := validPromoCode(domain.DiscountSpecialPrice, 350)

	res, err := EvaluatePromoCode(code, promoCtx("500.00"))
	require.NoError(t, err)
	assert.Equal(t, "150.00", res.Amount.String())
}

func TestEvaluatePromoCode_SpecialPriceAboveSubtotalIsZero(t *testing.T) {
	code := validPromoCode(domain.DiscountSpecialPrice, 900)

	res, err := EvaluatePromoCode(code, promoCtx("500.00"))
	require.NoError(t, err)
	assert.True(t, res.Amount.IsZero())
}

func TestEvaluatePromoCode_BuyXGetY(t *testing.T) {
	code := validPromoCode(domain.DiscountBuyXGetY, 0)
	code.BuyXGetY = &domain.BuyXGetYConfig{BuyQuantity: 3, FreeQuantity: 1}

	ctx := PromoContext{
		Subtotal:  domain.MustMoney("700.00"),
		Quantity:  7,
		UnitPrice: domain.MustMoney("100.00"),
		Now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	// floor(7/3) = 2 free units at Q100.
	res, err := EvaluatePromoCode(code, ctx)
	require.NoError(t, err)
	assert.Equal(t, "200.00", res.Amount.String())
}

func TestEvaluatePromoCode_BuyXGetYMissingRatio(t *testing.T) {
	code := validPromoCode(domain.DiscountBuyXGetY, 0)

	_, err := EvaluatePromoCode(code, promoCtx("500.00"))
	require.Error(t, err)
	assert.Equal(t, domain.ReasonBadConfig, domain.IneligibleReasonOf(err))
}

func TestEvaluatePromoCode_RejectionReasons(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*domain.PromoCode, *PromoContext)
		reason domain.IneligibleReason
	}{
		{"inactive", func(c *domain.PromoCode, _ *PromoContext) { c.IsActive = false }, domain.ReasonInactive},
		{"not started", func(c *domain.PromoCode, _ *PromoContext) { c.StartDate = now.Add(time.Hour) }, domain.ReasonNotStarted},
		{"expired", func(c *domain.PromoCode, _ *PromoContext) { c.EndDate = now.Add(-time.Hour) }, domain.ReasonExpired},
		{"exhausted", func(c *domain.PromoCode, _ *PromoContext) {
			c.MaxUsesTotal = intPtr(10)
			c.CurrentUsesTotal = 10
		}, domain.ReasonUsageExhausted},
		{"user limit", func(_ *domain.PromoCode, ctx *PromoContext) { ctx.UserPriorUses = 1 }, domain.ReasonUserLimit},
		{"below minimum", func(c *domain.PromoCode, _ *PromoContext) {
			c.MinPurchaseAmount = domain.MustMoney("1000.00")
		}, domain.ReasonBelowMinimum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := validPromoCode(domain.DiscountPercentage, 10)
			ctx := promoCtx("500.00")
			tt.mutate(code, &ctx)

			_, err := EvaluatePromoCode(code, ctx)
			require.Error(t, err)
			assert.Equal(t, tt.reason, domain.IneligibleReasonOf(err))
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}

func TestEvaluatePromoCode_UnlimitedUses(t *testing.T) {
	code := validPromoCode(domain.DiscountPercentage, 10)
	code.MaxUsesTotal = nil
	code.CurrentUsesTotal = 100000

	res, err := EvaluatePromoCode(code, promoCtx("500.00"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", res.Amount.String())
}

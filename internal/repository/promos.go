package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

// GetPromoCodeByCode looks a code up case-insensitively. A missing code
// returns ErrNotFound; callers translate that into the not_found
// rejection reason rather than leaking whether the code ever existed.
func (r *Repository) GetPromoCodeByCode(ctx context.Context, code string) (domain.PromoCode, error) {
	row := r.db.QueryRow(ctx, `
SELECT id, code, promotion_id, discount_type, discount_value,
	buy_quantity, free_quantity,
	max_uses_total, max_uses_per_user, current_uses_total,
	min_purchase_amount, max_discount_amount,
	is_stackable, priority, start_date, end_date, is_active
FROM promo_codes
WHERE code = UPPER($1);`, code)

	var (
		c            domain.PromoCode
		dtype        string
		buyQty       *int
		freeQty      *int
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.PromotionID, &dtype, &c.DiscountValue,
		&buyQty, &freeQty,
		&c.MaxUsesTotal, &c.MaxUsesPerUser, &c.CurrentUsesTotal,
		&c.MinPurchaseAmount, &c.MaxDiscountAmount,
		&c.IsStackable, &c.Priority, &c.StartDate, &c.EndDate, &c.IsActive,
	)
	if err != nil {
		return domain.PromoCode{}, err
	}
	c.DiscountType = domain.DiscountType(dtype)
	if buyQty != nil && freeQty != nil {
		c.BuyXGetY = &domain.BuyXGetYConfig{BuyQuantity: *buyQty, FreeQuantity: *freeQty}
	}
	return c, nil
}

// CountUserClaims counts a user's live claims on a code. Released claims
// do not count against the per-user limit.
func (r *Repository) CountUserClaims(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
SELECT count(*)
FROM promo_claims
WHERE promo_code_id = $1 AND user_id = $2 AND released_at IS NULL;`,
		promoCodeID, userID).Scan(&n)
	return n, err
}

// ClaimPromoCode atomically consumes one global use of the code and
// records the claim. The conditional increment is the authoritative
// exhaustion check: when the counter is already at the cap the update
// matches zero rows and the claim fails with ErrUsageExhausted,
// regardless of what an earlier advisory read said. The row lock taken
// by the increment also serializes the per-user count, so two
// concurrent claims by the same user cannot both pass the limit.
func (r *Repository) ClaimPromoCode(ctx context.Context, claim domain.PromoClaim, maxPerUser int) (domain.PromoClaim, error) {
	cmd, err := r.db.Exec(ctx, `
UPDATE promo_codes
SET current_uses_total = current_uses_total + 1, updated_at = now()
WHERE id = $1
  AND (max_uses_total IS NULL OR current_uses_total < max_uses_total);`,
		claim.PromoCodeID)
	if err != nil {
		return domain.PromoClaim{}, err
	}
	if cmd.RowsAffected() == 0 {
		// Distinguish a vanished code from an exhausted one.
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT true FROM promo_codes WHERE id = $1;`, claim.PromoCodeID,
		).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.PromoClaim{}, ErrNotFound
			}
			return domain.PromoClaim{}, err
		}
		return domain.PromoClaim{}, ErrUsageExhausted
	}

	if claim.UserID != nil && maxPerUser > 0 {
		used, err := r.CountUserClaims(ctx, claim.PromoCodeID, *claim.UserID)
		if err != nil {
			return domain.PromoClaim{}, err
		}
		if used >= maxPerUser {
			return domain.PromoClaim{}, ErrUserLimitReached
		}
	}

	row := r.db.QueryRow(ctx, `
INSERT INTO promo_claims (id, promo_code_id, user_id, cart_id)
VALUES ($1, $2, $3, $4)
RETURNING id, promo_code_id, user_id, cart_id, claimed_at, released_at;`,
		claim.ID, claim.PromoCodeID, claim.UserID, claim.CartID)

	var out domain.PromoClaim
	err = row.Scan(&out.ID, &out.PromoCodeID, &out.UserID, &out.CartID,
		&out.ClaimedAt, &out.ReleasedAt)
	return out, err
}

// ReleaseClaim returns a consumed use to the pool. The released_at guard
// makes release idempotent: a claim already released (or never made)
// decrements nothing, so a retried sweep cannot drive the counter below
// the true usage.
func (r *Repository) ReleaseClaim(ctx context.Context, claimID uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `
UPDATE promo_claims
SET released_at = now()
WHERE id = $1 AND released_at IS NULL;`, claimID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return nil
	}

	_, err = r.db.Exec(ctx, `
UPDATE promo_codes
SET current_uses_total = GREATEST(current_uses_total - 1, 0), updated_at = now()
WHERE id = (SELECT promo_code_id FROM promo_claims WHERE id = $1);`, claimID)
	return err
}

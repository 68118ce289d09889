package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

const cartColumns = `
id, session_id, user_id, total_items, subtotal, discount_amount, total,
promo_code, promo_discount, expires_at, last_activity, is_abandoned, abandoned_at,
created_at, updated_at`

// CreateCart inserts a new cart with its TTL already stamped.
func (r *Repository) CreateCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO carts (id, session_id, user_id, subtotal, discount_amount, total, promo_discount, expires_at, last_activity)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING`+cartColumns+`;`,
		cart.ID, cart.SessionID, cart.UserID,
		cart.Subtotal, cart.DiscountAmount, cart.Total, cart.PromoDiscount,
		cart.ExpiresAt, cart.LastActivity,
	)
	return scanCart(row)
}

// GetCartByID loads a cart and its items. Expired carts are excluded
// unless includeExpired is set; the sweep is the only caller that wants
// them.
func (r *Repository) GetCartByID(ctx context.Context, id uuid.UUID, includeExpired bool) (domain.Cart, error) {
	row := r.db.QueryRow(ctx, `
SELECT`+cartColumns+`
FROM carts
WHERE id = $1 AND ($2 OR expires_at > now());`, id, includeExpired)

	cart, err := scanCart(row)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Items, err = r.listCartItems(ctx, cart.ID)
	return cart, err
}

// GetCartBySession loads a cart by its unique session ID.
func (r *Repository) GetCartBySession(ctx context.Context, sessionID string, includeExpired bool) (domain.Cart, error) {
	row := r.db.QueryRow(ctx, `
SELECT`+cartColumns+`
FROM carts
WHERE session_id = $1 AND ($2 OR expires_at > now());`, sessionID, includeExpired)

	cart, err := scanCart(row)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Items, err = r.listCartItems(ctx, cart.ID)
	return cart, err
}

// LockCart takes the row lock serializing recalculation per cart. Must
// run inside WithTx; concurrent mutations of the same cart queue here.
func (r *Repository) LockCart(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	return r.db.QueryRow(ctx, `SELECT id FROM carts WHERE id = $1 FOR UPDATE;`, id).Scan(&locked)
}

// UpsertCartItem inserts a line or, when the event is already in the
// cart, adds to its quantity.
func (r *Repository) UpsertCartItem(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO cart_items
	(id, cart_id, event_id, event_name, event_start_date, quantity, participant_type,
	 base_price, min_price, discount_amount, final_price, applied_rules, group_data)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (cart_id, event_id)
DO UPDATE SET
	quantity = cart_items.quantity + EXCLUDED.quantity,
	participant_type = EXCLUDED.participant_type,
	group_data = EXCLUDED.group_data,
	updated_at = now()
RETURNING id, cart_id, event_id, event_name, event_start_date, quantity, participant_type,
	base_price, min_price, discount_amount, final_price, applied_rules, group_data;`,
		item.ID, item.CartID, item.EventID, item.EventName, item.EventStartDate,
		item.Quantity, string(item.ParticipantType),
		item.BasePrice, item.MinPrice, item.DiscountAmount, item.FinalPrice,
		item.AppliedRules, item.GroupData,
	)
	return scanCartItem(row)
}

// UpdateCartItemQuantity sets an item's quantity directly.
func (r *Repository) UpdateCartItemQuantity(ctx context.Context, cartID, eventID uuid.UUID, quantity int) error {
	cmd, err := r.db.Exec(ctx, `
UPDATE cart_items
SET quantity = $3, updated_at = now()
WHERE cart_id = $1 AND event_id = $2;`, cartID, eventID, quantity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveCartItem deletes a line from the cart.
func (r *Repository) RemoveCartItem(ctx context.Context, cartID, eventID uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `
DELETE FROM cart_items
WHERE cart_id = $1 AND event_id = $2;`, cartID, eventID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCartPromoCode stores or clears the cart's applied promo code.
func (r *Repository) SetCartPromoCode(ctx context.Context, cartID uuid.UUID, code *string) error {
	cmd, err := r.db.Exec(ctx, `
UPDATE carts
SET promo_code = $2, updated_at = now()
WHERE id = $1;`, cartID, code)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveCartTotals persists a recalculation result: cart totals plus every
// item's discount breakdown. Callers wrap this in WithTx together with
// the mutation that triggered it so partial recalculation is never
// observable.
func (r *Repository) SaveCartTotals(ctx context.Context, cart domain.Cart) error {
	cmd, err := r.db.Exec(ctx, `
UPDATE carts
SET total_items = $2,
	subtotal = $3,
	discount_amount = $4,
	total = $5,
	promo_discount = $6,
	last_activity = $7,
	is_abandoned = false,
	abandoned_at = NULL,
	updated_at = now()
WHERE id = $1;`,
		cart.ID, cart.TotalItems, cart.Subtotal, cart.DiscountAmount,
		cart.Total, cart.PromoDiscount, cart.LastActivity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	for _, item := range cart.Items {
		_, err := r.db.Exec(ctx, `
UPDATE cart_items
SET discount_amount = $3,
	final_price = $4,
	applied_rules = $5,
	updated_at = now()
WHERE cart_id = $1 AND event_id = $2;`,
			cart.ID, item.EventID, item.DiscountAmount, item.FinalPrice, item.AppliedRules)
		if err != nil {
			return err
		}
	}
	return nil
}

// MarkAbandonedCarts flags carts inactive since the cutoff that have not
// checked out. Returns the number flagged.
func (r *Repository) MarkAbandonedCarts(ctx context.Context, inactiveSince time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `
UPDATE carts
SET is_abandoned = true, abandoned_at = now(), updated_at = now()
WHERE is_abandoned = false
  AND last_activity <= $1
  AND expires_at > now();`, inactiveSince)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// DeleteExpiredCarts hard-deletes carts past their TTL; items go with
// them via ON DELETE CASCADE.
func (r *Repository) DeleteExpiredCarts(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM carts WHERE expires_at <= $1;`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *Repository) listCartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, cart_id, event_id, event_name, event_start_date, quantity, participant_type,
	base_price, min_price, discount_amount, final_price, applied_rules, group_data
FROM cart_items
WHERE cart_id = $1
ORDER BY created_at;`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCart(row rowScanner) (domain.Cart, error) {
	var c domain.Cart
	err := row.Scan(
		&c.ID, &c.SessionID, &c.UserID, &c.TotalItems,
		&c.Subtotal, &c.DiscountAmount, &c.Total,
		&c.PromoCode, &c.PromoDiscount,
		&c.ExpiresAt, &c.LastActivity, &c.IsAbandoned, &c.AbandonedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func scanCartItem(row rowScanner) (domain.CartItem, error) {
	var (
		i     domain.CartItem
		ptype string
	)
	err := row.Scan(
		&i.ID, &i.CartID, &i.EventID, &i.EventName, &i.EventStartDate,
		&i.Quantity, &ptype,
		&i.BasePrice, &i.MinPrice, &i.DiscountAmount, &i.FinalPrice,
		&i.AppliedRules, &i.GroupData,
	)
	i.ParticipantType = domain.ParticipantType(ptype)
	return i, err
}

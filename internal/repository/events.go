package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

// GetEvent returns a published event by ID.
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	row := r.db.QueryRow(ctx, `
SELECT id, name, category, modality, base_price, min_price, start_date, capacity, is_published, created_at, updated_at
FROM events
WHERE id = $1;`, id)

	var (
		e        domain.Event
		modality string
	)
	err := row.Scan(&e.ID, &e.Name, &e.Category, &modality, &e.BasePrice, &e.MinPrice,
		&e.StartDate, &e.Capacity, &e.IsPublished, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return domain.Event{}, err
	}
	e.Modality = domain.EventModality(modality)
	return e, nil
}

// ListVolumeDiscounts returns all volume tiers for an event, active or
// not; the evaluator filters on is_active so rule toggling is visible in
// one place.
func (r *Repository) ListVolumeDiscounts(ctx context.Context, eventID uuid.UUID) ([]domain.VolumeDiscount, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, event_id, min_quantity, max_quantity, discount_percentage, priority, is_active
FROM volume_discounts
WHERE event_id = $1
ORDER BY priority DESC, discount_percentage DESC;`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VolumeDiscount
	for rows.Next() {
		var (
			v   domain.VolumeDiscount
			pct decimal.Decimal
		)
		if err := rows.Scan(&v.ID, &v.EventID, &v.MinQuantity, &v.MaxQuantity, &pct, &v.Priority, &v.IsActive); err != nil {
			return nil, err
		}
		v.DiscountPercentage = pct
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListEarlyBirdDiscounts returns all early-bird tiers for an event.
func (r *Repository) ListEarlyBirdDiscounts(ctx context.Context, eventID uuid.UUID) ([]domain.EarlyBirdDiscount, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, event_id, days_before_event, discount_percentage, priority, auto_apply, is_active
FROM early_bird_discounts
WHERE event_id = $1
ORDER BY priority DESC, discount_percentage DESC;`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EarlyBirdDiscount
	for rows.Next() {
		var (
			e   domain.EarlyBirdDiscount
			pct decimal.Decimal
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.DaysBeforeEvent, &pct, &e.Priority, &e.AutoApply, &e.IsActive); err != nil {
			return nil, err
		}
		e.DiscountPercentage = pct
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountHeldRegistrations counts registrations currently holding a seat:
// anything not expired, cancelled or refunded.
func (r *Repository) CountHeldRegistrations(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
SELECT count(*)
FROM registrations
WHERE event_id = $1
  AND status NOT IN ('EXPIRADO', 'CANCELADO', 'REEMBOLSADO');`, eventID).Scan(&n)
	return n, err
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

const registrationColumns = `
id, registration_code, event_id, user_id, status, quantity,
base_price, discount_amount, final_price,
promo_claim_id, reservation_expires_at, group_registration_id,
fel_authorization, created_at, updated_at`

// CreateRegistration inserts a reservation. A registration_code unique
// violation surfaces as isUniqueViolation so the service can regenerate
// and retry.
func (r *Repository) CreateRegistration(ctx context.Context, reg domain.Registration) (domain.Registration, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO registrations
	(id, registration_code, event_id, user_id, status, quantity,
	 base_price, discount_amount, final_price,
	 promo_claim_id, reservation_expires_at, group_registration_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING`+registrationColumns+`;`,
		reg.ID, reg.RegistrationCode, reg.EventID, reg.UserID,
		string(reg.Status), reg.Quantity,
		reg.BasePrice, reg.DiscountAmount, reg.FinalPrice,
		reg.PromoClaimID, reg.ReservationExpiresAt, reg.GroupRegistrationID,
	)
	return scanRegistration(row)
}

// GetRegistration loads a registration by ID.
func (r *Repository) GetRegistration(ctx context.Context, id uuid.UUID) (domain.Registration, error) {
	row := r.db.QueryRow(ctx, `
SELECT`+registrationColumns+`
FROM registrations
WHERE id = $1;`, id)
	return scanRegistration(row)
}

// LockRegistration loads the registration under FOR UPDATE, serializing
// the checkout against the expiration sweep. Must run inside WithTx.
func (r *Repository) LockRegistration(ctx context.Context, id uuid.UUID) (domain.Registration, error) {
	row := r.db.QueryRow(ctx, `
SELECT`+registrationColumns+`
FROM registrations
WHERE id = $1
FOR UPDATE;`, id)
	return scanRegistration(row)
}

// UpdateRegistrationStatus moves a registration from one status to
// another with a compare-and-swap on the current status. A registration
// whose status changed underneath the caller matches zero rows and
// returns ErrStaleStatus, so concurrent transitions cannot both win.
func (r *Repository) UpdateRegistrationStatus(ctx context.Context, id uuid.UUID, from, to domain.RegistrationStatus) error {
	var clearHold string
	if to == domain.StatusPagado || to == domain.StatusExpirado ||
		to == domain.StatusCancelado {
		clearHold = ", reservation_expires_at = NULL"
	}
	cmd, err := r.db.Exec(ctx, `
UPDATE registrations
SET status = $3, updated_at = now()`+clearHold+`
WHERE id = $1 AND status = $2;`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}

// SetRegistrationPricing stores the checkout-time pricing result and the
// usage-ledger claim it consumed, if any.
func (r *Repository) SetRegistrationPricing(ctx context.Context, id uuid.UUID, discountAmount, finalPrice domain.Money, promoClaimID *uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `
UPDATE registrations
SET discount_amount = $2, final_price = $3, promo_claim_id = $4, updated_at = now()
WHERE id = $1;`, id, discountAmount, finalPrice, promoClaimID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRegistrationFelAuthorization records the certifier's authorization
// number once certification succeeds.
func (r *Repository) SetRegistrationFelAuthorization(ctx context.Context, id uuid.UUID, authorization string) error {
	cmd, err := r.db.Exec(ctx, `
UPDATE registrations
SET fel_authorization = $2, updated_at = now()
WHERE id = $1;`, id, authorization)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireOverdueRegistrations transitions every lapsed BORRADOR or
// PENDIENTE_PAGO hold to EXPIRADO and returns them so the sweep can
// release their promo claims. The status predicate makes the sweep
// idempotent; a registration paid between the hold lapsing and the sweep
// running no longer matches.
func (r *Repository) ExpireOverdueRegistrations(ctx context.Context, now time.Time) ([]domain.Registration, error) {
	rows, err := r.db.Query(ctx, `
UPDATE registrations
SET status = 'EXPIRADO', reservation_expires_at = NULL, updated_at = now()
WHERE status IN ('BORRADOR', 'PENDIENTE_PAGO')
  AND reservation_expires_at IS NOT NULL
  AND reservation_expires_at <= $1
RETURNING`+registrationColumns+`;`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, reg)
	}
	return expired, rows.Err()
}

func scanRegistration(row rowScanner) (domain.Registration, error) {
	var (
		reg    domain.Registration
		status string
	)
	err := row.Scan(
		&reg.ID, &reg.RegistrationCode, &reg.EventID, &reg.UserID,
		&status, &reg.Quantity,
		&reg.BasePrice, &reg.DiscountAmount, &reg.FinalPrice,
		&reg.PromoClaimID, &reg.ReservationExpiresAt, &reg.GroupRegistrationID,
		&reg.FelAuthorization, &reg.CreatedAt, &reg.UpdatedAt,
	)
	reg.Status = domain.RegistrationStatus(status)
	return reg, err
}

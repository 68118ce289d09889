package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

const paymentColumns = `
id, transaction_id, registration_id, gateway, method, status,
amount, fee, net_amount, retry_count, expires_at, created_at, updated_at`

// CreatePayment records a gateway charge attempt.
func (r *Repository) CreatePayment(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO payments
	(id, transaction_id, registration_id, gateway, method, status,
	 amount, fee, net_amount, retry_count, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING`+paymentColumns+`;`,
		p.ID, p.TransactionID, p.RegistrationID, p.Gateway,
		string(p.Method), string(p.Status),
		p.Amount, p.Fee, p.NetAmount, p.RetryCount, p.ExpiresAt,
	)
	return scanPayment(row)
}

// UpdatePaymentStatus sets the charge outcome and bumps the retry count
// to the number of attempts made.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, retryCount int) error {
	cmd, err := r.db.Exec(ctx, `
UPDATE payments
SET status = $2, retry_count = $3, updated_at = now()
WHERE id = $1;`, id, string(status), retryCount)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordPaymentSuccess marks the payment succeeded and stores the
// gateway's charge reference and processing fee. The net amount is
// derived from the stored amount.
func (r *Repository) RecordPaymentSuccess(ctx context.Context, id uuid.UUID, transactionID string, fee domain.Money, retryCount int) error {
	cmd, err := r.db.Exec(ctx, `
UPDATE payments
SET status = 'succeeded', transaction_id = $2, fee = $3,
    net_amount = amount - $3, retry_count = $4, updated_at = now()
WHERE id = $1;`, id, transactionID, fee, retryCount)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPaymentByRegistration returns the most recent payment for a
// registration.
func (r *Repository) GetPaymentByRegistration(ctx context.Context, registrationID uuid.UUID) (domain.Payment, error) {
	row := r.db.QueryRow(ctx, `
SELECT`+paymentColumns+`
FROM payments
WHERE registration_id = $1
ORDER BY created_at DESC
LIMIT 1;`, registrationID)
	return scanPayment(row)
}

// CreateRefund records a refund issued against a payment.
func (r *Repository) CreateRefund(ctx context.Context, refund domain.Refund) (domain.Refund, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO refunds (id, payment_id, amount, reason, gateway_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, payment_id, amount, reason, gateway_id, created_at;`,
		refund.ID, refund.PaymentID, refund.Amount, refund.Reason, refund.GatewayID)

	var out domain.Refund
	err := row.Scan(&out.ID, &out.PaymentID, &out.Amount, &out.Reason,
		&out.GatewayID, &out.CreatedAt)
	return out, err
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var (
		p      domain.Payment
		method string
		status string
	)
	err := row.Scan(
		&p.ID, &p.TransactionID, &p.RegistrationID, &p.Gateway,
		&method, &status,
		&p.Amount, &p.Fee, &p.NetAmount, &p.RetryCount, &p.ExpiresAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	p.Method = domain.PaymentMethod(method)
	p.Status = domain.PaymentStatus(status)
	return p, err
}

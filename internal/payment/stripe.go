package payment

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

// StripeProvider implements Provider using the Stripe API.
type StripeProvider struct {
	apiKey string
}

// NewStripeProvider creates a Stripe payment provider. The key is set
// globally because the stripe-go SDK is package-scoped.
func NewStripeProvider(apiKey string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{apiKey: apiKey}
}

var _ Provider = (*StripeProvider)(nil)

// Charge creates and confirms a payment intent in one call.
func (s *StripeProvider) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	piParams := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(params.AmountCents),
		Currency:      stripe.String(params.Currency),
		PaymentMethod: stripe.String(params.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(params.Description),
		// No redirect-based methods; declines must surface synchronously.
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	piParams.Context = ctx
	// Expanded so the processing fee is available on the result.
	piParams.AddExpand("latest_charge.balance_transaction")
	if params.IdempotencyKey != "" {
		piParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return nil, translateStripeError(err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &ChargeResult{TransactionID: pi.ID, Status: domain.PaymentFailed}, ErrChargeDeclined
	}

	result := &ChargeResult{
		TransactionID: pi.ID,
		Status:        domain.PaymentSucceeded,
	}
	if pi.LatestCharge != nil && pi.LatestCharge.BalanceTransaction != nil {
		result.FeeCents = pi.LatestCharge.BalanceTransaction.Fee
	}
	return result, nil
}

// Refund refunds all or part of a captured payment intent.
func (s *StripeProvider) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	rParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(params.TransactionID),
		Amount:        stripe.Int64(params.AmountCents),
	}
	rParams.Context = ctx
	if params.Reason != "" {
		rParams.AddMetadata("reason", params.Reason)
	}

	r, err := refund.New(rParams)
	if err != nil {
		return nil, translateStripeError(err)
	}
	return &RefundResult{RefundID: r.ID, Status: domain.PaymentRefunded}, nil
}

// translateStripeError maps stripe errors onto the package sentinels so
// callers can decide between retrying and failing the checkout.
func translateStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return errors.Join(ErrGatewayUnavailable, err)
	}
	switch stripeErr.Type {
	case stripe.ErrorTypeCard:
		return errors.Join(ErrChargeDeclined, err)
	case stripe.ErrorTypeAPI:
		return errors.Join(ErrGatewayUnavailable, err)
	default:
		return err
	}
}

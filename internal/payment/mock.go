package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

// MockProvider is a payment provider for testing. Simulates successful
// charges without calling a gateway.
type MockProvider struct {
	// ChargeFunc allows customizing charge behavior per test.
	ChargeFunc func(ctx context.Context, params ChargeParams) (*ChargeResult, error)

	// RefundFunc allows customizing refund behavior per test.
	RefundFunc func(ctx context.Context, params RefundParams) (*RefundResult, error)

	// Charges stores successful charges by transaction ID.
	Charges map[string]ChargeParams

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockProvider creates a mock payment provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Charges: make(map[string]ChargeParams),
		CallLog: []string{},
	}
}

var _ Provider = (*MockProvider)(nil)

// Charge records a successful mock charge.
func (m *MockProvider) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Charge(%d, %s)", params.AmountCents, params.Currency))

	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, params)
	}

	txID := "tx_" + uuid.New().String()
	m.Charges[txID] = params
	return &ChargeResult{TransactionID: txID, Status: domain.PaymentSucceeded}, nil
}

// Refund records a successful mock refund.
func (m *MockProvider) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Refund(%s, %d)", params.TransactionID, params.AmountCents))

	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, params)
	}

	return &RefundResult{RefundID: "re_" + uuid.New().String(), Status: domain.PaymentRefunded}, nil
}

package fel

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockCertifier is a certifier for testing. Issues authorizations
// without any network calls.
type MockCertifier struct {
	// CertifyFunc allows customizing certification behavior per test.
	CertifyFunc func(ctx context.Context, invoice Invoice) (*Authorization, error)

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockCertifier creates a mock certifier.
func NewMockCertifier() *MockCertifier {
	return &MockCertifier{CallLog: []string{}}
}

var _ Certifier = (*MockCertifier)(nil)

// Certify issues a mock authorization.
func (m *MockCertifier) Certify(ctx context.Context, invoice Invoice) (*Authorization, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Certify(%s, %s)", invoice.RegistrationCode, invoice.Amount))

	if m.CertifyFunc != nil {
		return m.CertifyFunc(ctx, invoice)
	}

	return &Authorization{
		Number:         uuid.New().String(),
		Series:         "A",
		DocumentNumber: "1",
	}, nil
}

// Package fel integrates with a Guatemalan electronic invoicing (FEL)
// certifier. Paid registrations must be certified before they are
// confirmed; certification failures keep the registration in PAGADO for
// a later retry.
package fel

import (
	"context"
	"errors"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

var (
	// ErrCertification means the certifier rejected the invoice. The
	// payment stands; certification is retried out of band.
	ErrCertification = errors.New("fel: certification failed")

	// ErrCertifierUnavailable means the certifier could not be reached
	// or returned a server error. Callers may retry.
	ErrCertifierUnavailable = errors.New("fel: certifier unavailable")
)

// Certifier issues electronic invoices for paid registrations.
type Certifier interface {
	// Certify submits an invoice and returns the certifier's
	// authorization number.
	Certify(ctx context.Context, invoice Invoice) (*Authorization, error)
}

// Invoice is the document submitted for certification.
type Invoice struct {
	RegistrationCode string
	NIT              string
	RecipientName    string
	Description      string
	Amount           domain.Money
	Currency         string
}

// Authorization is the certifier's signed acknowledgement.
type Authorization struct {
	// Number is the authorization UUID printed on the invoice.
	Number string

	// Series and DocumentNumber identify the fiscal document.
	Series         string
	DocumentNumber string
}

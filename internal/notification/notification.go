// Package notification publishes user-facing notification events. The
// pricing and reservation core never sends mail directly; it emits
// templated events that downstream consumers deliver.
package notification

import (
	"context"
)

// Template names a notification kind. The template string doubles as the
// routing key on the message bus.
type Template string

const (
	TemplateReservationCreated Template = "reservation_created"
	TemplateReservationExpired Template = "reservation_expired"
	TemplatePaymentReceived    Template = "payment_received"
	TemplateRegistrationFinal  Template = "registration_confirmed"
	TemplatePaymentFailed      Template = "payment_failed"
	TemplateRefundIssued       Template = "refund_issued"
	TemplateCartAbandoned      Template = "cart_abandoned"
)

// Message is one notification event.
type Message struct {
	Template Template          `json:"template"`
	UserID   string            `json:"user_id,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// Dispatcher publishes notification events. Dispatch failures are logged
// and swallowed by callers; a lost notification never fails a checkout.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

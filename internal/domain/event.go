package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var ErrEventNotFound = &Error{Code: ENOTFOUND, Message: "Event not found"}

// EventModality distinguishes presential, virtual and hybrid events.
type EventModality string

const (
	ModalityPresential EventModality = "presencial"
	ModalityVirtual    EventModality = "virtual"
	ModalityHybrid     EventModality = "hibrido"
)

// Event is a business event, training course or certification offered for
// sale. Pricing fields are immutable once published: price changes do not
// retroactively affect existing carts, which snapshot the base price at
// add-to-cart time.
type Event struct {
	ID       uuid.UUID
	Name     string
	Category string
	Modality EventModality

	// BasePrice is the list price per participant.
	BasePrice Money

	// MinPrice is the floor below which no discount combination may
	// reduce the per-unit price.
	MinPrice Money

	StartDate time.Time

	// Capacity is the maximum number of held or confirmed seats; nil
	// means unlimited. Consulted by the capacity oracle before reserve.
	Capacity *int

	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CapacityChecker reports whether an event can still accept registrations.
// Inventory tracking itself lives outside the pricing/reservation core.
type CapacityChecker interface {
	HasCapacity(ctx context.Context, eventID uuid.UUID) (bool, error)
}

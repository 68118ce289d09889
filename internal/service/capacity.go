package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tradeconnect/tradeconnect/internal/domain"
	"github.com/tradeconnect/tradeconnect/internal/repository"
)

// storeCapacity answers capacity questions by counting live holds.
// EXPIRADO, CANCELADO and REEMBOLSADO registrations do not occupy seats.
type storeCapacity struct {
	store repository.Store
}

// NewCapacityChecker creates the store-backed capacity oracle.
func NewCapacityChecker(store repository.Store) domain.CapacityChecker {
	return &storeCapacity{store: store}
}

func (c *storeCapacity) HasCapacity(ctx context.Context, eventID uuid.UUID) (bool, error) {
	event, err := c.store.GetEvent(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to load event: %w", err)
	}
	if event.Capacity == nil {
		return true, nil
	}
	held, err := c.store.CountHeldRegistrations(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to count held registrations: %w", err)
	}
	return held < *event.Capacity, nil
}

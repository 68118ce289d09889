package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tradeconnect/tradeconnect/internal/domain"
	"github.com/tradeconnect/tradeconnect/internal/repository"
)

// fakeUniqueViolation mimics the Postgres duplicate-key error surfaced
// on a registration code collision.
func fakeUniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

// mockStore is an in-memory repository.Store. Default behavior mimics
// the real queries closely enough for service tests; individual methods
// can be overridden with Func fields.
type mockStore struct {
	// mu serializes the usage-ledger paths so tests can hit them from
	// concurrent goroutines the way the real conditional UPDATE is hit.
	mu sync.Mutex

	events     map[uuid.UUID]domain.Event
	volumes    map[uuid.UUID][]domain.VolumeDiscount
	earlyBirds map[uuid.UUID][]domain.EarlyBirdDiscount
	held       map[uuid.UUID]int

	carts map[uuid.UUID]*domain.Cart

	promos map[string]*domain.PromoCode
	claims map[uuid.UUID]*domain.PromoClaim

	registrations map[uuid.UUID]*domain.Registration
	payments      map[uuid.UUID]*domain.Payment
	refunds       map[uuid.UUID]*domain.Refund

	// CallLog tracks mutating calls for assertions.
	CallLog []string

	ClaimPromoCodeFunc           func(ctx context.Context, claim domain.PromoClaim, maxPerUser int) (domain.PromoClaim, error)
	UpdateRegistrationStatusFunc func(ctx context.Context, id uuid.UUID, from, to domain.RegistrationStatus) error
	CreateRegistrationFunc       func(ctx context.Context, reg domain.Registration) (domain.Registration, error)
}

var _ repository.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		events:        map[uuid.UUID]domain.Event{},
		volumes:       map[uuid.UUID][]domain.VolumeDiscount{},
		earlyBirds:    map[uuid.UUID][]domain.EarlyBirdDiscount{},
		held:          map[uuid.UUID]int{},
		carts:         map[uuid.UUID]*domain.Cart{},
		promos:        map[string]*domain.PromoCode{},
		claims:        map[uuid.UUID]*domain.PromoClaim{},
		registrations: map[uuid.UUID]*domain.Registration{},
		payments:      map[uuid.UUID]*domain.Payment{},
		refunds:       map[uuid.UUID]*domain.Refund{},
	}
}

func (m *mockStore) log(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, call)
}

func (m *mockStore) WithTx(_ context.Context, fn func(repository.Store) error) error {
	// The mock has no transactional isolation; rollback semantics are not
	// exercised here.
	return fn(m)
}

func (m *mockStore) GetEvent(_ context.Context, id uuid.UUID) (domain.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return domain.Event{}, repository.ErrNotFound
	}
	return e, nil
}

func (m *mockStore) ListVolumeDiscounts(_ context.Context, eventID uuid.UUID) ([]domain.VolumeDiscount, error) {
	return m.volumes[eventID], nil
}

func (m *mockStore) ListEarlyBirdDiscounts(_ context.Context, eventID uuid.UUID) ([]domain.EarlyBirdDiscount, error) {
	return m.earlyBirds[eventID], nil
}

func (m *mockStore) CountHeldRegistrations(_ context.Context, eventID uuid.UUID) (int, error) {
	return m.held[eventID], nil
}

func (m *mockStore) CreateCart(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	m.log("CreateCart")
	m.carts[cart.ID] = &cart
	return cart, nil
}

func (m *mockStore) GetCartByID(_ context.Context, id uuid.UUID, includeExpired bool) (domain.Cart, error) {
	c, ok := m.carts[id]
	if !ok {
		return domain.Cart{}, repository.ErrNotFound
	}
	return *c, nil
}

func (m *mockStore) GetCartBySession(_ context.Context, sessionID string, includeExpired bool) (domain.Cart, error) {
	for _, c := range m.carts {
		if c.SessionID == sessionID {
			return *c, nil
		}
	}
	return domain.Cart{}, repository.ErrNotFound
}

func (m *mockStore) LockCart(_ context.Context, id uuid.UUID) error {
	if _, ok := m.carts[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (m *mockStore) UpsertCartItem(_ context.Context, item domain.CartItem) (domain.CartItem, error) {
	m.log("UpsertCartItem")
	cart, ok := m.carts[item.CartID]
	if !ok {
		return domain.CartItem{}, repository.ErrNotFound
	}
	if existing := cart.Item(item.EventID); existing != nil {
		existing.Quantity += item.Quantity
		return *existing, nil
	}
	cart.Items = append(cart.Items, item)
	return item, nil
}

func (m *mockStore) UpdateCartItemQuantity(_ context.Context, cartID, eventID uuid.UUID, quantity int) error {
	m.log("UpdateCartItemQuantity")
	cart, ok := m.carts[cartID]
	if !ok {
		return repository.ErrNotFound
	}
	item := cart.Item(eventID)
	if item == nil {
		return repository.ErrNotFound
	}
	item.Quantity = quantity
	return nil
}

func (m *mockStore) RemoveCartItem(_ context.Context, cartID, eventID uuid.UUID) error {
	m.log("RemoveCartItem")
	cart, ok := m.carts[cartID]
	if !ok {
		return repository.ErrNotFound
	}
	for idx := range cart.Items {
		if cart.Items[idx].EventID == eventID {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *mockStore) SetCartPromoCode(_ context.Context, cartID uuid.UUID, code *string) error {
	m.log("SetCartPromoCode")
	cart, ok := m.carts[cartID]
	if !ok {
		return repository.ErrNotFound
	}
	cart.PromoCode = code
	return nil
}

func (m *mockStore) SaveCartTotals(_ context.Context, cart domain.Cart) error {
	m.log("SaveCartTotals")
	stored, ok := m.carts[cart.ID]
	if !ok {
		return repository.ErrNotFound
	}
	*stored = cart
	return nil
}

func (m *mockStore) MarkAbandonedCarts(_ context.Context, inactiveSince time.Time) (int64, error) {
	var n int64
	for _, c := range m.carts {
		if !c.IsAbandoned && !c.LastActivity.After(inactiveSince) {
			c.IsAbandoned = true
			n++
		}
	}
	return n, nil
}

func (m *mockStore) DeleteExpiredCarts(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, c := range m.carts {
		if c.Expired(now) {
			delete(m.carts, id)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) GetPromoCodeByCode(_ context.Context, code string) (domain.PromoCode, error) {
	p, ok := m.promos[strings.ToUpper(code)]
	if !ok {
		return domain.PromoCode{}, repository.ErrNotFound
	}
	return *p, nil
}

func (m *mockStore) CountUserClaims(_ context.Context, promoCodeID, userID uuid.UUID) (int, error) {
	n := 0
	for _, c := range m.claims {
		if c.PromoCodeID == promoCodeID && c.UserID != nil && *c.UserID == userID && c.ReleasedAt == nil {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) ClaimPromoCode(ctx context.Context, claim domain.PromoClaim, maxPerUser int) (domain.PromoClaim, error) {
	m.log("ClaimPromoCode")
	if m.ClaimPromoCodeFunc != nil {
		return m.ClaimPromoCodeFunc(ctx, claim, maxPerUser)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var promo *domain.PromoCode
	for _, p := range m.promos {
		if p.ID == claim.PromoCodeID {
			promo = p
			break
		}
	}
	if promo == nil {
		return domain.PromoClaim{}, repository.ErrNotFound
	}
	if promo.Exhausted() {
		return domain.PromoClaim{}, repository.ErrUsageExhausted
	}
	if maxPerUser > 0 && claim.UserID != nil {
		n, _ := m.CountUserClaims(ctx, claim.PromoCodeID, *claim.UserID)
		if n >= maxPerUser {
			return domain.PromoClaim{}, repository.ErrUserLimitReached
		}
	}
	promo.CurrentUsesTotal++
	claim.ClaimedAt = time.Now()
	m.claims[claim.ID] = &claim
	return claim, nil
}

func (m *mockStore) ReleaseClaim(_ context.Context, claimID uuid.UUID) error {
	m.log("ReleaseClaim")
	m.mu.Lock()
	defer m.mu.Unlock()
	claim, ok := m.claims[claimID]
	if !ok || claim.ReleasedAt != nil {
		return nil
	}
	now := time.Now()
	claim.ReleasedAt = &now
	for _, p := range m.promos {
		if p.ID == claim.PromoCodeID && p.CurrentUsesTotal > 0 {
			p.CurrentUsesTotal--
		}
	}
	return nil
}

func (m *mockStore) CreateRegistration(ctx context.Context, reg domain.Registration) (domain.Registration, error) {
	m.log("CreateRegistration")
	if m.CreateRegistrationFunc != nil {
		return m.CreateRegistrationFunc(ctx, reg)
	}
	m.registrations[reg.ID] = &reg
	return reg, nil
}

func (m *mockStore) GetRegistration(_ context.Context, id uuid.UUID) (domain.Registration, error) {
	r, ok := m.registrations[id]
	if !ok {
		return domain.Registration{}, repository.ErrNotFound
	}
	return *r, nil
}

func (m *mockStore) LockRegistration(_ context.Context, id uuid.UUID) (domain.Registration, error) {
	r, ok := m.registrations[id]
	if !ok {
		return domain.Registration{}, repository.ErrNotFound
	}
	return *r, nil
}

func (m *mockStore) UpdateRegistrationStatus(ctx context.Context, id uuid.UUID, from, to domain.RegistrationStatus) error {
	m.log("UpdateRegistrationStatus(" + string(from) + "->" + string(to) + ")")
	if m.UpdateRegistrationStatusFunc != nil {
		return m.UpdateRegistrationStatusFunc(ctx, id, from, to)
	}
	r, ok := m.registrations[id]
	if !ok || r.Status != from {
		return repository.ErrStaleStatus
	}
	r.Status = to
	switch to {
	case domain.StatusPagado, domain.StatusExpirado, domain.StatusCancelado:
		r.ReservationExpiresAt = nil
	}
	return nil
}

func (m *mockStore) SetRegistrationPricing(_ context.Context, id uuid.UUID, discountAmount, finalPrice domain.Money, promoClaimID *uuid.UUID) error {
	m.log("SetRegistrationPricing")
	r, ok := m.registrations[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.DiscountAmount = discountAmount
	r.FinalPrice = finalPrice
	r.PromoClaimID = promoClaimID
	return nil
}

func (m *mockStore) SetRegistrationFelAuthorization(_ context.Context, id uuid.UUID, authorization string) error {
	m.log("SetRegistrationFelAuthorization")
	r, ok := m.registrations[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.FelAuthorization = &authorization
	return nil
}

func (m *mockStore) ExpireOverdueRegistrations(_ context.Context, now time.Time) ([]domain.Registration, error) {
	var expired []domain.Registration
	for _, r := range m.registrations {
		if r.ReservationExpired(now) {
			r.Status = domain.StatusExpirado
			r.ReservationExpiresAt = nil
			expired = append(expired, *r)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].RegistrationCode < expired[j].RegistrationCode
	})
	return expired, nil
}

func (m *mockStore) CreatePayment(_ context.Context, p domain.Payment) (domain.Payment, error) {
	m.log("CreatePayment")
	p.CreatedAt = time.Now()
	m.payments[p.ID] = &p
	return p, nil
}

func (m *mockStore) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status domain.PaymentStatus, retryCount int) error {
	m.log("UpdatePaymentStatus(" + string(status) + ")")
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	p.RetryCount = retryCount
	return nil
}

func (m *mockStore) RecordPaymentSuccess(_ context.Context, id uuid.UUID, transactionID string, fee domain.Money, retryCount int) error {
	m.log("RecordPaymentSuccess")
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = domain.PaymentSucceeded
	p.TransactionID = transactionID
	p.Fee = fee
	p.NetAmount = p.Amount.Subtract(fee)
	p.RetryCount = retryCount
	return nil
}

func (m *mockStore) GetPaymentByRegistration(_ context.Context, registrationID uuid.UUID) (domain.Payment, error) {
	var latest *domain.Payment
	for _, p := range m.payments {
		if p.RegistrationID != registrationID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return domain.Payment{}, repository.ErrNotFound
	}
	return *latest, nil
}

func (m *mockStore) CreateRefund(_ context.Context, r domain.Refund) (domain.Refund, error) {
	m.log("CreateRefund")
	m.refunds[r.ID] = &r
	return r, nil
}

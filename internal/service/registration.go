package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradeconnect/tradeconnect/internal/domain"
	"github.com/tradeconnect/tradeconnect/internal/fel"
	"github.com/tradeconnect/tradeconnect/internal/notification"
	"github.com/tradeconnect/tradeconnect/internal/payment"
	"github.com/tradeconnect/tradeconnect/internal/pricing"
	"github.com/tradeconnect/tradeconnect/internal/repository"
)

const (
	// chargeMaxAttempts bounds gateway retries for transient failures.
	chargeMaxAttempts = 3

	// chargeRetryBase is the first backoff delay; doubles per attempt.
	chargeRetryBase = 500 * time.Millisecond

	// certifyMaxAttempts bounds certifier retries when the FEL service
	// is unreachable.
	certifyMaxAttempts = 3

	// codeCollisionRetries bounds regeneration of a colliding
	// registration code.
	codeCollisionRetries = 3
)

// RegistrationService owns the registration state machine: reservation
// holds, the checkout flow through payment and FEL certification, and
// the cancellation and refund branches.
type RegistrationService interface {
	// Get returns a registration, lazily expiring a lapsed hold so a
	// reader never sees a payable registration past its TTL.
	Get(ctx context.Context, id uuid.UUID) (domain.Registration, error)

	// Reserve creates a BORRADOR hold for a user on an event, priced
	// with the automatic discounts in effect right now. The hold lasts
	// fifteen minutes.
	Reserve(ctx context.Context, params ReserveParams) (domain.Registration, error)

	// MarkPendingPayment moves an unexpired BORRADOR hold to
	// PENDIENTE_PAGO.
	MarkPendingPayment(ctx context.Context, id uuid.UUID) (domain.Registration, error)

	// ConfirmPayment runs the checkout: re-checks the hold, claims the
	// promo code if one is redeemed, charges the gateway, transitions to
	// PAGADO and, once FEL certification succeeds, to CONFIRMADO.
	ConfirmPayment(ctx context.Context, params ConfirmPaymentParams) (domain.Registration, error)

	// Cancel moves a PENDIENTE_PAGO or PAGADO registration to CANCELADO
	// and releases its promo claim. Paid registrations must be refunded
	// separately.
	Cancel(ctx context.Context, id uuid.UUID) (domain.Registration, error)

	// Refund refunds a PAGADO or CONFIRMADO registration through the
	// gateway and moves it to REEMBOLSADO.
	Refund(ctx context.Context, id uuid.UUID, reason string) (domain.Registration, error)

	// ExpireOverdue sweeps lapsed holds to EXPIRADO, releasing their
	// promo claims. Returns the number expired.
	ExpireOverdue(ctx context.Context) (int, error)
}

// ReserveParams describes one reservation request.
type ReserveParams struct {
	EventID  uuid.UUID
	UserID   uuid.UUID
	Quantity int
}

// ConfirmPaymentParams describes one checkout attempt.
type ConfirmPaymentParams struct {
	RegistrationID  uuid.UUID
	PaymentMethodID string
	Method          domain.PaymentMethod

	// PromoCode is redeemed at confirmation time; the usage ledger claim
	// happens here, not at reservation.
	PromoCode *string

	// RecipientNIT and RecipientName feed the FEL invoice. Empty NIT
	// certifies to consumidor final.
	RecipientNIT  string
	RecipientName string
}

type registrationService struct {
	store     repository.Store
	capacity  domain.CapacityChecker
	gateway   payment.Provider
	certifier fel.Certifier
	notifier  notification.Dispatcher
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(time.Duration)
}

// NewRegistrationService creates the registration lifecycle manager.
func NewRegistrationService(
	store repository.Store,
	capacity domain.CapacityChecker,
	gateway payment.Provider,
	certifier fel.Certifier,
	notifier notification.Dispatcher,
	logger *slog.Logger,
) RegistrationService {
	return &registrationService{
		store:     store,
		capacity:  capacity,
		gateway:   gateway,
		certifier: certifier,
		notifier:  notifier,
		logger:    logger.With(slog.String("service", "registration")),
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

func (s *registrationService) Get(ctx context.Context, id uuid.UUID) (domain.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Registration{}, domain.ErrRegistrationNotFound
		}
		return domain.Registration{}, fmt.Errorf("failed to load registration: %w", err)
	}
	if !reg.ReservationExpired(s.now()) {
		return reg, nil
	}

	// Lapsed hold observed on read; expire it now rather than waiting
	// for the sweep. Losing the race to the sweep is fine.
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.UpdateRegistrationStatus(ctx, id, reg.Status, domain.StatusExpirado); err != nil {
			if errors.Is(err, repository.ErrStaleStatus) {
				return nil
			}
			return err
		}
		if reg.PromoClaimID != nil {
			return tx.ReleaseClaim(ctx, *reg.PromoClaimID)
		}
		return nil
	})
	if err != nil {
		return domain.Registration{}, err
	}
	reg.Status = domain.StatusExpirado
	reg.ReservationExpiresAt = nil
	return reg, nil
}

func (s *registrationService) Reserve(ctx context.Context, params ReserveParams) (domain.Registration, error) {
	if params.Quantity < 1 || params.Quantity > domain.MaxItemQuantity {
		return domain.Registration{}, domain.ErrInvalidQuantity
	}

	event, err := s.store.GetEvent(ctx, params.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Registration{}, domain.ErrEventNotFound
		}
		return domain.Registration{}, fmt.Errorf("failed to load event: %w", err)
	}
	if !event.IsPublished {
		return domain.Registration{}, ErrEventNotForSale
	}

	ok, err := s.capacity.HasCapacity(ctx, params.EventID)
	if err != nil {
		return domain.Registration{}, err
	}
	if !ok {
		return domain.Registration{}, domain.ErrNoCapacity
	}

	now := s.now()
	discount, _, err := s.automaticDiscounts(ctx, s.store, event, params.Quantity, now)
	if err != nil {
		return domain.Registration{}, err
	}

	gross := event.BasePrice.Multiply(params.Quantity)
	expires := now.Add(domain.ReservationTTL)

	reg := domain.Registration{
		ID:                   uuid.New(),
		EventID:              params.EventID,
		UserID:               params.UserID,
		Status:               domain.StatusBorrador,
		Quantity:             params.Quantity,
		BasePrice:            event.BasePrice,
		DiscountAmount:       discount,
		FinalPrice:           gross.Subtract(discount),
		ReservationExpiresAt: &expires,
	}

	// The registration code embeds a short random suffix; regenerate on
	// the rare unique-constraint collision.
	for attempt := 0; ; attempt++ {
		reg.RegistrationCode = domain.NewRegistrationCode(now)
		created, err := s.store.CreateRegistration(ctx, reg)
		if err == nil {
			reg = created
			break
		}
		if repository.IsUniqueViolation(err) && attempt < codeCollisionRetries {
			continue
		}
		return domain.Registration{}, fmt.Errorf("failed to create registration: %w", err)
	}

	s.dispatch(ctx, notification.Message{
		Template: notification.TemplateReservationCreated,
		UserID:   params.UserID.String(),
		Data: map[string]string{
			"registration_code": reg.RegistrationCode,
			"event":             event.Name,
			"expires_at":        expires.Format(time.RFC3339),
		},
	})
	return reg, nil
}

func (s *registrationService) MarkPendingPayment(ctx context.Context, id uuid.UUID) (domain.Registration, error) {
	var out domain.Registration
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		reg, err := s.lockLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if reg.Status != domain.StatusBorrador {
			return domain.ErrInvalidTransition
		}
		if err := tx.UpdateRegistrationStatus(ctx, id, domain.StatusBorrador, domain.StatusPendientePago); err != nil {
			return s.translateStatusError(err)
		}
		reg.Status = domain.StatusPendientePago
		out = reg
		return nil
	})
	return out, err
}

func (s *registrationService) ConfirmPayment(ctx context.Context, params ConfirmPaymentParams) (domain.Registration, error) {
	// Phase one: under the row lock, re-check the hold, settle the final
	// price, claim the promo usage and record a pending payment. The
	// gateway is never called while holding database locks.
	var (
		reg      domain.Registration
		preClaim domain.Registration
		pay      domain.Payment
		claimID  *uuid.UUID
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		reg, err = s.lockLive(ctx, tx, params.RegistrationID)
		if err != nil {
			return err
		}

		switch reg.Status {
		case domain.StatusBorrador:
			if err := tx.UpdateRegistrationStatus(ctx, reg.ID, domain.StatusBorrador, domain.StatusPendientePago); err != nil {
				return s.translateStatusError(err)
			}
			reg.Status = domain.StatusPendientePago
		case domain.StatusPendientePago:
			// retry after an earlier failed charge
		default:
			return domain.ErrInvalidTransition
		}

		preClaim = reg
		if params.PromoCode != nil {
			if err := s.claimPromo(ctx, tx, &reg, *params.PromoCode); err != nil {
				return err
			}
			claimID = reg.PromoClaimID
		}

		pay, err = tx.CreatePayment(ctx, domain.Payment{
			ID:             uuid.New(),
			TransactionID:  "",
			RegistrationID: reg.ID,
			Gateway:        "stripe",
			Method:         params.Method,
			Status:         domain.PaymentPending,
			Amount:         reg.FinalPrice,
			NetAmount:      reg.FinalPrice,
		})
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Registration{}, err
	}

	// Phase two: charge. Transient gateway failures retry with backoff;
	// declines fail immediately.
	result, attempts, chargeErr := s.charge(ctx, payment.ChargeParams{
		AmountCents:     int64(reg.FinalPrice.Cents()),
		Currency:        "gtq",
		PaymentMethodID: params.PaymentMethodID,
		IdempotencyKey:  pay.ID.String(),
		Description:     "Registration " + reg.RegistrationCode,
		Method:          params.Method,
		Metadata:        map[string]string{"registration_code": reg.RegistrationCode},
	})
	if chargeErr != nil {
		s.failCharge(ctx, preClaim, pay, claimID, attempts, chargeErr)
		return domain.Registration{}, domain.WrapError(chargeErr, domain.EPAYMENT, "service.ConfirmPayment", "Payment could not be processed")
	}

	// Phase three: record the gateway's charge reference and fee and
	// transition to PAGADO. If the sweep expired the hold while the
	// gateway held the call, the money is already captured; the charge
	// is compensated rather than orphaned.
	fee := domain.NewMoneyFromCents(result.FeeCents)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.UpdateRegistrationStatus(ctx, reg.ID, domain.StatusPendientePago, domain.StatusPagado); err != nil {
			return s.translateStatusError(err)
		}
		if err := tx.RecordPaymentSuccess(ctx, pay.ID, result.TransactionID, fee, attempts); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return domain.Registration{}, s.compensateCharge(ctx, reg, pay, result, fee, attempts)
		}
		return domain.Registration{}, err
	}
	reg.Status = domain.StatusPagado
	pay.TransactionID = result.TransactionID
	pay.Status = domain.PaymentSucceeded

	s.dispatch(ctx, notification.Message{
		Template: notification.TemplatePaymentReceived,
		UserID:   reg.UserID.String(),
		Data: map[string]string{
			"registration_code": reg.RegistrationCode,
			"amount":            reg.FinalPrice.String(),
		},
	})

	// Phase four: FEL certification with bounded retries on certifier
	// outages. A final failure leaves the registration PAGADO for an
	// out-of-band retry; the payment stands.
	auth, err := s.certify(ctx, fel.Invoice{
		RegistrationCode: reg.RegistrationCode,
		NIT:              params.RecipientNIT,
		RecipientName:    params.RecipientName,
		Description:      "Event registration " + reg.RegistrationCode,
		Amount:           reg.FinalPrice,
		Currency:         "GTQ",
	})
	if err != nil {
		s.logger.Error("fel certification failed, registration stays paid",
			slog.String("registration_id", reg.ID.String()),
			slog.String("error", err.Error()))
		return reg, nil
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.SetRegistrationFelAuthorization(ctx, reg.ID, auth.Number); err != nil {
			return fmt.Errorf("failed to store fel authorization: %w", err)
		}
		if err := tx.UpdateRegistrationStatus(ctx, reg.ID, domain.StatusPagado, domain.StatusConfirmado); err != nil {
			return s.translateStatusError(err)
		}
		return nil
	})
	if err != nil {
		return reg, err
	}
	reg.Status = domain.StatusConfirmado
	reg.FelAuthorization = &auth.Number

	s.dispatch(ctx, notification.Message{
		Template: notification.TemplateRegistrationFinal,
		UserID:   reg.UserID.String(),
		Data: map[string]string{
			"registration_code": reg.RegistrationCode,
			"fel_authorization": auth.Number,
		},
	})
	return reg, nil
}

func (s *registrationService) Cancel(ctx context.Context, id uuid.UUID) (domain.Registration, error) {
	var out domain.Registration
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		reg, err := tx.LockRegistration(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrRegistrationNotFound
			}
			return fmt.Errorf("failed to lock registration: %w", err)
		}
		if !domain.CanTransition(reg.Status, domain.StatusCancelado) {
			return domain.ErrInvalidTransition
		}
		if err := tx.UpdateRegistrationStatus(ctx, id, reg.Status, domain.StatusCancelado); err != nil {
			return s.translateStatusError(err)
		}
		if reg.PromoClaimID != nil {
			if err := tx.ReleaseClaim(ctx, *reg.PromoClaimID); err != nil {
				return fmt.Errorf("failed to release promo claim: %w", err)
			}
		}
		reg.Status = domain.StatusCancelado
		out = reg
		return nil
	})
	return out, err
}

func (s *registrationService) Refund(ctx context.Context, id uuid.UUID, reason string) (domain.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Registration{}, domain.ErrRegistrationNotFound
		}
		return domain.Registration{}, fmt.Errorf("failed to load registration: %w", err)
	}
	if !domain.CanTransition(reg.Status, domain.StatusReembolsado) {
		return domain.Registration{}, domain.ErrInvalidTransition
	}

	pay, err := s.store.GetPaymentByRegistration(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Registration{}, domain.ErrPaymentNotFound
		}
		return domain.Registration{}, fmt.Errorf("failed to load payment: %w", err)
	}

	result, err := s.gateway.Refund(ctx, payment.RefundParams{
		TransactionID: pay.TransactionID,
		AmountCents:   int64(pay.Amount.Cents()),
		Reason:        reason,
	})
	if err != nil {
		return domain.Registration{}, domain.WrapError(err, domain.EPAYMENT, "service.Refund", "Refund could not be processed")
	}

	fromStatus := reg.Status
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.CreateRefund(ctx, domain.Refund{
			ID:        uuid.New(),
			PaymentID: pay.ID,
			Amount:    pay.Amount,
			Reason:    reason,
			GatewayID: result.RefundID,
		}); err != nil {
			return fmt.Errorf("failed to record refund: %w", err)
		}
		if err := tx.UpdatePaymentStatus(ctx, pay.ID, domain.PaymentRefunded, pay.RetryCount); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		if err := tx.UpdateRegistrationStatus(ctx, id, fromStatus, domain.StatusReembolsado); err != nil {
			return s.translateStatusError(err)
		}
		if reg.PromoClaimID != nil {
			if err := tx.ReleaseClaim(ctx, *reg.PromoClaimID); err != nil {
				return fmt.Errorf("failed to release promo claim: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Registration{}, err
	}
	reg.Status = domain.StatusReembolsado

	s.dispatch(ctx, notification.Message{
		Template: notification.TemplateRefundIssued,
		UserID:   reg.UserID.String(),
		Data: map[string]string{
			"registration_code": reg.RegistrationCode,
			"amount":            pay.Amount.String(),
		},
	})
	return reg, nil
}

func (s *registrationService) ExpireOverdue(ctx context.Context) (int, error) {
	var expired []domain.Registration
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		expired, err = tx.ExpireOverdueRegistrations(ctx, s.now())
		if err != nil {
			return fmt.Errorf("failed to expire registrations: %w", err)
		}
		for _, reg := range expired {
			if reg.PromoClaimID == nil {
				continue
			}
			if err := tx.ReleaseClaim(ctx, *reg.PromoClaimID); err != nil {
				return fmt.Errorf("failed to release promo claim: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	registrationsExpired.Add(float64(len(expired)))

	for _, reg := range expired {
		s.dispatch(ctx, notification.Message{
			Template: notification.TemplateReservationExpired,
			UserID:   reg.UserID.String(),
			Data:     map[string]string{"registration_code": reg.RegistrationCode},
		})
	}
	if len(expired) > 0 {
		s.logger.Info("reservation sweep complete", slog.Int("expired", len(expired)))
	}
	return len(expired), nil
}

// lockLive locks the registration and enforces the reservation TTL at
// the same threshold the sweep uses. A lapsed hold is moved to EXPIRADO
// here rather than waiting for the sweep, so it is never payable.
func (s *registrationService) lockLive(ctx context.Context, tx repository.Store, id uuid.UUID) (domain.Registration, error) {
	reg, err := tx.LockRegistration(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Registration{}, domain.ErrRegistrationNotFound
		}
		return domain.Registration{}, fmt.Errorf("failed to lock registration: %w", err)
	}
	if reg.ReservationExpired(s.now()) {
		if err := tx.UpdateRegistrationStatus(ctx, id, reg.Status, domain.StatusExpirado); err != nil {
			return domain.Registration{}, s.translateStatusError(err)
		}
		if reg.PromoClaimID != nil {
			if err := tx.ReleaseClaim(ctx, *reg.PromoClaimID); err != nil {
				return domain.Registration{}, fmt.Errorf("failed to release promo claim: %w", err)
			}
		}
		registrationsExpired.Inc()
		return domain.Registration{}, domain.ErrReservationExpired
	}
	return reg, nil
}

// claimPromo validates the code against the registration's price,
// atomically claims a usage and re-prices the registration with the
// promo included.
func (s *registrationService) claimPromo(ctx context.Context, tx repository.Store, reg *domain.Registration, code string) error {
	promo, err := tx.GetPromoCodeByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PromoCodeIneligible(code, domain.ReasonNotFound)
		}
		return fmt.Errorf("failed to load promo code: %w", err)
	}

	priorUses, err := tx.CountUserClaims(ctx, promo.ID, reg.UserID)
	if err != nil {
		return fmt.Errorf("failed to count user claims: %w", err)
	}

	event, err := tx.GetEvent(ctx, reg.EventID)
	if err != nil {
		return fmt.Errorf("failed to load event: %w", err)
	}

	gross := reg.BasePrice.Multiply(reg.Quantity)
	now := s.now()

	promoResult, err := pricing.EvaluatePromoCode(&promo, pricing.PromoContext{
		Subtotal:      gross,
		Quantity:      reg.Quantity,
		UnitPrice:     reg.BasePrice,
		UserPriorUses: priorUses,
		Now:           now,
	})
	if err != nil {
		return err
	}

	// Re-resolve with the automatic discounts so stacking and the floor
	// clamp see the full rule set, not the promo in isolation.
	_, autoResults, err := s.automaticDiscounts(ctx, tx, event, reg.Quantity, now)
	if err != nil {
		return err
	}
	results := append(autoResults, *promoResult)
	res := pricing.Resolve(results, gross, event.MinPrice.Multiply(reg.Quantity))

	claim, err := tx.ClaimPromoCode(ctx, domain.PromoClaim{
		ID:          uuid.New(),
		PromoCodeID: promo.ID,
		UserID:      &reg.UserID,
	}, promo.MaxUsesPerUser)
	if err != nil {
		promoClaims.WithLabelValues("rejected").Inc()
		return translateClaimError(code, err)
	}
	promoClaims.WithLabelValues("granted").Inc()

	reg.DiscountAmount = res.Discount
	reg.FinalPrice = gross.Subtract(res.Discount)
	reg.PromoClaimID = &claim.ID
	if err := tx.SetRegistrationPricing(ctx, reg.ID, reg.DiscountAmount, reg.FinalPrice, reg.PromoClaimID); err != nil {
		return fmt.Errorf("failed to update registration pricing: %w", err)
	}
	return nil
}

// automaticDiscounts evaluates and resolves the auto-applied rule
// families (volume, early-bird) for a direct registration.
func (s *registrationService) automaticDiscounts(ctx context.Context, store repository.Store, event domain.Event, quantity int, now time.Time) (domain.Money, []domain.DiscountResult, error) {
	itemCtx := pricing.ItemContext{
		Quantity:   quantity,
		UnitPrice:  event.BasePrice,
		UnitFloor:  event.MinPrice,
		EventStart: event.StartDate,
		Now:        now,
	}

	volumes, err := store.ListVolumeDiscounts(ctx, event.ID)
	if err != nil {
		return domain.Money{}, nil, fmt.Errorf("failed to list volume discounts: %w", err)
	}
	earlyBirds, err := store.ListEarlyBirdDiscounts(ctx, event.ID)
	if err != nil {
		return domain.Money{}, nil, fmt.Errorf("failed to list early-bird discounts: %w", err)
	}

	var results []domain.DiscountResult
	if r := pricing.EvaluateVolume(volumes, itemCtx); r != nil {
		results = append(results, *r)
	}
	if r := pricing.EvaluateEarlyBird(earlyBirds, itemCtx); r != nil {
		results = append(results, *r)
	}

	res := pricing.Resolve(results, itemCtx.Gross(), itemCtx.Floor())
	return res.Discount, results, nil
}

// charge calls the gateway with bounded retries on transient failures.
// Returns the attempt count for the payment record.
func (s *registrationService) charge(ctx context.Context, params payment.ChargeParams) (*payment.ChargeResult, int, error) {
	var lastErr error
	for attempt := 1; attempt <= chargeMaxAttempts; attempt++ {
		result, err := s.gateway.Charge(ctx, params)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err
		if !errors.Is(err, payment.ErrGatewayUnavailable) {
			return nil, attempt, err
		}
		if attempt < chargeMaxAttempts {
			s.sleep(chargeRetryBase << (attempt - 1))
		}
	}
	return nil, chargeMaxAttempts, lastErr
}

// certify submits the invoice with bounded retries while the certifier
// is unreachable. Rejections fail immediately.
func (s *registrationService) certify(ctx context.Context, invoice fel.Invoice) (*fel.Authorization, error) {
	var lastErr error
	for attempt := 1; attempt <= certifyMaxAttempts; attempt++ {
		auth, err := s.certifier.Certify(ctx, invoice)
		if err == nil {
			return auth, nil
		}
		lastErr = err
		if !errors.Is(err, fel.ErrCertifierUnavailable) {
			return nil, err
		}
		if attempt < certifyMaxAttempts {
			s.sleep(chargeRetryBase << (attempt - 1))
		}
	}
	return nil, lastErr
}

// compensateCharge refunds a captured charge whose registration left
// PENDIENTE_PAGO concurrently, which happens when the sweep expires the
// hold during the gateway call. The charge reference is persisted first
// so a failed refund can still be reconciled.
func (s *registrationService) compensateCharge(ctx context.Context, reg domain.Registration, pay domain.Payment, result *payment.ChargeResult, fee domain.Money, attempts int) error {
	s.logger.Warn("registration expired during charge, refunding",
		slog.String("registration_id", reg.ID.String()),
		slog.String("transaction_id", result.TransactionID))

	if err := s.store.RecordPaymentSuccess(ctx, pay.ID, result.TransactionID, fee, attempts); err != nil {
		s.logger.Error("failed to record captured charge",
			slog.String("payment_id", pay.ID.String()),
			slog.String("error", err.Error()))
	}

	refunded, err := s.gateway.Refund(ctx, payment.RefundParams{
		TransactionID: result.TransactionID,
		AmountCents:   int64(pay.Amount.Cents()),
		Reason:        "reservation expired during payment",
	})
	if err != nil {
		// Money captured against an expired hold and the refund did not
		// go through; the succeeded payment row carries the charge
		// reference for manual reconciliation.
		s.logger.Error("compensating refund failed, reconciliation needed",
			slog.String("payment_id", pay.ID.String()),
			slog.String("transaction_id", result.TransactionID),
			slog.String("error", err.Error()))
		return domain.ErrReservationExpired
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.CreateRefund(ctx, domain.Refund{
			ID:        uuid.New(),
			PaymentID: pay.ID,
			Amount:    pay.Amount,
			Reason:    "reservation expired during payment",
			GatewayID: refunded.RefundID,
		}); err != nil {
			return err
		}
		return tx.UpdatePaymentStatus(ctx, pay.ID, domain.PaymentRefunded, attempts)
	})
	if err != nil {
		s.logger.Error("failed to record compensating refund",
			slog.String("payment_id", pay.ID.String()),
			slog.String("error", err.Error()))
	}
	return domain.ErrReservationExpired
}

// failCharge records a failed charge: payment marked failed, promo claim
// released so retries can re-claim, registration left PENDIENTE_PAGO.
func (s *registrationService) failCharge(ctx context.Context, reg domain.Registration, pay domain.Payment, claimID *uuid.UUID, attempts int, chargeErr error) {
	s.logger.Error("charge failed",
		slog.String("registration_id", reg.ID.String()),
		slog.Int("attempts", attempts),
		slog.String("error", chargeErr.Error()))

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.UpdatePaymentStatus(ctx, pay.ID, domain.PaymentFailed, attempts); err != nil {
			return err
		}
		if claimID != nil {
			if err := tx.ReleaseClaim(ctx, *claimID); err != nil {
				return err
			}
			if err := tx.SetRegistrationPricing(ctx, reg.ID, reg.DiscountAmount, reg.FinalPrice, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to record charge failure",
			slog.String("payment_id", pay.ID.String()),
			slog.String("error", err.Error()))
	}

	s.dispatch(ctx, notification.Message{
		Template: notification.TemplatePaymentFailed,
		UserID:   reg.UserID.String(),
		Data:     map[string]string{"registration_code": reg.RegistrationCode},
	})
}

func (s *registrationService) translateStatusError(err error) error {
	if errors.Is(err, repository.ErrStaleStatus) {
		return domain.ErrInvalidTransition
	}
	return err
}

// dispatch publishes a notification best-effort; a bus failure never
// fails the flow that triggered it.
func (s *registrationService) dispatch(ctx context.Context, msg notification.Message) {
	if err := s.notifier.Dispatch(ctx, msg); err != nil {
		s.logger.Warn("notification dispatch failed",
			slog.String("template", string(msg.Template)),
			slog.String("error", err.Error()))
	}
}

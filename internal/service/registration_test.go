package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeconnect/tradeconnect/internal/domain"
	"github.com/tradeconnect/tradeconnect/internal/fel"
	"github.com/tradeconnect/tradeconnect/internal/notification"
	"github.com/tradeconnect/tradeconnect/internal/payment"
	"github.com/tradeconnect/tradeconnect/internal/repository"
)

type regFixture struct {
	store     *mockStore
	gateway   *payment.MockProvider
	certifier *fel.MockCertifier
	notifier  *notification.MockDispatcher
	svc       *registrationService

	// clock backs the service's now func; tests advance it directly.
	clock time.Time

	// sleeps records backoff delays instead of sleeping.
	sleeps []time.Duration
}

func newRegFixture() *regFixture {
	f := &regFixture{
		store:     newMockStore(),
		gateway:   payment.NewMockProvider(),
		certifier: fel.NewMockCertifier(),
		notifier:  notification.NewMockDispatcher(),
		clock:     testNow,
	}
	f.svc = &registrationService{
		store:     f.store,
		capacity:  NewCapacityChecker(f.store),
		gateway:   f.gateway,
		certifier: f.certifier,
		notifier:  f.notifier,
		logger:    discardLogger(),
		now:       func() time.Time { return f.clock },
		sleep:     func(d time.Duration) { f.sleeps = append(f.sleeps, d) },
	}
	return f
}

func (f *regFixture) reserve(t *testing.T, event domain.Event, qty int) domain.Registration {
	t.Helper()
	reg, err := f.svc.Reserve(context.Background(), ReserveParams{
		EventID:  event.ID,
		UserID:   uuid.New(),
		Quantity: qty,
	})
	require.NoError(t, err)
	return reg
}

func templates(msgs []notification.Message) []notification.Template {
	out := make([]notification.Template, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Template)
	}
	return out
}

func TestReserve_CreatesHoldWithTTL(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "500.00", "0.00", 60*24*time.Hour)

	reg := f.reserve(t, event, 2)

	assert.Equal(t, domain.StatusBorrador, reg.Status)
	assert.Equal(t, "1000.00", reg.FinalPrice.String())
	require.NotNil(t, reg.ReservationExpiresAt)
	assert.Equal(t, testNow.Add(domain.ReservationTTL), *reg.ReservationExpiresAt)
	assert.Contains(t, reg.RegistrationCode, "INS-20260310-")
	assert.Contains(t, templates(f.notifier.Messages), notification.TemplateReservationCreated)
}

func TestReserve_AppliesAutomaticDiscounts(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	f.store.volumes[event.ID] = []domain.VolumeDiscount{{
		ID:                 uuid.New(),
		EventID:            event.ID,
		MinQuantity:        10,
		DiscountPercentage: decimal.NewFromInt(15),
		IsActive:           true,
	}}

	reg := f.reserve(t, event, 10)

	assert.Equal(t, "150.00", reg.DiscountAmount.String())
	assert.Equal(t, "850.00", reg.FinalPrice.String())
}

func TestReserve_NoCapacity(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 24*time.Hour)
	cap := 3
	event.Capacity = &cap
	f.store.events[event.ID] = event
	f.store.held[event.ID] = 3

	_, err := f.svc.Reserve(context.Background(), ReserveParams{
		EventID: event.ID, UserID: uuid.New(), Quantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrNoCapacity)
}

func TestReserve_RetriesOnCodeCollision(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 24*time.Hour)

	attempts := 0
	f.store.CreateRegistrationFunc = func(_ context.Context, reg domain.Registration) (domain.Registration, error) {
		attempts++
		if attempts == 1 {
			return domain.Registration{}, fakeUniqueViolation()
		}
		f.store.registrations[reg.ID] = &reg
		return reg, nil
	}

	reg := f.reserve(t, event, 1)
	assert.Equal(t, 2, attempts)
	assert.NotEmpty(t, reg.RegistrationCode)
}

func TestConfirmPayment_HappyPath(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "500.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	out, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_test",
		Method:          domain.MethodCard,
		RecipientNIT:    "1234567",
		RecipientName:   "Empresa S.A.",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConfirmado, out.Status)
	require.NotNil(t, out.FelAuthorization)

	stored := f.store.registrations[reg.ID]
	assert.Equal(t, domain.StatusConfirmado, stored.Status)
	assert.Nil(t, stored.ReservationExpiresAt)

	pay, err := f.store.GetPaymentByRegistration(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSucceeded, pay.Status)
	assert.Equal(t, "500.00", pay.Amount.String())
	assert.NotEmpty(t, pay.TransactionID)

	got := templates(f.notifier.Messages)
	assert.Contains(t, got, notification.TemplatePaymentReceived)
	assert.Contains(t, got, notification.TemplateRegistrationFinal)
}

func TestConfirmPayment_ClaimsPromoAndReprices(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "500.00", "0.00", 60*24*time.Hour)
	promo := seedPromo(f.store, "DESC10", domain.PromoCode{
		DiscountType:   domain.DiscountPercentage,
		DiscountValue:  decimal.NewFromInt(10),
		MaxUsesPerUser: 1,
		IsStackable:    true,
		Priority:       5,
	})
	reg := f.reserve(t, event, 2)

	var charged int64
	f.gateway.ChargeFunc = func(_ context.Context, params payment.ChargeParams) (*payment.ChargeResult, error) {
		charged = params.AmountCents
		return &payment.ChargeResult{TransactionID: "tx_1", Status: domain.PaymentSucceeded}, nil
	}

	code := "DESC10"
	out, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_test",
		Method:          domain.MethodCard,
		PromoCode:       &code,
	})
	require.NoError(t, err)

	// 10% off the Q1000.00 gross, charged post-discount.
	stored := f.store.registrations[reg.ID]
	assert.Equal(t, "100.00", stored.DiscountAmount.String())
	assert.Equal(t, "900.00", stored.FinalPrice.String())
	require.NotNil(t, stored.PromoClaimID)
	assert.EqualValues(t, 90000, charged)
	assert.Equal(t, 1, promo.CurrentUsesTotal)
	assert.Equal(t, domain.StatusConfirmado, out.Status)
}

func TestConfirmPayment_PersistsTransactionIDAndFee(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "500.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	f.gateway.ChargeFunc = func(context.Context, payment.ChargeParams) (*payment.ChargeResult, error) {
		return &payment.ChargeResult{
			TransactionID: "tx_persist",
			FeeCents:      1750,
			Status:        domain.PaymentSucceeded,
		}, nil
	}

	_, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_test",
		Method:          domain.MethodCard,
	})
	require.NoError(t, err)

	// The stored payment carries the gateway's charge reference; the
	// refund path depends on reading it back.
	pay, err := f.store.GetPaymentByRegistration(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "tx_persist", pay.TransactionID)
	assert.Equal(t, "17.50", pay.Fee.String())
	assert.Equal(t, "482.50", pay.NetAmount.String())
}

func TestConfirmPayment_PromoExhausted(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "500.00", "0.00", 60*24*time.Hour)
	max := 1
	seedPromo(f.store, "AGOTADO", domain.PromoCode{
		DiscountType:     domain.DiscountPercentage,
		DiscountValue:    decimal.NewFromInt(10),
		MaxUsesTotal:     &max,
		CurrentUsesTotal: 1,
	})
	reg := f.reserve(t, event, 1)

	code := "AGOTADO"
	_, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_test",
		Method:          domain.MethodCard,
		PromoCode:       &code,
	})
	assert.Equal(t, domain.ReasonUsageExhausted, domain.IneligibleReasonOf(err))
	assert.Empty(t, f.gateway.CallLog, "no charge without a successful claim")
}

func TestConfirmPayment_DeclinedReleasesClaimAndRevertsPricing(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "500.00", "0.00", 60*24*time.Hour)
	promo := seedPromo(f.store, "DESC10", domain.PromoCode{
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
	})
	reg := f.reserve(t, event, 1)

	f.gateway.ChargeFunc = func(context.Context, payment.ChargeParams) (*payment.ChargeResult, error) {
		return nil, payment.ErrChargeDeclined
	}

	code := "DESC10"
	_, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_bad",
		Method:          domain.MethodCard,
		PromoCode:       &code,
	})
	require.Error(t, err)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

	// Declines do not retry.
	assert.Empty(t, f.sleeps)
	assert.Len(t, f.gateway.CallLog, 1)

	// The claim is released and the pre-claim price restored so a retry
	// with another card can re-claim cleanly.
	stored := f.store.registrations[reg.ID]
	assert.Equal(t, domain.StatusPendientePago, stored.Status)
	assert.Nil(t, stored.PromoClaimID)
	assert.Equal(t, "500.00", stored.FinalPrice.String())
	assert.Equal(t, 0, promo.CurrentUsesTotal)

	pay, perr := f.store.GetPaymentByRegistration(context.Background(), reg.ID)
	require.NoError(t, perr)
	assert.Equal(t, domain.PaymentFailed, pay.Status)
	assert.Contains(t, templates(f.notifier.Messages), notification.TemplatePaymentFailed)
}

func TestConfirmPayment_RetriesTransientGatewayFailures(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	calls := 0
	f.gateway.ChargeFunc = func(context.Context, payment.ChargeParams) (*payment.ChargeResult, error) {
		calls++
		if calls < 3 {
			return nil, payment.ErrGatewayUnavailable
		}
		return &payment.ChargeResult{TransactionID: "tx_ok", Status: domain.PaymentSucceeded}, nil
	}

	out, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_test",
		Method:          domain.MethodCard,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, f.sleeps)
	assert.Equal(t, domain.StatusConfirmado, out.Status)

	pay, perr := f.store.GetPaymentByRegistration(context.Background(), reg.ID)
	require.NoError(t, perr)
	assert.Equal(t, 3, pay.RetryCount)
}

func TestConfirmPayment_ExpiredReservation(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	f.clock = f.clock.Add(domain.ReservationTTL + time.Second)

	_, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_test",
		Method:          domain.MethodCard,
	})
	assert.ErrorIs(t, err, domain.ErrReservationExpired)
	assert.Equal(t, domain.StatusExpirado, f.store.registrations[reg.ID].Status)
	assert.Empty(t, f.gateway.CallLog)
}

func TestConfirmPayment_FelFailureLeavesPaid(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	f.certifier.CertifyFunc = func(context.Context, fel.Invoice) (*fel.Authorization, error) {
		return nil, fel.ErrCertification
	}

	out, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_test",
		Method:          domain.MethodCard,
	})
	require.NoError(t, err, "a certifier outage must not fail a captured payment")

	assert.Equal(t, domain.StatusPagado, out.Status)
	assert.Nil(t, out.FelAuthorization)
	assert.Equal(t, domain.StatusPagado, f.store.registrations[reg.ID].Status)

	// Rejections are final; only outages retry.
	assert.Len(t, f.certifier.CallLog, 1)
}

func TestConfirmPayment_RetriesTransientCertifierFailure(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	calls := 0
	f.certifier.CertifyFunc = func(context.Context, fel.Invoice) (*fel.Authorization, error) {
		calls++
		if calls == 1 {
			return nil, fel.ErrCertifierUnavailable
		}
		return &fel.Authorization{Number: "AUTH-1", Series: "A", DocumentNumber: "1"}, nil
	}

	out, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_test",
		Method:          domain.MethodCard,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, f.sleeps)
	assert.Equal(t, domain.StatusConfirmado, out.Status)
	require.NotNil(t, out.FelAuthorization)
	assert.Equal(t, "AUTH-1", *out.FelAuthorization)
}

func TestConfirmPayment_RefundsChargeWhenHoldExpiresMidFlight(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "200.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	stored := f.store.registrations[reg.ID]
	stored.Status = domain.StatusPendientePago

	// The sweep wins the race while the gateway holds the call, so the
	// PENDIENTE_PAGO to PAGADO compare-and-set comes back stale.
	f.store.UpdateRegistrationStatusFunc = func(_ context.Context, _ uuid.UUID, _, to domain.RegistrationStatus) error {
		if to == domain.StatusPagado {
			return repository.ErrStaleStatus
		}
		return nil
	}
	f.gateway.ChargeFunc = func(context.Context, payment.ChargeParams) (*payment.ChargeResult, error) {
		return &payment.ChargeResult{TransactionID: "tx_race", Status: domain.PaymentSucceeded}, nil
	}
	var refunded payment.RefundParams
	f.gateway.RefundFunc = func(_ context.Context, params payment.RefundParams) (*payment.RefundResult, error) {
		refunded = params
		return &payment.RefundResult{RefundID: "re_race", Status: domain.PaymentRefunded}, nil
	}

	_, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_test",
		Method:          domain.MethodCard,
	})
	assert.ErrorIs(t, err, domain.ErrReservationExpired)

	// The captured charge is refunded, not orphaned.
	assert.Equal(t, "tx_race", refunded.TransactionID)
	assert.EqualValues(t, 20000, refunded.AmountCents)

	pay, perr := f.store.GetPaymentByRegistration(context.Background(), reg.ID)
	require.NoError(t, perr)
	assert.Equal(t, domain.PaymentRefunded, pay.Status)
	assert.Equal(t, "tx_race", pay.TransactionID)
	require.Len(t, f.store.refunds, 1)
}

func TestCancel_ReleasesClaim(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	promo := seedPromo(f.store, "DESC10", domain.PromoCode{
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
	})
	reg := f.reserve(t, event, 1)

	// Park the registration in PENDIENTE_PAGO with a live claim.
	claim, err := f.store.ClaimPromoCode(context.Background(), domain.PromoClaim{
		ID: uuid.New(), PromoCodeID: promo.ID, UserID: &reg.UserID,
	}, 0)
	require.NoError(t, err)
	stored := f.store.registrations[reg.ID]
	stored.Status = domain.StatusPendientePago
	stored.PromoClaimID = &claim.ID

	out, err := f.svc.Cancel(context.Background(), reg.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelado, out.Status)
	assert.Equal(t, 0, promo.CurrentUsesTotal)
	require.NotNil(t, f.store.claims[claim.ID].ReleasedAt)
}

func TestCancel_InvalidFromBorrador(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	_, err := f.svc.Cancel(context.Background(), reg.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRefund_FullFlow(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	_, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentParams{
		RegistrationID:  reg.ID,
		PaymentMethodID: "pm_test",
		Method:          domain.MethodCard,
	})
	require.NoError(t, err)

	var refundedTx string
	f.gateway.RefundFunc = func(_ context.Context, params payment.RefundParams) (*payment.RefundResult, error) {
		refundedTx = params.TransactionID
		return &payment.RefundResult{RefundID: "re_1", Status: domain.PaymentRefunded}, nil
	}

	out, err := f.svc.Refund(context.Background(), reg.ID, "event cancelled")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusReembolsado, out.Status)
	require.Len(t, f.store.refunds, 1)
	pay, perr := f.store.GetPaymentByRegistration(context.Background(), reg.ID)
	require.NoError(t, perr)
	assert.Equal(t, domain.PaymentRefunded, pay.Status)

	// The gateway is refunded against the charge reference stored at
	// confirmation, not a placeholder.
	assert.NotEmpty(t, refundedTx)
	assert.Equal(t, pay.TransactionID, refundedTx)
	assert.Contains(t, templates(f.notifier.Messages), notification.TemplateRefundIssued)
}

func TestRefund_RejectsUnpaid(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	_, err := f.svc.Refund(context.Background(), reg.ID, "changed my mind")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestClaimPromoCode_ConcurrentClaimsNeverExceedCap(t *testing.T) {
	f := newRegFixture()
	max := 1
	promo := seedPromo(f.store, "UNICO", domain.PromoCode{
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		MaxUsesTotal:  &max,
	})

	const claimants = 8
	results := make([]error, claimants)
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := uuid.New()
			_, err := f.store.ClaimPromoCode(context.Background(), domain.PromoClaim{
				ID:          uuid.New(),
				PromoCodeID: promo.ID,
				UserID:      &uid,
			}, 0)
			results[i] = err
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, err := range results {
		if err == nil {
			granted++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrUsageExhausted)
	}
	assert.Equal(t, 1, granted, "the last use must be claimed exactly once")
	assert.Equal(t, 1, promo.CurrentUsesTotal)
	assert.LessOrEqual(t, promo.CurrentUsesTotal, max)
}

func TestExpireOverdue_ReleasesClaimsAndNotifies(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	promo := seedPromo(f.store, "DESC10", domain.PromoCode{
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
	})

	lapsed := f.reserve(t, event, 1)
	claim, err := f.store.ClaimPromoCode(context.Background(), domain.PromoClaim{
		ID: uuid.New(), PromoCodeID: promo.ID, UserID: &lapsed.UserID,
	}, 0)
	require.NoError(t, err)
	f.store.registrations[lapsed.ID].PromoClaimID = &claim.ID

	f.clock = f.clock.Add(domain.ReservationTTL + time.Minute)
	fresh := f.reserve(t, event, 1)

	n, err := f.svc.ExpireOverdue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, domain.StatusExpirado, f.store.registrations[lapsed.ID].Status)
	assert.Equal(t, domain.StatusBorrador, f.store.registrations[fresh.ID].Status)
	assert.Equal(t, 0, promo.CurrentUsesTotal)
	assert.Contains(t, templates(f.notifier.Messages), notification.TemplateReservationExpired)
}

func TestGet_LazilyExpiresLapsedHold(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	f.clock = f.clock.Add(domain.ReservationTTL + time.Second)

	out, err := f.svc.Get(context.Background(), reg.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusExpirado, out.Status)
	assert.Nil(t, out.ReservationExpiresAt)
	assert.Equal(t, domain.StatusExpirado, f.store.registrations[reg.ID].Status)
}

func TestGet_NotFound(t *testing.T) {
	f := newRegFixture()

	_, err := f.svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrRegistrationNotFound)
}

func TestMarkPendingPayment(t *testing.T) {
	f := newRegFixture()
	event := seedEvent(f.store, "100.00", "0.00", 60*24*time.Hour)
	reg := f.reserve(t, event, 1)

	out, err := f.svc.MarkPendingPayment(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendientePago, out.Status)

	// Idempotent retries are not allowed; the move is one-way.
	_, err = f.svc.MarkPendingPayment(context.Background(), reg.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

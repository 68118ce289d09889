package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradeconnect/tradeconnect/internal/domain"
	"github.com/tradeconnect/tradeconnect/internal/pricing"
	"github.com/tradeconnect/tradeconnect/internal/repository"
)

// CartService is the cart pricing engine. Every mutation re-derives the
// cart totals through the evaluators and the conflict resolver inside a
// single transaction; totals are never written anywhere else.
type CartService interface {
	// GetCart returns the session's cart with current totals.
	GetCart(ctx context.Context, sessionID string) (domain.Cart, error)

	// GetOrCreateCart returns the session's cart, creating an empty one
	// if the session has none.
	GetOrCreateCart(ctx context.Context, sessionID string, userID *uuid.UUID) (domain.Cart, error)

	// AddItem adds quantity seats for an event, creating the cart on
	// first use.
	AddItem(ctx context.Context, params AddItemParams) (domain.Cart, error)

	// UpdateQuantity sets an item's quantity.
	UpdateQuantity(ctx context.Context, sessionID string, eventID uuid.UUID, quantity int) (domain.Cart, error)

	// RemoveItem removes an event from the cart.
	RemoveItem(ctx context.Context, sessionID string, eventID uuid.UUID) (domain.Cart, error)

	// ApplyPromoCode validates the code against the current subtotal and
	// applies it. An ineligible code leaves the cart untouched.
	ApplyPromoCode(ctx context.Context, sessionID, code string) (domain.Cart, error)

	// RemovePromoCode clears the applied code.
	RemovePromoCode(ctx context.Context, sessionID string) (domain.Cart, error)

	// SweepAbandoned flags inactive carts and deletes expired ones.
	// Returns (abandoned, deleted).
	SweepAbandoned(ctx context.Context) (int64, int64, error)
}

// AddItemParams describes one add-to-cart request.
type AddItemParams struct {
	SessionID       string
	UserID          *uuid.UUID
	EventID         uuid.UUID
	Quantity        int
	ParticipantType domain.ParticipantType
	GroupData       []byte
}

type cartService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewCartService creates the cart pricing engine.
func NewCartService(store repository.Store, logger *slog.Logger) CartService {
	return &cartService{
		store:  store,
		logger: logger.With(slog.String("service", "cart")),
		now:    time.Now,
	}
}

func (s *cartService) GetCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	cart, err := s.store.GetCartBySession(ctx, sessionID, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("failed to load cart: %w", err)
	}
	return cart, nil
}

func (s *cartService) GetOrCreateCart(ctx context.Context, sessionID string, userID *uuid.UUID) (domain.Cart, error) {
	cart, err := s.GetCart(ctx, sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, err
	}

	now := s.now()
	cart, err = s.store.CreateCart(ctx, domain.Cart{
		ID:           uuid.New(),
		SessionID:    sessionID,
		UserID:       userID,
		ExpiresAt:    now.Add(domain.CartTTL),
		LastActivity: now,
	})
	if err != nil {
		// Lost a race with a concurrent create for the same session.
		if repository.IsUniqueViolation(err) {
			return s.GetCart(ctx, sessionID)
		}
		return domain.Cart{}, fmt.Errorf("failed to create cart: %w", err)
	}
	return cart, nil
}

func (s *cartService) AddItem(ctx context.Context, params AddItemParams) (domain.Cart, error) {
	if params.Quantity < 1 || params.Quantity > domain.MaxItemQuantity {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}
	if params.ParticipantType == "" {
		params.ParticipantType = domain.ParticipantIndividual
	}

	event, err := s.store.GetEvent(ctx, params.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Cart{}, domain.ErrEventNotFound
		}
		return domain.Cart{}, fmt.Errorf("failed to load event: %w", err)
	}
	if !event.IsPublished {
		return domain.Cart{}, ErrEventNotForSale
	}

	var out domain.Cart
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := s.lockOrCreateCart(ctx, tx, params.SessionID, params.UserID)
		if err != nil {
			return err
		}

		if existing := cart.Item(params.EventID); existing != nil &&
			existing.Quantity+params.Quantity > domain.MaxItemQuantity {
			return domain.ErrInvalidQuantity
		}

		// Prices are snapshotted at add time; later event price changes
		// do not affect this cart.
		_, err = tx.UpsertCartItem(ctx, domain.CartItem{
			ID:              uuid.New(),
			CartID:          cart.ID,
			EventID:         event.ID,
			EventName:       event.Name,
			EventStartDate:  event.StartDate,
			Quantity:        params.Quantity,
			ParticipantType: params.ParticipantType,
			BasePrice:       event.BasePrice,
			MinPrice:        event.MinPrice,
			GroupData:       params.GroupData,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert cart item: %w", err)
		}

		out, err = s.recalculate(ctx, tx, cart.ID)
		return err
	})
	return out, err
}

func (s *cartService) UpdateQuantity(ctx context.Context, sessionID string, eventID uuid.UUID, quantity int) (domain.Cart, error) {
	if quantity < 1 || quantity > domain.MaxItemQuantity {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}

	var out domain.Cart
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := s.lockCart(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := tx.UpdateCartItemQuantity(ctx, cart.ID, eventID, quantity); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrCartItemNotFound
			}
			return fmt.Errorf("failed to update quantity: %w", err)
		}
		out, err = s.recalculate(ctx, tx, cart.ID)
		return err
	})
	return out, err
}

func (s *cartService) RemoveItem(ctx context.Context, sessionID string, eventID uuid.UUID) (domain.Cart, error) {
	var out domain.Cart
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := s.lockCart(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := tx.RemoveCartItem(ctx, cart.ID, eventID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrCartItemNotFound
			}
			return fmt.Errorf("failed to remove item: %w", err)
		}
		out, err = s.recalculate(ctx, tx, cart.ID)
		return err
	})
	return out, err
}

func (s *cartService) ApplyPromoCode(ctx context.Context, sessionID, code string) (domain.Cart, error) {
	var out domain.Cart
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := s.lockCart(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return ErrCartEmpty
		}

		// Validate against the current subtotal before touching the
		// cart: an ineligible code must leave the cart byte-identical.
		promo, err := s.loadPromo(ctx, tx, code)
		if err != nil {
			return err
		}
		if _, err := s.evaluatePromo(ctx, tx, promo, cart); err != nil {
			return err
		}

		if err := tx.SetCartPromoCode(ctx, cart.ID, &promo.Code); err != nil {
			return fmt.Errorf("failed to set promo code: %w", err)
		}
		out, err = s.recalculate(ctx, tx, cart.ID)
		return err
	})
	return out, err
}

func (s *cartService) RemovePromoCode(ctx context.Context, sessionID string) (domain.Cart, error) {
	var out domain.Cart
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := s.lockCart(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := tx.SetCartPromoCode(ctx, cart.ID, nil); err != nil {
			return fmt.Errorf("failed to clear promo code: %w", err)
		}
		out, err = s.recalculate(ctx, tx, cart.ID)
		return err
	})
	return out, err
}

func (s *cartService) SweepAbandoned(ctx context.Context) (int64, int64, error) {
	now := s.now()
	abandoned, err := s.store.MarkAbandonedCarts(ctx, now.Add(-domain.AbandonAfter))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to mark abandoned carts: %w", err)
	}
	deleted, err := s.store.DeleteExpiredCarts(ctx, now)
	if err != nil {
		return abandoned, 0, fmt.Errorf("failed to delete expired carts: %w", err)
	}
	if abandoned > 0 || deleted > 0 {
		s.logger.Info("cart sweep complete",
			slog.Int64("abandoned", abandoned),
			slog.Int64("deleted", deleted))
	}
	return abandoned, deleted, nil
}

// lockCart loads the session's cart and takes its row lock, serializing
// concurrent mutations of the same cart.
func (s *cartService) lockCart(ctx context.Context, tx repository.Store, sessionID string) (domain.Cart, error) {
	cart, err := tx.GetCartBySession(ctx, sessionID, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("failed to load cart: %w", err)
	}
	if err := tx.LockCart(ctx, cart.ID); err != nil {
		return domain.Cart{}, fmt.Errorf("failed to lock cart: %w", err)
	}
	// Re-read under the lock; another mutation may have committed
	// between the first read and lock acquisition.
	cart, err = tx.GetCartByID(ctx, cart.ID, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Cart{}, domain.ErrCartExpired
		}
		return domain.Cart{}, fmt.Errorf("failed to reload cart: %w", err)
	}
	return cart, nil
}

func (s *cartService) lockOrCreateCart(ctx context.Context, tx repository.Store, sessionID string, userID *uuid.UUID) (domain.Cart, error) {
	cart, err := s.lockCart(ctx, tx, sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, err
	}

	now := s.now()
	cart, err = tx.CreateCart(ctx, domain.Cart{
		ID:           uuid.New(),
		SessionID:    sessionID,
		UserID:       userID,
		ExpiresAt:    now.Add(domain.CartTTL),
		LastActivity: now,
	})
	if err != nil {
		return domain.Cart{}, fmt.Errorf("failed to create cart: %w", err)
	}
	if err := tx.LockCart(ctx, cart.ID); err != nil {
		return domain.Cart{}, fmt.Errorf("failed to lock cart: %w", err)
	}
	return cart, nil
}

func (s *cartService) loadPromo(ctx context.Context, tx repository.Store, code string) (*domain.PromoCode, error) {
	promo, err := tx.GetPromoCodeByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.PromoCodeIneligible(code, domain.ReasonNotFound)
		}
		return nil, fmt.Errorf("failed to load promo code: %w", err)
	}
	return &promo, nil
}

// evaluatePromo runs the promo evaluator against the cart's current
// subtotal. The BUY_X_GET_Y quantity context comes from the cart's
// largest line, which is also the line the code's discount attaches to.
func (s *cartService) evaluatePromo(ctx context.Context, tx repository.Store, promo *domain.PromoCode, cart domain.Cart) (*domain.DiscountResult, error) {
	subtotal := domain.Money{}
	for _, item := range cart.Items {
		subtotal = subtotal.Add(item.Subtotal())
	}

	target := promoTargetItem(cart.Items)
	priorUses := 0
	if cart.UserID != nil {
		n, err := tx.CountUserClaims(ctx, promo.ID, *cart.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to count user claims: %w", err)
		}
		priorUses = n
	}

	return pricing.EvaluatePromoCode(promo, pricing.PromoContext{
		Subtotal:      subtotal,
		Quantity:      target.Quantity,
		UnitPrice:     target.BasePrice,
		UserPriorUses: priorUses,
		Now:           s.now(),
	})
}

// recalculate re-derives every derived money field on the cart: item
// discounts via the evaluators and resolver, then cart totals, persisted
// in the caller's transaction so a partial recalculation is never
// observable.
func (s *cartService) recalculate(ctx context.Context, tx repository.Store, cartID uuid.UUID) (domain.Cart, error) {
	cart, err := tx.GetCartByID(ctx, cartID, false)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("failed to reload cart: %w", err)
	}
	now := s.now()

	// Evaluate the applied promo once at cart level. A code that became
	// ineligible since application (subtotal dropped below the minimum,
	// window closed) is dropped rather than wedging the cart.
	var promoResult *domain.DiscountResult
	if cart.PromoCode != nil && len(cart.Items) > 0 {
		promo, err := s.loadPromo(ctx, tx, *cart.PromoCode)
		if err == nil {
			promoResult, err = s.evaluatePromo(ctx, tx, promo, cart)
			if err != nil && domain.IneligibleReasonOf(err) == "" {
				return domain.Cart{}, err
			}
		} else if domain.IneligibleReasonOf(err) == "" {
			return domain.Cart{}, err
		}
		if promoResult == nil {
			s.logger.Info("dropping ineligible promo code from cart",
				slog.String("cart_id", cart.ID.String()),
				slog.String("code", *cart.PromoCode))
			if err := tx.SetCartPromoCode(ctx, cart.ID, nil); err != nil {
				return domain.Cart{}, fmt.Errorf("failed to clear promo code: %w", err)
			}
			cart.PromoCode = nil
		}
	}
	promoTarget := uuid.Nil
	if promoResult != nil {
		promoTarget = promoTargetItem(cart.Items).EventID
	}

	subtotal := domain.Money{}
	totalDiscount := domain.Money{}
	promoDiscount := domain.Money{}
	totalItems := 0

	for idx := range cart.Items {
		item := &cart.Items[idx]
		itemCtx := pricing.ItemContext{
			Quantity:   item.Quantity,
			UnitPrice:  item.BasePrice,
			UnitFloor:  item.MinPrice,
			EventStart: item.EventStartDate,
			Now:        now,
		}

		volumes, err := tx.ListVolumeDiscounts(ctx, item.EventID)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("failed to list volume discounts: %w", err)
		}
		earlyBirds, err := tx.ListEarlyBirdDiscounts(ctx, item.EventID)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("failed to list early-bird discounts: %w", err)
		}

		var results []domain.DiscountResult
		if r := pricing.EvaluateVolume(volumes, itemCtx); r != nil {
			results = append(results, *r)
		}
		if r := pricing.EvaluateEarlyBird(earlyBirds, itemCtx); r != nil {
			results = append(results, *r)
		}
		if promoResult != nil && item.EventID == promoTarget {
			results = append(results, *promoResult)
		}

		res := pricing.Resolve(results, itemCtx.Gross(), itemCtx.Floor())

		item.DiscountAmount = res.Discount
		item.FinalPrice = itemCtx.Gross().Subtract(res.Discount)
		item.AppliedRules = make([]string, 0, len(res.Applied))
		for _, rule := range res.Applied {
			item.AppliedRules = append(item.AppliedRules, rule.RuleID)
			discountsApplied.WithLabelValues(string(rule.Source)).Inc()
			if rule.Source == domain.SourcePromoCode {
				promoDiscount = promoDiscount.Add(rule.Amount)
			}
		}

		subtotal = subtotal.Add(itemCtx.Gross())
		totalDiscount = totalDiscount.Add(res.Discount)
		totalItems += item.Quantity
	}

	cart.TotalItems = totalItems
	cart.Subtotal = subtotal
	cart.DiscountAmount = totalDiscount
	cart.Total = subtotal.Subtract(totalDiscount)
	cart.PromoDiscount = promoDiscount
	cart.LastActivity = now
	cart.IsAbandoned = false
	cart.AbandonedAt = nil

	if err := tx.SaveCartTotals(ctx, cart); err != nil {
		return domain.Cart{}, fmt.Errorf("failed to save cart totals: %w", err)
	}
	return cart, nil
}

// promoTargetItem picks the line a cart-level promo discount attaches
// to: the largest line by gross, ties broken by event ID for
// determinism.
func promoTargetItem(items []domain.CartItem) domain.CartItem {
	if len(items) == 0 {
		return domain.CartItem{}
	}
	best := items[0]
	for _, item := range items[1:] {
		cmp := item.Subtotal().Compare(best.Subtotal())
		if cmp > 0 || (cmp == 0 && item.EventID.String() < best.EventID.String()) {
			best = item
		}
	}
	return best
}

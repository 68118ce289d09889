package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tradeconnect/tradeconnect/internal/domain"
)

// Money fields serialize as decimal strings ("1500.00").

// CartItemResponse is one cart line in an API response.
type CartItemResponse struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventName       string          `json:"event_name"`
	Quantity        int             `json:"quantity"`
	ParticipantType string          `json:"participant_type"`
	BasePrice       domain.Money    `json:"base_price"`
	DiscountAmount  domain.Money    `json:"discount_amount"`
	FinalPrice      domain.Money    `json:"final_price"`
	AppliedRules    []string        `json:"applied_rules"`
	GroupData       json.RawMessage `json:"group_data,omitempty"`
}

// CartResponse is a cart in an API response.
type CartResponse struct {
	ID             uuid.UUID          `json:"id"`
	TotalItems     int                `json:"total_items"`
	Items          []CartItemResponse `json:"items"`
	Subtotal       domain.Money       `json:"subtotal"`
	DiscountAmount domain.Money       `json:"discount_amount"`
	Total          domain.Money       `json:"total"`
	PromoCode      *string            `json:"promo_code,omitempty"`
	PromoDiscount  domain.Money       `json:"promo_discount"`
	ExpiresAt      time.Time          `json:"expires_at"`
}

func cartResponse(cart domain.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, CartItemResponse{
			EventID:         item.EventID,
			EventName:       item.EventName,
			Quantity:        item.Quantity,
			ParticipantType: string(item.ParticipantType),
			BasePrice:       item.BasePrice,
			DiscountAmount:  item.DiscountAmount,
			FinalPrice:      item.FinalPrice,
			AppliedRules:    item.AppliedRules,
			GroupData:       item.GroupData,
		})
	}
	return CartResponse{
		ID:             cart.ID,
		TotalItems:     cart.TotalItems,
		Items:          items,
		Subtotal:       cart.Subtotal,
		DiscountAmount: cart.DiscountAmount,
		Total:          cart.Total,
		PromoCode:      cart.PromoCode,
		PromoDiscount:  cart.PromoDiscount,
		ExpiresAt:      cart.ExpiresAt,
	}
}

// RegistrationResponse is a registration in an API response.
type RegistrationResponse struct {
	ID                   uuid.UUID    `json:"id"`
	RegistrationCode     string       `json:"registration_code"`
	EventID              uuid.UUID    `json:"event_id"`
	Status               string       `json:"status"`
	Quantity             int          `json:"quantity"`
	BasePrice            domain.Money `json:"base_price"`
	DiscountAmount       domain.Money `json:"discount_amount"`
	FinalPrice           domain.Money `json:"final_price"`
	ReservationExpiresAt *time.Time   `json:"reservation_expires_at,omitempty"`
	FelAuthorization     *string      `json:"fel_authorization,omitempty"`
}

func registrationResponse(reg domain.Registration) RegistrationResponse {
	return RegistrationResponse{
		ID:                   reg.ID,
		RegistrationCode:     reg.RegistrationCode,
		EventID:              reg.EventID,
		Status:               string(reg.Status),
		Quantity:             reg.Quantity,
		BasePrice:            reg.BasePrice,
		DiscountAmount:       reg.DiscountAmount,
		FinalPrice:           reg.FinalPrice,
		ReservationExpiresAt: reg.ReservationExpiresAt,
		FelAuthorization:     reg.FelAuthorization,
	}
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tradeconnect/tradeconnect/internal/domain"
	"github.com/tradeconnect/tradeconnect/internal/router"
	"github.com/tradeconnect/tradeconnect/internal/service"
)

// SessionHeader carries the caller's cart session identifier.
const SessionHeader = "X-Session-ID"

// CartHandler exposes the cart pricing engine over JSON.
type CartHandler struct {
	carts    service.CartService
	validate *validator.Validate
}

// NewCartHandler creates a cart handler.
func NewCartHandler(carts service.CartService) *CartHandler {
	return &CartHandler{
		carts:    carts,
		validate: validator.New(),
	}
}

// RegisterRoutes wires the cart endpoints.
func (h *CartHandler) RegisterRoutes(r *router.Router) {
	r.Post("/api/carts", h.GetOrCreate)
	r.Get("/api/carts/{id}", h.Get)
	r.Post("/api/carts/{id}/items", h.AddItem)
	r.Handle(http.MethodPatch, "/api/carts/{id}/items/{eventID}", http.HandlerFunc(h.UpdateQuantity))
	r.Delete("/api/carts/{id}/items/{eventID}", h.RemoveItem)
	r.Post("/api/carts/{id}/promo-code", h.ApplyPromoCode)
	r.Delete("/api/carts/{id}/promo-code", h.RemovePromoCode)
}

type createCartRequest struct {
	UserID *uuid.UUID `json:"user_id"`
}

// GetOrCreate handles POST /api/carts.
func (h *CartHandler) GetOrCreate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		RespondError(w, r, domain.Invalid("handler.cart", "X-Session-ID header is required"))
		return
	}

	var req createCartRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondError(w, r, domain.Invalid("handler.cart", "Malformed request body"))
			return
		}
	}

	cart, err := h.carts.GetOrCreateCart(r.Context(), sessionID, req.UserID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

// Get handles GET /api/carts/{id}.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	cart, err := h.carts.GetCart(r.Context(), sessionID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if cart.ID.String() != r.PathValue("id") {
		RespondError(w, r, domain.ErrCartNotFound)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

type addItemRequest struct {
	EventID         uuid.UUID       `json:"event_id" validate:"required"`
	Quantity        int             `json:"quantity" validate:"required,min=1,max=50"`
	ParticipantType string          `json:"participant_type" validate:"omitempty,oneof=individual empresa"`
	GroupData       json.RawMessage `json:"group_data"`
}

// AddItem handles POST /api/carts/{id}/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := h.decode(r, &req); err != nil {
		RespondError(w, r, err)
		return
	}

	cart, err := h.carts.AddItem(r.Context(), service.AddItemParams{
		SessionID:       r.Header.Get(SessionHeader),
		EventID:         req.EventID,
		Quantity:        req.Quantity,
		ParticipantType: domain.ParticipantType(req.ParticipantType),
		GroupData:       req.GroupData,
	})
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=50"`
}

// UpdateQuantity handles PATCH /api/carts/{id}/items/{eventID}.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(r.PathValue("eventID"))
	if err != nil {
		RespondError(w, r, domain.Invalid("handler.cart", "Invalid event ID"))
		return
	}

	var req updateQuantityRequest
	if err := h.decode(r, &req); err != nil {
		RespondError(w, r, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), r.Header.Get(SessionHeader), eventID, req.Quantity)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

// RemoveItem handles DELETE /api/carts/{id}/items/{eventID}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(r.PathValue("eventID"))
	if err != nil {
		RespondError(w, r, domain.Invalid("handler.cart", "Invalid event ID"))
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), r.Header.Get(SessionHeader), eventID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

type promoCodeRequest struct {
	Code string `json:"code" validate:"required,min=1,max=64"`
}

// ApplyPromoCode handles POST /api/carts/{id}/promo-code.
func (h *CartHandler) ApplyPromoCode(w http.ResponseWriter, r *http.Request) {
	var req promoCodeRequest
	if err := h.decode(r, &req); err != nil {
		RespondError(w, r, err)
		return
	}

	cart, err := h.carts.ApplyPromoCode(r.Context(), r.Header.Get(SessionHeader), req.Code)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

// RemovePromoCode handles DELETE /api/carts/{id}/promo-code.
func (h *CartHandler) RemovePromoCode(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemovePromoCode(r.Context(), r.Header.Get(SessionHeader))
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Invalid("handler.cart", "Malformed request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return domain.Invalid("handler.cart", err.Error())
	}
	return nil
}

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

// RegistrationHandler exposes the reservation and checkout flow over
// JSON.
type RegistrationHandler struct {
	registrations service.RegistrationService
	validate      *validator.Validate
}

// NewRegistrationHandler creates a registration handler.
func NewRegistrationHandler(registrations service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{
		registrations: registrations,
		validate:      validator.New(),
	}
}

// RegisterRoutes wires the registration endpoints.
func (h *RegistrationHandler) RegisterRoutes(r *router.Router) {
	r.Post("/api/registrations", h.Reserve)
	r.Get("/api/registrations/{id}", h.Get)
	r.Post("/api/registrations/{id}/confirm", h.Confirm)
	r.Post("/api/registrations/{id}/cancel", h.Cancel)
	r.Post("/api/registrations/{id}/refund", h.Refund)
}

type reserveRequest struct {
	EventID  uuid.UUID `json:"event_id" validate:"required"`
	UserID   uuid.UUID `json:"user_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1,max=50"`
}

// Reserve handles POST /api/registrations.
func (h *RegistrationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := h.decode(r, &req); err != nil {
		RespondError(w, r, err)
		return
	}

	reg, err := h.registrations.Reserve(r.Context(), service.ReserveParams{
		EventID:  req.EventID,
		UserID:   req.UserID,
		Quantity: req.Quantity,
	})
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, registrationResponse(reg))
}

// Get handles GET /api/registrations/{id}.
func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondError(w, r, domain.Invalid("handler.registration", "Invalid registration ID"))
		return
	}

	reg, err := h.registrations.Get(r.Context(), id)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, registrationResponse(reg))
}

type confirmRequest struct {
	PaymentMethodID string  `json:"payment_method_id" validate:"required"`
	Method          string  `json:"method" validate:"omitempty,oneof=card paypal transfer"`
	PromoCode       *string `json:"promo_code"`
	RecipientNIT    string  `json:"recipient_nit"`
	RecipientName   string  `json:"recipient_name"`
}

// Confirm handles POST /api/registrations/{id}/confirm.
func (h *RegistrationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondError(w, r, domain.Invalid("handler.registration", "Invalid registration ID"))
		return
	}

	var req confirmRequest
	if err := h.decode(r, &req); err != nil {
		RespondError(w, r, err)
		return
	}
	if req.Method == "" {
		req.Method = string(domain.MethodCard)
	}

	reg, err := h.registrations.ConfirmPayment(r.Context(), service.ConfirmPaymentParams{
		RegistrationID:  id,
		PaymentMethodID: req.PaymentMethodID,
		Method:          domain.PaymentMethod(req.Method),
		PromoCode:       req.PromoCode,
		RecipientNIT:    req.RecipientNIT,
		RecipientName:   req.RecipientName,
	})
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, registrationResponse(reg))
}

// Cancel handles POST /api/registrations/{id}/cancel.
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondError(w, r, domain.Invalid("handler.registration", "Invalid registration ID"))
		return
	}

	reg, err := h.registrations.Cancel(r.Context(), id)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, registrationResponse(reg))
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// Refund handles POST /api/registrations/{id}/refund.
func (h *RegistrationHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondError(w, r, domain.Invalid("handler.registration", "Invalid registration ID"))
		return
	}

	var req refundRequest
	if err := h.decode(r, &req); err != nil {
		RespondError(w, r, err)
		return
	}

	reg, err := h.registrations.Refund(r.Context(), id, req.Reason)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, registrationResponse(reg))
}

func (h *RegistrationHandler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Invalid("handler.registration", "Malformed request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return domain.Invalid("handler.registration", err.Error())
	}
	return nil
}

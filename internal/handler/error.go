// Package handler implements the JSON HTTP surface over the cart and
// registration services.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tradeconnect/tradeconnect/internal/domain"
	"github.com/tradeconnect/tradeconnect/internal/middleware"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EGONE:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Reason carries the specific promo rejection reason when a promo
	// code was turned down.
	Reason string `json:"reason,omitempty"`
}

// RespondError writes the domain error as JSON, logging internals
// without leaking them.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	body := ErrorResponse{
		Code:    code,
		Message: domain.ErrorMessage(err),
	}
	if reason := domain.IneligibleReasonOf(err); reason != "" {
		body.Reason = string(reason)
	}

	logger := middleware.GetLogger(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	} else {
		logger.Debug("request rejected",
			slog.Int("status", status),
			slog.String("code", code))
	}

	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// handleServiceError converts service errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrCustomerNotFound):
		respondError(w, http.StatusNotFound, "customer_not_found", "Customer not found")
	case errors.Is(err, service.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "Product not found")
	case errors.Is(err, service.ErrBasketNotFound):
		respondError(w, http.StatusNotFound, "basket_not_found", "Current basket not found")
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, service.ErrInvalidInput):
		respondErrorDetails(w, http.StatusBadRequest, "invalid_request", "Invalid request", err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized", "Incorrect password")
	case errors.Is(err, service.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", "Basket was modified concurrently, retry the request")
	case errors.Is(err, service.ErrPasswordMissing):
		slog.WarnContext(r.Context(), "customer has no password hash", slog.String("path", r.URL.Path))
		respondError(w, http.StatusBadRequest, "password_missing", "Password missing in record")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

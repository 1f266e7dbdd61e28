package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/observability"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/go-playground/validator/v10"
)

type BasketService interface {
	GetCurrent(ctx context.Context, customerID int64) (*domain.Basket, error)
	AddItem(ctx context.Context, customerID int64, sku string, quantity int) (*domain.Basket, error)
	RemoveItem(ctx context.Context, customerID int64, sku string) (*domain.Basket, error)
}

type CartHandler struct {
	baskets  BasketService
	validate *validator.Validate
	metrics  *observability.Metrics
	timeout  time.Duration
}

func NewCartHandler(baskets BasketService, metrics *observability.Metrics, timeout time.Duration) *CartHandler {
	return &CartHandler{
		baskets:  baskets,
		validate: validator.New(),
		metrics:  metrics,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	SKU string `json:"sku" validate:"required"`
	// Quantity defaults to 1 when omitted.
	Quantity *int `json:"quantity,omitempty"`
}

type RemoveItemRequestDTO struct {
	SKU string `json:"sku" validate:"required"`
}

type emptyBasketResponse struct {
	Products []domain.LineItem `json:"products"`
}

type BasketEnvelope struct {
	Basket *domain.Basket `json:"basket"`
}

func (h *CartHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	basket, err := h.baskets.GetCurrent(ctx, currentUser(r.Context()).ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if basket == nil {
		respondJSON(w, http.StatusOK, emptyBasketResponse{Products: []domain.LineItem{}})
		return
	}

	respondJSON(w, http.StatusOK, basket)
}

// GetBasket is the older basket route that wraps the basket in an envelope.
func (h *CartHandler) GetBasket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	basket, err := h.baskets.GetCurrent(ctx, currentUser(r.Context()).ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if basket == nil {
		respondJSON(w, http.StatusOK, emptyBasketResponse{Products: []domain.LineItem{}})
		return
	}

	respondJSON(w, http.StatusOK, BasketEnvelope{Basket: basket})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if err := h.validate.Struct(req); err != nil || quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "Missing or invalid sku/quantity")
		return
	}

	basket, err := h.baskets.AddItem(ctx, currentUser(r.Context()).ID, req.SKU, quantity)
	h.metrics.ObserveBasketMutation("add", outcome(err))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, basket)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RemoveItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Missing sku")
		return
	}

	basket, err := h.baskets.RemoveItem(ctx, currentUser(r.Context()).ID, req.SKU)
	h.metrics.ObserveBasketMutation("remove", outcome(err))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, basket)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, service.ErrNotFound):
		return "not_found"
	case errors.Is(err, service.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, service.ErrConflict):
		return "conflict"
	}
	return "error"
}

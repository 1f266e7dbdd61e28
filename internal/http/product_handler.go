package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/service"
)

type CatalogService interface {
	List(ctx context.Context, req service.PageRequest) (*service.ProductPage, error)
	Search(ctx context.Context, query string, req service.PageRequest) (*service.ProductPage, error)
	BySKUs(ctx context.Context, skus []string) ([]service.SKULookup, error)
}

type ProductHandler struct {
	catalog CatalogService
	timeout time.Duration
}

func NewProductHandler(catalog CatalogService, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type SKULookupResponse struct {
	Products []service.SKULookup `json:"products"`
}

// List serves a page of the catalog, or search results when q is set.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	query := r.URL.Query()
	page := service.ParsePageRequest(query.Get("page"), query.Get("limit"))

	var (
		res *service.ProductPage
		err error
	)
	if q := strings.TrimSpace(query.Get("q")); q != "" {
		res, err = h.catalog.Search(ctx, q, page)
	} else {
		res, err = h.catalog.List(ctx, page)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// BySKUs returns live product data for a comma separated SKU list.
func (h *ProductHandler) BySKUs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	skus := strings.Split(r.URL.Query().Get("skus"), ",")
	res, err := h.catalog.BySKUs(ctx, skus)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, &SKULookupResponse{Products: res})
}

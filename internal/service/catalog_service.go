package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// PageRequest is a normalized 1-based page and a page size within 1..MaxLimit.
type PageRequest struct {
	Page  int
	Limit int
}

// ParsePageRequest reads raw query values. Values that are not numbers fall
// back to the defaults; numbers out of range are clamped.
func ParsePageRequest(page, limit string) PageRequest {
	p, err := strconv.Atoi(strings.TrimSpace(page))
	if err != nil {
		p = DefaultPage
	}
	l, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil {
		l = DefaultLimit
	}
	return PageRequest{Page: p, Limit: l}.normalize()
}

func (r PageRequest) normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = 1
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}
	return r
}

func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.Limit
}

type ProductPage struct {
	Products   []domain.Product `json:"products"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
	TotalCount int64            `json:"totalCount"`
}

// SKULookup is one entry of a batch lookup. Missing is set when no product
// carries the SKU.
type SKULookup struct {
	SKU     string
	Product *domain.Product
	Missing bool
}

func (l SKULookup) MarshalJSON() ([]byte, error) {
	if l.Missing || l.Product == nil {
		return json.Marshal(struct {
			SKU     string `json:"sku"`
			Missing bool   `json:"missing"`
		}{SKU: l.SKU, Missing: true})
	}
	return json.Marshal(l.Product)
}

type CatalogService struct {
	products repository.ProductRepository
}

func NewCatalogService(products repository.ProductRepository) *CatalogService {
	return &CatalogService{products: products}
}

// List returns one page of the catalog in store order.
func (s *CatalogService) List(ctx context.Context, req PageRequest) (*ProductPage, error) {
	req = req.normalize()

	total, err := s.products.Count(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.products.List(ctx, int64(req.Offset()), int64(req.Limit))
	if err != nil {
		return nil, err
	}

	return &ProductPage{
		Products:   products,
		Page:       req.Page,
		TotalPages: totalPages(total, req.Limit),
		TotalCount: total,
	}, nil
}

// Search combines full-text and substring matches. Full-text hits come first
// in score order, then substring-only hits in _id order.
func (s *CatalogService) Search(ctx context.Context, query string, req PageRequest) (*ProductPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, req)
	}
	req = req.normalize()

	textHits, err := s.products.TextSearch(ctx, query)
	if err != nil {
		return nil, err
	}
	substringHits, err := s.products.SubstringSearch(ctx, query)
	if err != nil {
		return nil, err
	}

	merged := mergeSearchResults(textHits, substringHits)
	total := int64(len(merged))

	return &ProductPage{
		Products:   paginate(merged, req),
		Page:       req.Page,
		TotalPages: totalPages(total, req.Limit),
		TotalCount: total,
	}, nil
}

// BySKUs looks up products for a list of SKUs, keeping the input order.
func (s *CatalogService) BySKUs(ctx context.Context, skus []string) ([]SKULookup, error) {
	wanted := make([]string, 0, len(skus))
	for _, sku := range skus {
		if sku = strings.TrimSpace(sku); sku != "" {
			wanted = append(wanted, sku)
		}
	}
	if len(wanted) == 0 {
		return nil, fmt.Errorf("%w: no SKUs provided", ErrInvalidInput)
	}

	products, err := s.products.FindBySKUs(ctx, wanted)
	if err != nil {
		return nil, err
	}
	bySKU := make(map[string]*domain.Product, len(products))
	for i := range products {
		bySKU[products[i].SKU] = &products[i]
	}

	out := make([]SKULookup, 0, len(wanted))
	for _, sku := range wanted {
		if p, ok := bySKU[sku]; ok {
			out = append(out, SKULookup{SKU: sku, Product: p})
			continue
		}
		out = append(out, SKULookup{SKU: sku, Missing: true})
	}
	return out, nil
}

func mergeSearchResults(textHits, substringHits []domain.Product) []domain.Product {
	seen := make(map[primitive.ObjectID]struct{}, len(textHits)+len(substringHits))
	merged := make([]domain.Product, 0, len(textHits)+len(substringHits))
	for _, hits := range [][]domain.Product{textHits, substringHits} {
		for _, p := range hits {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			merged = append(merged, p)
		}
	}
	return merged
}

func paginate(products []domain.Product, req PageRequest) []domain.Product {
	start := req.Offset()
	if start >= len(products) {
		return []domain.Product{}
	}
	end := start + req.Limit
	if end > len(products) {
		end = len(products)
	}
	return products[start:end]
}

func totalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

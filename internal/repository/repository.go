package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrVersionConflict  = errors.New("customer was modified concurrently")
)

// ProductRepository is the read side of the catalog.
type ProductRepository interface {
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
	FindBySKUs(ctx context.Context, skus []string) ([]domain.Product, error)
	List(ctx context.Context, skip, limit int64) ([]domain.Product, error)
	Count(ctx context.Context) (int64, error)
	TextSearch(ctx context.Context, query string) ([]domain.Product, error)
	SubstringSearch(ctx context.Context, query string) ([]domain.Product, error)
}

// CustomerRepository defines customer persistence.
// SaveBaskets is a compare-and-set on Customer.Version and returns
// ErrVersionConflict when another writer got there first.
type CustomerRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Customer, error)
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
	SaveBaskets(ctx context.Context, customer *domain.Customer) error
	SetPasswordHash(ctx context.Context, email, hash string) error
}

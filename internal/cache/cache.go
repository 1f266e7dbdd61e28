package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Entry is a cached CURRENT basket tagged with the customer document version
// it was read at. An entry with a nil Basket is an invalidation marker.
type Entry struct {
	Version int64
	Basket  *domain.Basket
}

// BasketCache holds the CURRENT basket view per customer. Writes never
// replace an entry that carries a newer version, so a slow fill cannot
// overwrite the result of a later basket write.
type BasketCache interface {
	Get(ctx context.Context, customerID int64) (*Entry, error)
	Set(ctx context.Context, customerID int64, entry Entry) error
	// Invalidate drops the cached basket and rejects later fills older
	// than version.
	Invalidate(ctx context.Context, customerID int64, version int64) error
}

var ErrCacheMiss = errors.New("cache miss")

package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerCache stops calling an unhealthy cache after repeated failures.
// Cache misses do not count as failures. Invalidate bypasses the breaker and
// always reaches the inner cache.
type BreakerCache struct {
	inner BasketCache
	cb    *gobreaker.CircuitBreaker[*Entry]
}

func NewBreakerCache(inner BasketCache, logger *slog.Logger) *BreakerCache {
	settings := gobreaker.Settings{
		Name:        "basket-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			}
		},
	}
	return &BreakerCache{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[*Entry](settings),
	}
}

func (b *BreakerCache) Get(ctx context.Context, customerID int64) (*Entry, error) {
	return b.cb.Execute(func() (*Entry, error) {
		return b.inner.Get(ctx, customerID)
	})
}

func (b *BreakerCache) Set(ctx context.Context, customerID int64, entry Entry) error {
	_, err := b.cb.Execute(func() (*Entry, error) {
		return nil, b.inner.Set(ctx, customerID, entry)
	})
	return err
}

func (b *BreakerCache) Invalidate(ctx context.Context, customerID int64, version int64) error {
	return b.inner.Invalidate(ctx, customerID, version)
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"golang.org/x/sync/singleflight"
)

const (
	maxSaveAttempts = 3
	loadTimeout     = 5 * time.Second
)

type BasketService struct {
	customers repository.CustomerRepository
	products  repository.ProductRepository
	cache     cache.BasketCache
	publisher events.Publisher
	logger    *slog.Logger
	sfg       singleflight.Group // Prevents cache stampede
	newID     func() string
	now       func() time.Time
}

func NewBasketService(
	customers repository.CustomerRepository,
	products repository.ProductRepository,
	basketCache cache.BasketCache,
	publisher events.Publisher,
	logger *slog.Logger,
) *BasketService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BasketService{
		customers: customers,
		products:  products,
		cache:     basketCache,
		publisher: publisher,
		logger:    logger,
		newID:     domain.NewBasketID,
		now:       time.Now,
	}
}

// GetCurrent returns the customer's CURRENT basket, or nil when there is none.
// It never creates a basket. Concurrent calls for one customer share a single
// load, which runs detached from any one caller's cancellation.
func (s *BasketService) GetCurrent(ctx context.Context, customerID int64) (*domain.Basket, error) {
	key := strconv.FormatInt(customerID, 10)
	ch := s.sfg.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.loadCurrent(loadCtx, customerID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		basket, _ := res.Val.(*domain.Basket)
		return basket, nil
	}
}

func (s *BasketService) loadCurrent(ctx context.Context, customerID int64) (*domain.Basket, error) {
	entry, err := s.cache.Get(ctx, customerID)
	if err == nil {
		return entry.Basket, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "cache get error", slog.Int64("customer_id", customerID), slog.Any("error", err))
	}

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, translate(err)
	}

	current := customer.CurrentBasket()
	if current == nil {
		return nil, nil
	}
	out := current.Clone()

	// The fill carries the version it was read at, so it loses to any
	// basket write that lands first.
	go func(version int64, b domain.Basket) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if errSet := s.cache.Set(ctx, customerID, cache.Entry{Version: version, Basket: &b}); errSet != nil {
			s.logger.Warn("cache set error", slog.Int64("customer_id", customerID), slog.Any("error", errSet))
		}
	}(customer.Version, out.Clone())

	return &out, nil
}

// AddItem merges quantity units of sku into the CURRENT basket.
func (s *BasketService) AddItem(ctx context.Context, customerID int64, sku string, quantity int) (*domain.Basket, error) {
	sku = strings.TrimSpace(sku)
	if quantity <= 0 {
		return nil, translate(domain.ErrInvalidQuantity)
	}
	if sku == "" {
		return nil, translate(domain.ErrMissingSKU)
	}

	var product *domain.Product
	basket, err := s.mutate(ctx, customerID, func(c *domain.Customer) (*domain.Basket, error) {
		if product == nil {
			p, err := s.products.FindBySKU(ctx, sku)
			if err != nil {
				return nil, err
			}
			product = p
		}
		return c.AddItem(*product, quantity, s.newID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.BasketEvent{
		Event:      events.ItemAdded,
		CustomerID: customerID,
		BasketID:   basket.ID,
		SKU:        sku,
		Quantity:   quantity,
		TotalPrice: basket.TotalPrice,
	})
	return basket, nil
}

// RemoveItem drops sku from the CURRENT basket. A SKU that is not in the
// basket is not an error.
func (s *BasketService) RemoveItem(ctx context.Context, customerID int64, sku string) (*domain.Basket, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, translate(domain.ErrMissingSKU)
	}

	removed := false
	basket, err := s.mutate(ctx, customerID, func(c *domain.Customer) (*domain.Basket, error) {
		before := 0
		if current := c.CurrentBasket(); current != nil {
			before = len(current.Products)
		}
		b, err := c.RemoveItem(sku)
		if err != nil {
			return nil, err
		}
		removed = len(b.Products) < before
		return b, nil
	})
	if err != nil {
		return nil, err
	}

	if removed {
		s.publish(ctx, events.BasketEvent{
			Event:      events.ItemRemoved,
			CustomerID: customerID,
			BasketID:   basket.ID,
			SKU:        sku,
			TotalPrice: basket.TotalPrice,
		})
	}
	return basket, nil
}

// mutate runs a read-modify-write of the customer's baskets. A concurrent
// writer makes the save fail on the version check, in which case the
// customer is re-read and apply runs again.
func (s *BasketService) mutate(ctx context.Context, customerID int64, apply func(*domain.Customer) (*domain.Basket, error)) (*domain.Basket, error) {
	for attempt := 1; ; attempt++ {
		customer, err := s.customers.FindByID(ctx, customerID)
		if err != nil {
			return nil, translate(err)
		}

		basket, err := apply(customer)
		if err != nil {
			return nil, translate(err)
		}
		out := basket.Clone()

		err = s.customers.SaveBaskets(ctx, customer)
		if err == nil {
			s.writeThrough(customerID, customer.Version, out.Clone())
			return &out, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= maxSaveAttempts {
			s.logger.ErrorContext(ctx, "repo save baskets error",
				slog.Int64("customer_id", customerID),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return nil, translate(err)
		}
		s.logger.InfoContext(ctx, "basket version conflict, retrying",
			slog.Int64("customer_id", customerID),
			slog.Int("attempt", attempt))
	}
}

// writeThrough caches the basket just saved at version. When that fails the
// entry is invalidated instead, so no older basket can be served.
func (s *BasketService) writeThrough(customerID, version int64, basket domain.Basket) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := s.cache.Set(ctx, customerID, cache.Entry{Version: version, Basket: &basket})
	if err == nil {
		return
	}
	s.logger.Warn("cache write-through error", slog.Int64("customer_id", customerID), slog.Any("error", err))

	if err := s.cache.Invalidate(ctx, customerID, version); err != nil {
		s.logger.Error("cache invalidate error",
			slog.Int64("customer_id", customerID),
			slog.Int64("version", version),
			slog.Any("error", err))
	}
}

func (s *BasketService) publish(ctx context.Context, event events.BasketEvent) {
	event.OccurredAt = s.now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "publish basket event error",
			slog.String("event", event.Event),
			slog.Int64("customer_id", event.CustomerID),
			slog.Any("error", err))
	}
}

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v float64) *float64 {
	return &v
}

var (
	productA = domain.Product{SKU: "A", ItemName: []domain.LocalizedValue{{LanguageTag: "en_US", Value: "Lamp"}}, Price: price(10)}
	productB = domain.Product{SKU: "B", ItemName: []domain.LocalizedValue{{LanguageTag: "en_US", Value: "Chair"}}, Price: price(5)}
)

type basketFixture struct {
	svc       *BasketService
	customers *mockCustomers
	products  *mockProducts
	cache     *mockCache
	publisher *mockPublisher
}

func newBasketFixture(customers ...*domain.Customer) *basketFixture {
	if len(customers) == 0 {
		customers = []*domain.Customer{{ID: 1, Name: "Ada", Email: "ada@example.com"}}
	}
	f := &basketFixture{
		customers: newMockCustomers(customers...),
		products:  &mockProducts{products: []domain.Product{productA, productB}},
		cache:     newMockCache(),
		publisher: &mockPublisher{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewBasketService(f.customers, f.products, f.cache, f.publisher, logger)
	f.svc.newID = func() string { return "basket-test" }
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func TestAddItem_CreatesBasketLazily(t *testing.T) {
	f := newBasketFixture()

	basket, err := f.svc.AddItem(context.Background(), 1, "A", 2)
	require.NoError(t, err)
	assert.Equal(t, "basket-test", basket.ID)
	assert.Equal(t, domain.BasketTypeCurrent, basket.Type)
	require.Len(t, basket.Products, 1)
	assert.Equal(t, 2, basket.Products[0].Quantity)
	assert.Equal(t, 20.0, basket.TotalPrice)
	assert.Equal(t, 20.0, basket.FinalPrice)

	stored := f.customers.stored(1)
	require.NotNil(t, stored.CurrentBasket())
	assert.Equal(t, int64(1), stored.Version)
}

func TestAddItem_TwoProductsTotal(t *testing.T) {
	f := newBasketFixture()
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, 1, "A", 2)
	require.NoError(t, err)
	basket, err := f.svc.AddItem(ctx, 1, "B", 1)
	require.NoError(t, err)

	assert.Len(t, basket.Products, 2)
	assert.Equal(t, 25.0, basket.TotalPrice)
	assert.Equal(t, 25.0, basket.FinalPrice)
}

func TestAddItem_SameSKUKeepsFirstPrice(t *testing.T) {
	f := newBasketFixture()
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, 1, "A", 1)
	require.NoError(t, err)

	f.products.m.Lock()
	f.products.products[0].Price = price(99)
	f.products.m.Unlock()

	basket, err := f.svc.AddItem(ctx, 1, "A", 2)
	require.NoError(t, err)
	require.Len(t, basket.Products, 1)
	assert.Equal(t, 3, basket.Products[0].Quantity)
	assert.Equal(t, 10.0, basket.Products[0].Price)
	assert.Equal(t, 30.0, basket.TotalPrice)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	f := newBasketFixture()

	for _, q := range []int{0, -3} {
		_, err := f.svc.AddItem(context.Background(), 1, "A", q)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Equal(t, 0, f.customers.saves)
	assert.Nil(t, f.customers.stored(1).CurrentBasket())
	assert.Empty(t, f.publisher.published())
}

func TestAddItem_MissingSKU(t *testing.T) {
	f := newBasketFixture()

	_, err := f.svc.AddItem(context.Background(), 1, "  ", 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, f.products.lookups)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	f := newBasketFixture()

	_, err := f.svc.AddItem(context.Background(), 1, "nope", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, f.customers.saves)
	assert.Nil(t, f.customers.stored(1).CurrentBasket())
}

func TestAddItem_UnknownCustomer(t *testing.T) {
	f := newBasketFixture()

	_, err := f.svc.AddItem(context.Background(), 404, "A", 1)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestAddItem_RetriesOnVersionConflict(t *testing.T) {
	f := newBasketFixture()
	f.customers.conflicts = 2

	basket, err := f.svc.AddItem(context.Background(), 1, "A", 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, basket.TotalPrice)
	assert.Equal(t, 3, f.customers.finds)
	assert.Equal(t, 1, f.customers.saves)
	// product is resolved once across attempts
	assert.Equal(t, 1, f.products.lookups)
}

func TestAddItem_ConflictAfterMaxAttempts(t *testing.T) {
	f := newBasketFixture()
	f.customers.conflicts = maxSaveAttempts

	_, err := f.svc.AddItem(context.Background(), 1, "A", 1)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, maxSaveAttempts, f.customers.finds)
	assert.Empty(t, f.publisher.published())
}

func TestAddItem_StoreErrorIsInternal(t *testing.T) {
	f := newBasketFixture()
	f.customers.saveErr = errors.New("mongo down")

	_, err := f.svc.AddItem(context.Background(), 1, "A", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

func TestAddItem_WritesThroughCacheAndPublishes(t *testing.T) {
	f := newBasketFixture()
	f.cache.entries[1] = cache.Entry{Version: 0, Basket: &domain.Basket{ID: "stale"}}

	_, err := f.svc.AddItem(context.Background(), 1, "A", 2)
	require.NoError(t, err)

	entry, ok := f.cache.entry(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.Version)
	require.NotNil(t, entry.Basket)
	assert.Equal(t, "basket-test", entry.Basket.ID)
	assert.Equal(t, 20.0, entry.Basket.TotalPrice)

	published := f.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.BasketEvent{
		Event:      events.ItemAdded,
		CustomerID: 1,
		BasketID:   "basket-test",
		SKU:        "A",
		Quantity:   2,
		TotalPrice: 20,
		OccurredAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}, published[0])
}

func TestAddItem_PublishFailureDoesNotFail(t *testing.T) {
	f := newBasketFixture()
	f.publisher.err = errors.New("kafka down")

	basket, err := f.svc.AddItem(context.Background(), 1, "A", 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, basket.TotalPrice)
}

func TestRemoveItem(t *testing.T) {
	f := newBasketFixture()
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, 1, "A", 2)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, 1, "B", 1)
	require.NoError(t, err)

	basket, err := f.svc.RemoveItem(ctx, 1, "A")
	require.NoError(t, err)
	require.Len(t, basket.Products, 1)
	assert.Equal(t, "B", basket.Products[0].SKU)
	assert.Equal(t, 5.0, basket.TotalPrice)

	published := f.publisher.published()
	require.Len(t, published, 3)
	assert.Equal(t, events.ItemRemoved, published[2].Event)
	assert.Equal(t, "A", published[2].SKU)
}

func TestRemoveItem_AbsentSKUIsNoop(t *testing.T) {
	f := newBasketFixture()
	ctx := context.Background()

	before, err := f.svc.AddItem(ctx, 1, "A", 2)
	require.NoError(t, err)

	after, err := f.svc.RemoveItem(ctx, 1, "B")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.publisher.published(), 1)
}

func TestRemoveItem_NoCurrentBasket(t *testing.T) {
	f := newBasketFixture()

	_, err := f.svc.RemoveItem(context.Background(), 1, "A")
	assert.ErrorIs(t, err, ErrBasketNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveItem_MissingSKU(t *testing.T) {
	f := newBasketFixture()

	_, err := f.svc.RemoveItem(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddThenRemoveRoundTrip(t *testing.T) {
	f := newBasketFixture()
	ctx := context.Background()

	basket, err := f.svc.AddItem(ctx, 1, "A", 3)
	require.NoError(t, err)
	basket, err = f.svc.RemoveItem(ctx, 1, "A")
	require.NoError(t, err)

	assert.Empty(t, basket.Products)
	assert.Equal(t, 0.0, basket.TotalPrice)
	assert.Equal(t, 0.0, basket.FinalPrice)
}

func TestGetCurrent_NoBasket(t *testing.T) {
	f := newBasketFixture()

	basket, err := f.svc.GetCurrent(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, basket)
	assert.Equal(t, 0, f.customers.saves)
	assert.Nil(t, f.customers.stored(1).CurrentBasket())
}

func TestGetCurrent_UnknownCustomer(t *testing.T) {
	f := newBasketFixture()

	_, err := f.svc.GetCurrent(context.Background(), 404)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestGetCurrent_FillsCacheThenHits(t *testing.T) {
	f := newBasketFixture(&domain.Customer{
		ID: 1,
		Baskets: []domain.Basket{
			{ID: "old", Type: "ORDERED", Products: []domain.LineItem{}},
			{ID: "cur", Type: domain.BasketTypeCurrent, Products: []domain.LineItem{{SKU: "A", Quantity: 1, Price: 10}}, TotalPrice: 10, FinalPrice: 10},
		},
	})
	ctx := context.Background()

	basket, err := f.svc.GetCurrent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cur", basket.ID)

	assert.Eventually(t, func() bool { return f.cache.setCount() == 1 }, time.Second, 10*time.Millisecond)

	finds := f.customers.finds
	basket, err = f.svc.GetCurrent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cur", basket.ID)
	assert.Equal(t, finds, f.customers.finds)
}

func TestGetCurrent_CacheErrorFallsBackToStore(t *testing.T) {
	f := newBasketFixture(&domain.Customer{
		ID:      1,
		Baskets: []domain.Basket{{ID: "cur", Type: domain.BasketTypeCurrent, Products: []domain.LineItem{}}},
	})
	f.cache.err = errors.New("redis down")

	basket, err := f.svc.GetCurrent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "cur", basket.ID)
}

func TestAddItem_WriteThroughFailureInvalidates(t *testing.T) {
	f := newBasketFixture()
	f.cache.entries[1] = cache.Entry{Version: 0, Basket: &domain.Basket{ID: "stale"}}
	f.cache.setErr = errors.New("breaker open")

	_, err := f.svc.AddItem(context.Background(), 1, "A", 1)
	require.NoError(t, err)

	entry, ok := f.cache.entry(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.Version)
	assert.Nil(t, entry.Basket)

	f.cache.m.Lock()
	f.cache.setErr = nil
	f.cache.m.Unlock()

	basket, err := f.svc.GetCurrent(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, basket)
	assert.Len(t, basket.Products, 1)
}

// gatedCache holds the first Set until release is closed.
type gatedCache struct {
	*mockCache
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	done    chan struct{}
}

func (g *gatedCache) Set(ctx context.Context, id int64, e cache.Entry) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
		defer close(g.done)
	}
	return g.mockCache.Set(ctx, id, e)
}

func TestGetCurrent_LateFillDoesNotHideNewerWrite(t *testing.T) {
	f := newBasketFixture(&domain.Customer{
		ID:      1,
		Baskets: []domain.Basket{{ID: "cur", Type: domain.BasketTypeCurrent, Products: []domain.LineItem{{SKU: "A", Quantity: 1, Price: 10}}, TotalPrice: 10, FinalPrice: 10}},
	})
	gated := &gatedCache{
		mockCache: f.cache,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	f.svc.cache = gated
	ctx := context.Background()

	basket, err := f.svc.GetCurrent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, basket.Products, 1)
	<-gated.entered

	basket, err = f.svc.AddItem(ctx, 1, "B", 1)
	require.NoError(t, err)
	require.Len(t, basket.Products, 2)

	close(gated.release)
	<-gated.done

	basket, err = f.svc.GetCurrent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, basket.Products, 2)
	assert.Equal(t, 15.0, basket.TotalPrice)
}

// blockingCache holds the first Get until release is closed.
type blockingCache struct {
	*mockCache
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingCache) Get(ctx context.Context, id int64) (*cache.Entry, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.mockCache.Get(ctx, id)
}

func TestGetCurrent_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := newBasketFixture(&domain.Customer{
		ID:      1,
		Baskets: []domain.Basket{{ID: "cur", Type: domain.BasketTypeCurrent, Products: []domain.LineItem{}}},
	})
	blocking := &blockingCache{mockCache: f.cache, entered: make(chan struct{}), release: make(chan struct{})}
	f.svc.cache = blocking

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.svc.GetCurrent(leaderCtx, 1)
		leaderErr <- err
	}()
	<-blocking.entered

	type result struct {
		basket *domain.Basket
		err    error
	}
	follower := make(chan result, 1)
	go func() {
		b, err := f.svc.GetCurrent(context.Background(), 1)
		follower <- result{b, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(blocking.release)
	res := <-follower
	require.NoError(t, res.err)
	require.NotNil(t, res.basket)
	assert.Equal(t, "cur", res.basket.ID)
}

func TestGetCurrent_StoreError(t *testing.T) {
	f := newBasketFixture()
	f.customers.findErr = errors.New("mongo down")

	_, err := f.svc.GetCurrent(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	f := newBasketFixture()
	ctx := context.Background()

	done := make(chan error, 2)
	go func() { _, err := f.svc.AddItem(ctx, 1, "A", 1); done <- err }()
	go func() { _, err := f.svc.AddItem(ctx, 1, "B", 1); done <- err }()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	stored := f.customers.stored(1)
	current := 0
	for _, b := range stored.Baskets {
		if b.Type == domain.BasketTypeCurrent {
			current++
		}
	}
	assert.Equal(t, 1, current)
	assert.Len(t, stored.CurrentBasket().Products, 2)
	assert.Equal(t, 15.0, stored.CurrentBasket().TotalPrice)
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(repository.ErrVersionConflict), ErrConflict)
	assert.ErrorIs(t, translate(domain.ErrNoCurrentBasket), ErrBasketNotFound)
	assert.ErrorIs(t, translate(domain.ErrInvalidQuantity), domain.ErrInvalidQuantity)
	assert.NoError(t, translate(nil))
}

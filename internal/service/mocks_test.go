package service

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

type mockCustomers struct {
	m         sync.RWMutex
	customers map[int64]*domain.Customer
	findErr   error
	saveErr   error
	conflicts int // SaveBaskets reports a version conflict this many times
	saves     int
	finds     int
	hashes    map[string]string
}

func newMockCustomers(customers ...*domain.Customer) *mockCustomers {
	m := &mockCustomers{customers: map[int64]*domain.Customer{}, hashes: map[string]string{}}
	for _, c := range customers {
		m.customers[c.ID] = copyCustomer(c)
	}
	return m
}

func copyCustomer(c *domain.Customer) *domain.Customer {
	out := *c
	out.Baskets = make([]domain.Basket, len(c.Baskets))
	for i, b := range c.Baskets {
		out.Baskets[i] = b.Clone()
	}
	return &out
}

func (m *mockCustomers) FindByID(ctx context.Context, id int64) (*domain.Customer, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.finds++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.customers[id]
	if !ok {
		return nil, repository.ErrCustomerNotFound
	}
	return copyCustomer(c), nil
}

func (m *mockCustomers) FindByEmail(_ context.Context, email string) (*domain.Customer, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, c := range m.customers {
		if c.Email == email {
			return copyCustomer(c), nil
		}
	}
	return nil, repository.ErrCustomerNotFound
}

func (m *mockCustomers) SaveBaskets(_ context.Context, c *domain.Customer) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	stored, ok := m.customers[c.ID]
	if !ok {
		return repository.ErrCustomerNotFound
	}
	if m.conflicts > 0 {
		m.conflicts--
		return repository.ErrVersionConflict
	}
	if stored.Version != c.Version {
		return repository.ErrVersionConflict
	}
	m.saves++
	c.Version++
	m.customers[c.ID] = copyCustomer(c)
	return nil
}

func (m *mockCustomers) SetPasswordHash(_ context.Context, email, hash string) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, c := range m.customers {
		if c.Email == email {
			c.PasswordHash = hash
			m.hashes[email] = hash
			return nil
		}
	}
	return repository.ErrCustomerNotFound
}

func (m *mockCustomers) stored(id int64) *domain.Customer {
	m.m.RLock()
	defer m.m.RUnlock()
	return copyCustomer(m.customers[id])
}

type mockProducts struct {
	m         sync.RWMutex
	products  []domain.Product
	textHits  []domain.Product
	err       error
	lookups   int
	listSkip  int64
	listLimit int64
}

func (m *mockProducts) FindBySKU(_ context.Context, sku string) (*domain.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if p.SKU == sku {
			out := p
			return &out, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProducts) FindBySKUs(_ context.Context, skus []string) ([]domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	want := map[string]bool{}
	for _, s := range skus {
		want[s] = true
	}
	out := []domain.Product{}
	for _, p := range m.products {
		if want[p.SKU] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProducts) List(_ context.Context, skip, limit int64) ([]domain.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.listSkip, m.listLimit = skip, limit
	if m.err != nil {
		return nil, m.err
	}
	if skip >= int64(len(m.products)) {
		return []domain.Product{}, nil
	}
	end := skip + limit
	if end > int64(len(m.products)) {
		end = int64(len(m.products))
	}
	return m.products[skip:end], nil
}

func (m *mockProducts) Count(context.Context) (int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	return int64(len(m.products)), nil
}

func (m *mockProducts) TextSearch(context.Context, string) ([]domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.textHits, m.err
}

// SubstringSearch returns every product, standing in for a broad regex match.
func (m *mockProducts) SubstringSearch(context.Context, string) ([]domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.products, m.err
}

type mockCache struct {
	m           sync.RWMutex
	entries     map[int64]cache.Entry
	err         error
	setErr      error
	gets        int
	sets        int
	invalidates int
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[int64]cache.Entry{}}
}

func (m *mockCache) Get(_ context.Context, id int64) (*cache.Entry, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.entries[id]
	if !ok || e.Basket == nil {
		return nil, cache.ErrCacheMiss
	}
	return &e, nil
}

func (m *mockCache) Set(_ context.Context, id int64, e cache.Entry) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.sets++
	if m.err != nil {
		return m.err
	}
	if m.setErr != nil {
		return m.setErr
	}
	m.store(id, e)
	return nil
}

func (m *mockCache) Invalidate(_ context.Context, id int64, version int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.invalidates++
	if m.err != nil {
		return m.err
	}
	m.store(id, cache.Entry{Version: version})
	return nil
}

func (m *mockCache) store(id int64, e cache.Entry) {
	if current, ok := m.entries[id]; ok && current.Version > e.Version {
		return
	}
	m.entries[id] = e
}

func (m *mockCache) entry(id int64) (cache.Entry, bool) {
	m.m.RLock()
	defer m.m.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

func (m *mockCache) setCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.sets
}

type mockPublisher struct {
	m      sync.Mutex
	events []events.BasketEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e events.BasketEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) published() []events.BasketEvent {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]events.BasketEvent(nil), m.events...)
}

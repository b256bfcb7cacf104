package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/cart-sync/internal/core/domain"
)

// MemoryStore keeps everything in process memory. Used when no durable
// store is configured and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	idem   map[string]struct{}
	orders []domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
		idem:   make(map[string]struct{}),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.idem[key]; ok {
		return false, nil
	}
	m.idem[key] = struct{}{}
	return true, nil
}

func (m *MemoryStore) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idem, key)
	return nil
}

func (m *MemoryStore) RecordOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == order.ID {
			return ErrOrderExists
		}
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	orders := make([]domain.Order, len(m.orders))
	copy(orders, m.orders)
	m.mu.Unlock()

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

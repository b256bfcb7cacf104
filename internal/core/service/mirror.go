package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/port"
)

const DefaultSnapshotKey = "storefront-cart"

// Mirror keeps the persisted cart snapshot in the local store. It is best
// effort: store failures are logged and never returned.
type Mirror struct {
	store  port.LocalStore
	key    string
	logger *zap.Logger
}

func NewMirror(store port.LocalStore, key string, logger *zap.Logger) *Mirror {
	if key == "" {
		key = DefaultSnapshotKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{store: store, key: key, logger: logger}
}

func (m *Mirror) Save(ctx context.Context, items []domain.LineItem) {
	if m.store == nil {
		return
	}
	raw, err := domain.EncodeSnapshot(items)
	if err != nil {
		m.logger.Warn("cart snapshot not written", zap.Error(err))
		return
	}
	if err := m.store.Set(ctx, m.key, raw); err != nil {
		m.logger.Warn("cart snapshot not written", zap.String("key", m.key), zap.Error(err))
	}
}

// Load returns the stored items, or an empty list when nothing usable is stored.
func (m *Mirror) Load(ctx context.Context) []domain.LineItem {
	if m.store == nil {
		return []domain.LineItem{}
	}

	raw, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		m.logger.Warn("cart snapshot not readable", zap.String("key", m.key), zap.Error(err))
		return []domain.LineItem{}
	}
	if !ok {
		return []domain.LineItem{}
	}

	items, err := domain.DecodeSnapshot(raw)
	if err != nil {
		m.logger.Warn("cart snapshot discarded", zap.String("key", m.key), zap.Error(err))
		return []domain.LineItem{}
	}
	return items
}

func (m *Mirror) Remove(ctx context.Context) {
	if m.store == nil {
		return
	}
	if err := m.store.Remove(ctx, m.key); err != nil {
		m.logger.Warn("cart snapshot not removed", zap.String("key", m.key), zap.Error(err))
	}
}

package port

import (
	"context"

	"github.com/rl1809/cart-sync/internal/core/domain"
)

type OrderJournal interface {
	// RecordOrder persists a placed order together with its line items
	RecordOrder(ctx context.Context, order domain.Order) error

	// ListOrders returns the most recent orders first
	ListOrders(ctx context.Context, limit int) ([]domain.Order, error)
}

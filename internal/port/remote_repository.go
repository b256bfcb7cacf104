package port

import (
	"context"

	"github.com/rl1809/cart-sync/internal/core/domain"
)

type RemoteCartService interface {
	// FetchCart returns the cart the storefront holds for the session user
	FetchCart(ctx context.Context) (domain.RemoteCart, error)

	// ReplaceItems sets the remote cart to exactly lines
	ReplaceItems(ctx context.Context, lines []domain.CartLine) (domain.RemoteCart, error)

	// ClearCart empties the remote cart
	ClearCart(ctx context.Context) error
}

type ProductCatalog interface {
	// FetchProduct returns product metadata used to label cart rows
	FetchProduct(ctx context.Context, productID string) (domain.Product, error)
}

type OrderGateway interface {
	// CreateOrder submits the current remote cart as an order
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error)
}

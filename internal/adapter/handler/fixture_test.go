package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rl1809/cart-sync/internal/adapter/storage"
	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
)

// stubStorefront answers every remote call from memory.
type stubStorefront struct {
	mu       sync.Mutex
	cart     domain.RemoteCart
	pushes   int
	orderErr error
}

func (s *stubStorefront) FetchCart(ctx context.Context) (domain.RemoteCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart, nil
}

func (s *stubStorefront) ReplaceItems(ctx context.Context, lines []domain.CartLine) (domain.RemoteCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes++
	return domain.RemoteCart{}, nil
}

func (s *stubStorefront) ClearCart(ctx context.Context) error { return nil }

func (s *stubStorefront) FetchProduct(ctx context.Context, productID string) (domain.Product, error) {
	return domain.Product{}, errors.New("not found")
}

func (s *stubStorefront) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orderErr != nil {
		return domain.OrderConfirmation{}, s.orderErr
	}
	return domain.OrderConfirmation{OrderID: "ord-7", DeliveryMethod: string(req.Delivery), Total: req.ExpectedTotal}, nil
}

type fixture struct {
	remote    *stubStorefront
	store     *storage.MemoryStore
	session   *service.Session
	cart      *service.CartService
	orders    *service.OrderService
	hydrator  *service.Hydrator
	formatter domain.CurrencyFormatter
}

func newFixture(t *testing.T, signedIn bool) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	f := &fixture{
		remote:    &stubStorefront{},
		store:     store,
		session:   service.NewSession(store, nil),
		formatter: domain.NewCurrencyFormatter("ru-RU", "RUB"),
	}
	if signedIn {
		f.session.SetTokens(ctx, service.Tokens{AccessToken: "tok"})
	}
	f.cart = service.NewCartService(service.CartOptions{
		Remote:   f.remote,
		Store:    store,
		Auth:     f.session,
		Debounce: 10 * time.Millisecond,
	})
	f.orders = service.NewOrderService(f.cart, f.remote, store, 10, nil)
	f.hydrator = service.NewHydrator(f.cart, f.remote, f.remote, service.HydratorOptions{})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		f.cart.Close(ctx)
	})
	return f
}

package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rl1809/cart-sync/internal/core/domain"
)

func newOrderFixture(t *testing.T, authenticated bool, queueSize int) (*cartFixture, *OrderService) {
	t.Helper()
	f := newCartFixture(authenticated, domain.RemoveAtZero)
	closeCart(t, f.cart)
	svc := NewOrderService(f.cart, f.remote, f.store, queueSize, nil)
	return f, svc
}

func validOrder(requestID string) domain.OrderRequest {
	return domain.OrderRequest{
		RequestID:    requestID,
		CustomerName: " Анна ",
		Phone:        "+7 900 000-00-00",
	}
}

func strPtr(s string) *string { return &s }

func TestPlaceOrder_Success(t *testing.T) {
	f, svc := newOrderFixture(t, true, 10)
	ctx := context.Background()

	f.cart.AddItem(ctx, puer("1kg", 1, "12.50"))
	f.cart.AddItem(ctx, puer("1kg", 2, "12.50"))

	req := validOrder("req-1")
	req.Address = strPtr("ignored for pickup")
	confirmation, err := svc.PlaceOrder(ctx, req)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if confirmation.OrderID != "ord-1" || confirmation.Total != "37.50" {
		t.Errorf("unexpected confirmation: %+v", confirmation)
	}

	// The pending push went out before the order was created.
	if n := f.remote.pushCount(); n != 1 {
		t.Errorf("expected the cart to be pushed once, got %d", n)
	}
	sent := f.remote.orders[0]
	if sent.ExpectedTotal != "37.50" {
		t.Errorf("expected total 37.50 sent, got %s", sent.ExpectedTotal)
	}
	if sent.CustomerName != "Анна" || sent.Delivery != domain.DeliveryPickup || sent.Address != nil {
		t.Errorf("order not normalised: %+v", sent)
	}

	if !f.cart.State().Cart.IsEmpty() {
		t.Error("expected cart to be cleared")
	}
	if err := settleCart(t, f.cart); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if n := f.remote.clearCount(); n != 1 {
		t.Errorf("expected remote cart cleared once, got %d", n)
	}

	select {
	case order := <-svc.GetOrderQueue():
		if order.ID != "ord-1" || order.TotalQuantity != 3 || order.Total != "37.50" || len(order.Items) != 1 {
			t.Errorf("unexpected journal record: %+v", order)
		}
		if order.Status != domain.OrderStatusConfirmed {
			t.Errorf("expected confirmed status, got %s", order.Status)
		}
	default:
		t.Error("expected the order on the journal queue")
	}
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f, svc := newOrderFixture(t, true, 10)

	_, err := svc.PlaceOrder(context.Background(), validOrder("req-1"))
	if !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got: %v", err)
	}
	if len(f.remote.orders) != 0 {
		t.Error("no order should reach the gateway")
	}
}

func TestPlaceOrder_NotAuthenticated(t *testing.T) {
	f, svc := newOrderFixture(t, false, 10)
	f.cart.AddItem(context.Background(), puer("1kg", 1, "12.50"))

	_, err := svc.PlaceOrder(context.Background(), validOrder("req-1"))
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got: %v", err)
	}
}

func TestPlaceOrder_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*domain.OrderRequest)
	}{
		{"missing name", func(r *domain.OrderRequest) { r.CustomerName = "  " }},
		{"missing phone", func(r *domain.OrderRequest) { r.Phone = "" }},
		{"unknown delivery", func(r *domain.OrderRequest) { r.Delivery = "drone" }},
		{"courier without address", func(r *domain.OrderRequest) { r.Delivery = domain.DeliveryCourier }},
		{"cdek with blank address", func(r *domain.OrderRequest) {
			r.Delivery = domain.DeliveryCDEK
			r.Address = strPtr(" ")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, svc := newOrderFixture(t, true, 10)
			f.cart.AddItem(context.Background(), puer("1kg", 1, "12.50"))

			req := validOrder("req-1")
			tt.mod(&req)
			_, err := svc.PlaceOrder(context.Background(), req)
			if !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("expected ErrInvalidOrder, got: %v", err)
			}
		})
	}
}

func TestPlaceOrder_DuplicateRequest(t *testing.T) {
	f, svc := newOrderFixture(t, true, 10)
	ctx := context.Background()

	go func() {
		for range svc.GetOrderQueue() {
		}
	}()
	defer svc.Close()

	f.cart.AddItem(ctx, puer("1kg", 1, "12.50"))
	if _, err := svc.PlaceOrder(ctx, validOrder("req-1")); err != nil {
		t.Fatalf("first order failed: %v", err)
	}

	// Same request id with a fresh cart
	f.cart.AddItem(ctx, puer("1kg", 1, "12.50"))
	_, err := svc.PlaceOrder(ctx, validOrder("req-1"))
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	if len(f.remote.orders) != 1 {
		t.Errorf("expected 1 order at the gateway, got %d", len(f.remote.orders))
	}
}

func TestPlaceOrder_SyncFailure(t *testing.T) {
	f, svc := newOrderFixture(t, true, 10)
	ctx := context.Background()
	f.remote.setReplaceErr(errors.New("503"))

	f.cart.AddItem(ctx, puer("1kg", 1, "12.50"))
	_, err := svc.PlaceOrder(ctx, validOrder("req-1"))

	if !errors.Is(err, ErrSyncFailed) {
		t.Errorf("expected ErrSyncFailed, got: %v", err)
	}
	if len(f.remote.orders) != 0 {
		t.Error("order must not be created from an unsynced cart")
	}
	if f.cart.State().Cart.IsEmpty() {
		t.Error("cart must be kept when the order is not placed")
	}
}

func TestPlaceOrder_RetryAfterSyncFailure(t *testing.T) {
	f, svc := newOrderFixture(t, true, 10)
	ctx := context.Background()
	f.remote.setReplaceErr(errors.New("503"))

	f.cart.AddItem(ctx, puer("1kg", 2, "12.50"))
	if _, err := svc.PlaceOrder(ctx, validOrder("req-1")); !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got: %v", err)
	}

	// The storefront recovers; the same request goes through without a cart edit.
	f.remote.setReplaceErr(nil)
	confirmation, err := svc.PlaceOrder(ctx, validOrder("req-1"))
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if confirmation.Total != "25.00" {
		t.Errorf("unexpected total %s", confirmation.Total)
	}
	if n := f.remote.pushCount(); n != 2 {
		t.Errorf("expected the failed push to be repeated once, got %d pushes", n)
	}
	if got := f.remote.lastPush(); len(got) != 1 || got[0].Quantity != 2 {
		t.Errorf("unexpected retried push: %+v", got)
	}
	if len(f.remote.orders) != 1 {
		t.Errorf("expected 1 order at the gateway, got %d", len(f.remote.orders))
	}
}

func TestPlaceOrder_RetryAfterGatewayFailure(t *testing.T) {
	f, svc := newOrderFixture(t, true, 10)
	ctx := context.Background()
	f.remote.orderErr = errors.New("500")

	f.cart.AddItem(ctx, puer("1kg", 1, "12.50"))
	if _, err := svc.PlaceOrder(ctx, validOrder("req-1")); err == nil {
		t.Fatal("expected an error")
	}

	f.remote.mu.Lock()
	f.remote.orderErr = nil
	f.remote.mu.Unlock()
	if _, err := svc.PlaceOrder(ctx, validOrder("req-1")); err != nil {
		t.Fatalf("request id should be free after a failed order, got: %v", err)
	}
	if _, ok := f.store.value("order:req-1"); !ok {
		t.Error("placed order should keep its request id")
	}
}

func TestPlaceOrder_GatewayFailureKeepsCart(t *testing.T) {
	f, svc := newOrderFixture(t, true, 10)
	ctx := context.Background()
	f.remote.orderErr = errors.New("500")

	f.cart.AddItem(ctx, puer("1kg", 1, "12.50"))
	if _, err := svc.PlaceOrder(ctx, validOrder("")); err == nil {
		t.Fatal("expected an error")
	}
	if f.cart.State().Cart.IsEmpty() {
		t.Error("cart must be kept when the order is not placed")
	}
}

func TestPlaceOrder_FullQueueDoesNotBlock(t *testing.T) {
	f, svc := newOrderFixture(t, true, 0)
	f.cart.AddItem(context.Background(), puer("1kg", 1, "12.50"))

	if _, err := svc.PlaceOrder(context.Background(), validOrder("req-1")); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
}

func TestPlaceOrder_ConcurrentSameRequest(t *testing.T) {
	f, svc := newOrderFixture(t, true, 100)
	ctx := context.Background()
	f.cart.AddItem(ctx, puer("1kg", 1, "12.50"))

	go func() {
		for range svc.GetOrderQueue() {
		}
	}()
	defer svc.Close()

	var wg sync.WaitGroup
	var placed, duplicates atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, validOrder("same"))
			switch {
			case err == nil:
				placed.Add(1)
			case errors.Is(err, ErrDuplicateRequest), errors.Is(err, ErrEmptyCart):
				duplicates.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if placed.Load() != 1 {
		t.Errorf("expected exactly 1 placed order, got %d", placed.Load())
	}
	if placed.Load()+duplicates.Load() != 10 {
		t.Errorf("unaccounted results: placed=%d duplicates=%d", placed.Load(), duplicates.Load())
	}
}

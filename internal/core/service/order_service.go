package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidOrder     = errors.New("invalid order")
)

type OrderService struct {
	cart       *CartService
	gateway    port.OrderGateway
	idem       port.IdempotencyStore
	orderQueue chan domain.Order
	logger     *zap.Logger
}

func NewOrderService(cart *CartService, gateway port.OrderGateway, idem port.IdempotencyStore, queueSize int, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		cart:       cart,
		gateway:    gateway,
		idem:       idem,
		orderQueue: make(chan domain.Order, queueSize),
		logger:     logger,
	}
}

// PlaceOrder submits the current cart. The remote cart is brought up to date
// first, retrying a push that failed earlier, so the storefront orders
// exactly what the shopper sees. The request id is only used up once the
// order is about to be created and is released again if creation fails.
// On success the cart is cleared and the order is queued for the journal.
func (s *OrderService) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error) {
	if !s.cart.auth.IsAuthenticated() {
		return domain.OrderConfirmation{}, ErrNotAuthenticated
	}
	if err := normalizeOrder(&req); err != nil {
		return domain.OrderConfirmation{}, err
	}

	st := s.cart.State()
	if st.Cart.IsEmpty() {
		return domain.OrderConfirmation{}, ErrEmptyCart
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	idempotencyKey := fmt.Sprintf("order:%s", req.RequestID)

	if err := s.cart.Resync(ctx); err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("cart not synced: %w", err)
	}

	st = s.cart.State()
	if st.Cart.IsEmpty() {
		return domain.OrderConfirmation{}, ErrEmptyCart
	}
	req.ExpectedTotal = st.Cart.TotalPrice

	if s.idem != nil {
		ok, err := s.idem.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return domain.OrderConfirmation{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return domain.OrderConfirmation{}, ErrDuplicateRequest
		}
	}

	confirmation, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		s.release(ctx, idempotencyKey)
		return domain.OrderConfirmation{}, fmt.Errorf("create order: %w", err)
	}

	s.cart.Clear(ctx)

	now := time.Now()
	order := domain.Order{
		ID:            confirmation.OrderID,
		RequestID:     req.RequestID,
		CustomerName:  req.CustomerName,
		Delivery:      req.Delivery,
		Items:         st.Cart.Items,
		TotalQuantity: st.Cart.TotalQuantity,
		Total:         domain.NormalizePrice(firstNonEmpty(confirmation.Total, st.Cart.TotalPrice)),
		Status:        domain.OrderStatusConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	select {
	case s.orderQueue <- order:
	default:
		s.logger.Warn("order journal queue full, order not journaled", zap.String("order_id", order.ID))
	}

	return confirmation, nil
}

func (s *OrderService) release(ctx context.Context, key string) {
	if s.idem == nil {
		return
	}
	if err := s.idem.ReleaseIdempotency(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("idempotency key not released", zap.String("key", key), zap.Error(err))
	}
}

func (s *OrderService) GetOrderQueue() <-chan domain.Order {
	return s.orderQueue
}

func (s *OrderService) Close() {
	close(s.orderQueue)
}

func normalizeOrder(req *domain.OrderRequest) error {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Phone = strings.TrimSpace(req.Phone)

	if req.CustomerName == "" || req.Phone == "" {
		return fmt.Errorf("%w: name and phone are required", ErrInvalidOrder)
	}
	if req.Delivery == "" {
		req.Delivery = domain.DeliveryPickup
	}
	if !req.Delivery.Valid() {
		return fmt.Errorf("%w: unknown delivery method %q", ErrInvalidOrder, req.Delivery)
	}

	if req.Delivery == domain.DeliveryPickup {
		req.Address = nil
	} else if req.Address == nil || strings.TrimSpace(*req.Address) == "" {
		return fmt.Errorf("%w: address is required for %s", ErrInvalidOrder, req.Delivery)
	}

	if req.Comment != nil && strings.TrimSpace(*req.Comment) == "" {
		req.Comment = nil
	}
	return nil
}

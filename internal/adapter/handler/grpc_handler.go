package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
)

type GRPCHandler struct {
	cart      *service.CartService
	orders    *service.OrderService
	formatter domain.CurrencyFormatter
}

func NewGRPCHandler(cart *service.CartService, orders *service.OrderService, formatter domain.CurrencyFormatter) *GRPCHandler {
	return &GRPCHandler{cart: cart, orders: orders, formatter: formatter}
}

func (h *GRPCHandler) GetCart(ctx context.Context, req *GetCartRequest) (*CartResponse, error) {
	return h.reply(h.cart.State()), nil
}

func (h *GRPCHandler) AddItem(ctx context.Context, req *AddItemRequest) (*CartResponse, error) {
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if req.ProductID == "" || req.VariantID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}
	if qty < 0 || qty > domain.MaxQuantity {
		return nil, status.Error(codes.InvalidArgument, "quantity out of range")
	}

	st := h.cart.AddItem(ctx, domain.LineItem{
		ProductID:    req.ProductID,
		VariantID:    req.VariantID,
		Quantity:     qty,
		UnitPrice:    req.Price,
		DisplayName:  req.ProductName,
		VariantLabel: req.VariantLabel,
	})
	return h.reply(st), nil
}

func (h *GRPCHandler) SetQuantity(ctx context.Context, req *SetQuantityRequest) (*CartResponse, error) {
	if req.ProductID == "" || req.VariantID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}
	if req.Quantity > domain.MaxQuantity {
		return nil, status.Error(codes.InvalidArgument, "quantity out of range")
	}
	return h.reply(h.cart.SetQuantity(ctx, req.ProductID, req.VariantID, req.Quantity)), nil
}

func (h *GRPCHandler) RemoveItem(ctx context.Context, req *RemoveItemRequest) (*CartResponse, error) {
	if req.ProductID == "" || req.VariantID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}
	return h.reply(h.cart.RemoveItem(ctx, req.ProductID, req.VariantID)), nil
}

func (h *GRPCHandler) ClearCart(ctx context.Context, req *ClearCartRequest) (*CartResponse, error) {
	return h.reply(h.cart.Clear(ctx)), nil
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	confirmation, err := h.orders.PlaceOrder(ctx, domain.OrderRequest{
		RequestID:    req.RequestID,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Delivery:     domain.DeliveryMethod(req.Delivery),
		Address:      req.Address,
		Comment:      req.Comment,
	})
	if err != nil {
		if errors.Is(err, service.ErrDuplicateRequest) {
			return &PlaceOrderResponse{
				Success: false,
				Message: "duplicate request",
			}, nil
		}
		if errors.Is(err, service.ErrEmptyCart) {
			return &PlaceOrderResponse{
				Success: false,
				Message: "cart is empty",
			}, nil
		}
		if errors.Is(err, service.ErrNotAuthenticated) {
			return nil, status.Error(codes.Unauthenticated, "not authenticated")
		}
		if errors.Is(err, service.ErrInvalidOrder) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return &PlaceOrderResponse{
			Success: false,
			Message: "order could not be placed",
		}, nil
	}

	return &PlaceOrderResponse{
		Success: true,
		Message: "order placed successfully",
		OrderID: confirmation.OrderID,
		Total:   confirmation.Total,
	}, nil
}

func (h *GRPCHandler) reply(st service.State) *CartResponse {
	resp := NewCartResponse(st, h.formatter)
	return &resp
}

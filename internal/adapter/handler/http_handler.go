package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
	"github.com/rl1809/cart-sync/internal/port"
)

const (
	defaultOrderListLimit = 20
	maxOrderListLimit     = 100
)

// Invalidator is anything holding per-session caches, dropped on logout.
type Invalidator interface {
	Invalidate()
}

type HTTPHandler struct {
	cart      *service.CartService
	orders    *service.OrderService
	session   *service.Session
	hydrator  *service.Hydrator
	journal   port.OrderJournal
	formatter domain.CurrencyFormatter
	caches    []Invalidator
	logger    *zap.Logger
}

type HTTPHandlerOptions struct {
	Cart      *service.CartService
	Orders    *service.OrderService
	Session   *service.Session
	Hydrator  *service.Hydrator
	Journal   port.OrderJournal
	Formatter domain.CurrencyFormatter
	Caches    []Invalidator
	Logger    *zap.Logger
}

type AddItemHTTPRequest struct {
	ProductID    string `json:"productId"`
	VariantID    string `json:"variantId"`
	Quantity     int    `json:"quantity"`
	Price        any    `json:"price"`
	ProductName  string `json:"productName"`
	VariantLabel string `json:"variantLabel"`
}

type SetQuantityHTTPRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderHTTPRequest struct {
	RequestID    string  `json:"requestId"`
	CustomerName string  `json:"customerName"`
	Phone        string  `json:"phone"`
	Delivery     string  `json:"delivery"`
	Address      *string `json:"address"`
	Comment      *string `json:"comment"`
}

type PlaceOrderHTTPResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	OrderID        string `json:"orderId,omitempty"`
	DeliveryMethod string `json:"deliveryMethod,omitempty"`
	Total          string `json:"total,omitempty"`
	TotalDisplay   string `json:"totalDisplay,omitempty"`
}

type LoginHTTPRequest struct {
	Tokens service.Tokens `json:"tokens"`
}

type LoginHTTPResponse struct {
	Hydration string       `json:"hydration"`
	Cart      CartResponse `json:"cart"`
}

type OrderView struct {
	OrderID       string         `json:"orderId"`
	RequestID     string         `json:"requestId"`
	CustomerName  string         `json:"customerName"`
	Delivery      string         `json:"delivery"`
	Items         []LineItemView `json:"items"`
	TotalQuantity int            `json:"totalQuantity"`
	Total         string         `json:"total"`
	TotalDisplay  string         `json:"totalDisplay"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type ListOrdersHTTPResponse struct {
	Orders []OrderView `json:"orders"`
}

type ErrorHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewHTTPHandler(opts HTTPHandlerOptions) *HTTPHandler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &HTTPHandler{
		cart:      opts.Cart,
		orders:    opts.Orders,
		session:   opts.Session,
		hydrator:  opts.Hydrator,
		journal:   opts.Journal,
		formatter: opts.Formatter,
		caches:    opts.Caches,
		logger:    opts.Logger,
	}
}

// Register mounts the cart API on mux. GET /api/orders is only mounted when
// a journal is configured.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)
	mux.HandleFunc("POST /api/cart/items", h.AddItem)
	mux.HandleFunc("PATCH /api/cart/items", h.SetQuantity)
	mux.HandleFunc("DELETE /api/cart/items", h.RemoveItem)
	mux.HandleFunc("POST /api/orders", h.PlaceOrder)
	if h.journal != nil {
		mux.HandleFunc("GET /api/orders", h.ListOrders)
	}
	mux.HandleFunc("POST /api/session", h.Login)
	mux.HandleFunc("DELETE /api/session", h.Logout)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewCartResponse(h.cart.State(), h.formatter))
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.ProductID == "" || req.VariantID == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if req.Quantity < 0 || req.Quantity > domain.MaxQuantity {
		writeError(w, http.StatusBadRequest, "quantity out of range")
		return
	}

	st := h.cart.AddItem(r.Context(), domain.LineItem{
		ProductID:    req.ProductID,
		VariantID:    req.VariantID,
		Quantity:     req.Quantity,
		UnitPrice:    domain.NormalizePrice(req.Price),
		DisplayName:  req.ProductName,
		VariantLabel: req.VariantLabel,
	})
	writeJSON(w, http.StatusOK, NewCartResponse(st, h.formatter))
}

func (h *HTTPHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req SetQuantityHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" || req.VariantID == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if req.Quantity > domain.MaxQuantity {
		writeError(w, http.StatusBadRequest, "quantity out of range")
		return
	}

	st := h.cart.SetQuantity(r.Context(), req.ProductID, req.VariantID, req.Quantity)
	writeJSON(w, http.StatusOK, NewCartResponse(st, h.formatter))
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, variantID := q.Get("productId"), q.Get("variantId")
	if productID == "" || variantID == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	st := h.cart.RemoveItem(r.Context(), productID, variantID)
	writeJSON(w, http.StatusOK, NewCartResponse(st, h.formatter))
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	st := h.cart.Clear(r.Context())
	writeJSON(w, http.StatusOK, NewCartResponse(st, h.formatter))
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, PlaceOrderHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	confirmation, err := h.orders.PlaceOrder(r.Context(), domain.OrderRequest{
		RequestID:    req.RequestID,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Delivery:     domain.DeliveryMethod(req.Delivery),
		Address:      req.Address,
		Comment:      req.Comment,
	})
	if err != nil {
		status, message := orderErrorStatus(err)
		if status == http.StatusBadGateway {
			h.logger.Warn("order not placed", zap.Error(err))
		}
		writeJSON(w, status, PlaceOrderHTTPResponse{
			Success: false,
			Message: message,
		})
		return
	}

	writeJSON(w, http.StatusOK, PlaceOrderHTTPResponse{
		Success:        true,
		Message:        "order placed successfully",
		OrderID:        confirmation.OrderID,
		DeliveryMethod: confirmation.DeliveryMethod,
		Total:          confirmation.Total,
		TotalDisplay:   h.formatter.FormatDisplay(confirmation.Total),
	})
}

// ListOrders returns the most recent journaled orders, newest first.
func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultOrderListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxOrderListLimit)
	}

	orders, err := h.journal.ListOrders(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "orders unavailable")
		return
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, OrderView{
			OrderID:       o.ID,
			RequestID:     o.RequestID,
			CustomerName:  o.CustomerName,
			Delivery:      string(o.Delivery),
			Items:         lineItemViews(o.Items, h.formatter),
			TotalQuantity: o.TotalQuantity,
			Total:         o.Total,
			TotalDisplay:  h.formatter.FormatDisplay(o.Total),
			Status:        string(o.Status),
			CreatedAt:     o.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, ListOrdersHTTPResponse{Orders: views})
}

// Login hands the agent the tokens obtained by the UI and hydrates the cart.
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tokens.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "missing access token")
		return
	}

	h.session.SetTokens(r.Context(), req.Tokens)
	outcome := h.hydrator.Hydrate(r.Context())

	writeJSON(w, http.StatusOK, LoginHTTPResponse{
		Hydration: string(outcome),
		Cart:      NewCartResponse(h.cart.State(), h.formatter),
	})
}

// Logout drops the tokens before resetting the cart, so an edit racing the
// logout stays in memory instead of being pushed.
func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	st := h.cart.Reset(r.Context())
	for _, c := range h.caches {
		c.Invalidate()
	}
	writeJSON(w, http.StatusOK, NewCartResponse(st, h.formatter))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func orderErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, service.ErrInvalidOrder):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusConflict, "cart is empty"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	case errors.Is(err, service.ErrSyncFailed):
		return http.StatusBadGateway, "cart could not be synced"
	default:
		return http.StatusBadGateway, "order could not be placed"
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorHTTPResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

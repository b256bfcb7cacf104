package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/cart-sync/internal/core/domain"
)

type staticToken string

func (t staticToken) AccessToken() string { return string(t) }

type recorded struct {
	method    string
	path      string
	auth      string
	requestID string
	body      string
}

// storefront is a scripted fake of the storefront API.
type storefront struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	reply    any
}

func (s *storefront) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, recorded{
		method:    r.Method,
		path:      r.URL.EscapedPath(),
		auth:      r.Header.Get("Authorization"),
		requestID: r.Header.Get("X-Request-ID"),
		body:      string(body),
	})
	status, reply := s.status, s.reply
	s.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	if reply == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(reply)
}

func (s *storefront) last() recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newTestClient(t *testing.T, token string) (*Client, *storefront) {
	t.Helper()
	api := &storefront{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client(), staticToken(token), nil), api
}

func TestClient_FetchCart(t *testing.T) {
	c, api := newTestClient(t, "tok")
	api.reply = domain.RemoteCart{
		Items:      []domain.RemoteCartItem{{ProductID: "A", VariantID: "1kg", Quantity: 2, Price: "12.50"}},
		TotalCount: 2,
		TotalPrice: "25.00",
	}

	cart, err := c.FetchCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.reply, cart)

	req := api.last()
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/v1/cart", req.path)
	assert.Equal(t, "Bearer tok", req.auth)
	assert.NotEmpty(t, req.requestID)
}

func TestClient_ReplaceItems(t *testing.T) {
	c, api := newTestClient(t, "tok")
	api.reply = domain.RemoteCart{}

	_, err := c.ReplaceItems(context.Background(), []domain.CartLine{{ProductID: "A", VariantID: "1kg", Quantity: 3}})
	require.NoError(t, err)

	req := api.last()
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/v1/cart/items", req.path)
	assert.JSONEq(t, `{"items":[{"productId":"A","variantId":"1kg","quantity":3}]}`, req.body)

	// An empty cart is sent as an empty list, never null
	_, err = c.ReplaceItems(context.Background(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, api.last().body)
}

func TestClient_ClearCartNoContent(t *testing.T) {
	c, api := newTestClient(t, "tok")
	api.status = http.StatusNoContent

	require.NoError(t, c.ClearCart(context.Background()))
	assert.Equal(t, http.MethodDelete, api.last().method)
	assert.Equal(t, "/v1/cart", api.last().path)
}

func TestClient_FetchProductEscapesID(t *testing.T) {
	c, api := newTestClient(t, "")
	api.reply = domain.Product{ID: "a/b", Name: "Улун"}

	p, err := c.FetchProduct(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "Улун", p.Name)
	assert.Equal(t, "/v1/catalog/products/a%2Fb", api.last().path)
	assert.Empty(t, api.last().auth, "no token, no Authorization header")
}

func TestClient_CreateOrder(t *testing.T) {
	c, api := newTestClient(t, "tok")
	api.reply = domain.OrderConfirmation{OrderID: "ord-9", Total: "37.50", DeliveryMethod: "pickup"}

	conf, err := c.CreateOrder(context.Background(), domain.OrderRequest{
		RequestID:     "req-1",
		CustomerName:  "Анна",
		Phone:         "+7",
		Delivery:      domain.DeliveryPickup,
		ExpectedTotal: "37.50",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-9", conf.OrderID)

	req := api.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v1/orders", req.path)
	assert.NotContains(t, req.body, "req-1", "request id stays local")
	assert.Contains(t, req.body, `"expectedTotal":"37.50"`)
}

func TestClient_StatusError(t *testing.T) {
	c, api := newTestClient(t, "tok")
	api.status = http.StatusServiceUnavailable
	api.reply = map[string]string{"message": "maintenance"}

	_, err := c.FetchCart(context.Background())

	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "/v1/cart", se.Path)
	assert.Contains(t, se.Error(), "maintenance")
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, nil, nil, nil)

	err := c.ClearCart(context.Background())
	assert.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

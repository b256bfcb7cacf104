package handler

import (
	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
)

type LineItemView struct {
	ProductID       string `json:"productId"`
	VariantID       string `json:"variantId"`
	Quantity        int    `json:"quantity"`
	Price           string `json:"price"`
	PriceDisplay    string `json:"priceDisplay"`
	Subtotal        string `json:"subtotal"`
	SubtotalDisplay string `json:"subtotalDisplay"`
	ProductName     string `json:"productName"`
	VariantLabel    string `json:"variantLabel"`
}

// CartResponse is the cart as presentation layers render it.
type CartResponse struct {
	Items         []LineItemView `json:"items"`
	TotalCount    int            `json:"totalCount"`
	TotalPrice    string         `json:"totalPrice"`
	TotalDisplay  string         `json:"totalDisplay"`
	Authenticated bool           `json:"authenticated"`
	Loading       bool           `json:"loading"`
	SyncError     string         `json:"syncError,omitempty"`
	LoadError     string         `json:"loadError,omitempty"`
}

func NewCartResponse(st service.State, f domain.CurrencyFormatter) CartResponse {
	resp := CartResponse{
		Items:         lineItemViews(st.Cart.Items, f),
		TotalCount:    st.Cart.TotalQuantity,
		TotalPrice:    st.Cart.TotalPrice,
		TotalDisplay:  f.FormatDisplay(st.Cart.TotalPrice),
		Authenticated: st.Authenticated,
		Loading:       st.Loading,
	}
	if st.SyncErr != nil {
		resp.SyncError = st.SyncErr.Error()
	}
	if st.LoadErr != nil {
		resp.LoadError = st.LoadErr.Error()
	}
	return resp
}

func lineItemViews(lines []domain.LineItem, f domain.CurrencyFormatter) []LineItemView {
	items := make([]LineItemView, 0, len(lines))
	for _, it := range lines {
		subtotal := domain.FormatAmount(it.Subtotal())
		items = append(items, LineItemView{
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			Quantity:        it.Quantity,
			Price:           it.UnitPrice,
			PriceDisplay:    f.FormatDisplay(it.UnitPrice),
			Subtotal:        subtotal,
			SubtotalDisplay: f.FormatDisplay(subtotal),
			ProductName:     it.DisplayName,
			VariantLabel:    it.VariantLabel,
		})
	}
	return items
}

package domain

import "github.com/shopspring/decimal"

// QuantityPolicy decides what SetQuantity does with a non-positive quantity.
type QuantityPolicy int

const (
	// RemoveAtZero drops the line when the requested quantity is 0 or less.
	RemoveAtZero QuantityPolicy = iota
	// ClampToOne keeps the line and raises the quantity to 1.
	ClampToOne
)

func (p QuantityPolicy) String() string {
	switch p {
	case ClampToOne:
		return "clamp"
	default:
		return "remove"
	}
}

// ParseQuantityPolicy maps "clamp" to ClampToOne; everything else is RemoveAtZero.
func ParseQuantityPolicy(s string) QuantityPolicy {
	if s == "clamp" {
		return ClampToOne
	}
	return RemoveAtZero
}

// MaxQuantity is the largest quantity a single line can hold. Merges and
// SetQuantity saturate at it.
const MaxQuantity = 9999

// ItemKey identifies a line item within a cart.
type ItemKey struct {
	ProductID string
	VariantID string
}

type LineItem struct {
	ProductID    string `json:"productId"`
	VariantID    string `json:"variantId"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"price"`
	DisplayName  string `json:"productName"`
	VariantLabel string `json:"variantLabel"`
}

func (i LineItem) Key() ItemKey {
	return ItemKey{ProductID: i.ProductID, VariantID: i.VariantID}
}

// Subtotal is UnitPrice * Quantity, unrounded.
func (i LineItem) Subtotal() decimal.Decimal {
	return Multiply(ParseAmount(i.UnitPrice), i.Quantity)
}

func (i LineItem) valid() bool {
	return i.ProductID != "" && i.Quantity >= 1
}

// CartLine is the bare row the remote cart service stores.
type CartLine struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// Cart is an immutable value: every operation returns a new Cart with
// totals recomputed from its items.
type Cart struct {
	Items         []LineItem `json:"items"`
	TotalQuantity int        `json:"totalCount"`
	TotalPrice    string     `json:"totalPrice"`
}

func EmptyCart() Cart {
	return Cart{Items: []LineItem{}, TotalPrice: FormatAmount(decimal.Zero)}
}

// NewCart builds a cart from an arbitrary item list. Rows without a product
// id or with a quantity below 1 are dropped and duplicate keys are merged
// the same way AddItem merges them.
func NewCart(items []LineItem) Cart {
	c := EmptyCart()
	for _, it := range items {
		c = c.AddItem(it)
	}
	return c
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) Find(productID, variantID string) (LineItem, bool) {
	if idx := c.indexOf(ItemKey{productID, variantID}); idx >= 0 {
		return c.Items[idx], true
	}
	return LineItem{}, false
}

// AddItem merges in into the line with the same key, adding quantities and
// taking in's price and labels, or appends it as a new line. The line
// quantity never exceeds MaxQuantity.
func (c Cart) AddItem(in LineItem) Cart {
	if !in.valid() {
		return c
	}
	in.Quantity = min(in.Quantity, MaxQuantity)

	items := c.cloneItems()
	if idx := c.indexOf(in.Key()); idx >= 0 {
		existing := items[idx]
		existing.Quantity = min(existing.Quantity+in.Quantity, MaxQuantity)
		existing.UnitPrice = in.UnitPrice
		if in.DisplayName != "" {
			existing.DisplayName = in.DisplayName
		}
		if in.VariantLabel != "" {
			existing.VariantLabel = in.VariantLabel
		}
		items[idx] = existing
	} else {
		items = append(items, in)
	}

	return withTotals(items)
}

// SetQuantity sets the quantity of the matching line, capped at MaxQuantity.
// What happens to quantities below 1 is decided by policy. Unknown keys are
// a no-op.
func (c Cart) SetQuantity(productID, variantID string, quantity int, policy QuantityPolicy) Cart {
	idx := c.indexOf(ItemKey{productID, variantID})
	if idx < 0 {
		return c
	}

	if quantity < 1 {
		if policy == ClampToOne {
			quantity = 1
		} else {
			return c.RemoveItem(productID, variantID)
		}
	}

	items := c.cloneItems()
	items[idx].Quantity = min(quantity, MaxQuantity)
	return withTotals(items)
}

func (c Cart) RemoveItem(productID, variantID string) Cart {
	key := ItemKey{productID, variantID}
	items := make([]LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Key() != key {
			items = append(items, it)
		}
	}
	return withTotals(items)
}

func (c Cart) Clear() Cart {
	return EmptyCart()
}

// Lines projects the cart onto the rows sent to the remote cart service.
func (c Cart) Lines() []CartLine {
	lines := make([]CartLine, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, CartLine{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return lines
}

func (c Cart) indexOf(key ItemKey) int {
	for i, it := range c.Items {
		if it.Key() == key {
			return i
		}
	}
	return -1
}

func (c Cart) cloneItems() []LineItem {
	items := make([]LineItem, len(c.Items), len(c.Items)+1)
	copy(items, c.Items)
	return items
}

func withTotals(items []LineItem) Cart {
	qty := 0
	subtotals := make([]decimal.Decimal, 0, len(items))
	for _, it := range items {
		qty += it.Quantity
		subtotals = append(subtotals, it.Subtotal())
	}
	return Cart{
		Items:         items,
		TotalQuantity: qty,
		TotalPrice:    FormatAmount(Sum(subtotals...)),
	}
}

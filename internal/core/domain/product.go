package domain

type ProductVariant struct {
	ID     string `json:"id"`
	Weight string `json:"weight"`
	Price  string `json:"price"`
}

type Product struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Tags        []string         `json:"tags"`
	Image       string           `json:"image"`
	Variants    []ProductVariant `json:"variants"`
}

func (p Product) Variant(id string) (ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return ProductVariant{}, false
}

// RemoteCartItem is a cart row as the storefront API returns it. Only the
// ids and quantity are guaranteed; the rest may be empty.
type RemoteCartItem struct {
	ProductID    string `json:"productId"`
	VariantID    string `json:"variantId"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price,omitempty"`
	ProductName  string `json:"productName,omitempty"`
	VariantLabel string `json:"variantLabel,omitempty"`
}

type RemoteCart struct {
	Items      []RemoteCartItem `json:"items"`
	TotalCount int              `json:"totalCount"`
	TotalPrice string           `json:"totalPrice"`
}

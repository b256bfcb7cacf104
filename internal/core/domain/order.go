package domain

import "time"

type DeliveryMethod string

const (
	DeliveryPickup  DeliveryMethod = "pickup"
	DeliveryCourier DeliveryMethod = "courier"
	DeliveryCDEK    DeliveryMethod = "cdek"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryPickup, DeliveryCourier, DeliveryCDEK:
		return true
	}
	return false
}

// OrderRequest is what the shopper submits at checkout.
type OrderRequest struct {
	RequestID     string         `json:"-"`
	CustomerName  string         `json:"customerName"`
	Phone         string         `json:"phone"`
	Delivery      DeliveryMethod `json:"delivery"`
	Address       *string        `json:"address"`
	Comment       *string        `json:"comment"`
	ExpectedTotal string         `json:"expectedTotal"`
}

// OrderConfirmation is the storefront's answer to a created order.
type OrderConfirmation struct {
	OrderID        string `json:"orderId"`
	CustomerName   string `json:"customerName"`
	DeliveryMethod string `json:"deliveryMethod"`
	Total          string `json:"total"`
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is the local journal record of a placed order.
type Order struct {
	ID            string
	RequestID     string
	CustomerName  string
	Delivery      DeliveryMethod
	Items         []LineItem
	TotalQuantity int
	Total         string
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

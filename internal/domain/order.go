package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
)

// Order is created once per successful checkout and never mutated by it
// afterwards. Code is the human-shareable identifier, distinct from ID.
type Order struct {
	ID               string      `json:"id"`
	Code             string      `json:"code"`
	UserID           string      `json:"userId"`
	Status           OrderStatus `json:"status"`
	SubtotalCents    int64       `json:"subtotalCents"`
	DiscountCents    int64       `json:"discountCents"`
	ShippingFeeCents int64       `json:"shippingFeeCents"`
	TaxCents         int64       `json:"taxCents"`
	TotalCents       int64       `json:"totalCents"`
	Currency         string      `json:"currency"`
	CreatedAt        time.Time   `json:"createdAt"`
	Items            []OrderItem `json:"items"`
	Payment          *Payment    `json:"payment,omitempty"`
}

// OrderItem freezes product, quantity and unit price at purchase time.
type OrderItem struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	Title          string `json:"title,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// LineTotalCents returns unit price times quantity.
func (i OrderItem) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

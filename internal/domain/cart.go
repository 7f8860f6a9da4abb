package domain

import "time"

// Cart is a set of line items owned by at most one of an anonymous session or
// a user. A cart without lines is treated as no cart at checkout.
type Cart struct {
	ID          string     `json:"id"`
	UserID      *string    `json:"userId,omitempty"`
	AnonymousID *string    `json:"-"`
	Currency    string     `json:"currency"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Lines       []CartLine `json:"lineItems"`
}

type CartLine struct {
	ID             string    `json:"id"`
	CartID         string    `json:"cartId"`
	ProductID      string    `json:"productId"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Empty reports whether the cart has nothing to purchase.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Lines) == 0
}

// TotalCents sums unit price times quantity over all lines.
func (c *Cart) TotalCents() int64 {
	if c == nil {
		return 0
	}
	var total int64
	for _, l := range c.Lines {
		total += l.UnitPriceCents * int64(l.Quantity)
	}
	return total
}

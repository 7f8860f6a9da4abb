package httpserver

import (
	"time"

	"storefront-checkout/internal/domain"
)

type cartView struct {
	ID         string         `json:"id"`
	Currency   string         `json:"currency"`
	Items      []cartLineView `json:"items"`
	TotalCents int64          `json:"totalCents"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

type cartLineView struct {
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	LineTotalCents int64  `json:"lineTotalCents"`
}

func toCartView(c *domain.Cart) cartView {
	v := cartView{
		ID:         c.ID,
		Currency:   c.Currency,
		Items:      make([]cartLineView, 0, len(c.Lines)),
		TotalCents: c.TotalCents(),
		UpdatedAt:  c.UpdatedAt,
	}
	for _, l := range c.Lines {
		v.Items = append(v.Items, cartLineView{
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			LineTotalCents: l.UnitPriceCents * int64(l.Quantity),
		})
	}
	return v
}

// orderView is the public order summary. It leaves out the owner and the
// payment audit payload.
type orderView struct {
	Code             string             `json:"code"`
	Status           domain.OrderStatus `json:"status"`
	SubtotalCents    int64              `json:"subtotalCents"`
	DiscountCents    int64              `json:"discountCents"`
	ShippingFeeCents int64              `json:"shippingFeeCents"`
	TaxCents         int64              `json:"taxCents"`
	TotalCents       int64              `json:"totalCents"`
	Currency         string             `json:"currency"`
	CreatedAt        time.Time          `json:"createdAt"`
	Items            []orderItemView    `json:"items"`
	Payment          *paymentView       `json:"payment,omitempty"`
}

type orderItemView struct {
	ProductID      string `json:"productId"`
	Title          string `json:"title,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

type paymentView struct {
	Provider    domain.PaymentProvider `json:"provider"`
	Status      domain.PaymentStatus   `json:"status"`
	AmountCents int64                  `json:"amountCents"`
}

func toOrderView(o *domain.Order) orderView {
	v := orderView{
		Code:             o.Code,
		Status:           o.Status,
		SubtotalCents:    o.SubtotalCents,
		DiscountCents:    o.DiscountCents,
		ShippingFeeCents: o.ShippingFeeCents,
		TaxCents:         o.TaxCents,
		TotalCents:       o.TotalCents,
		Currency:         o.Currency,
		CreatedAt:        o.CreatedAt,
		Items:            make([]orderItemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemView{
			ProductID:      it.ProductID,
			Title:          it.Title,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	if o.Payment != nil {
		v.Payment = &paymentView{Provider: o.Payment.Provider, Status: o.Payment.Status, AmountCents: o.Payment.AmountCents}
	}
	return v
}

package order

import (
	"context"
	"encoding/json"

	"storefront-checkout/internal/domain"
)

// StockDemand is the total quantity requested for one product across all
// lines of an order.
type StockDemand struct {
	ProductID string
	Quantity  int
}

// NewOrder is everything needed to write the order, its items and its
// initial payment in one go.
type NewOrder struct {
	Code             string
	UserID           string
	SubtotalCents    int64
	DiscountCents    int64
	ShippingFeeCents int64
	TaxCents         int64
	TotalCents       int64
	Currency         string
	Items            []domain.OrderItem
	Payment          NewPayment
}

type NewPayment struct {
	Provider domain.PaymentProvider
	Status   domain.PaymentStatus
	Payload  json.RawMessage
}

// UnitOfWork is the transaction scope of a checkout. It exposes exactly the
// four writes a checkout may perform; all of them commit or roll back together.
type UnitOfWork interface {
	// VerifyStock batch-reads inventory and fails with a StockError
	// (OUT_OF_STOCK) if any demand exceeds what is available.
	VerifyStock(ctx context.Context, demand []StockDemand) error
	// DecrementStock applies a decrement conditioned on sufficient stock per
	// product and fails with a StockError (RACE_OUT_OF_STOCK) if none matched.
	DecrementStock(ctx context.Context, demand []StockDemand) error
	// CreateOrder writes the order, its items and one payment. A taken code
	// yields domain.ErrDuplicateOrderCode and leaves the scope usable.
	CreateOrder(ctx context.Context, in NewOrder) (*domain.Order, error)
	// ClearCart deletes the cart's lines, keeping the cart itself.
	ClearCart(ctx context.Context, cartID string) error
}

// Store runs checkout transactions and serves order lookups.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	GetByCode(ctx context.Context, code string) (*domain.Order, error)
}

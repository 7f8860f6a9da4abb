package product

import (
	"context"

	"storefront-checkout/internal/domain"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)
	// Restock sets the absolute stock level. Checkout never calls it.
	Restock(ctx context.Context, productID string, quantity int) error
}

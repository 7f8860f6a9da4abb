package cart

import (
	"context"

	"storefront-checkout/internal/domain"
)

type CreateCartInput struct {
	UserID      *string
	AnonymousID *string
	Currency    string
}

type Repository interface {
	Create(ctx context.Context, in CreateCartInput) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	GetLatestByUser(ctx context.Context, userID string) (*domain.Cart, error)
	GetLatestByAnonymous(ctx context.Context, anonymousID string) (*domain.Cart, error)
	GetMostRecentWithItems(ctx context.Context) (*domain.Cart, error)
	AddLineItem(ctx context.Context, cartID string, product domain.Product, quantity int) error
}

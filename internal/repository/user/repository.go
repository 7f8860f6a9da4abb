package user

import (
	"context"

	"storefront-checkout/internal/domain"
)

// Contact carries the checkout contact details used to attach an order to a user.
type Contact struct {
	Email    string
	FullName string
	Phone    string
}

// Repository resolves order owners.
type Repository interface {
	FindOrCreateByEmail(ctx context.Context, c Contact) (*domain.User, error)
	CreateGuest(ctx context.Context, c Contact) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

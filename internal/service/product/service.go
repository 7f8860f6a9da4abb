package product

import (
	"context"
	"errors"

	"storefront-checkout/internal/domain"
)

type repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)
}

// Availability is a catalog product with its current stock level.
type Availability struct {
	Product   domain.Product
	Available int
}

// InStock reports whether at least qty units can be ordered right now. The
// answer is advisory; checkout re-checks inside its transaction.
func (a Availability) InStock(qty int) bool {
	return qty > 0 && a.Available >= qty
}

type Service struct {
	repo repository
}

func New(repo repository) *Service {
	return &Service{repo: repo}
}

// Get treats a product without an inventory row as having no stock.
func (s *Service) Get(ctx context.Context, id string) (*Availability, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	av := &Availability{Product: *p}
	inv, err := s.repo.GetInventory(ctx, p.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		av.Available = inv.Quantity
	}
	return av, nil
}

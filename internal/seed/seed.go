package seed

import (
	"context"
	"fmt"

	"storefront-checkout/internal/domain"
	userrepo "storefront-checkout/internal/repository/user"
)

type productStore interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	Restock(ctx context.Context, productID string, quantity int) error
}

type userStore interface {
	FindOrCreateByEmail(ctx context.Context, c userrepo.Contact) (*domain.User, error)
}

type productSeed struct {
	SKU         string
	Name        string
	Description string
	PriceCents  int64
	Stock       int
}

var catalog = []productSeed{
	{SKU: "SKU-DEMO-TSHIRT", Name: "Demo T-Shirt", Description: "Soft cotton tee for demo purposes", PriceCents: 1999, Stock: 25},
	{SKU: "SKU-DEMO-MUG", Name: "Demo Mug", Description: "Ceramic mug with demo logo", PriceCents: 1299, Stock: 40},
	{SKU: "SKU-DEMO-POSTER", Name: "Limited Poster", Description: "Numbered print, very few left", PriceCents: 4500, Stock: 2},
	{SKU: "SKU-DEMO-STICKER", Name: "Sold Out Sticker", PriceCents: 300, Stock: 0},
}

// DemoEmail is the registered shopper created by Apply.
const DemoEmail = "demo@storefront.local"

// Result lists what Apply wrote so callers can print it.
type Result struct {
	Products []domain.Product
	User     *domain.User
}

// Apply upserts the demo catalog, resets its stock levels and makes sure the
// demo shopper exists. Running it twice leaves the same rows behind.
func Apply(ctx context.Context, products productStore, users userStore, currency string) (*Result, error) {
	res := &Result{}
	for _, s := range catalog {
		p, err := products.Upsert(ctx, domain.Product{
			SKU:         s.SKU,
			Name:        s.Name,
			Description: s.Description,
			PriceCents:  s.PriceCents,
			Currency:    currency,
		})
		if err != nil {
			return nil, fmt.Errorf("upsert product %s: %w", s.SKU, err)
		}
		if err := products.Restock(ctx, p.ID, s.Stock); err != nil {
			return nil, fmt.Errorf("restock product %s: %w", s.SKU, err)
		}
		res.Products = append(res.Products, *p)
	}

	u, err := users.FindOrCreateByEmail(ctx, userrepo.Contact{Email: DemoEmail, FullName: "Demo Shopper", Phone: "+10000000000"})
	if err != nil {
		return nil, fmt.Errorf("ensure demo user: %w", err)
	}
	res.User = u
	return res, nil
}

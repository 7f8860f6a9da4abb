package checkout

import (
	"context"
	"errors"
	"io"
	"log"

	"storefront-checkout/internal/domain"
)

// Item sources and cart strategies, recorded in the payment payload.
const (
	SourcePayload = "payload"
	SourceCart    = "cart"

	StrategyPayload   = "payload"
	StrategyCartID    = "cart_id"
	StrategyAnonID    = "anon_id"
	StrategyUser      = "user"
	StrategyDevRecent = "dev_recent"
)

type cartRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	GetLatestByAnonymous(ctx context.Context, anonymousID string) (*domain.Cart, error)
	GetLatestByUser(ctx context.Context, userID string) (*domain.Cart, error)
	GetMostRecentWithItems(ctx context.Context) (*domain.Cart, error)
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// Resolution is the authoritative list of items to purchase.
type Resolution struct {
	Items         []domain.OrderItem
	SubtotalCents int64
	Currency      string
	Source        string
	Strategy      string
	// CartID is set only when the items came from a persisted cart.
	CartID string
}

// Resolver picks the line items for a checkout: the submitted items when
// present, otherwise the first non-empty persisted cart by priority.
type Resolver struct {
	carts       cartRepo
	products    productRepo
	devFallback bool
	logger      *log.Logger
}

func NewResolver(carts cartRepo, products productRepo, devFallback bool, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Resolver{carts: carts, products: products, devFallback: devFallback, logger: logger}
}

// Resolve returns domain.ErrEmptyOrder when nothing purchasable is found. It
// only reads.
func (r *Resolver) Resolve(ctx context.Context, n *Normalized) (*Resolution, error) {
	if len(n.Items) > 0 {
		items := append([]domain.OrderItem(nil), n.Items...)
		subtotal := sumItems(items)
		// client subtotal is trusted for client-side carts
		if n.ClientSubtotalCents != nil {
			subtotal = *n.ClientSubtotalCents
		}
		return &Resolution{Items: items, SubtotalCents: subtotal, Source: SourcePayload, Strategy: StrategyPayload}, nil
	}

	type strategy struct {
		name   string
		enable bool
		load   func() (*domain.Cart, error)
	}
	strategies := []strategy{
		{StrategyCartID, n.CartID != "", func() (*domain.Cart, error) { return r.carts.GetByID(ctx, n.CartID) }},
		{StrategyAnonID, n.AnonID != "", func() (*domain.Cart, error) { return r.carts.GetLatestByAnonymous(ctx, n.AnonID) }},
		{StrategyUser, n.UserID != "", func() (*domain.Cart, error) { return r.carts.GetLatestByUser(ctx, n.UserID) }},
		{StrategyDevRecent, r.devFallback, func() (*domain.Cart, error) { return r.carts.GetMostRecentWithItems(ctx) }},
	}

	for _, s := range strategies {
		if !s.enable {
			continue
		}
		cart, err := s.load()
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if cart.Empty() {
			continue
		}
		if s.name == StrategyDevRecent {
			r.logger.Printf("checkout resolver: dev fallback picked cart=%s", cart.ID)
		}
		items, err := r.cartItems(ctx, cart)
		if err != nil {
			return nil, err
		}
		return &Resolution{
			Items:         items,
			SubtotalCents: sumItems(items),
			Currency:      cart.Currency,
			Source:        SourceCart,
			Strategy:      s.name,
			CartID:        cart.ID,
		}, nil
	}
	return nil, domain.ErrEmptyOrder
}

func (r *Resolver) cartItems(ctx context.Context, cart *domain.Cart) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		item := domain.OrderItem{ProductID: line.ProductID, Quantity: line.Quantity, UnitPriceCents: line.UnitPriceCents}
		if r.products != nil {
			p, err := r.products.GetByID(ctx, line.ProductID)
			switch {
			case err == nil:
				item.Title = p.Name
			case errors.Is(err, domain.ErrNotFound):
			default:
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func sumItems(items []domain.OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.LineTotalCents()
	}
	return total
}

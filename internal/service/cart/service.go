package cart

import (
	"context"
	"errors"
	"strings"

	"storefront-checkout/internal/domain"
	cartrepo "storefront-checkout/internal/repository/cart"
)

// ErrNoOwner means the caller has neither a user id nor an anonymous id.
var ErrNoOwner = errors.New("cart owner required")

type Service struct {
	repo        cartRepo
	productRepo productRepo
	currency    string
}

type cartRepo interface {
	Create(ctx context.Context, in cartrepo.CreateCartInput) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	GetLatestByUser(ctx context.Context, userID string) (*domain.Cart, error)
	GetLatestByAnonymous(ctx context.Context, anonymousID string) (*domain.Cart, error)
	AddLineItem(ctx context.Context, cartID string, product domain.Product, quantity int) error
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

func New(repo cartRepo, productRepo productRepo, currency string) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{repo: repo, productRepo: productRepo, currency: currency}
}

// Owner identifies whose cart is addressed. UserID wins when both are set.
type Owner struct {
	UserID      string
	AnonymousID string
}

func (o Owner) empty() bool {
	return strings.TrimSpace(o.UserID) == "" && strings.TrimSpace(o.AnonymousID) == ""
}

type AddItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Current returns the owner's latest cart.
func (s *Service) Current(ctx context.Context, owner Owner) (*domain.Cart, error) {
	if owner.empty() {
		return nil, ErrNoOwner
	}
	if owner.UserID != "" {
		return s.repo.GetLatestByUser(ctx, owner.UserID)
	}
	return s.repo.GetLatestByAnonymous(ctx, owner.AnonymousID)
}

// AddItem adds quantity units of a product at its current catalog price,
// creating the owner's cart on first use.
func (s *Service) AddItem(ctx context.Context, owner Owner, in AddItemInput) (*domain.Cart, error) {
	if owner.empty() {
		return nil, ErrNoOwner
	}
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return nil, domain.Invalid("productId", "is required")
	}
	if in.Quantity <= 0 {
		return nil, domain.Invalid("quantity", "must be positive")
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Invalid("productId", "unknown product")
		}
		return nil, err
	}

	cart, err := s.Current(ctx, owner)
	if errors.Is(err, domain.ErrNotFound) {
		cart, err = s.repo.Create(ctx, createInput(owner, s.currencyFor(product)))
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.AddLineItem(ctx, cart.ID, *product, in.Quantity); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, cart.ID)
}

func (s *Service) currencyFor(p *domain.Product) string {
	if p.Currency != "" {
		return p.Currency
	}
	return s.currency
}

func createInput(owner Owner, currency string) cartrepo.CreateCartInput {
	in := cartrepo.CreateCartInput{Currency: currency}
	if owner.UserID != "" {
		id := owner.UserID
		in.UserID = &id
		return in
	}
	anon := owner.AnonymousID
	in.AnonymousID = &anon
	return in
}

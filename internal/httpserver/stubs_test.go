package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"storefront-checkout/internal/domain"
	cartsvc "storefront-checkout/internal/service/cart"
	"storefront-checkout/internal/service/checkout"
	productsvc "storefront-checkout/internal/service/product"

	"github.com/gin-gonic/gin"
)

func logDiscard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type stubCheckoutService struct {
	placed  *checkout.PlacedOrder
	err     error
	lastReq checkout.Request
	calls   int
}

func (s *stubCheckoutService) PlaceOrder(_ context.Context, req checkout.Request) (*checkout.PlacedOrder, error) {
	s.calls++
	s.lastReq = req
	return s.placed, s.err
}

type stubCartService struct {
	cart      *domain.Cart
	err       error
	lastOwner cartsvc.Owner
	lastIn    cartsvc.AddItemInput
}

func (s *stubCartService) AddItem(_ context.Context, owner cartsvc.Owner, in cartsvc.AddItemInput) (*domain.Cart, error) {
	s.lastOwner = owner
	s.lastIn = in
	return s.cart, s.err
}

func (s *stubCartService) Current(_ context.Context, owner cartsvc.Owner) (*domain.Cart, error) {
	s.lastOwner = owner
	return s.cart, s.err
}

type stubOrders struct {
	order *domain.Order
	err   error
}

func (s *stubOrders) GetByCode(_ context.Context, code string) (*domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.order == nil || s.order.Code != code {
		return nil, domain.ErrNotFound
	}
	return s.order, nil
}

type stubProducts struct {
	items map[string]productsvc.Availability
	err   error
}

func (s *stubProducts) Get(_ context.Context, id string) (*productsvc.Availability, error) {
	if s.err != nil {
		return nil, s.err
	}
	av, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &av, nil
}

type stubIdentity struct {
	anonID string
	tokens map[string]string
}

func (s *stubIdentity) NewAnonymousID() string { return s.anonID }

func (s *stubIdentity) UserID(token string) (string, error) {
	if id, ok := s.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type testDeps struct {
	checkout *stubCheckoutService
	carts    *stubCartService
	orders   *stubOrders
	products *stubProducts
	identity *stubIdentity
}

func newTestRouter(t *testing.T, db Pinger) (*gin.Engine, *testDeps) {
	gin.SetMode(gin.TestMode)
	td := &testDeps{
		checkout: &stubCheckoutService{},
		carts:    &stubCartService{},
		orders:   &stubOrders{},
		products: &stubProducts{items: map[string]productsvc.Availability{}},
		identity: &stubIdentity{anonID: "fresh-anon", tokens: map[string]string{"good": "user-7"}},
	}
	router, err := buildRouter(logDiscard(), db, Deps{
		CheckoutSvc: td.checkout,
		CartSvc:     td.carts,
		Orders:      td.orders,
		Products:    td.products,
		Identity:    td.identity,
		SuccessPath: "/checkout/success",
		ErrorPath:   "/checkout",
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return router, td
}

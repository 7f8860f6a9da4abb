package checkout

import (
	"context"
	"sync"

	"storefront-checkout/internal/domain"
	orderrepo "storefront-checkout/internal/repository/order"
	userrepo "storefront-checkout/internal/repository/user"
)

const (
	productA = "00000000-0000-0000-0000-00000000000a"
	productB = "00000000-0000-0000-0000-00000000000b"
)

// memStore serializes transactions and applies their writes only on success.
type memStore struct {
	mu         sync.Mutex
	stock      map[string]int
	orders     map[string]domain.Order
	cleared    []string
	txs        int
	skipVerify bool
}

func newMemStore(stock map[string]int) *memStore {
	return &memStore{stock: stock, orders: map[string]domain.Order{}}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, uow orderrepo.UnitOfWork) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs++

	tx := &memTx{store: m, stock: make(map[string]int, len(m.stock)), orders: map[string]domain.Order{}}
	for k, v := range m.stock {
		tx.stock[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.stock = tx.stock
	for code, o := range tx.orders {
		m.orders[code] = o
	}
	m.cleared = append(m.cleared, tx.cleared...)
	return nil
}

func (m *memStore) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (m *memStore) stockOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id]
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type memTx struct {
	store   *memStore
	stock   map[string]int
	orders  map[string]domain.Order
	cleared []string
}

func (t *memTx) VerifyStock(ctx context.Context, demand []orderrepo.StockDemand) error {
	if t.store.skipVerify {
		return nil
	}
	for _, d := range demand {
		if have := t.stock[d.ProductID]; have < d.Quantity {
			return &domain.StockError{Code: domain.StockOutOfStock, ProductID: d.ProductID, Requested: d.Quantity, Available: have}
		}
	}
	return nil
}

func (t *memTx) DecrementStock(ctx context.Context, demand []orderrepo.StockDemand) error {
	for _, d := range demand {
		if t.stock[d.ProductID] < d.Quantity {
			return &domain.StockError{Code: domain.StockRaceOutOfStock, ProductID: d.ProductID, Requested: d.Quantity}
		}
		t.stock[d.ProductID] -= d.Quantity
	}
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, in orderrepo.NewOrder) (*domain.Order, error) {
	if _, taken := t.store.orders[in.Code]; taken {
		return nil, domain.ErrDuplicateOrderCode
	}
	if _, taken := t.orders[in.Code]; taken {
		return nil, domain.ErrDuplicateOrderCode
	}
	o := domain.Order{
		ID:               "order-" + in.Code,
		Code:             in.Code,
		UserID:           in.UserID,
		Status:           domain.OrderStatusPending,
		SubtotalCents:    in.SubtotalCents,
		DiscountCents:    in.DiscountCents,
		ShippingFeeCents: in.ShippingFeeCents,
		TaxCents:         in.TaxCents,
		TotalCents:       in.TotalCents,
		Currency:         in.Currency,
		Items:            append([]domain.OrderItem(nil), in.Items...),
		Payment: &domain.Payment{
			Provider:    in.Payment.Provider,
			Status:      in.Payment.Status,
			AmountCents: in.TotalCents,
			Payload:     in.Payment.Payload,
		},
	}
	t.orders[in.Code] = o
	return &o, nil
}

func (t *memTx) ClearCart(ctx context.Context, cartID string) error {
	t.cleared = append(t.cleared, cartID)
	return nil
}

type stubCarts struct {
	byID   map[string]*domain.Cart
	byAnon map[string]*domain.Cart
	byUser map[string]*domain.Cart
	recent *domain.Cart
}

func (s *stubCarts) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	return lookupCart(s.byID, id)
}

func (s *stubCarts) GetLatestByAnonymous(ctx context.Context, anonymousID string) (*domain.Cart, error) {
	return lookupCart(s.byAnon, anonymousID)
}

func (s *stubCarts) GetLatestByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	return lookupCart(s.byUser, userID)
}

func (s *stubCarts) GetMostRecentWithItems(ctx context.Context) (*domain.Cart, error) {
	if s.recent == nil {
		return nil, domain.ErrNotFound
	}
	return s.recent, nil
}

func lookupCart(m map[string]*domain.Cart, key string) (*domain.Cart, error) {
	if c, ok := m[key]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

type stubProducts struct{}

func (stubProducts) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	switch id {
	case productA:
		return &domain.Product{ID: id, Name: "Alpha"}, nil
	case productB:
		return &domain.Product{ID: id, Name: "Beta"}, nil
	}
	return nil, domain.ErrNotFound
}

type stubUsers struct {
	mu     sync.Mutex
	known  map[string]bool
	byMail int
	guests int
}

func (s *stubUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[id] {
		return nil, domain.ErrNotFound
	}
	return &domain.User{ID: id}, nil
}

func (s *stubUsers) FindOrCreateByEmail(ctx context.Context, c userrepo.Contact) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byMail++
	email := c.Email
	return &domain.User{ID: "user-" + email, Email: &email, FullName: c.FullName}, nil
}

func (s *stubUsers) CreateGuest(ctx context.Context, c userrepo.Contact) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guests++
	return &domain.User{ID: "guest", IsGuest: true}, nil
}

func (s *stubUsers) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byMail + s.guests
}

type recordingHook struct {
	mu     sync.Mutex
	placed []PlacedOrder
}

func (h *recordingHook) OrderPlaced(p PlacedOrder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.placed = append(h.placed, p)
}

func (h *recordingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.placed)
}

func cartWith(id string, lines ...domain.CartLine) *domain.Cart {
	return &domain.Cart{ID: id, Currency: "USD", Lines: lines}
}

package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/metrics"
	orderrepo "storefront-checkout/internal/repository/order"
	userrepo "storefront-checkout/internal/repository/user"
)

type userRepo interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	FindOrCreateByEmail(ctx context.Context, c userrepo.Contact) (*domain.User, error)
	CreateGuest(ctx context.Context, c userrepo.Contact) (*domain.User, error)
}

// AfterCommit receives every committed order. Implementations must return
// immediately; nothing they do can affect the checkout outcome.
type AfterCommit interface {
	OrderPlaced(PlacedOrder)
}

// PlacedOrder is a committed order plus the request context needed to notify
// about it.
type PlacedOrder struct {
	Order         domain.Order
	Contact       Contact
	Shipping      Address
	ShippingTier  string
	PaymentMethod string
	Source        string
	CartID        string
}

type Deps struct {
	Store    orderrepo.Store
	Users    userRepo
	Resolver *Resolver
	Hook     AfterCommit
	Codes    CodeGenerator
	Metrics  *metrics.Metrics
	Currency string
	Logger   *log.Logger
}

type Service struct {
	store    orderrepo.Store
	users    userRepo
	resolver *Resolver
	hook     AfterCommit
	codes    CodeGenerator
	metrics  *metrics.Metrics
	currency string
	logger   *log.Logger
}

func New(deps Deps) *Service {
	s := &Service{
		store:    deps.Store,
		users:    deps.Users,
		resolver: deps.Resolver,
		hook:     deps.Hook,
		codes:    deps.Codes,
		metrics:  deps.Metrics,
		currency: deps.Currency,
		logger:   deps.Logger,
	}
	if s.codes == nil {
		s.codes = NewOrderCode
	}
	if s.currency == "" {
		s.currency = "USD"
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s
}

// PlaceOrder validates req, resolves what is being bought and who buys it,
// then runs stock verification, conditional decrement, order creation and
// cart clearing as one transaction. Validation and empty-order failures
// happen before any write.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*PlacedOrder, error) {
	started := time.Now()
	placed, err := s.placeOrder(ctx, req)
	s.metrics.ObserveCheckout(Outcome(err), started)
	return placed, err
}

func (s *Service) placeOrder(ctx context.Context, req Request) (*PlacedOrder, error) {
	n, err := Normalize(req)
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(ctx, n)
	if err != nil {
		if !errors.Is(err, domain.ErrEmptyOrder) {
			s.logger.Printf("checkout: resolve items error=%v", err)
		}
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	user, err := s.resolveUser(ctx, n)
	if err != nil {
		s.logger.Printf("checkout: resolve user error=%v", err)
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	currency := res.Currency
	if currency == "" {
		currency = s.currency
	}
	const discount = 0
	newOrder := orderrepo.NewOrder{
		UserID:           user.ID,
		SubtotalCents:    res.SubtotalCents,
		DiscountCents:    discount,
		ShippingFeeCents: n.ShippingTier.FeeCents,
		TaxCents:         n.TaxCents,
		TotalCents:       res.SubtotalCents - discount + n.ShippingTier.FeeCents + n.TaxCents,
		Currency:         currency,
		Items:            res.Items,
		Payment: orderrepo.NewPayment{
			Provider: n.Payment.Provider,
			Status:   n.Payment.Status,
		},
	}
	newOrder.Payment.Payload, err = json.Marshal(auditPayload(n, res))
	if err != nil {
		return nil, fmt.Errorf("encode payment payload: %w", err)
	}

	demand := aggregateDemand(res.Items)
	var order *domain.Order
	err = s.store.InTx(ctx, func(ctx context.Context, uow orderrepo.UnitOfWork) error {
		if err := uow.VerifyStock(ctx, demand); err != nil {
			return err
		}
		if err := uow.DecrementStock(ctx, demand); err != nil {
			return err
		}
		created, err := s.createWithFreshCode(ctx, uow, newOrder)
		if err != nil {
			return err
		}
		if res.CartID != "" {
			if err := uow.ClearCart(ctx, res.CartID); err != nil {
				return err
			}
		}
		order = created
		return nil
	})
	if err != nil {
		if domain.IsStockError(err) {
			s.logger.Printf("checkout: rejected %v", err)
		} else {
			s.logger.Printf("checkout: transaction error=%v", err)
		}
		return nil, err
	}

	placed := &PlacedOrder{
		Order:         *order,
		Contact:       n.Contact,
		Shipping:      n.Shipping,
		ShippingTier:  n.ShippingTier.Key,
		PaymentMethod: n.Payment.Key,
		Source:        res.Source,
		CartID:        res.CartID,
	}
	s.logger.Printf("checkout: placed order code=%s id=%s total=%d items=%d source=%s", order.Code, order.ID, order.TotalCents, len(order.Items), res.Source)
	if s.hook != nil {
		s.hook.OrderPlaced(*placed)
	}
	return placed, nil
}

// createWithFreshCode regenerates the order code whenever the store reports
// it as taken.
func (s *Service) createWithFreshCode(ctx context.Context, uow orderrepo.UnitOfWork, in orderrepo.NewOrder) (*domain.Order, error) {
	for attempt := 1; ; attempt++ {
		code, err := s.codes()
		if err != nil {
			return nil, fmt.Errorf("generate order code: %w", err)
		}
		in.Code = code
		order, err := uow.CreateOrder(ctx, in)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderCode) || attempt >= maxCodeRetries {
			return nil, err
		}
		s.logger.Printf("checkout: regenerating order code attempt=%d", attempt)
	}
}

func (s *Service) resolveUser(ctx context.Context, n *Normalized) (*domain.User, error) {
	if n.UserID != "" {
		u, err := s.users.GetByID(ctx, n.UserID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		s.logger.Printf("checkout: token user=%s not found, resolving by contact", n.UserID)
	}
	contact := userrepo.Contact{Email: n.Contact.Email, FullName: n.Contact.FullName, Phone: n.Contact.Phone}
	if contact.Email != "" {
		return s.users.FindOrCreateByEmail(ctx, contact)
	}
	return s.users.CreateGuest(ctx, contact)
}

// aggregateDemand sums quantities per product and sorts by product id so
// concurrent transactions lock inventory rows in the same order.
func aggregateDemand(items []domain.OrderItem) []orderrepo.StockDemand {
	totals := make(map[string]int, len(items))
	for _, it := range items {
		totals[it.ProductID] += it.Quantity
	}
	demand := make([]orderrepo.StockDemand, 0, len(totals))
	for id, qty := range totals {
		demand = append(demand, orderrepo.StockDemand{ProductID: id, Quantity: qty})
	}
	sort.Slice(demand, func(i, j int) bool { return demand[i].ProductID < demand[j].ProductID })
	return demand
}

type paymentPayload struct {
	Contact        Contact `json:"contact"`
	Shipping       Address `json:"shipping"`
	ShippingMethod string  `json:"shippingMethod"`
	ShippingTier   string  `json:"shippingTier"`
	PaymentMethod  string  `json:"paymentMethod"`
	Source         string  `json:"source"`
	Strategy       string  `json:"strategy"`
	CartID         string  `json:"cartId,omitempty"`
	AnonID         string  `json:"anonId,omitempty"`
}

func auditPayload(n *Normalized, res *Resolution) paymentPayload {
	return paymentPayload{
		Contact:        n.Contact,
		Shipping:       n.Shipping,
		ShippingMethod: n.ShippingMethodRaw,
		ShippingTier:   n.ShippingTier.Key,
		PaymentMethod:  n.Payment.Key,
		Source:         res.Source,
		Strategy:       res.Strategy,
		CartID:         res.CartID,
		AnonID:         n.AnonID,
	}
}

// Outcome classifies a PlaceOrder result for metrics and redirect codes.
func Outcome(err error) string {
	var se *domain.StockError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case domain.IsValidation(err):
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrEmptyOrder):
		return metrics.OutcomeEmpty
	case errors.As(err, &se) && se.Code == domain.StockRaceOutOfStock:
		return metrics.OutcomeRaceOutOfStock
	case errors.As(err, &se):
		return metrics.OutcomeOutOfStock
	default:
		return metrics.OutcomeInternal
	}
}

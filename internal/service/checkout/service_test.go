package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

type fixture struct {
	svc   *Service
	store *memStore
	users *stubUsers
	hook  *recordingHook
	m     *metrics.Metrics
}

func newFixture(stock map[string]int, carts *stubCarts, codes CodeGenerator) *fixture {
	if carts == nil {
		carts = &stubCarts{}
	}
	f := &fixture{
		store: newMemStore(stock),
		users: &stubUsers{},
		hook:  &recordingHook{},
		m:     metrics.New(nil),
	}
	f.svc = New(Deps{
		Store:    f.store,
		Users:    f.users,
		Resolver: NewResolver(carts, stubProducts{}, false, nil),
		Hook:     f.hook,
		Codes:    codes,
		Metrics:  f.m,
		Currency: "USD",
	})
	return f
}

func baseRequest() Request {
	return Request{
		Email: "buyer@example.com",
		Shipping: Address{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Address1:  "1 Main St",
			City:      "London",
			Phone:     "+44 1234",
		},
		PaymentMethod:  "cod",
		ShippingMethod: "standard",
	}
}

func withItems(req Request, items ...RequestItem) Request {
	req.Items = items
	return req
}

func item(productID string, qty int, price string) RequestItem {
	return RequestItem{ProductID: productID, Quantity: qty, Price: decimal.RequireFromString(price)}
}

func TestPlaceOrder_NoOverselling(t *testing.T) {
	f := newFixture(map[string]int{productA: 3}, nil, nil)

	const attempts = 20
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, stocks int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(context.Background(), withItems(baseRequest(), item(productA, 1, "10.00")))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case domain.IsStockError(err):
				stocks++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 3 || stocks != attempts-3 {
		t.Fatalf("expected 3 successes and %d stock failures, got %d and %d", attempts-3, ok, stocks)
	}
	if got := f.store.stockOf(productA); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
	if got := f.store.orderCount(); got != 3 {
		t.Fatalf("expected 3 orders, got %d", got)
	}
	if got := f.hook.count(); got != 3 {
		t.Fatalf("expected hook per committed order, got %d", got)
	}
}

func TestPlaceOrder_ScenarioA_TwoBuyersOneUnit(t *testing.T) {
	f := newFixture(map[string]int{productA: 1}, nil, nil)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(context.Background(), withItems(baseRequest(), item(productA, 1, "5")))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, out int
	for err := range errs {
		switch Outcome(err) {
		case metrics.OutcomeSuccess:
			ok++
		case metrics.OutcomeOutOfStock, metrics.OutcomeRaceOutOfStock:
			out++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || out != 1 {
		t.Fatalf("expected one success and one out of stock, got %d/%d", ok, out)
	}
	if f.store.stockOf(productA) != 0 || f.store.orderCount() != 1 {
		t.Fatalf("expected stock 0 and one order, got %d and %d", f.store.stockOf(productA), f.store.orderCount())
	}
}

func TestPlaceOrder_VerifyFailureTouchesNothing(t *testing.T) {
	f := newFixture(map[string]int{productA: 5, productB: 1}, nil, nil)

	_, err := f.svc.PlaceOrder(context.Background(), withItems(baseRequest(),
		item(productA, 1, "1"),
		item(productB, 2, "1"),
	))
	var se *domain.StockError
	if !errors.As(err, &se) || se.Code != domain.StockOutOfStock || se.ProductID != productB {
		t.Fatalf("expected OUT_OF_STOCK for product B, got %v", err)
	}
	if f.store.stockOf(productA) != 5 || f.store.stockOf(productB) != 1 {
		t.Fatalf("stock changed after failed checkout")
	}
	if f.store.orderCount() != 0 || f.hook.count() != 0 {
		t.Fatalf("expected no orders and no notifications")
	}
}

func TestPlaceOrder_RaceOnSecondItemRollsBackFirst(t *testing.T) {
	f := newFixture(map[string]int{productA: 5, productB: 1}, nil, nil)
	f.store.skipVerify = true

	_, err := f.svc.PlaceOrder(context.Background(), withItems(baseRequest(),
		item(productA, 2, "1"),
		item(productB, 2, "1"),
	))
	var se *domain.StockError
	if !errors.As(err, &se) || se.Code != domain.StockRaceOutOfStock {
		t.Fatalf("expected RACE_OUT_OF_STOCK, got %v", err)
	}
	if got := f.store.stockOf(productA); got != 5 {
		t.Fatalf("expected product A untouched at 5, got %d", got)
	}
	if f.store.orderCount() != 0 {
		t.Fatalf("expected no order")
	}
	if got := testutil.ToFloat64(f.m.CheckoutAttempts.WithLabelValues(metrics.OutcomeRaceOutOfStock)); got != 1 {
		t.Fatalf("expected race outcome recorded, got %v", got)
	}
}

func TestPlaceOrder_AggregatesRepeatedProduct(t *testing.T) {
	f := newFixture(map[string]int{productA: 3}, nil, nil)

	_, err := f.svc.PlaceOrder(context.Background(), withItems(baseRequest(),
		item(productA, 2, "1"),
		item(productA, 2, "1"),
	))
	if !domain.IsStockError(err) {
		t.Fatalf("expected stock error for 4 units against 3, got %v", err)
	}
}

func TestPlaceOrder_RegeneratesCollidingCode(t *testing.T) {
	f := newFixture(map[string]int{productA: 10}, nil, nil)
	f.store.orders["ORD-TAKEN"] = domain.Order{Code: "ORD-TAKEN"}

	codes := []string{"ORD-TAKEN", "ORD-TAKEN", "ORD-NEW"}
	f.svc.codes = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	placed, err := f.svc.PlaceOrder(context.Background(), withItems(baseRequest(), item(productA, 1, "1")))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if placed.Order.Code != "ORD-NEW" {
		t.Fatalf("expected regenerated code, got %s", placed.Order.Code)
	}
	if got := f.store.stockOf(productA); got != 9 {
		t.Fatalf("expected one unit sold, got stock %d", got)
	}
}

func TestPlaceOrder_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(map[string]int{productA: 10}, nil, func() (string, error) { return "ORD-SAME", nil })
	f.store.orders["ORD-SAME"] = domain.Order{Code: "ORD-SAME"}

	_, err := f.svc.PlaceOrder(context.Background(), withItems(baseRequest(), item(productA, 1, "1")))
	if !errors.Is(err, domain.ErrDuplicateOrderCode) {
		t.Fatalf("expected duplicate code error, got %v", err)
	}
	if Outcome(err) != metrics.OutcomeInternal {
		t.Fatalf("exhausted code retries must be internal, got %s", Outcome(err))
	}
	if got := f.store.stockOf(productA); got != 10 {
		t.Fatalf("expected rollback, got stock %d", got)
	}
}

func TestPlaceOrder_ConcurrentCodesStayUnique(t *testing.T) {
	f := newFixture(map[string]int{productA: 100}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.PlaceOrder(context.Background(), withItems(baseRequest(), item(productA, 1, "1"))); err != nil {
				t.Errorf("PlaceOrder: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := f.store.orderCount(); got != 50 {
		t.Fatalf("expected 50 distinct orders, got %d", got)
	}
}

func TestPlaceOrder_ScenarioB_NoItemsNoCartWritesNothing(t *testing.T) {
	f := newFixture(map[string]int{productA: 1}, nil, nil)

	_, err := f.svc.PlaceOrder(context.Background(), baseRequest())
	if !errors.Is(err, domain.ErrEmptyOrder) {
		t.Fatalf("expected empty order, got %v", err)
	}
	if f.store.txs != 0 {
		t.Fatalf("expected no transaction, got %d", f.store.txs)
	}
	if f.users.calls() != 0 {
		t.Fatalf("expected no user writes, got %d", f.users.calls())
	}
}

func TestPlaceOrder_ScenarioC_CodWithLegacyShippingKey(t *testing.T) {
	f := newFixture(map[string]int{productA: 1}, nil, nil)
	req := withItems(baseRequest(), item(productA, 1, "12.50"))
	req.ShippingMethod = "bundle"
	req.PaymentMethod = "cod"
	req.ShippingCost = decimal.NewNullDecimal(decimal.RequireFromString("9.99"))

	placed, err := f.svc.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	p := placed.Order.Payment
	if p.Provider != domain.PaymentProviderCOD || p.Status != domain.PaymentStatusPending {
		t.Fatalf("unexpected payment %+v", p)
	}
	if placed.Order.ShippingFeeCents != ShippingFree.FeeCents {
		t.Fatalf("expected free tier fee, got %d", placed.Order.ShippingFeeCents)
	}
	if placed.Order.TotalCents != 1250 {
		t.Fatalf("expected total 1250, got %d", placed.Order.TotalCents)
	}

	var payload map[string]any
	if err := json.Unmarshal(p.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["shippingMethod"] != "bundle" || payload["shippingTier"] != "free" || payload["source"] != SourcePayload {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestPlaceOrder_QRPaymentAwaitsConfirmation(t *testing.T) {
	f := newFixture(map[string]int{productA: 1}, nil, nil)
	req := withItems(baseRequest(), item(productA, 1, "10"))
	req.PaymentMethod = "qr"
	req.ShippingMethod = "express"
	req.Tax = decimal.NewNullDecimal(decimal.RequireFromString("0.80"))

	placed, err := f.svc.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if placed.Order.Payment.Status != domain.PaymentStatusAwaitingConfirmation || placed.PaymentMethod != "qr" {
		t.Fatalf("unexpected payment %+v", placed.Order.Payment)
	}
	if want := int64(1000 + 1500 + 80); placed.Order.TotalCents != want {
		t.Fatalf("expected total %d, got %d", want, placed.Order.TotalCents)
	}
}

func TestPlaceOrder_TrustsClientSubtotalForPayloadItems(t *testing.T) {
	f := newFixture(map[string]int{productA: 1}, nil, nil)
	req := withItems(baseRequest(), item(productA, 1, "10"))
	req.ShippingMethod = "free"
	req.Subtotal = decimal.NewNullDecimal(decimal.RequireFromString("8.00"))

	placed, err := f.svc.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if placed.Order.SubtotalCents != 800 || placed.Order.TotalCents != 800 {
		t.Fatalf("expected client subtotal 800, got %d/%d", placed.Order.SubtotalCents, placed.Order.TotalCents)
	}
}

func TestPlaceOrder_PersistedCartIsClearedAndRepriced(t *testing.T) {
	carts := &stubCarts{byAnon: map[string]*domain.Cart{
		"anon-1": cartWith("cart-1", domain.CartLine{ProductID: productA, Quantity: 2, UnitPriceCents: 300}),
	}}
	f := newFixture(map[string]int{productA: 2}, carts, nil)
	req := baseRequest()
	req.AnonID = "anon-1"
	req.Subtotal = decimal.NewNullDecimal(decimal.RequireFromString("1.00"))

	placed, err := f.svc.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if placed.Order.SubtotalCents != 600 {
		t.Fatalf("cart subtotal must be recomputed, got %d", placed.Order.SubtotalCents)
	}
	if placed.Order.Items[0].Title != "Alpha" {
		t.Fatalf("expected title from catalog, got %q", placed.Order.Items[0].Title)
	}
	if len(f.store.cleared) != 1 || f.store.cleared[0] != "cart-1" {
		t.Fatalf("expected cart-1 cleared, got %v", f.store.cleared)
	}
	if placed.Source != SourceCart || placed.CartID != "cart-1" {
		t.Fatalf("unexpected provenance %+v", placed)
	}
}

func TestPlaceOrder_ResolvesUsers(t *testing.T) {
	f := newFixture(map[string]int{productA: 5}, nil, nil)

	placed, err := f.svc.PlaceOrder(context.Background(), withItems(baseRequest(), item(productA, 1, "1")))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if placed.Order.UserID != "user-buyer@example.com" {
		t.Fatalf("expected user by email, got %s", placed.Order.UserID)
	}

	req := withItems(baseRequest(), item(productA, 1, "1"))
	req.Email = ""
	placed, err = f.svc.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceOrder guest: %v", err)
	}
	if placed.Order.UserID != "guest" || f.users.guests != 1 {
		t.Fatalf("expected guest user, got %s", placed.Order.UserID)
	}

	f.users.known = map[string]bool{"authed-user": true}
	req.UserID = "authed-user"
	placed, err = f.svc.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceOrder authed: %v", err)
	}
	if placed.Order.UserID != "authed-user" || f.users.calls() != 2 {
		t.Fatalf("authenticated user must win without new writes, got %s", placed.Order.UserID)
	}

	req.UserID = "deleted-user"
	placed, err = f.svc.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceOrder unknown user: %v", err)
	}
	if placed.Order.UserID != "guest" || f.users.guests != 2 {
		t.Fatalf("unknown token user must fall back to contact resolution, got %s", placed.Order.UserID)
	}
}

func TestPlaceOrder_ValidationBeforeStorage(t *testing.T) {
	f := newFixture(map[string]int{productA: 1}, nil, nil)
	req := withItems(baseRequest(), item(productA, 0, "1"))

	_, err := f.svc.PlaceOrder(context.Background(), req)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.store.txs != 0 || f.users.calls() != 0 {
		t.Fatalf("validation failure must not touch storage")
	}
	if got := testutil.ToFloat64(f.m.CheckoutAttempts.WithLabelValues(metrics.OutcomeInvalid)); got != 1 {
		t.Fatalf("expected invalid outcome recorded, got %v", got)
	}
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, metrics.OutcomeSuccess},
		{domain.Invalid("email", "bad"), metrics.OutcomeInvalid},
		{fmt.Errorf("wrap: %w", domain.ErrEmptyOrder), metrics.OutcomeEmpty},
		{&domain.StockError{Code: domain.StockOutOfStock}, metrics.OutcomeOutOfStock},
		{fmt.Errorf("tx: %w", &domain.StockError{Code: domain.StockRaceOutOfStock}), metrics.OutcomeRaceOutOfStock},
		{errors.New("connection refused"), metrics.OutcomeInternal},
	}
	for _, tc := range cases {
		if got := Outcome(tc.err); got != tc.want {
			t.Fatalf("Outcome(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

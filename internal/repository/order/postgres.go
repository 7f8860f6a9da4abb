package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"

	"storefront-checkout/internal/db"
	"storefront-checkout/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderCodeConstraint = "orders_code_key"

type postgresStore struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgres returns a Store backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresStore{pool: pool, logger: logger}
}

// InTx runs fn inside a READ COMMITTED transaction. Conditional decrements
// re-check their predicate after waiting on a concurrent writer, so no
// stronger isolation is needed to prevent overselling.
func (s *postgresStore) InTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgUnitOfWork{tx: tx, logger: s.logger}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgUnitOfWork struct {
	tx     pgx.Tx
	logger *log.Logger
}

func (u *pgUnitOfWork) VerifyStock(ctx context.Context, demand []StockDemand) error {
	ids := make([]uuid.UUID, 0, len(demand))
	for _, d := range demand {
		id, err := uuid.Parse(d.ProductID)
		if err != nil {
			return &domain.StockError{Code: domain.StockOutOfStock, ProductID: d.ProductID, Requested: d.Quantity}
		}
		ids = append(ids, id)
	}

	rows, err := u.tx.Query(ctx, `
SELECT product_id::text, quantity
FROM inventory
WHERE product_id = ANY($1)
`, ids)
	if err != nil {
		return fmt.Errorf("read inventory: %w", err)
	}
	defer rows.Close()

	available := make(map[string]int, len(demand))
	for rows.Next() {
		var productID string
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return fmt.Errorf("scan inventory: %w", err)
		}
		available[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read inventory rows: %w", err)
	}

	for _, d := range demand {
		if have := available[normalizeID(d.ProductID)]; have < d.Quantity {
			return &domain.StockError{Code: domain.StockOutOfStock, ProductID: d.ProductID, Requested: d.Quantity, Available: have}
		}
	}
	return nil
}

func (u *pgUnitOfWork) DecrementStock(ctx context.Context, demand []StockDemand) error {
	ordered := append([]StockDemand(nil), demand...)
	// fixed lock order across transactions
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ProductID < ordered[j].ProductID })

	for _, d := range ordered {
		cmd, err := u.tx.Exec(ctx, `
UPDATE inventory
SET quantity = quantity - $2, updated_at = now()
WHERE product_id = $1 AND quantity >= $2
`, d.ProductID, d.Quantity)
		if err != nil {
			return fmt.Errorf("decrement inventory product=%s: %w", d.ProductID, err)
		}
		if cmd.RowsAffected() == 0 {
			return &domain.StockError{Code: domain.StockRaceOutOfStock, ProductID: d.ProductID, Requested: d.Quantity}
		}
	}
	return nil
}

func (u *pgUnitOfWork) CreateOrder(ctx context.Context, in NewOrder) (*domain.Order, error) {
	// savepoint so a code collision does not poison the outer transaction
	sp, err := u.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("savepoint: %w", err)
	}
	defer sp.Rollback(ctx)

	order := domain.Order{
		Code:             in.Code,
		UserID:           in.UserID,
		Status:           domain.OrderStatusPending,
		SubtotalCents:    in.SubtotalCents,
		DiscountCents:    in.DiscountCents,
		ShippingFeeCents: in.ShippingFeeCents,
		TaxCents:         in.TaxCents,
		TotalCents:       in.TotalCents,
		Currency:         in.Currency,
	}
	err = sp.QueryRow(ctx, `
INSERT INTO orders (code, user_id, status, subtotal_cents, discount_cents, shipping_fee_cents, tax_cents, total_cents, currency)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id::text, created_at
`, in.Code, in.UserID, string(order.Status), in.SubtotalCents, in.DiscountCents, in.ShippingFeeCents, in.TaxCents, in.TotalCents, in.Currency,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, orderCodeConstraint) {
			u.logger.Printf("order repo: code collision code=%s", in.Code)
			return nil, domain.ErrDuplicateOrderCode
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, item := range in.Items {
		batch.Queue(`
INSERT INTO order_items (order_id, position, product_id, title, quantity, unit_price_cents)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text
`, order.ID, i, item.ProductID, item.Title, item.Quantity, item.UnitPriceCents)
	}
	results := sp.SendBatch(ctx, batch)
	order.Items = make([]domain.OrderItem, 0, len(in.Items))
	for _, item := range in.Items {
		if err := results.QueryRow().Scan(&item.ID); err != nil {
			results.Close()
			return nil, fmt.Errorf("insert order item product=%s: %w", item.ProductID, err)
		}
		order.Items = append(order.Items, item)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("insert order items: %w", err)
	}

	payload := in.Payment.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	payment := domain.Payment{
		OrderID:     order.ID,
		Provider:    in.Payment.Provider,
		AmountCents: in.TotalCents,
		Status:      in.Payment.Status,
		Payload:     payload,
	}
	err = sp.QueryRow(ctx, `
INSERT INTO payments (order_id, provider, amount_cents, status, payload)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text, created_at
`, order.ID, string(payment.Provider), payment.AmountCents, string(payment.Status), []byte(payload)).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	order.Payment = &payment

	if err := sp.Commit(ctx); err != nil {
		return nil, fmt.Errorf("release savepoint: %w", err)
	}
	return &order, nil
}

func (u *pgUnitOfWork) ClearCart(ctx context.Context, cartID string) error {
	if _, err := u.tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart %s: %w", cartID, err)
	}
	if _, err := u.tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart %s: %w", cartID, err)
	}
	return nil
}

func (s *postgresStore) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := s.pool.QueryRow(ctx, `
SELECT id::text, code, user_id::text, status, subtotal_cents, discount_cents, shipping_fee_cents, tax_cents, total_cents, currency, created_at
FROM orders
WHERE code = $1
`, code).Scan(&o.ID, &o.Code, &o.UserID, &status, &o.SubtotalCents, &o.DiscountCents, &o.ShippingFeeCents, &o.TaxCents, &o.TotalCents, &o.Currency, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		s.logger.Printf("order repo: get code=%s error=%v", code, err)
		return nil, err
	}
	o.Status = domain.OrderStatus(status)

	rows, err := s.pool.Query(ctx, `
SELECT id::text, product_id::text, title, quantity, unit_price_cents
FROM order_items
WHERE order_id = $1
ORDER BY position ASC
`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	o.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Title, &item.Quantity, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var p domain.Payment
	var provider, pstatus string
	err = s.pool.QueryRow(ctx, `
SELECT id::text, order_id::text, provider, amount_cents, status, payload, created_at
FROM payments
WHERE order_id = $1
ORDER BY created_at ASC
LIMIT 1
`, o.ID).Scan(&p.ID, &p.OrderID, &provider, &p.AmountCents, &pstatus, &p.Payload, &p.CreatedAt)
	switch {
	case err == nil:
		p.Provider = domain.PaymentProvider(provider)
		p.Status = domain.PaymentStatus(pstatus)
		o.Payment = &p
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, err
	}
	return &o, nil
}

func normalizeID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}

package user

import (
	"context"
	"os"
	"testing"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestPostgres_FindOrCreateByEmailIsStable(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	first, err := repo.FindOrCreateByEmail(ctx, Contact{Email: "Buyer@Example.com", FullName: "Buyer"})
	if err != nil {
		t.Fatalf("FindOrCreateByEmail: %v", err)
	}
	second, err := repo.FindOrCreateByEmail(ctx, Contact{Email: "buyer@example.com", Phone: "555"})
	if err != nil {
		t.Fatalf("FindOrCreateByEmail again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same user, got %s and %s", first.ID, second.ID)
	}
	if second.FullName != "Buyer" || second.Phone != "555" {
		t.Fatalf("expected contact details merged, got %+v", second)
	}
	if first.IsGuest {
		t.Fatalf("email user must not be a guest")
	}

	guest, err := repo.CreateGuest(ctx, Contact{FullName: "Anon"})
	if err != nil {
		t.Fatalf("CreateGuest: %v", err)
	}
	if !guest.IsGuest || guest.Email != nil {
		t.Fatalf("unexpected guest %+v", guest)
	}

	got, err := repo.GetByID(ctx, guest.ID)
	if err != nil || got.ID != guest.ID {
		t.Fatalf("GetByID: %v %+v", err, got)
	}
	if _, err := repo.GetByID(ctx, "bogus"); err != domain.ErrNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("db not reachable: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE payments, order_items, orders, cart_lines, carts, inventory, products, users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

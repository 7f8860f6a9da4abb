package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"storefront-checkout/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id::text, email, full_name, phone, is_guest, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

// FindOrCreateByEmail upserts on the case-insensitive email index so that two
// concurrent checkouts with the same email land on the same user.
func (r *postgresRepo) FindOrCreateByEmail(ctx context.Context, c Contact) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if email == "" {
		return nil, errors.New("email required")
	}
	q := `
INSERT INTO users (email, full_name, phone, is_guest)
VALUES ($1, $2, $3, FALSE)
ON CONFLICT (lower(email)) WHERE email IS NOT NULL DO UPDATE
SET full_name = CASE WHEN users.full_name = '' THEN EXCLUDED.full_name ELSE users.full_name END,
    phone = CASE WHEN users.phone = '' THEN EXCLUDED.phone ELSE users.phone END
RETURNING ` + userColumns
	u, err := r.scanUser(r.pool.QueryRow(ctx, q, email, c.FullName, c.Phone))
	if err != nil {
		return nil, fmt.Errorf("find or create user: %w", err)
	}
	return u, nil
}

// CreateGuest creates a synthetic identity for checkouts without an email.
func (r *postgresRepo) CreateGuest(ctx context.Context, c Contact) (*domain.User, error) {
	q := `
INSERT INTO users (id, email, full_name, phone, is_guest)
VALUES ($1, NULL, $2, $3, TRUE)
RETURNING ` + userColumns
	u, err := r.scanUser(r.pool.QueryRow(ctx, q, uuid.NewString(), c.FullName, c.Phone))
	if err != nil {
		return nil, fmt.Errorf("create guest: %w", err)
	}
	r.logger.Printf("user repo: created guest id=%s", u.ID)
	return u, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *postgresRepo) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.IsGuest, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("user repo: scan error=%v", err)
		return nil, err
	}
	return &u, nil
}

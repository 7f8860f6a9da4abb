package main

import (
	"context"
	"log"
	"os"
	"time"

	"storefront-checkout/internal/config"
	"storefront-checkout/internal/db"
	productrepo "storefront-checkout/internal/repository/product"
	userrepo "storefront-checkout/internal/repository/user"
	"storefront-checkout/internal/seed"
	"storefront-checkout/internal/service/identity"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, 2)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	res, err := seed.Apply(ctx, productrepo.NewPostgres(pool, logger), userrepo.NewPostgres(pool, logger), cfg.Currency)
	if err != nil {
		logger.Fatalf("seed apply: %v", err)
	}
	for _, p := range res.Products {
		logger.Printf("product sku=%s id=%s price_cents=%d", p.SKU, p.ID, p.PriceCents)
	}

	if cfg.JWTSecret != "" {
		token, err := identity.New(cfg.JWTSecret).Issue(res.User.ID, 24*time.Hour)
		if err != nil {
			logger.Fatalf("issue demo token: %v", err)
		}
		logger.Printf("demo user email=%s id=%s token=%s", seed.DemoEmail, res.User.ID, token)
	}

	logger.Println("seed applied")
}

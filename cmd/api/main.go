package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront-checkout/internal/config"
	"storefront-checkout/internal/db"
	"storefront-checkout/internal/events"
	"storefront-checkout/internal/httpserver"
	"storefront-checkout/internal/metrics"
	"storefront-checkout/internal/notify"
	cartrepo "storefront-checkout/internal/repository/cart"
	orderrepo "storefront-checkout/internal/repository/order"
	productrepo "storefront-checkout/internal/repository/product"
	userrepo "storefront-checkout/internal/repository/user"
	"storefront-checkout/internal/revalidate"
	cartsvc "storefront-checkout/internal/service/cart"
	"storefront-checkout/internal/service/checkout"
	"storefront-checkout/internal/service/identity"
	productsvc "storefront-checkout/internal/service/product"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	cartRepo := cartrepo.NewPostgres(dbpool)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	userRepo := userrepo.NewPostgres(dbpool, logger)
	orderStore := orderrepo.NewPostgres(dbpool, logger)

	var reval revalidate.Revalidator = revalidate.Noop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		reval = revalidate.NewRedis(rdb, revalidate.DefaultChannel)
		logger.Printf("revalidation via redis addr=%s", cfg.RedisAddr)
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafka(cfg.KafkaBrokers, cfg.OrderEventTopic)
		logger.Printf("order events via kafka topic=%s brokers=%v", cfg.OrderEventTopic, cfg.KafkaBrokers)
	}

	dispatcher := notify.NewDispatcher(cfg.Notify.Workers, cfg.Notify.QueueSize, cfg.Notify.Timeout, m, logger)
	hub := notify.NewHub(notify.HubDeps{
		Dispatcher:  dispatcher,
		Mail:        notify.NewSender(cfg.Mail),
		AdminTo:     cfg.Mail.AdminTo,
		BaseURL:     cfg.PublicBaseURL,
		Revalidator: reval,
		Events:      publisher,
		Logger:      logger,
	})

	if cfg.DevCartFallback {
		logger.Printf("WARNING: dev cart fallback enabled, checkout may pick up another shopper's cart")
	}
	resolver := checkout.NewResolver(cartRepo, productRepo, cfg.DevCartFallback, logger)
	checkoutService := checkout.New(checkout.Deps{
		Store:    orderStore,
		Users:    userRepo,
		Resolver: resolver,
		Hook:     hub,
		Metrics:  m,
		Currency: cfg.Currency,
		Logger:   logger,
	})
	cartService := cartsvc.New(cartRepo, productRepo, cfg.Currency)
	productService := productsvc.New(productRepo)
	identityService := identity.New(cfg.JWTSecret)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		CheckoutSvc:    checkoutService,
		CartSvc:        cartService,
		Orders:         orderStore,
		Products:       productService,
		Identity:       identityService,
		Metrics:        m,
		SuccessPath:    cfg.SuccessPath,
		ErrorPath:      cfg.ErrorPath,
		AnonCookieName: cfg.AnonCookieName,
		SecureCookies:  cfg.SecureCookies,
		CORSOrigins:    cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}

	// In-flight notifications get whatever is left of the shutdown window.
	if err := dispatcher.Close(ctx); err != nil {
		logger.Printf("notify drain incomplete: %v", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Printf("close event publisher: %v", err)
	}
}

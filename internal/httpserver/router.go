package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/metrics"
	cartsvc "storefront-checkout/internal/service/cart"
	"storefront-checkout/internal/service/checkout"
	productsvc "storefront-checkout/internal/service/product"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type checkoutService interface {
	PlaceOrder(ctx context.Context, req checkout.Request) (*checkout.PlacedOrder, error)
}

type cartService interface {
	AddItem(ctx context.Context, owner cartsvc.Owner, in cartsvc.AddItemInput) (*domain.Cart, error)
	Current(ctx context.Context, owner cartsvc.Owner) (*domain.Cart, error)
}

type orderLookup interface {
	GetByCode(ctx context.Context, code string) (*domain.Order, error)
}

type productLookup interface {
	Get(ctx context.Context, id string) (*productsvc.Availability, error)
}

type identityService interface {
	NewAnonymousID() string
	UserID(token string) (string, error)
}

// Deps carries the services and settings the router needs.
type Deps struct {
	CheckoutSvc checkoutService
	CartSvc     cartService
	Orders      orderLookup
	Products    productLookup
	Identity    identityService
	Metrics     *metrics.Metrics

	SuccessPath    string
	ErrorPath      string
	AnonCookieName string
	SecureCookies  bool
	CORSOrigins    []string
}

func (d *Deps) validate() error {
	switch {
	case d.CheckoutSvc == nil:
		return errors.New("checkout service required")
	case d.CartSvc == nil:
		return errors.New("cart service required")
	case d.Orders == nil:
		return errors.New("order lookup required")
	case d.Products == nil:
		return errors.New("product lookup required")
	case d.Identity == nil:
		return errors.New("identity service required")
	}
	if d.SuccessPath == "" {
		d.SuccessPath = "/checkout/success"
	}
	if d.ErrorPath == "" {
		d.ErrorPath = "/checkout"
	}
	if d.AnonCookieName == "" {
		d.AnonCookieName = "anon_id"
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db Pinger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	router.Use(authMiddleware(deps.Identity, logger))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	h := &handlers{deps: deps, logger: logger}
	router.POST("/checkout", h.checkout)

	api := router.Group("/api")
	api.POST("/checkout", h.checkout)
	api.GET("/cart", h.getCart)
	api.POST("/cart/items", h.addCartItem)
	api.GET("/products/:id", h.getProduct)
	api.GET("/orders/:code", h.getOrder)
	api.GET("/orders/:code/payment-qr.png", h.paymentQR)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}

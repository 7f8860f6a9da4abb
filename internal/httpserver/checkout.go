package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/metrics"
	"storefront-checkout/internal/service/checkout"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Redirect error codes shown to the shopper. Details stay in server logs.
const (
	errCodeInvalid    = "invalid"
	errCodeEmptyCart  = "empty_cart"
	errCodeOutOfStock = "out_of_stock"
	errCodeInternal   = "internal"
)

func redirectCode(err error) string {
	switch checkout.Outcome(err) {
	case metrics.OutcomeInvalid:
		return errCodeInvalid
	case metrics.OutcomeEmpty:
		return errCodeEmptyCart
	case metrics.OutcomeOutOfStock, metrics.OutcomeRaceOutOfStock:
		return errCodeOutOfStock
	default:
		return errCodeInternal
	}
}

// checkout accepts a JSON or form-encoded submission and always answers with
// a 303 redirect to the success or error page.
func (h *handlers) checkout(c *gin.Context) {
	started := time.Now()
	req, err := decodeCheckout(c)
	if err != nil {
		h.logger.Printf("checkout: decode request error=%v", err)
		h.deps.Metrics.ObserveCheckout(metrics.OutcomeInvalid, started)
		h.redirect(c, h.deps.ErrorPath, url.Values{"err": {errCodeInvalid}})
		return
	}
	req.UserID = userIDFrom(c)
	if req.AnonID == "" {
		req.AnonID = h.anonIDFromCookie(c)
	}

	placed, err := h.deps.CheckoutSvc.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		code := redirectCode(err)
		if code == errCodeInternal {
			h.logger.Printf("checkout: internal error=%v", err)
		}
		h.redirect(c, h.deps.ErrorPath, url.Values{"err": {code}})
		return
	}

	h.redirect(c, h.deps.SuccessPath, url.Values{
		"method": {placed.PaymentMethod},
		"code":   {placed.Order.Code},
		"id":     {placed.Order.ID},
	})
}

func (h *handlers) redirect(c *gin.Context, path string, params url.Values) {
	u, err := url.Parse(path)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	c.Redirect(http.StatusSeeOther, u.String())
}

func decodeCheckout(c *gin.Context) (checkout.Request, error) {
	var req checkout.Request
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, domain.Invalid("body", err.Error())
		}
		return req, nil
	}
	return decodeCheckoutForm(c)
}

// decodeCheckoutForm reads shippingAddress[field] keys and an items field
// holding a JSON array.
func decodeCheckoutForm(c *gin.Context) (checkout.Request, error) {
	req := checkout.Request{
		Email:          c.PostForm("email"),
		FullName:       c.PostForm("fullName"),
		Phone:          c.PostForm("phone"),
		ShippingMethod: c.PostForm("shippingMethod"),
		PaymentMethod:  c.PostForm("paymentMethod"),
		CartID:         c.PostForm("cartId"),
		AnonID:         c.PostForm("anonId"),
	}
	addr := c.PostFormMap("shippingAddress")
	req.Shipping = checkout.Address{
		FirstName:  addr["firstName"],
		LastName:   addr["lastName"],
		Address1:   addr["address1"],
		Address2:   addr["address2"],
		City:       addr["city"],
		State:      addr["state"],
		PostalCode: addr["postalCode"],
		Phone:      addr["phone"],
	}

	if raw := strings.TrimSpace(c.PostForm("items")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Items); err != nil {
			return req, domain.Invalid("items", "must be a JSON array")
		}
	}

	for _, f := range []struct {
		name string
		dst  *decimal.NullDecimal
	}{
		{"subtotal", &req.Subtotal},
		{"shippingCost", &req.ShippingCost},
		{"tax", &req.Tax},
		{"total", &req.Total},
	} {
		v, err := formMoney(c.PostForm(f.name))
		if err != nil {
			return req, domain.Invalid(f.name, "is not a number")
		}
		*f.dst = v
	}
	return req, nil
}

var errBadMoney = errors.New("bad money value")

func formMoney(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, errBadMoney
	}
	return decimal.NewNullDecimal(d), nil
}

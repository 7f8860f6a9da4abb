package checkout

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"storefront-checkout/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request is a checkout submission as decoded from JSON or a form. Money is
// in major units (12.50) and optional totals are left invalid when absent.
type Request struct {
	Email          string              `json:"email"`
	FullName       string              `json:"fullName"`
	Phone          string              `json:"phone"`
	Shipping       Address             `json:"shippingAddress"`
	Items          []RequestItem       `json:"items"`
	Subtotal       decimal.NullDecimal `json:"subtotal"`
	ShippingCost   decimal.NullDecimal `json:"shippingCost"`
	Tax            decimal.NullDecimal `json:"tax"`
	Total          decimal.NullDecimal `json:"total"`
	ShippingMethod string              `json:"shippingMethod"`
	PaymentMethod  string              `json:"paymentMethod"`
	CartID         string              `json:"cartId,omitempty"`
	AnonID         string              `json:"anonId,omitempty"`

	// UserID comes from authentication, never from the body.
	UserID string `json:"-"`
}

type Address struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Phone      string `json:"phone"`
}

type RequestItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Title     string          `json:"title,omitempty"`
}

type Contact struct {
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
}

// Normalized is the canonical form of a Request. Items may be empty when the
// shopper checks out a persisted cart.
type Normalized struct {
	Contact             Contact
	Shipping            Address
	Items               []domain.OrderItem
	ClientSubtotalCents *int64
	TaxCents            int64
	ShippingMethodRaw   string
	ShippingTier        ShippingTier
	Payment             PaymentMethod
	CartID              string
	AnonID              string
	UserID              string
}

// ShippingTier is a canonical shipping option and its fee in minor units.
type ShippingTier struct {
	Key      string
	FeeCents int64
}

var (
	ShippingFree     = ShippingTier{Key: "free", FeeCents: 0}
	ShippingStandard = ShippingTier{Key: "standard", FeeCents: 500}
	ShippingExpress  = ShippingTier{Key: "express", FeeCents: 1500}
)

// shippingAliases maps every accepted shipping-method key, legacy names
// included, onto a tier. Keys missing here fall back to DefaultShipping.
var shippingAliases = map[string]ShippingTier{
	"free":          ShippingFree,
	"bundle":        ShippingFree,
	"freeship":      ShippingFree,
	"free_shipping": ShippingFree,
	"standard":      ShippingStandard,
	"regular":       ShippingStandard,
	"normal":        ShippingStandard,
	"economy":       ShippingStandard,
	"express":       ShippingExpress,
	"fast":          ShippingExpress,
	"priority":      ShippingExpress,
	"next_day":      ShippingExpress,
}

// DefaultShipping applies to empty or unknown shipping keys.
var DefaultShipping = ShippingFree

// LookupShipping resolves a shipping-method key. Unknown keys never fail.
func LookupShipping(key string) ShippingTier {
	if tier, ok := shippingAliases[canonicalKey(key)]; ok {
		return tier
	}
	return DefaultShipping
}

// PaymentMethod is a canonical payment choice and the payment record it opens.
type PaymentMethod struct {
	Key      string
	Provider domain.PaymentProvider
	Status   domain.PaymentStatus
}

var (
	PaymentCOD = PaymentMethod{Key: "cod", Provider: domain.PaymentProviderCOD, Status: domain.PaymentStatusPending}
	PaymentQR  = PaymentMethod{Key: "qr", Provider: domain.PaymentProviderQR, Status: domain.PaymentStatusAwaitingConfirmation}
)

var paymentAliases = map[string]PaymentMethod{
	"cod":     PaymentCOD,
	"cash":    PaymentCOD,
	"qr":      PaymentQR,
	"bank_qr": PaymentQR,
	"card":    PaymentQR,
}

// LookupPayment resolves a payment-method key; unlike shipping there is no default.
func LookupPayment(key string) (PaymentMethod, bool) {
	m, ok := paymentAliases[canonicalKey(key)]
	return m, ok
}

func canonicalKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("-", "_", " ", "_").Replace(key)
}

// Normalize validates a Request and produces its canonical form. Every
// failure is a *domain.ValidationError.
func Normalize(req Request) (*Normalized, error) {
	ship := trimAddress(req.Shipping)
	for _, f := range []struct{ name, value string }{
		{"shippingAddress.firstName", ship.FirstName},
		{"shippingAddress.lastName", ship.LastName},
		{"shippingAddress.address1", ship.Address1},
		{"shippingAddress.city", ship.City},
	} {
		if f.value == "" {
			return nil, domain.Invalid(f.name, "is required")
		}
	}

	contact := Contact{
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Phone:    strings.TrimSpace(req.Phone),
	}
	if contact.Phone == "" {
		contact.Phone = ship.Phone
	}
	if ship.Phone == "" {
		ship.Phone = contact.Phone
	}
	if contact.Phone == "" {
		return nil, domain.Invalid("phone", "is required")
	}
	if contact.FullName == "" {
		contact.FullName = strings.TrimSpace(ship.FirstName + " " + ship.LastName)
	}
	if contact.Email != "" {
		addr, err := mail.ParseAddress(contact.Email)
		if err != nil || addr.Address != contact.Email {
			return nil, domain.Invalid("email", "is not a valid address")
		}
		contact.Email = strings.ToLower(contact.Email)
	}

	payment, ok := LookupPayment(req.PaymentMethod)
	if !ok {
		return nil, domain.Invalid("paymentMethod", fmt.Sprintf("unsupported value %q", req.PaymentMethod))
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		id, err := uuid.Parse(strings.TrimSpace(it.ProductID))
		if err != nil {
			return nil, domain.Invalid(field+".productId", "is not a valid id")
		}
		if it.Quantity <= 0 {
			return nil, domain.Invalid(field+".quantity", "must be positive")
		}
		price, err := toCents(it.Price)
		if err != nil {
			return nil, domain.Invalid(field+".price", err.Error())
		}
		items = append(items, domain.OrderItem{
			ProductID:      id.String(),
			Title:          strings.TrimSpace(it.Title),
			Quantity:       it.Quantity,
			UnitPriceCents: price,
		})
	}

	n := &Normalized{
		Contact:           contact,
		Shipping:          ship,
		Items:             items,
		ShippingMethodRaw: strings.TrimSpace(req.ShippingMethod),
		ShippingTier:      LookupShipping(req.ShippingMethod),
		Payment:           payment,
		CartID:            strings.TrimSpace(req.CartID),
		AnonID:            strings.TrimSpace(req.AnonID),
		UserID:            strings.TrimSpace(req.UserID),
	}

	if req.Subtotal.Valid {
		cents, err := toCents(req.Subtotal.Decimal)
		if err != nil {
			return nil, domain.Invalid("subtotal", err.Error())
		}
		n.ClientSubtotalCents = &cents
	}
	if req.Tax.Valid {
		cents, err := toCents(req.Tax.Decimal)
		if err != nil {
			return nil, domain.Invalid("tax", err.Error())
		}
		n.TaxCents = cents
	}
	// shippingCost and total are recomputed server-side and only
	// checked for shape.
	for _, f := range []struct {
		name  string
		value decimal.NullDecimal
	}{{"shippingCost", req.ShippingCost}, {"total", req.Total}} {
		if f.value.Valid && f.value.Decimal.IsNegative() {
			return nil, domain.Invalid(f.name, "must not be negative")
		}
	}
	return n, nil
}

var errNegative = errors.New("must not be negative")

// toCents converts a major-unit amount to minor units, rounding half away
// from zero at the cent.
func toCents(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, errNegative
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func trimAddress(a Address) Address {
	return Address{
		FirstName:  strings.TrimSpace(a.FirstName),
		LastName:   strings.TrimSpace(a.LastName),
		Address1:   strings.TrimSpace(a.Address1),
		Address2:   strings.TrimSpace(a.Address2),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Phone:      strings.TrimSpace(a.Phone),
	}
}

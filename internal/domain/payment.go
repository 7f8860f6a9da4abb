package domain

import (
	"encoding/json"
	"time"
)

type PaymentProvider string

const (
	PaymentProviderCOD PaymentProvider = "COD"
	PaymentProviderQR  PaymentProvider = "QR"
)

type PaymentStatus string

const (
	PaymentStatusPending              PaymentStatus = "PENDING"
	PaymentStatusAwaitingConfirmation PaymentStatus = "AWAITING_CONFIRMATION"
)

// Payment is the single payment record written with an order. Payload is an
// audit blob (contact, shipping, cart provenance) and carries no business logic.
type Payment struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"orderId"`
	Provider    PaymentProvider `json:"provider"`
	AmountCents int64           `json:"amountCents"`
	Status      PaymentStatus   `json:"status"`
	Payload     json.RawMessage `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
}

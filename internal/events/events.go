package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-checkout/internal/domain"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const TypeOrderPlaced = "order.placed"

// OrderPlaced is published once per committed order.
type OrderPlaced struct {
	EventID         string      `json:"eventId"`
	Type            string      `json:"type"`
	OccurredAt      time.Time   `json:"occurredAt"`
	OrderID         string      `json:"orderId"`
	Code            string      `json:"code"`
	UserID          string      `json:"userId"`
	TotalCents      int64       `json:"totalCents"`
	Currency        string      `json:"currency"`
	PaymentProvider string      `json:"paymentProvider,omitempty"`
	PaymentStatus   string      `json:"paymentStatus,omitempty"`
	Items           []EventItem `json:"items"`
}

type EventItem struct {
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// NewOrderPlaced builds the event for order with a fresh event id.
func NewOrderPlaced(order domain.Order) OrderPlaced {
	ev := OrderPlaced{
		EventID:    uuid.NewString(),
		Type:       TypeOrderPlaced,
		OccurredAt: time.Now().UTC(),
		OrderID:    order.ID,
		Code:       order.Code,
		UserID:     order.UserID,
		TotalCents: order.TotalCents,
		Currency:   order.Currency,
		Items:      make([]EventItem, 0, len(order.Items)),
	}
	if order.Payment != nil {
		ev.PaymentProvider = string(order.Payment.Provider)
		ev.PaymentStatus = string(order.Payment.Status)
	}
	for _, it := range order.Items {
		ev.Items = append(ev.Items, EventItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents})
	}
	return ev
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, ev OrderPlaced) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by order code so all events of one
// order land on the same partition.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafka(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, ev OrderPlaced) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.Code),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
			{Key: "event-id", Value: []byte(ev.EventID)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s code=%s: %w", ev.Type, ev.Code, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Noop is used when no brokers are configured.
type Noop struct{}

func (Noop) PublishOrderPlaced(context.Context, OrderPlaced) error { return nil }
func (Noop) Close() error                                          { return nil }

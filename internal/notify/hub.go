package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"storefront-checkout/internal/events"
	"storefront-checkout/internal/revalidate"
	"storefront-checkout/internal/service/checkout"
)

const (
	TaskEmail      = "email"
	TaskRevalidate = "revalidate"
	TaskEvent      = "event"
)

type HubDeps struct {
	Dispatcher  *Dispatcher
	Mail        Sender
	AdminTo     string
	BaseURL     string
	Revalidator revalidate.Revalidator
	Events      events.Publisher
	Logger      *log.Logger
}

// Hub fans a committed order out to mail, cache revalidation and the event
// stream. It implements checkout.AfterCommit.
type Hub struct {
	dispatcher *Dispatcher
	mail       Sender
	adminTo    string
	baseURL    string
	reval      revalidate.Revalidator
	events     events.Publisher
	logger     *log.Logger
}

var _ checkout.AfterCommit = (*Hub)(nil)

func NewHub(deps HubDeps) *Hub {
	h := &Hub{
		dispatcher: deps.Dispatcher,
		mail:       deps.Mail,
		adminTo:    deps.AdminTo,
		baseURL:    deps.BaseURL,
		reval:      deps.Revalidator,
		events:     deps.Events,
		logger:     deps.Logger,
	}
	if h.mail == nil {
		h.mail = disabled{}
	}
	if h.reval == nil {
		h.reval = revalidate.Noop{}
	}
	if h.events == nil {
		h.events = events.Noop{}
	}
	if h.logger == nil {
		h.logger = log.New(io.Discard, "", 0)
	}
	return h
}

func (h *Hub) OrderPlaced(p checkout.PlacedOrder) {
	h.dispatcher.Submit(Task{Name: TaskEmail, Run: func(ctx context.Context) error {
		return h.sendConfirmations(ctx, p)
	}})
	h.dispatcher.Submit(Task{Name: TaskRevalidate, Run: func(ctx context.Context) error {
		return h.reval.Revalidate(ctx, revalidate.TagsForOrder(p.Order)...)
	}})
	h.dispatcher.Submit(Task{Name: TaskEvent, Run: func(ctx context.Context) error {
		return h.events.PublishOrderPlaced(ctx, events.NewOrderPlaced(p.Order))
	}})
}

func (h *Hub) sendConfirmations(ctx context.Context, p checkout.PlacedOrder) error {
	var errs []error
	if h.adminTo != "" {
		errs = append(errs, h.send(ctx, p, h.adminTo, true))
	}
	if p.Contact.Email != "" {
		errs = append(errs, h.send(ctx, p, p.Contact.Email, false))
	}
	return errors.Join(errs...)
}

func (h *Hub) send(ctx context.Context, p checkout.PlacedOrder, to string, admin bool) error {
	msg, err := RenderConfirmation(p, admin, h.baseURL)
	if err != nil {
		return err
	}
	msg.To = []string{to}
	if err := h.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("confirmation to %s: %w", to, err)
	}
	h.logger.Printf("notify: sent confirmation code=%s admin=%t", p.Order.Code, admin)
	return nil
}

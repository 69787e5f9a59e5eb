package webhooks

import (
	"encoding/json"
	"strconv"

	"github.com/stripe/stripe-go/v72"
	"github.com/whisthq/whist/backend/checkout/utils"
)

// EventTypeCheckoutCompleted is sent by Stripe when a customer finishes the
// hosted checkout page.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// Event is a verified Stripe event. The concrete type is one of
// CheckoutCompleted or UnhandledEvent.
type Event interface {
	isEvent()
}

// CheckoutCompleted reports that a checkout session has been completed. The
// payment itself may still be pending.
type CheckoutCompleted struct {
	SessionID     string
	PaymentStatus stripe.CheckoutSessionPaymentStatus
	// OrderID is parsed from the session metadata. HasOrderID is false when
	// the metadata is missing or malformed.
	OrderID     int64
	HasOrderID  bool
	ProductID   int64
	AmountTotal int64
	Currency    string
}

// UnhandledEvent is any event type the service does not act on.
type UnhandledEvent struct {
	ID   string
	Type string
}

func (CheckoutCompleted) isEvent() {}
func (UnhandledEvent) isEvent()    {}

// Paid reports whether the funds for the session have been collected.
func (c CheckoutCompleted) Paid() bool {
	return c.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
}

// parseEvent converts a stripe.Event into one of the Event variants.
func parseEvent(e stripe.Event) (Event, error) {
	if e.Type != EventTypeCheckoutCompleted {
		return UnhandledEvent{ID: e.ID, Type: e.Type}, nil
	}

	if e.Data == nil {
		return nil, utils.MakeError("event %s has no data", e.ID)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(e.Data.Raw, &session); err != nil {
		return nil, utils.MakeError("failed to parse checkout session in event %s: %w", e.ID, err)
	}

	c := CheckoutCompleted{
		SessionID:     session.ID,
		PaymentStatus: session.PaymentStatus,
		AmountTotal:   session.AmountTotal,
		Currency:      string(session.Currency),
	}

	if raw, ok := session.Metadata["orderId"]; ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			c.OrderID = id
			c.HasOrderID = true
		}
	}

	// ProductID stays zero when unknown, so the product recorded at checkout
	// is kept.
	if raw, ok := session.Metadata["productId"]; ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			c.ProductID = id
		}
	}

	return c, nil
}

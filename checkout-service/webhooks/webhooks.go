// Package webhooks receives Stripe webhook deliveries, verifies their
// signatures and applies completed payments to orders.
package webhooks

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v72/webhook"
	"github.com/whisthq/whist/backend/checkout/checkout-service/events"
	"github.com/whisthq/whist/backend/checkout/checkout-service/orders"
	"github.com/whisthq/whist/backend/checkout/httputils"
	"github.com/whisthq/whist/backend/checkout/utils"
	logger "github.com/whisthq/whist/backend/checkout/whistlogger"
)

// MaxBodyBytes is the largest webhook payload accepted.
const MaxBodyBytes = 65536

// SignatureHeader carries the Stripe signature of the payload.
const SignatureHeader = "Stripe-Signature"

var (
	// ErrSecretNotConfigured is returned when no webhook signing secret is set.
	ErrSecretNotConfigured = errors.New("webhook secret is not configured")
	// ErrMissingSignature is returned when a delivery has no signature header.
	ErrMissingSignature = errors.New("Missing Stripe signature")
)

// Receiver verifies and dispatches Stripe webhook events.
type Receiver struct {
	secret    string
	store     orders.Store
	publisher events.Publisher
	now       func() time.Time
}

// NewReceiver returns a Receiver that verifies deliveries with secret.
func NewReceiver(secret string, store orders.Store, publisher events.Publisher) *Receiver {
	return &Receiver{
		secret:    secret,
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// Verify checks the signature of a raw webhook payload and parses it into an
// Event. The payload must be the exact bytes received.
func (r *Receiver) Verify(payload []byte, signature string) (Event, error) {
	if r.secret == "" {
		return nil, ErrSecretNotConfigured
	}
	if signature == "" {
		return nil, ErrMissingSignature
	}

	stripeEvent, err := webhook.ConstructEvent(payload, signature, r.secret)
	if err != nil {
		return nil, utils.MakeError("failed to verify webhook signature: %w", err)
	}

	return parseEvent(stripeEvent)
}

// Dispatch applies a verified event. Only completed and paid checkout sessions
// have side effects: the order is marked as paid and, the first time each
// session is reported paid, an OrderPaid message is published.
func (r *Receiver) Dispatch(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case CheckoutCompleted:
		return r.handleCheckoutCompleted(ctx, e)
	case UnhandledEvent:
		logger.Infof("Ignoring Stripe event %s of type %s", e.ID, e.Type)
		return nil
	default:
		return utils.MakeError("unknown event variant %T", ev)
	}
}

func (r *Receiver) handleCheckoutCompleted(ctx context.Context, e CheckoutCompleted) error {
	if !e.HasOrderID {
		logger.Warningf("Checkout session %s has no valid orderId in its metadata", e.SessionID)
		return nil
	}

	if !e.Paid() {
		logger.Infof("Checkout session %s completed with payment status %q. Order %d awaits payment.", e.SessionID, e.PaymentStatus, e.OrderID)
		return nil
	}

	transitioned, err := r.store.MarkPaid(ctx, e.OrderID, orders.PaymentDetails{
		ProductID:   e.ProductID,
		SessionID:   e.SessionID,
		AmountTotal: e.AmountTotal,
		Currency:    e.Currency,
	})
	if err != nil {
		return utils.MakeError("failed to mark order %d as paid: %w", e.OrderID, err)
	}

	if !transitioned {
		logger.Infof("Session %s for order %d was already recorded as paid, ignoring duplicate delivery", e.SessionID, e.OrderID)
		return nil
	}

	logger.Infof("Order %d has been paid (session %s)", e.OrderID, e.SessionID)

	err = r.publisher.PublishOrderPaid(ctx, events.OrderPaid{
		OrderID:     e.OrderID,
		SessionID:   e.SessionID,
		AmountTotal: e.AmountTotal,
		Currency:    e.Currency,
		PaidAt:      r.now().UTC(),
	})
	if err != nil {
		return utils.MakeError("failed to publish payment of order %d: %w", e.OrderID, err)
	}

	return nil
}

// Handler returns the HTTP handler for Stripe webhook deliveries.
func (r *Receiver) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := httputils.VerifyRequestType(w, req, http.MethodPost); err != nil {
			return
		}

		if r.secret == "" {
			logger.Errorf("Received a Stripe webhook but %s", ErrSecretNotConfigured)
			httputils.SendJSON(w, http.StatusInternalServerError, map[string]string{"message": "Something went wrong"})
			return
		}

		payload, err := httputils.ReadBody(req, MaxBodyBytes)
		if err != nil {
			logger.Warningf("Failed to read webhook body: %s", err)
			webhookError(w, err)
			return
		}

		ev, err := r.Verify(payload, req.Header.Get(SignatureHeader))
		if err != nil {
			logger.Warningf("Rejected Stripe webhook (request %s): %s", httputils.GetRequestID(req.Context()), err)
			webhookError(w, err)
			return
		}

		if err := r.Dispatch(req.Context(), ev); err != nil {
			logger.Error(err)
			httputils.SendJSON(w, http.StatusInternalServerError, map[string]string{"message": "Something went wrong"})
			return
		}

		httputils.SendJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}

// webhookError writes a plain-text 400 response.
func webhookError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte("Webhook error: " + err.Error()))
}

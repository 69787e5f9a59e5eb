// Package payments creates Stripe checkout sessions for orders of the store's
// product.
package payments

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/whisthq/whist/backend/checkout/checkout-service/orders"
	"github.com/whisthq/whist/backend/checkout/utils"
	logger "github.com/whisthq/whist/backend/checkout/whistlogger"
)

// Currency is the currency all prices are charged in.
const Currency = "usd"

// MaxOrderID is the exclusive upper bound of generated order ids.
const MaxOrderID = 1000

// Product is an item that can be purchased through a checkout session.
type Product struct {
	ID           int64
	Name         string
	PriceInCents int64
}

// Sunglasses is the only product sold.
var Sunglasses = Product{
	ID:           1,
	Name:         "Sunglasses",
	PriceInCents: 4500,
}

// RedirectURLs are the pages Stripe sends the customer back to after the
// hosted checkout page.
type RedirectURLs struct {
	Success string
	Cancel  string
}

// CheckoutResult is returned after a checkout session has been created.
type CheckoutResult struct {
	URL       string // The Stripe-hosted page the customer should be redirected to
	SessionID string
	OrderID   int64
}

// SessionCreator creates Stripe checkout sessions. It is satisfied by the
// CheckoutSessions field of the official Stripe client, and mocked in tests.
type SessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// CheckoutInitiator creates checkout sessions for the fixed product and
// records the corresponding orders.
type CheckoutInitiator struct {
	sessions SessionCreator
	store    orders.Store
	urls     RedirectURLs
	product  Product
	orderIDs func() int64
}

// Option configures a CheckoutInitiator.
type Option func(*CheckoutInitiator)

// WithOrderIDSource replaces the random order id generator.
func WithOrderIDSource(f func() int64) Option {
	return func(ci *CheckoutInitiator) {
		ci.orderIDs = f
	}
}

// NewCheckoutInitiator returns a CheckoutInitiator selling Sunglasses.
func NewCheckoutInitiator(sessions SessionCreator, store orders.Store, urls RedirectURLs, opts ...Option) *CheckoutInitiator {
	// Order ids are only used to correlate webhooks with checkouts, so a
	// non-cryptographic source is enough.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	ci := &CheckoutInitiator{
		sessions: sessions,
		store:    store,
		urls:     urls,
		product:  Sunglasses,
		orderIDs: func() int64 {
			return rng.Int63n(MaxOrderID)
		},
	}

	for _, opt := range opts {
		opt(ci)
	}
	return ci
}

// CreateCheckout creates a Stripe checkout session for a new order of the
// product and returns the URL of the hosted checkout page. The order is
// recorded as unpaid once the session exists.
//
// Order ids are drawn from [0, MaxOrderID) and may collide with earlier orders.
func (ci *CheckoutInitiator) CreateCheckout(ctx context.Context) (CheckoutResult, error) {
	orderID := ci.orderIDs()

	params := newSessionParams(ci.product, orderID, ci.urls)
	params.Context = ctx

	session, err := ci.sessions.New(params)
	if err != nil {
		return CheckoutResult{}, utils.MakeError("failed to create checkout session for order %d: %w", orderID, err)
	}

	logger.Infof("Created checkout session %s for order %d", session.ID, orderID)

	// The webhook upserts the order, so a failure here does not need to fail
	// the checkout.
	err = ci.store.Create(ctx, orders.Order{
		ID:        orderID,
		ProductID: ci.product.ID,
		SessionID: session.ID,
	})
	if err != nil {
		logger.Errorf("Failed to record unpaid order %d for session %s: %s", orderID, session.ID, err)
	}

	return CheckoutResult{
		URL:       session.URL,
		SessionID: session.ID,
		OrderID:   orderID,
	}, nil
}

// newSessionParams builds the parameters of a one-off payment for a single
// unit of product.
func newSessionParams(product Product, orderID int64, urls RedirectURLs) *stripe.CheckoutSessionParams {
	productID := strconv.FormatInt(product.ID, 10)

	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(product.Name),
						Metadata: map[string]string{
							"id":           productID,
							"name":         product.Name,
							"priceInCents": strconv.FormatInt(product.PriceInCents, 10),
						},
					},
					UnitAmount: stripe.Int64(product.PriceInCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(urls.Success),
		CancelURL:  stripe.String(urls.Cancel),
	}

	// Metadata is echoed back in webhook events, which is how a completed
	// session is matched with its order.
	params.AddMetadata("productId", productID)
	params.AddMetadata("productName", product.Name)
	params.AddMetadata("orderId", strconv.FormatInt(orderID, 10))

	return params
}

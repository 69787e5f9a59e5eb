package payments

import (
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	logger "github.com/whisthq/whist/backend/checkout/whistlogger"
)

// NewStripeClient creates a Stripe API client authenticated with key. The
// client is safe for concurrent use and should be created once and shared.
// If backends is nil, the default Stripe backends are used.
func NewStripeClient(key string, backends *stripe.Backends) *client.API {
	if key == "" {
		logger.Warningf("Stripe API key is empty. Checkout sessions will fail to be created.")
	}

	return client.New(key, backends)
}

package main

import (
	"context"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/whisthq/whist/backend/checkout/checkout-service/payments"
	"github.com/whisthq/whist/backend/checkout/httputils"
	logger "github.com/whisthq/whist/backend/checkout/whistlogger"
	"golang.org/x/time/rate"
)

// checkoutCreator is implemented by payments.CheckoutInitiator.
type checkoutCreator interface {
	CreateCheckout(ctx context.Context) (payments.CheckoutResult, error)
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// newCheckoutLimiter returns the rate limiter for the checkout endpoint. This
// will limit requests to `limit` per second with a burst of up to `burst`
// requests, shared by all clients, so a client app spamming the endpoint cannot
// create unbounded Stripe sessions. A limit of zero disables throttling.
func newCheckoutLimiter(limit float64, burst int) *rate.Limiter {
	if limit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(limit), burst)
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := httputils.VerifyRequestType(w, r, http.MethodGet); err != nil {
		return
	}

	httputils.SendJSON(w, http.StatusOK, statusResponse{
		Success: true,
		Message: "Our express app is live!",
	})
}

func checkoutHandler(checkout checkoutCreator) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := httputils.VerifyRequestType(w, r, http.MethodPost); err != nil {
			return
		}

		res, err := checkout.CreateCheckout(r.Context())
		if err != nil {
			logger.Errorf("Failed to create checkout (request %s): %s", httputils.GetRequestID(r.Context()), err)
			httputils.SendJSON(w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
			return
		}

		httputils.SendJSON(w, http.StatusOK, checkoutResponse{CheckoutURL: res.URL})
	}
}

// recoverPanics answers with a 500 when a handler panics. Reporting is left
// to the Sentry handler, which re-panics after capturing.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorf("Recovered from panic serving %s %s: %v", r.Method, r.URL, err)
				httputils.SendJSON(w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// newHandler builds the routes of the service with their middleware.
func newHandler(checkout checkoutCreator, webhook http.Handler, limiter *rate.Limiter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", statusHandler)
	mux.HandleFunc("/checkout", httputils.EnableCORS(httputils.ThrottleMiddleware(limiter, checkoutHandler(checkout))))
	mux.Handle("/stripe-webhook", webhook)

	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic: true,
	})

	return httputils.RequestID(recoverPanics(sentryHandler.Handle(mux)))
}

// newServer adds timeouts to help mitigate potential rogue clients or DDOS
// attacks.
func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		Handler:      handler,
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/whisthq/whist/backend/checkout/checkout-service/config"
	"github.com/whisthq/whist/backend/checkout/checkout-service/events"
	"github.com/whisthq/whist/backend/checkout/checkout-service/orders"
	"github.com/whisthq/whist/backend/checkout/checkout-service/payments"
	"github.com/whisthq/whist/backend/checkout/checkout-service/webhooks"
	"github.com/whisthq/whist/backend/checkout/metadata"
	"github.com/whisthq/whist/backend/checkout/utils"
	logger "github.com/whisthq/whist/backend/checkout/whistlogger"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long in-flight requests may take to finish once
// a shutdown has been requested.
const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Panicf(nil, "Failed to load configuration: %s", err)
	}

	// Initialize logzio and Sentry as early as possible so that we can catch
	// any errors that might occur.
	logger.InitLogging(cfg.ProdLogging)

	if err := run(cfg); err != nil {
		logger.Error(err)
		logger.Sync()
		os.Exit(1)
	}

	logger.Infof("Checkout service stopped")
	logger.Sync()
}

func run(cfg config.Config) error {
	logger.Infof("Starting checkout service in %s (commit %s)", metadata.GetAppEnvironment(), metadata.GetGitCommit())
	if cfg.ConfigFile != "" {
		logger.Infof("Loaded configuration from %s", cfg.ConfigFile)
	}
	if cfg.WebhookSecret == "" {
		logger.Warningf("STRIPE_WEBHOOK_SECRET is not set. Every Stripe webhook delivery will be rejected.")
	}

	store, closeStore, err := newOrderStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Errorf("Failed to close order store: %s", err)
		}
	}()

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Errorf("Failed to close order event publisher: %s", err)
		}
	}()

	stripeClient := payments.NewStripeClient(cfg.StripeKey, nil)
	initiator := payments.NewCheckoutInitiator(stripeClient.CheckoutSessions, store, payments.RedirectURLs{
		Success: cfg.SuccessURL,
		Cancel:  cfg.CancelURL,
	})
	receiver := webhooks.NewReceiver(cfg.WebhookSecret, store, publisher)

	// The global context is cancelled on Ctrl-C or SIGTERM.
	globalCtx, globalCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer globalCancel()

	if cfg.Cleanup {
		s, err := startCleanupScheduler(globalCtx, cleanupJob{
			store:  store,
			maxAge: cfg.CleanupMaxAge,
			now:    time.Now,
		}, cfg.CleanupInterval)
		if err != nil {
			return err
		}
		defer s.Stop()
	}

	srv := newServer(cfg.Addr(), newHandler(initiator, receiver.Handler(), newCheckoutLimiter(cfg.CheckoutRateLimit, cfg.CheckoutRateBurst)))

	g, ctx := errgroup.WithContext(globalCtx)
	g.Go(func() error {
		logger.Infof("Listening for HTTP requests on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return utils.MakeError("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Infof("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return utils.MakeError("failed to shut down HTTP server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newOrderStore uses Postgres when a database is configured, and an
// in-memory store otherwise.
func newOrderStore(cfg config.Config) (orders.Store, func() error, error) {
	if cfg.DatabaseURL == "" {
		logger.Infof("DATABASE_URL is not set, keeping orders in memory")
		return orders.NewMemoryStore(), func() error { return nil }, nil
	}

	store, err := orders.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, utils.MakeError("failed to connect to the order database: %w", err)
	}
	return store, store.Close, nil
}

// newPublisher sends OrderPaid messages to Kafka when brokers are configured,
// and only logs them otherwise.
func newPublisher(cfg config.Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Infof("KAFKA_BROKERS is not set, order events will only be logged")
		return events.NewLogPublisher(), nil
	}

	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, utils.MakeError("failed to create order event publisher: %w", err)
	}
	return publisher, nil
}

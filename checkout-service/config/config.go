// Package config loads the checkout service configuration. Values are layered
// from built-in defaults, an optional TOML file, environment variables and
// command line flags, in increasing order of precedence.
//
// config.Load() should be called as close as possible to the top of the main
// function.
package config

import (
	"errors"
	"flag"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/basicflag"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/whisthq/whist/backend/checkout/utils"
)

// Config stores the service-global configuration values.
type Config struct {
	// StripeKey is the secret API key used to create checkout sessions.
	StripeKey string
	// WebhookSecret is the signing secret of the webhook endpoint. When it
	// is empty every webhook delivery is rejected.
	WebhookSecret string

	Port int

	// ClientURL is the base URL of the storefront, used to build the
	// default redirect URLs.
	ClientURL  string
	SuccessURL string
	CancelURL  string

	// CheckoutRateLimit is the sustained number of checkout requests per
	// second accepted from all clients together, with bursts of up to
	// CheckoutRateBurst. A limit of zero disables throttling.
	CheckoutRateLimit float64
	CheckoutRateBurst int

	// DatabaseURL is a Postgres connection string. Orders are kept in memory
	// when it is empty.
	DatabaseURL string

	// KafkaBrokers receive OrderPaid messages on KafkaTopic. Messages are only
	// logged when no brokers are configured.
	KafkaBrokers []string
	KafkaTopic   string

	Cleanup         bool
	CleanupInterval time.Duration
	CleanupMaxAge   time.Duration

	ProdLogging bool

	// ConfigFile is the path of the TOML file that was read, if any.
	ConfigFile string
}

// envKeys maps the environment variables read by the service to their
// configuration keys. Other variables are ignored.
var envKeys = map[string]string{
	"STRIPE_TEST_KEY":       "stripe.key",
	"STRIPE_WEBHOOK_SECRET": "stripe.webhook_secret",
	"PORT":                  "port",
	"CLIENT_URL":            "client.url",
	"CHECKOUT_SUCCESS_URL":  "checkout.success_url",
	"CHECKOUT_CANCEL_URL":   "checkout.cancel_url",
	"CHECKOUT_RATE_LIMIT":   "checkout.rate_limit",
	"CHECKOUT_RATE_BURST":   "checkout.rate_burst",
	"DATABASE_URL":          "database.url",
	"KAFKA_BROKERS":         "kafka.brokers",
	"KAFKA_ORDERS_TOPIC":    "kafka.topic",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"port":                3001,
		"client.url":          "http://localhost:3000",
		"kafka.topic":         "orders.paid",
		"checkout.rate_limit": 1,
		"checkout.rate_burst": 10,
		"cleanup.interval":    "1h",
		"cleanup.max_age":     "24h", // The default lifetime of a Stripe checkout session
	}
}

// Load builds the configuration from args (usually os.Args[1:]) and the
// process environment. All validation failures are reported together.
func Load(args []string) (Config, error) {
	flags, err := parseFlags(args)
	if err != nil {
		return Config{}, utils.MakeError("error parsing flags: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, utils.MakeError("error loading defaults: %w", err)
	}

	path := flags.String("config")
	loaded, err := getConfigFromFile(k, path)
	if err != nil {
		return Config{}, err
	}

	if err := getConfigFromEnv(k); err != nil {
		return Config{}, err
	}

	c := Config{
		StripeKey:         k.String("stripe.key"),
		WebhookSecret:     k.String("stripe.webhook_secret"),
		Port:              k.Int("port"),
		ClientURL:         strings.TrimRight(k.String("client.url"), "/"),
		SuccessURL:        k.String("checkout.success_url"),
		CancelURL:         k.String("checkout.cancel_url"),
		CheckoutRateLimit: k.Float64("checkout.rate_limit"),
		CheckoutRateBurst: k.Int("checkout.rate_burst"),
		DatabaseURL:       k.String("database.url"),
		KafkaBrokers:      getBrokers(k),
		KafkaTopic:        k.String("kafka.topic"),
		Cleanup:           flags.Bool("cleanup"),
		CleanupInterval:   k.Duration("cleanup.interval"),
		CleanupMaxAge:     k.Duration("cleanup.max_age"),
		ProdLogging:       flags.Bool("prodlogging"),
	}
	if loaded {
		c.ConfigFile = path
	}

	if c.SuccessURL == "" {
		c.SuccessURL = c.ClientURL + "/checkout?status=success"
	}
	if c.CancelURL == "" {
		c.CancelURL = c.ClientURL + "/checkout?status=cancelled"
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks that the configuration can be used to start the service.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.Port <= 0 || c.Port > 65535 {
		result = multierror.Append(result, utils.MakeError("invalid port %d", c.Port))
	}

	for name, u := range map[string]string{"success": c.SuccessURL, "cancel": c.CancelURL} {
		if _, err := url.ParseRequestURI(u); err != nil {
			result = multierror.Append(result, utils.MakeError("invalid %s URL %q: %w", name, u, err))
		}
	}
	if c.SuccessURL == c.CancelURL {
		result = multierror.Append(result, utils.MakeError("success and cancel URLs must differ, both are %q", c.SuccessURL))
	}

	if c.CheckoutRateLimit < 0 {
		result = multierror.Append(result, utils.MakeError("checkout rate limit must not be negative, got %g", c.CheckoutRateLimit))
	}
	if c.CheckoutRateLimit > 0 && c.CheckoutRateBurst < 1 {
		result = multierror.Append(result, utils.MakeError("checkout rate burst must be at least 1, got %d", c.CheckoutRateBurst))
	}

	if c.KafkaTopic == "" && len(c.KafkaBrokers) > 0 {
		result = multierror.Append(result, utils.MakeError("kafka brokers are configured without a topic"))
	}

	if c.CleanupInterval <= 0 {
		result = multierror.Append(result, utils.MakeError("cleanup interval must be positive, got %s", c.CleanupInterval))
	}
	if c.CleanupMaxAge <= 0 {
		result = multierror.Append(result, utils.MakeError("cleanup max age must be positive, got %s", c.CleanupMaxAge))
	}

	return result.ErrorOrNil()
}

// Addr returns the address the HTTP server listens on.
func (c Config) Addr() string {
	return utils.Sprintf("0.0.0.0:%d", c.Port)
}

// getConfigFromFile loads the TOML file at path. A missing file is not an
// error, in which case false is returned.
func getConfigFromFile(k *koanf.Koanf, path string) (bool, error) {
	if path == "" {
		return false, nil
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return false, utils.MakeError("error loading config file %s: %w", path, err)
	}
	return true, nil
}

func getConfigFromEnv(k *koanf.Koanf) error {
	err := k.Load(env.ProviderWithValue("", ".", func(key string, value string) (string, interface{}) {
		name, ok := envKeys[key]
		if !ok || value == "" {
			return "", nil
		}
		return name, value
	}), nil)
	if err != nil {
		return utils.MakeError("error loading environment to config: %w", err)
	}
	return nil
}

// getBrokers accepts either a comma-separated string (from the environment)
// or a list (from the config file).
func getBrokers(k *koanf.Koanf) []string {
	switch v := k.Get("kafka.brokers").(type) {
	case string:
		return utils.SplitAndTrim(v)
	case []interface{}:
		var brokers []string
		for _, b := range v {
			if s, ok := b.(string); ok {
				brokers = append(brokers, utils.SplitAndTrim(s)...)
			}
		}
		return brokers
	default:
		return nil
	}
}

// parseFlags parses the command line into its own koanf instance, since the
// "cleanup" flag would otherwise shadow the "cleanup" table of the file.
func parseFlags(args []string) (*koanf.Koanf, error) {
	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.String("config", "config.toml", "Path of an optional TOML configuration file.")
	f.Bool("cleanup", false, "If the application starts the job that deletes stale unpaid orders.")
	f.Bool("prodlogging", false, `If the application sends logs to Logz.io and reports errors to Sentry. If this option is passed
the SENTRY_DSN and LOGZIO_SHIPPING_TOKEN env vars must be defined.`)

	if err := f.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(basicflag.Provider(f, "."), nil); err != nil {
		return nil, utils.MakeError("error loading flags to config: %w", err)
	}
	return k, nil
}

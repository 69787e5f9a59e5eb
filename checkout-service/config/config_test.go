package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// clearEnv blanks every variable read by the service for the duration of a
// test. Empty variables are ignored by Load.
func clearEnv(t *testing.T) {
	t.Helper()
	for name := range envKeys {
		t.Setenv(name, "")
	}
}

func writeFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config file: %s", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	c, err := Load([]string{"-config", filepath.Join(t.TempDir(), "missing.toml")})
	if err != nil {
		t.Fatalf("Load returned unexpected error: %s", err)
	}

	want := Config{
		Port:              3001,
		ClientURL:         "http://localhost:3000",
		SuccessURL:        "http://localhost:3000/checkout?status=success",
		CancelURL:         "http://localhost:3000/checkout?status=cancelled",
		CheckoutRateLimit: 1,
		CheckoutRateBurst: 10,
		KafkaTopic:        "orders.paid",
		CleanupInterval:   time.Hour,
		CleanupMaxAge:     24 * time.Hour,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
	if c.Addr() != "0.0.0.0:3001" {
		t.Errorf("unexpected address %q", c.Addr())
	}
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("STRIPE_TEST_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("PORT", "8080")
	t.Setenv("CLIENT_URL", "https://shop.example.com/")
	t.Setenv("DATABASE_URL", "postgres://localhost/orders")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("KAFKA_ORDERS_TOPIC", "payments")
	t.Setenv("CHECKOUT_RATE_LIMIT", "0.5")
	t.Setenv("CHECKOUT_RATE_BURST", "100")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	c, err := Load([]string{"-config", "", "-prodlogging", "-cleanup"})
	if err != nil {
		t.Fatalf("Load returned unexpected error: %s", err)
	}

	want := Config{
		StripeKey:         "sk_test_123",
		WebhookSecret:     "whsec_123",
		Port:              8080,
		ClientURL:         "https://shop.example.com",
		SuccessURL:        "https://shop.example.com/checkout?status=success",
		CancelURL:         "https://shop.example.com/checkout?status=cancelled",
		CheckoutRateLimit: 0.5,
		CheckoutRateBurst: 100,
		DatabaseURL:       "postgres://localhost/orders",
		KafkaBrokers:      []string{"kafka-1:9092", "kafka-2:9092"},
		KafkaTopic:        "payments",
		Cleanup:           true,
		CleanupInterval:   time.Hour,
		CleanupMaxAge:     24 * time.Hour,
		ProdLogging:       true,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")

	path := writeFile(t, `
port = 4000

[stripe]
key = "sk_test_file"

[checkout]
success_url = "https://shop.example.com/thanks"
cancel_url = "https://shop.example.com/cart"
rate_limit = 0

[kafka]
brokers = ["kafka-1:9092", "kafka-2:9092"]

[cleanup]
interval = "15m"
max_age = "2h"
`)

	c, err := Load([]string{"-config", path, "-cleanup"})
	if err != nil {
		t.Fatalf("Load returned unexpected error: %s", err)
	}

	want := Config{
		StripeKey:         "sk_test_file",
		Port:              9000, // The environment takes precedence over the file
		ClientURL:         "http://localhost:3000",
		SuccessURL:        "https://shop.example.com/thanks",
		CancelURL:         "https://shop.example.com/cart",
		CheckoutRateBurst: 10,
		KafkaBrokers:      []string{"kafka-1:9092", "kafka-2:9092"},
		KafkaTopic:        "orders.paid",
		Cleanup:           true,
		CleanupInterval:   15 * time.Minute,
		CleanupMaxAge:     2 * time.Hour,
		ConfigFile:        path,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadInvalid(t *testing.T) {
	var tests = []struct {
		name    string
		env     map[string]string
		file    string
		wantErr []string
	}{
		{
			name:    "non-numeric port",
			env:     map[string]string{"PORT": "http"},
			wantErr: []string{"invalid port"},
		},
		{
			name:    "identical redirect URLs",
			env:     map[string]string{"CHECKOUT_SUCCESS_URL": "http://localhost:3000/", "CHECKOUT_CANCEL_URL": "http://localhost:3000/"},
			wantErr: []string{"must differ"},
		},
		{
			name:    "bad durations",
			file:    "[cleanup]\ninterval = \"soon\"\nmax_age = \"-1h\"\n",
			wantErr: []string{"cleanup interval", "cleanup max age"},
		},
		{
			name:    "bad rate limits",
			env:     map[string]string{"CHECKOUT_RATE_LIMIT": "-1"},
			wantErr: []string{"checkout rate limit"},
		},
		{
			name:    "zero burst",
			env:     map[string]string{"CHECKOUT_RATE_LIMIT": "5", "CHECKOUT_RATE_BURST": "0"},
			wantErr: []string{"checkout rate burst"},
		},
		{
			name:    "several problems",
			env:     map[string]string{"PORT": "70000", "CHECKOUT_SUCCESS_URL": "not a url"},
			wantErr: []string{"invalid port", "invalid success URL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			args := []string{"-config", ""}
			if tt.file != "" {
				args = []string{"-config", writeFile(t, tt.file)}
			}

			_, err := Load(args)
			if err == nil {
				t.Fatal("expected Load to fail")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("expected error to contain %q, got %q", want, err)
				}
			}
		})
	}
}

func TestLoadBadFlag(t *testing.T) {
	clearEnv(t)

	if _, err := Load([]string{"-unknown"}); err == nil {
		t.Error("expected an unknown flag to fail")
	}
}

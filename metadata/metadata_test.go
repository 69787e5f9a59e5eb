package metadata

import (
	"testing"

	"github.com/whisthq/whist/backend/checkout/utils"
)

var environmentTests = []struct {
	environmentVar string
	want           AppEnvironment
}{
	{"localdev", "localdev"},
	{"LocalDev", "localdev"},
	{"LOCALDEV", "localdev"},

	{"DEV", "dev"},
	{"dev", "dev"},
	{"development", "dev"},

	{"staging", "staging"},
	{"Staging", "staging"},
	{"STAGING", "staging"},

	{"prod", "prod"},
	{"Prod", "prod"},
	{"production", "prod"},

	{"unknown", "localdev"},
	{"", "localdev"},
}

func TestGetAppEnvironment(t *testing.T) {
	for _, tt := range environmentTests {
		testname := utils.Sprintf("%s,%s", tt.environmentVar, tt.want)
		t.Run(testname, func(t *testing.T) {

			// Set the APP_ENV environment variable to the test environment
			t.Setenv("APP_ENV", tt.environmentVar)
			got := GetAppEnvironment()

			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsLocalEnv(t *testing.T) {
	for _, tt := range environmentTests {
		want := tt.want == EnvLocalDev

		testname := utils.Sprintf("%s,%v", tt.environmentVar, want)
		t.Run(testname, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.environmentVar)
			got := IsLocalEnv()

			if got != want {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestGetAppEnvironmentLowercase(t *testing.T) {
	var environmentTests = []struct {
		environmentVar string
		want           string
	}{
		{"LOCALDEV", "localdev"},
		{"DEV", "dev"},
		{"STAGING", "staging"},
		{"PROD", "prod"},
		{"UNKNOWN", "localdev"},
	}

	for _, tt := range environmentTests {
		testname := utils.Sprintf("%s,%s", tt.environmentVar, tt.want)
		t.Run(testname, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.environmentVar)
			got := GetAppEnvironmentLowercase()

			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRunningInCI(t *testing.T) {
	var CITests = []struct {
		environmentVar string
		want           bool
	}{
		{"1", true},
		{"yes", true},
		{"YES", true},
		{"true", true},
		{"True", true},
		{"on", true},
		{"yep", true},
		{"0", false},
		{"no", false},
		{"false", false},
		{"off", false},
		{"nope", false},
		{"unknown", false},
	}

	for _, tt := range CITests {
		testname := utils.Sprintf("%s,%v", tt.environmentVar, tt.want)
		t.Run(testname, func(t *testing.T) {
			t.Setenv("CI", tt.environmentVar)
			got := IsRunningInCI()

			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

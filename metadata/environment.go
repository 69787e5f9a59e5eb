package metadata // import "github.com/whisthq/whist/backend/checkout/metadata"

import (
	"os"
	"strings"
)

// An AppEnvironment represents either localdev (i.e. an engineer's development
// instance), dev, staging, or prod.
type AppEnvironment string

// Constants for the various AppEnvironments. DO NOT CHANGE THESE without
// understanding how any consumers of GetAppEnvironment() and
// GetAppEnvironmentLowercase() are using them!
const (
	EnvLocalDev AppEnvironment = "localdev"
	EnvDev      AppEnvironment = "dev"
	EnvStaging  AppEnvironment = "staging"
	EnvProd     AppEnvironment = "prod"
)

// gitCommit is set at build time with
// `-ldflags "-X github.com/whisthq/whist/backend/checkout/metadata.gitCommit=<sha>"`.
var gitCommit string

// GetGitCommit returns the git commit hash the service was built from, or an
// empty string for builds that did not set it.
func GetGitCommit() string {
	return gitCommit
}

// GetAppEnvironment returns the AppEnvironment of the current process, read
// from the APP_ENV environment variable. Unknown values fall back to localdev.
func GetAppEnvironment() AppEnvironment {
	env := strings.ToLower(os.Getenv("APP_ENV"))
	switch env {
	case "development", "dev":
		return EnvDev
	case "staging":
		return EnvStaging
	case "production", "prod":
		return EnvProd
	default:
		return EnvLocalDev
	}
}

// IsLocalEnv returns true if the service is running locally for development.
func IsLocalEnv() bool {
	return GetAppEnvironment() == EnvLocalDev
}

// GetAppEnvironmentLowercase returns the app environment string, but just
// converted to lowercase.
func GetAppEnvironmentLowercase() string {
	return strings.ToLower(string(GetAppEnvironment()))
}

// IsRunningInCI returns true if the service is running in continuous
// integration (i.e. for tests), and false otherwise.
func IsRunningInCI() bool {
	strCI := strings.ToLower(os.Getenv("CI"))
	switch strCI {
	case "1", "yes", "true", "on", "yep":
		return true
	case "0", "no", "false", "off", "nope":
		return false
	default:
		return false
	}
}

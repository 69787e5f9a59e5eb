package utils // import "github.com/whisthq/whist/backend/checkout/utils"

import (
	"fmt"
	"strings"
)

// SplitAndTrim splits a comma-separated list, trimming whitespace around each
// element and dropping empty ones. It is used for list-valued environment
// variables such as KAFKA_BROKERS.
func SplitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// The following two functions exist so that we don't have to import `fmt` into
// any other packages (so we don't accidentally log something using `fmt`
// functions instead of using the `whistlogger` equivalents that send
// information to logz.io and Sentry).

// Sprintf creates a string from format string and args.
func Sprintf(format string, v ...interface{}) string {
	return fmt.Sprintf(format, v...)
}

// MakeError creates an error from format string and args. Since it is a thin
// wrapper around fmt.Errorf, the %w verb can be used to wrap errors.
func MakeError(format string, v ...interface{}) error {
	return fmt.Errorf(format, v...)
}

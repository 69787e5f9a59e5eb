package whistlogger // import "github.com/whisthq/whist/backend/checkout/whistlogger"

import (
	"context"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/whisthq/whist/backend/checkout/metadata"
	"github.com/whisthq/whist/backend/checkout/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	// lock guards replacing the logger in InitLogging.
	lock sync.RWMutex
)

func init() {
	logger = zap.New(newConsoleCore())
}

// newConsoleCore builds the core used in every environment. High-priority
// output goes to standard error, and low-priority output goes to standard out.
func newConsoleCore() zapcore.Core {
	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.DebugLevel && lvl < zapcore.ErrorLevel
	})

	consoleDebugging := zapcore.Lock(os.Stdout)
	consoleErrors := zapcore.Lock(os.Stderr)

	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	// Enable colored output on stdout
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig)

	return zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, consoleErrors, highPriority),
		zapcore.NewCore(consoleEncoder, consoleDebugging, lowPriority),
	)
}

// InitLogging replaces the console-only logger with one that also reports to
// Sentry (errors only) and logz.io (all levels), if prodLogging is set and the
// service is neither running locally nor in CI. It should be called as close as possible to
// the top of the main function.
func InitLogging(prodLogging bool) {
	cores := []zapcore.Core{newConsoleCore()}

	if prodLogging && !metadata.IsLocalEnv() && !metadata.IsRunningInCI() {
		onlyErrors := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.ErrorLevel
		})
		logsAndErrors := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.InfoLevel
		})

		if core, err := newSentryCore(os.Getenv("SENTRY_DSN"), onlyErrors); err != nil {
			Errorf("Not setting up Sentry: %s", err)
		} else {
			cores = append(cores, core)
		}

		if core, err := newLogzioCore(os.Getenv("LOGZIO_SHIPPING_TOKEN"), logsAndErrors); err != nil {
			Errorf("Not setting up logz.io: %s", err)
		} else {
			cores = append(cores, core)
		}
	}

	lock.Lock()
	logger = zap.New(zapcore.NewTee(cores...)).With(
		zap.String("component", "checkout-service"),
		zap.String("environment", string(metadata.GetAppEnvironment())),
	)
	lock.Unlock()

	Infof("Initialized logging with %d cores. Environment: %s", len(cores), metadata.GetAppEnvironment())
}

func sugar() *zap.SugaredLogger {
	lock.RLock()
	defer lock.RUnlock()
	return logger.Sugar()
}

// Sync flushes the queues and sends the events to the corresponding output.
// This should be called before exiting the program.
func Sync() {
	lock.RLock()
	err := logger.Sync()
	lock.RUnlock()

	if err != nil && !strings.Contains(err.Error(), "sync /dev/stdout") && !strings.Contains(err.Error(), "sync /dev/stderr") {
		Errorf("failed to drain log queues: %s", err)
	}
}

// Debugf logs a debug message. Debug messages are not sent to logz.io.
func Debugf(format string, v ...interface{}) {
	sugar().Debugf(format, v...)
}

// Info logs some info + timestamp, but does not send it to Sentry.
func Info(v ...interface{}) {
	sugar().Info(v...)
}

// Infof is like Info, but it respects printf syntax, i.e. takes in a format
// string and arguments, for convenience.
func Infof(format string, v ...interface{}) {
	sugar().Infof(format, v...)
}

// Warning logs a warning, but doesn't send it to Sentry.
func Warning(err error) {
	sugar().Warn(err)
}

// Warningf is like Warning, but it respects printf syntax.
func Warningf(format string, v ...interface{}) {
	sugar().Warnf(format, v...)
}

// Error logs an error and sends it to Sentry.
func Error(err error) {
	sugar().Error(err)
}

// Errorf is like Error, but it respects printf syntax.
func Errorf(format string, v ...interface{}) {
	sugar().Errorf(format, v...)
}

// Panic logs an error and calls the provided global context-cancelling
// function, which causes all the goroutines in the program to exit cleanly.
// Passing in a nil `globalCancel` will actually panic on `err` after flushing
// the logging queues.
func Panic(globalCancel context.CancelFunc, err error) {
	PrintStackTrace()

	if globalCancel != nil {
		Error(err)
		globalCancel()
	} else {
		Sync()
		sugar().Panic(err)
	}
}

// Panicf is like Panic, but it respects printf syntax.
func Panicf(globalCancel context.CancelFunc, format string, v ...interface{}) {
	Panic(globalCancel, utils.MakeError(format, v...))
}

// PrintStackTrace prints the stack trace, for debugging purposes.
func PrintStackTrace() {
	Info("Printing stack trace: ")
	debug.PrintStack()
}

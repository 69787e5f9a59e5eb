package whistlogger // import "github.com/whisthq/whist/backend/checkout/whistlogger"

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/whisthq/whist/backend/checkout/metadata"
	"github.com/whisthq/whist/backend/checkout/utils"
	"go.uber.org/zap/zapcore"
)

// sentryCore is a custom core that sends output to Sentry.
type sentryCore struct {
	// enabler decides whether the entry should be logged or not,
	// according to its level.
	enabler zapcore.LevelEnabler
	// fields are the context fields added with With, sent as event extras.
	fields []zapcore.Field
	// hub is the Sentry hub events are captured on.
	hub *sentry.Hub
}

// newSentryCore initializes the global Sentry client, so that the HTTP
// middleware reports panics to the same project, and returns a core that
// captures log entries as Sentry events.
func newSentryCore(dsn string, levelEnab zapcore.LevelEnabler) (zapcore.Core, error) {
	if dsn == "" {
		return nil, utils.MakeError("SENTRY_DSN is not set")
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Release:     metadata.GetGitCommit(),
		Environment: metadata.GetAppEnvironmentLowercase(),
	})
	if err != nil {
		return nil, utils.MakeError("error calling sentry.Init: %w", err)
	}

	return &sentryCore{
		enabler: levelEnab,
		hub:     sentry.CurrentHub(),
	}, nil
}

// Enabled is used to check whether the event should be logged
// or not, depending on its level.
func (sc *sentryCore) Enabled(level zapcore.Level) bool {
	return sc.enabler.Enabled(level)
}

// With adds the fields defined in the configuration to the core.
func (sc *sentryCore) With(fields []zapcore.Field) zapcore.Core {
	combined := make([]zapcore.Field, 0, len(sc.fields)+len(fields))
	combined = append(combined, sc.fields...)
	combined = append(combined, fields...)

	return &sentryCore{
		enabler: sc.enabler,
		fields:  combined,
		hub:     sc.hub,
	}
}

// Check will add the current entry (event) to the core, which in the future will
// send it to Sentry.
func (sc *sentryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if sc.Enabled(ent.Level) {
		return ce.AddCore(ent, sc)
	}
	return ce
}

// Write manually assembles a Sentry event from the log entry and captures it.
func (sc *sentryCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range sc.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	event := sentry.NewEvent()
	event.Level = sentryLevel(ent.Level)
	event.Message = ent.Message
	event.Timestamp = ent.Time
	event.Extra = enc.Fields
	if ent.Caller.Defined {
		event.Extra["caller"] = ent.Caller.TrimmedPath()
	}

	sc.hub.CaptureEvent(event)

	if ent.Level > zapcore.ErrorLevel {
		// Since we may be crashing the program, sync the output.
		return sc.Sync()
	}
	return nil
}

// Sync will send all events to Sentry and flush the queue.
func (sc *sentryCore) Sync() error {
	if ok := sc.hub.Flush(5 * time.Second); !ok {
		return utils.MakeError("failed to flush Sentry, some events may not have been sent")
	}
	return nil
}

func sentryLevel(lvl zapcore.Level) sentry.Level {
	switch lvl {
	case zapcore.DebugLevel:
		return sentry.LevelDebug
	case zapcore.InfoLevel:
		return sentry.LevelInfo
	case zapcore.WarnLevel:
		return sentry.LevelWarning
	case zapcore.ErrorLevel:
		return sentry.LevelError
	default:
		return sentry.LevelFatal
	}
}

package whistlogger // import "github.com/whisthq/whist/backend/checkout/whistlogger"

import (
	"sync"
	"time"

	"github.com/logzio/logzio-go"
	"github.com/whisthq/whist/backend/checkout/utils"
	"go.uber.org/zap/zapcore"
)

// logzioCore is a custom core that sends output to Logz.io
type logzioCore struct {
	// enabler decides whether the entry should be logged or not,
	// according to its level.
	enabler zapcore.LevelEnabler
	// encoder is responsible for marshalling the entry to the desired format.
	encoder zapcore.Encoder
	// sender is the client used to send the events to Logz.io
	sender *logzio.LogzioSender
	// senderLock is a lock for the queue used by Logz.io
	senderLock *sync.Mutex
}

// newLogzioCore will initialize logz and necessary fields.
func newLogzioCore(shippingToken string, levelEnab zapcore.LevelEnabler) (zapcore.Core, error) {
	if shippingToken == "" {
		return nil, utils.MakeError("LOGZIO_SHIPPING_TOKEN is not set")
	}

	sender, err := logzio.New(
		shippingToken,
		logzio.SetUrl("https://listener.logz.io:8071"),
		logzio.SetDrainDuration(time.Second*3),
		logzio.SetCheckDiskSpace(false),
	)
	if err != nil {
		return nil, utils.MakeError("error initializing logz.io sender: %w", err)
	}

	return &logzioCore{
		enabler:    levelEnab,
		encoder:    zapcore.NewJSONEncoder(newLogzioEncoderConfig()),
		sender:     sender,
		senderLock: &sync.Mutex{},
	}, nil
}

// newLogzioEncoderConfig returns a configuration that is appropiate for
// using with logz.io.
func newLogzioEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "type",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.EpochTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// Enabled is used to check whether the event should be logged
// or not, depending on its level.
func (lc *logzioCore) Enabled(level zapcore.Level) bool {
	return lc.enabler.Enabled(level)
}

// With adds the fields defined in the configuration to the core.
func (lc *logzioCore) With(fields []zapcore.Field) zapcore.Core {
	core := &logzioCore{
		enabler:    lc.enabler,
		encoder:    lc.encoder.Clone(),
		sender:     lc.sender,
		senderLock: lc.senderLock,
	}

	for i := range fields {
		fields[i].AddTo(core.encoder)
	}

	return core
}

// Check will add the current entry (event) to the core, which in the future will
// send it to logz.io.
func (lc *logzioCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if lc.Enabled(ent.Level) {
		return ce.AddCore(ent, lc)
	}
	return ce
}

// Write is where the core sends the event payload to logz.io
func (lc *logzioCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := lc.encoder.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}

	lc.senderLock.Lock()
	err = lc.sender.Send(buf.Bytes())
	lc.senderLock.Unlock()
	buf.Free()

	if err != nil {
		return utils.MakeError("couldn't send payload to logz.io: %w", err)
	}
	if ent.Level > zapcore.ErrorLevel {
		// Since we may be crashing the program, sync the output.
		return lc.Sync()
	}
	return nil
}

// Sync drains the queue.
func (lc *logzioCore) Sync() error {
	lc.senderLock.Lock()
	defer lc.senderLock.Unlock()

	return lc.sender.Sync()
}

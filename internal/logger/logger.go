package logger

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"injectionfilter/internal/constants"
	"injectionfilter/pkg/logging"
)

// Logger is the structured logger shared by every package. The Ctx
// variants prepend the request fields carried by ctx.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Sync() error

	DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{})

	With(keysAndValues ...interface{}) Logger
}

type SugaredLogger struct {
	*zap.SugaredLogger
	// ctx skips the Ctx wrapper frames so caller points at the call site.
	ctx *zap.SugaredLogger
}

// New builds a logger on stderr so that command output on stdout stays
// machine readable.
func New(level, format string) (Logger, error) {
	return NewWriter(os.Stderr, level, format)
}

// NewWriter builds a logger writing to w. format is "json" or "console";
// an unparsable level falls back to info.
func NewWriter(w io.Writer, level, format string) (Logger, error) {
	encoder, err := newEncoder(format)
	if err != nil {
		return nil, err
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(lvl))
	zl := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(
			zap.String("service", constants.ServiceName),
			zap.String("version", constants.Version),
		),
	)
	return FromZap(zl), nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder

	switch format {
	case "", "json":
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		ec.ConsoleSeparator = " "
		return zapcore.NewConsoleEncoder(ec), nil
	}
	return nil, fmt.Errorf("unsupported log format %q", format)
}

func FromZap(l *zap.Logger) Logger {
	return wrap(l.Sugar())
}

func wrap(s *zap.SugaredLogger) *SugaredLogger {
	return &SugaredLogger{SugaredLogger: s, ctx: s.WithOptions(zap.AddCallerSkip(2))}
}

func (l *SugaredLogger) With(keysAndValues ...interface{}) Logger {
	return wrap(l.SugaredLogger.With(keysAndValues...))
}

func (l *SugaredLogger) DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.logCtx(ctx, zapcore.DebugLevel, msg, keysAndValues)
}

func (l *SugaredLogger) InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.logCtx(ctx, zapcore.InfoLevel, msg, keysAndValues)
}

func (l *SugaredLogger) WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.logCtx(ctx, zapcore.WarnLevel, msg, keysAndValues)
}

func (l *SugaredLogger) ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.logCtx(ctx, zapcore.ErrorLevel, msg, keysAndValues)
}

func (l *SugaredLogger) logCtx(ctx context.Context, lvl zapcore.Level, msg string, keysAndValues []interface{}) {
	l.ctx.Logw(lvl, msg, append(logging.GetLogFields(ctx), keysAndValues...)...)
}

func NopLogger() Logger {
	return FromZap(zap.NewNop())
}

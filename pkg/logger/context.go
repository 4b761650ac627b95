package logger

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey struct{}

var loggerContextKey = contextKey{}

// WithLogger attaches logger to ctx, so it can be retrieved downstream
// without threading it through every function signature.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext retrieves the logger attached by WithLogger, or the global
// logger if ctx carries none.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return Get()
}

// Raw exposes the underlying zerolog.Logger for call sites that need
// zerolog's API directly (e.g. chi middleware hooks).
func Raw(ctx context.Context) *zerolog.Logger {
	l := FromContext(ctx)
	return &l.logger
}

func DebugCtx(ctx context.Context) *zerolog.Event { return FromContext(ctx).Debug() }
func InfoCtx(ctx context.Context) *zerolog.Event  { return FromContext(ctx).Info() }
func WarnCtx(ctx context.Context) *zerolog.Event  { return FromContext(ctx).Warn() }
func ErrorCtx(ctx context.Context) *zerolog.Event { return FromContext(ctx).Error() }
func FatalCtx(ctx context.Context) *zerolog.Event { return FromContext(ctx).Fatal() }
func PanicCtx(ctx context.Context) *zerolog.Event { return FromContext(ctx).Panic() }

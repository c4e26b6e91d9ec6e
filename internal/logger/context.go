package logger

import (
	"context"

	"go.uber.org/zap"
)

type loggerKeyType struct{}

var loggerKey = loggerKeyType{}

// WithLogger adds logger to context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return Nop()
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &ZapLogger{zap: zap.NewNop()}
}

// NewFromZap wraps an existing zap logger. Tests use it with zaptest observers.
func NewFromZap(z *zap.Logger) Logger {
	return &ZapLogger{zap: z}
}

package logger

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip hides the Debug..Fatal method and write from reported callers.
const callerSkip = 2

// ZapLogger is the Logger bedrockmate processes run with. Fields are only
// converted when their level is enabled, so debug-heavy paths such as the
// job poller cost nothing in production.
type ZapLogger struct {
	zap *zap.Logger
}

// NewZapLogger builds the process logger from cfg. An unknown level falls back
// to info; an unknown format is a configuration error.
func NewZapLogger(cfg LoggerConfig) (*ZapLogger, error) {
	zc, err := buildZapConfig(cfg)
	if err != nil {
		return nil, err
	}
	z, err := zc.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(callerSkip),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("logger: build: %w", err)
	}
	return &ZapLogger{zap: z}, nil
}

func buildZapConfig(cfg LoggerConfig) (zap.Config, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	switch cfg.Format {
	case "", "json":
		zc.Encoding = "json"
	case "console":
		zc.Encoding = "console"
	default:
		return zap.Config{}, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}

	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	zc.Sampling = nil
	if cfg.EnableSampling {
		zc.Sampling = &zap.SamplingConfig{Initial: cfg.SampleInitial, Thereafter: cfg.SampleThereafter}
	}
	return zc, nil
}

// zapField encodes one Field. Job results and parameters arrive as raw JSON
// and are embedded as-is rather than base64'd.
func zapField(f Field) zap.Field {
	switch v := f.Value.(type) {
	case nil:
		return zap.Skip()
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case uint64:
		return zap.Uint64(f.Key, v)
	case float64:
		return zap.Float64(f.Key, v)
	case bool:
		return zap.Bool(f.Key, v)
	case time.Duration:
		return zap.Duration(f.Key, v)
	case time.Time:
		return zap.Time(f.Key, v)
	case json.RawMessage:
		return zap.Reflect(f.Key, v)
	case error:
		return zap.NamedError(f.Key, v)
	case fmt.Stringer:
		return zap.Stringer(f.Key, v)
	}
	return zap.Any(f.Key, f.Value)
}

func convertFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zapField(f))
	}
	return out
}

func (l *ZapLogger) write(lvl zapcore.Level, msg string, fields []Field) {
	if ce := l.zap.Check(lvl, msg); ce != nil {
		ce.Write(convertFields(fields)...)
	}
}

func (l *ZapLogger) Debug(msg string, fields ...Field) { l.write(zapcore.DebugLevel, msg, fields) }
func (l *ZapLogger) Info(msg string, fields ...Field) { l.write(zapcore.InfoLevel, msg, fields) }
func (l *ZapLogger) Warn(msg string, fields ...Field) { l.write(zapcore.WarnLevel, msg, fields) }
func (l *ZapLogger) Error(msg string, fields ...Field) { l.write(zapcore.ErrorLevel, msg, fields) }

// Fatal logs and exits the process.
func (l *ZapLogger) Fatal(msg string, fields ...Field) { l.write(zapcore.FatalLevel, msg, fields) }

func (l *ZapLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &ZapLogger{zap: l.zap.With(convertFields(fields)...)}
}

func (l *ZapLogger) Sync() error { return l.zap.Sync() }

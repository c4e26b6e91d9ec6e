package logger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_Levels(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := NewFromZap(zap.New(core))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	logs := recorded.All()
	if len(logs) != 4 {
		t.Fatalf("expected 4 logs, got %d", len(logs))
	}

	expected := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, entry := range logs {
		if entry.Level != expected[i] {
			t.Errorf("log %d: expected level %v, got %v", i, expected[i], entry.Level)
		}
	}
}

func TestZapLogger_StructuredFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	logger := NewFromZap(zap.New(core))

	logger.Info("job finished",
		String("job_id", "abc"),
		Int("progress", 100),
		Field{Key: "elapsed", Value: 2 * time.Second},
		Field{Key: "external", Value: true},
		Err(errors.New("boom")),
	)

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}

	fields := logs[0].ContextMap()
	if fields["job_id"] != "abc" {
		t.Errorf("expected job_id=abc, got %v", fields["job_id"])
	}
	if fields["progress"] != int64(100) {
		t.Errorf("expected progress=100, got %v", fields["progress"])
	}
	if fields["external"] != true {
		t.Errorf("expected external=true, got %v", fields["external"])
	}
	if fields["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", fields["error"])
	}
}

func TestZapLogger_WithComponent(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	logger := NewFromZap(zap.New(core)).With(Component("dispatch"))

	logger.Info("submitted")

	logs := recorded.FilterField(zap.String("component", "dispatch")).All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log tagged with component, got %d", len(logs))
	}
}

func TestNewZapLogger_RejectsUnknownFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "xml"
	if _, err := NewZapLogger(cfg); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewZapLogger_Sampling(t *testing.T) {
	cfg := LoggerConfig{
		Level:            "debug",
		Format:           "json",
		EnableSampling:   true,
		SampleInitial:    10,
		SampleThereafter: 100,
	}

	logger, err := NewZapLogger(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	for i := 0; i < 500; i++ {
		logger.Debug("tick", Int("iteration", i))
	}
}

func TestContext_WithLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), NewFromZap(zap.New(core)))

	FromContext(ctx).Info("test message")

	if n := recorded.Len(); n != 1 {
		t.Errorf("expected 1 log, got %d", n)
	}
}

func TestContext_NoLogger(t *testing.T) {
	FromContext(context.Background()).Info("dropped")
}

func TestConfigForEnv(t *testing.T) {
	t.Setenv(EnvMode, "production")
	if cfg := ConfigForEnv(); cfg.Development || cfg.Format != "json" {
		t.Errorf("expected production preset, got %+v", cfg)
	}

	t.Setenv(EnvMode, "")
	if cfg := ConfigForEnv(); !cfg.Development || cfg.Level != "debug" {
		t.Errorf("expected development preset, got %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLevel, "warn")
	t.Setenv(EnvFormat, "console")
	t.Setenv(EnvSampling, "true")
	t.Setenv(EnvSampleInitial, "5")
	t.Setenv(EnvSampleAfter, "not-a-number")

	cfg := ApplyEnv(DefaultConfig())

	if cfg.Level != "warn" {
		t.Errorf("expected level warn, got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format console, got %q", cfg.Format)
	}
	if !cfg.EnableSampling || cfg.SampleInitial != 5 {
		t.Errorf("unexpected sampling config %+v", cfg)
	}
	if cfg.SampleThereafter != 1000 {
		t.Errorf("invalid override should keep default, got %d", cfg.SampleThereafter)
	}
}

func TestConvertFields_AllTypes(t *testing.T) {
	fields := []Field{
		{Key: "string", Value: "test"},
		{Key: "int", Value: 42},
		{Key: "int64", Value: int64(123)},
		{Key: "uint64", Value: uint64(456)},
		{Key: "float64", Value: 3.14},
		{Key: "bool", Value: true},
		{Key: "duration", Value: time.Second},
		{Key: "time", Value: time.Unix(0, 0)},
	}

	zapFields := convertFields(fields)

	if len(zapFields) != len(fields) {
		t.Fatalf("expected %d zap fields, got %d", len(fields), len(zapFields))
	}
	for i, zf := range zapFields {
		if zf.Key != fields[i].Key {
			t.Errorf("field %d: expected key %q, got %q", i, fields[i].Key, zf.Key)
		}
	}
}

func TestZapLogger_SkipsDisabledLevelsAndNilValues(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	logger := NewFromZap(zap.New(core))

	logger.Debug("suppressed", String("job_id", "abc"))
	logger.Info("job result",
		Field{Key: "missing", Value: nil},
		Field{Key: "result", Value: json.RawMessage(`{"count":2}`)},
	)

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected only the info entry, got %d", len(logs))
	}
	fields := logs[0].ContextMap()
	if _, ok := fields["missing"]; ok {
		t.Errorf("nil field should be skipped, got %v", fields)
	}
	if _, ok := fields["result"]; !ok {
		t.Errorf("raw JSON field missing: %v", fields)
	}
}

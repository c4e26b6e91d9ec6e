package logger

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables read by ApplyEnv.
const (
	EnvMode           = "BEDROCKMATE_ENV"
	EnvLevel          = "BEDROCKMATE_LOG_LEVEL"
	EnvFormat         = "BEDROCKMATE_LOG_FORMAT"
	EnvSampling       = "BEDROCKMATE_LOG_SAMPLING"
	EnvSampleInitial  = "BEDROCKMATE_LOG_SAMPLE_INITIAL"
	EnvSampleAfter    = "BEDROCKMATE_LOG_SAMPLE_THEREAFTER"
	EnvDevelopmentLog = "BEDROCKMATE_LOG_DEVELOPMENT"
)

// NewLoggerFromEnv creates a logger based on environment variables
func NewLoggerFromEnv() (Logger, error) {
	return NewZapLogger(ApplyEnv(ConfigForEnv()))
}

// NewLoggerWithComponent creates a logger with a component field pre-set
func NewLoggerWithComponent(cfg LoggerConfig, component string) (Logger, error) {
	logger, err := NewZapLogger(cfg)
	if err != nil {
		return nil, err
	}
	return logger.With(Component(component)), nil
}

// ConfigForEnv picks the base configuration from BEDROCKMATE_ENV. Anything
// other than "production" gets the development preset.
func ConfigForEnv() LoggerConfig {
	if strings.ToLower(os.Getenv(EnvMode)) == "production" {
		return DefaultConfig()
	}
	return DevelopmentConfig()
}

// ApplyEnv overrides cfg with any BEDROCKMATE_LOG_* variables that are set.
func ApplyEnv(cfg LoggerConfig) LoggerConfig {
	if level := os.Getenv(EnvLevel); level != "" {
		cfg.Level = level
	}

	if format := os.Getenv(EnvFormat); format != "" {
		cfg.Format = format
	}

	if sampling := os.Getenv(EnvSampling); sampling != "" {
		cfg.EnableSampling = strings.ToLower(sampling) == "true"
	}

	if initial := os.Getenv(EnvSampleInitial); initial != "" {
		if val, err := strconv.Atoi(initial); err == nil {
			cfg.SampleInitial = val
		}
	}

	if thereafter := os.Getenv(EnvSampleAfter); thereafter != "" {
		if val, err := strconv.Atoi(thereafter); err == nil {
			cfg.SampleThereafter = val
		}
	}

	if dev := os.Getenv(EnvDevelopmentLog); dev != "" {
		cfg.Development = strings.ToLower(dev) == "true"
	}

	return cfg
}

// Package config loads the bedrockmate YAML configuration and applies
// BEDROCKMATE_* environment overrides on top of it.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bedrockmate/internal/compute"
	"bedrockmate/internal/logger"
	"bedrockmate/internal/queue"
	"bedrockmate/internal/store/sqlstore"
)

// DriverMemory keeps everything in process; nothing survives a restart.
const DriverMemory = "memory"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server   ServerConfig        `yaml:"server"`
	Database DatabaseConfig      `yaml:"database"`
	Engine   EngineConfig        `yaml:"engine"`
	Queue    QueueConfig         `yaml:"queue"`
	Dispatch DispatchConfig      `yaml:"dispatch"`
	Poll     PollConfig          `yaml:"poll"`
	Log      logger.LoggerConfig `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type EngineConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

type QueueConfig struct {
	Backend       string `yaml:"backend"`
	Workers       int    `yaml:"workers"`
	Capacity      int    `yaml:"capacity"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type DispatchConfig struct {
	// SubmitRate is submissions per second; zero disables the limit.
	SubmitRate  float64 `yaml:"submit_rate"`
	SubmitBurst int     `yaml:"submit_burst"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8000"},
		Database: DatabaseConfig{Driver: sqlstore.DriverSQLite, DSN: "bedrockmate.db?_busy_timeout=5000"},
		Engine:   EngineConfig{Path: "bedrock-engine", Timeout: compute.DefaultEngineTimeout},
		Queue: QueueConfig{
			Backend:   queue.BackendPool,
			Workers:   queue.DefaultWorkers,
			Capacity:  queue.DefaultCapacity,
			RedisAddr: "localhost:6379",
		},
		Dispatch: DispatchConfig{SubmitBurst: 10},
		Poll:     PollConfig{Interval: 2 * time.Second},
		Log:      logger.ConfigForEnv(),
	}
}

// Load reads path over the defaults. An empty path skips the file; env
// overrides are applied either way.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer func() { _ = file.Close() }()

		if err := decode(bufio.NewReader(file), &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg, err := ApplyEnv(cfg)
	if err != nil {
		return Config{}, err
	}
	cfg.Log = logger.ApplyEnv(cfg.Log)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			for _, msg := range typeErr.Errors {
				if strings.HasPrefix(msg, "line") {
					return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
				}
			}
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Environment variables read by ApplyEnv.
const (
	EnvAddr          = "BEDROCKMATE_ADDR"
	EnvDBDriver      = "BEDROCKMATE_DB_DRIVER"
	EnvDBDSN         = "BEDROCKMATE_DB_DSN"
	EnvEnginePath    = "BEDROCKMATE_ENGINE_PATH"
	EnvEngineTimeout = "BEDROCKMATE_ENGINE_TIMEOUT"
	EnvQueueBackend  = "BEDROCKMATE_QUEUE_BACKEND"
	EnvQueueWorkers  = "BEDROCKMATE_QUEUE_WORKERS"
	EnvQueueCapacity = "BEDROCKMATE_QUEUE_CAPACITY"
	EnvRedisAddr     = "BEDROCKMATE_REDIS_ADDR"
	EnvRedisPassword = "BEDROCKMATE_REDIS_PASSWORD"
	EnvSubmitRate    = "BEDROCKMATE_SUBMIT_RATE"
	EnvPollInterval  = "BEDROCKMATE_POLL_INTERVAL"
)

// ApplyEnv overrides cfg with any BEDROCKMATE_* variables that are set. Unlike
// the log variables, a malformed number or duration here is an error.
func ApplyEnv(cfg Config) (Config, error) {
	setString(&cfg.Server.Addr, EnvAddr)
	setString(&cfg.Database.Driver, EnvDBDriver)
	setString(&cfg.Database.DSN, EnvDBDSN)
	setString(&cfg.Engine.Path, EnvEnginePath)
	setString(&cfg.Queue.Backend, EnvQueueBackend)
	setString(&cfg.Queue.RedisAddr, EnvRedisAddr)
	setString(&cfg.Queue.RedisPassword, EnvRedisPassword)

	var errs []error
	errs = append(errs,
		setDuration(&cfg.Engine.Timeout, EnvEngineTimeout),
		setDuration(&cfg.Poll.Interval, EnvPollInterval),
		setInt(&cfg.Queue.Workers, EnvQueueWorkers),
		setInt(&cfg.Queue.Capacity, EnvQueueCapacity),
	)
	if v := os.Getenv(EnvSubmitRate); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvSubmitRate, err))
		} else {
			cfg.Dispatch.SubmitRate = f
		}
	}
	if err := errors.Join(errs...); err != nil {
		return cfg, errors.Join(ErrInvalidConfig, err)
	}
	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case sqlstore.DriverSQLite, sqlstore.DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	if c.Engine.Path == "" {
		errs = append(errs, errors.New("engine.path is required"))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, errors.New("engine.timeout must be positive"))
	}
	switch c.Queue.Backend {
	case queue.BackendPool:
		if c.Queue.Capacity <= 0 {
			errs = append(errs, errors.New("queue.capacity must be positive"))
		}
	case queue.BackendRedis:
		if c.Queue.RedisAddr == "" {
			errs = append(errs, errors.New("queue.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown queue.backend %q", c.Queue.Backend))
	}
	if c.Queue.Workers <= 0 {
		errs = append(errs, errors.New("queue.workers must be positive"))
	}
	if c.Dispatch.SubmitRate < 0 {
		errs = append(errs, errors.New("dispatch.submit_rate cannot be negative"))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll.interval must be positive"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

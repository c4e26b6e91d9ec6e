package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bedrockmate/internal/api"
	"bedrockmate/internal/compute"
	"bedrockmate/internal/config"
	"bedrockmate/internal/dispatch"
	"bedrockmate/internal/logger"
	"bedrockmate/internal/queue"
	"bedrockmate/internal/store"
	"bedrockmate/internal/store/memory"
	"bedrockmate/internal/store/sqlstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the job workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(parent context.Context, cfg config.Config) error {
	log, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	backend, err := newBackend(cfg.Queue, log)
	if err != nil {
		return err
	}

	engine := compute.NewExternalEngine(cfg.Engine.Path, cfg.Engine.Timeout, log)
	opts := []dispatch.Option{dispatch.WithLogger(log)}
	if cfg.Dispatch.SubmitRate > 0 {
		opts = append(opts, dispatch.WithRateLimit(cfg.Dispatch.SubmitRate, cfg.Dispatch.SubmitBurst))
	}
	d := dispatch.New(st, st, compute.NewRegistry(engine), backend, opts...)
	if err := d.Start(); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	defer d.Stop()

	log.Info("bedrockmate starting",
		logger.String("addr", cfg.Server.Addr),
		logger.String("database", cfg.Database.Driver),
		logger.String("queue", cfg.Queue.Backend),
		logger.Int("workers", cfg.Queue.Workers),
		logger.String("engine", cfg.Engine.Path))

	srv := api.NewServer(api.Config{Addr: cfg.Server.Addr, PollInterval: cfg.Poll.Interval}, d, st, st, st, log)
	return srv.ListenAndServe(ctx)
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	if cfg.Driver == config.DriverMemory {
		return memory.New(), nil
	}
	st, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return st, nil
}

func newBackend(cfg config.QueueConfig, log logger.Logger) (queue.Backend, error) {
	switch cfg.Backend {
	case queue.BackendRedis:
		return queue.NewRedis(queue.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Workers:  cfg.Workers,
		}, log), nil
	default:
		return queue.NewPool(queue.PoolConfig{Workers: cfg.Workers, Capacity: cfg.Capacity}, log)
	}
}

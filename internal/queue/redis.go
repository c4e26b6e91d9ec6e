package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"

	"bedrockmate/internal/logger"
)

const (
	// TaskExecuteJob is the asynq task type carrying a job id.
	TaskExecuteJob = "job:execute"

	DefaultRedisQueue = "jobs"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Queue    string
	Workers  int
	// ShutdownTimeout bounds how long Stop waits for running jobs.
	ShutdownTimeout time.Duration
}

type taskPayload struct {
	JobID string `json:"job_id"`
}

// Redis is the asynq backend: Enqueue publishes a task, and the asynq server
// running in this process pulls tasks and calls the handler. Tasks are never
// retried.
type Redis struct {
	cfg       RedisConfig
	log       logger.Logger
	client    *asynq.Client
	inspector *asynq.Inspector
	server    *asynq.Server

	mu      sync.Mutex
	started bool
	stopped bool

	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

var _ Backend = (*Redis)(nil)

func NewRedis(cfg RedisConfig, log logger.Logger) *Redis {
	if cfg.Queue == "" {
		cfg.Queue = DefaultRedisQueue
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultDrainTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("queue"), logger.String("backend", BackendRedis))

	opt := asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	return &Redis{
		cfg:       cfg,
		log:       log,
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency:     cfg.Workers,
			Queues:          map[string]int{cfg.Queue: 1},
			ShutdownTimeout: cfg.ShutdownTimeout,
			Logger:          asynqLogger{log: log},
			LogLevel:        asynq.WarnLevel,
		}),
	}
}

// Start registers h with the asynq server. Tasks outlive the process in Redis,
// so nothing is ever dropped and drop is ignored.
func (r *Redis) Start(h Handler, _ DropHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	if r.started {
		return fmt.Errorf("redis backend already started")
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskExecuteJob, r.process(h))
	if err := r.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	r.started = true
	r.log.Info("asynq server started",
		logger.String("addr", r.cfg.Addr),
		logger.String("queue", r.cfg.Queue),
		logger.Int("workers", r.cfg.Workers))
	return nil
}

// process adapts h to an asynq handler. A malformed payload is not retried.
func (r *Redis) process(h Handler) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) (err error) {
		var p taskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil || p.JobID == "" {
			r.log.Error("dropping malformed task", logger.String("payload", string(t.Payload())))
			return fmt.Errorf("malformed task payload: %w", asynq.SkipRetry)
		}
		defer func() {
			r.completed.Add(1)
			if v := recover(); v != nil {
				r.panics.Add(1)
				r.log.Error("worker panic recovered",
					logger.String("job_id", p.JobID),
					logger.String("panic", fmt.Sprint(v)))
				err = fmt.Errorf("job %s panicked: %w", p.JobID, asynq.SkipRetry)
			}
		}()
		h(ctx, p.JobID)
		return nil
	}
}

func (r *Redis) Enqueue(ctx context.Context, jobID string) error {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	payload, err := json.Marshal(taskPayload{JobID: jobID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskExecuteJob, payload, asynq.MaxRetry(0), asynq.Queue(r.cfg.Queue))
	if _, err := r.client.EnqueueContext(ctx, task); err != nil {
		r.rejected.Add(1)
		return fmt.Errorf("failed to publish job %s: %w", jobID, err)
	}
	r.submitted.Add(1)
	return nil
}

func (r *Redis) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	if started {
		r.server.Shutdown()
	}
	if err := r.client.Close(); err != nil {
		r.log.Warn("failed to close asynq client", logger.Err(err))
	}
	if err := r.inspector.Close(); err != nil {
		r.log.Warn("failed to close asynq inspector", logger.Err(err))
	}
	r.log.Info("asynq server stopped")
}

// Stats reads queue depth from Redis. Depth is left at zero when the queue
// does not exist yet or Redis is unreachable.
func (r *Redis) Stats() Stats {
	s := Stats{
		Backend:   BackendRedis,
		Workers:   r.cfg.Workers,
		Submitted: r.submitted.Load(),
		Rejected:  r.rejected.Load(),
		Completed: r.completed.Load(),
		Panics:    r.panics.Load(),
	}
	info, err := r.inspector.GetQueueInfo(r.cfg.Queue)
	if err != nil {
		if !errors.Is(err, asynq.ErrQueueNotFound) {
			r.log.Debug("failed to read queue info", logger.Err(err))
		}
		return s
	}
	s.Running = info.Active
	s.Queued = info.Pending
	return s
}

// asynqLogger routes asynq's internal logs through the application logger.
type asynqLogger struct {
	log logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(fmt.Sprint(args...)) }

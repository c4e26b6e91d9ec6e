package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"bedrockmate/internal/logger"
)

const (
	DefaultWorkers  = 4
	DefaultCapacity = 256

	defaultDrainTimeout = 30 * time.Second
)

type PoolConfig struct {
	Workers  int
	Capacity int
	// DrainTimeout bounds how long Stop waits for running jobs before their
	// context is cancelled.
	DrainTimeout time.Duration
}

type poolMetrics struct {
	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	dropped   atomic.Int64
	panics    atomic.Int64
}

// Pool is the in-process backend: a bounded channel of pending ids drained by
// a feeder goroutine into a fixed-size ants pool. Enqueue never blocks.
type Pool struct {
	cfg     PoolConfig
	log     logger.Logger
	pending chan string
	pool    *ants.Pool
	metrics poolMetrics

	// feedCtx stops the feeder; jobCtx is handed to running jobs and is only
	// cancelled once draining gives up.
	feedCtx    context.Context
	stopFeed   context.CancelFunc
	jobCtx     context.Context
	cancelJobs context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.RWMutex
	handler Handler
	drop    DropHandler
	started bool
	stopped bool
}

var _ Backend = (*Pool)(nil)

func NewPool(cfg PoolConfig, log logger.Logger) (*Pool, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	p := &Pool{
		cfg:     cfg,
		log:     log.With(logger.Component("queue"), logger.String("backend", BackendPool)),
		pending: make(chan string, cfg.Capacity),
	}

	// Blocking mode: the feeder waits for a free worker, the channel absorbs bursts.
	pool, err := ants.NewPool(
		cfg.Workers,
		ants.WithPreAlloc(true),
		ants.WithPanicHandler(p.onPanic),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	p.pool = pool
	p.feedCtx, p.stopFeed = context.WithCancel(context.Background())
	p.jobCtx, p.cancelJobs = context.WithCancel(context.Background())
	return p, nil
}

func (p *Pool) Start(h Handler, drop DropHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return fmt.Errorf("pool already started")
	}
	p.handler = h
	p.drop = drop
	p.started = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.feed()
	}()

	p.log.Info("worker pool started",
		logger.Int("workers", p.cfg.Workers),
		logger.Int("capacity", p.cfg.Capacity))
	return nil
}

func (p *Pool) Enqueue(_ context.Context, jobID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case p.stopped:
		return ErrStopped
	case !p.started:
		return ErrNotStarted
	}

	select {
	case p.pending <- jobID:
		p.metrics.submitted.Add(1)
		return nil
	default:
		p.metrics.rejected.Add(1)
		p.log.Warn("queue full, rejecting job",
			logger.String("job_id", jobID),
			logger.Int("capacity", p.cfg.Capacity))
		return ErrQueueFull
	}
}

// feed moves pending ids into the worker pool until Stop.
func (p *Pool) feed() {
	for {
		select {
		case <-p.feedCtx.Done():
			return
		case id := <-p.pending:
			if p.feedCtx.Err() != nil {
				p.dropJob(id)
				return
			}
			err := p.pool.Submit(func() {
				defer p.metrics.completed.Add(1)
				p.handler(p.jobCtx, id)
			})
			if err != nil {
				p.log.Error("failed to submit job to worker pool",
					logger.String("job_id", id),
					logger.Err(err))
				p.dropJob(id)
			}
		}
	}
}

// dropJob reports an id that was accepted but will never run.
func (p *Pool) dropJob(id string) {
	p.metrics.dropped.Add(1)
	if p.drop != nil {
		p.drop(id)
	}
}

func (p *Pool) onPanic(v interface{}) {
	p.metrics.panics.Add(1)
	p.log.Error("worker panic recovered", logger.String("panic", fmt.Sprint(v)))
}

// Stop refuses new work, waits up to DrainTimeout for running jobs before
// cancelling them, and drops ids that never reached a worker.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	// Releasing the pool also unblocks a feeder waiting for a free worker.
	p.stopFeed()
	if err := p.pool.ReleaseTimeout(p.cfg.DrainTimeout); err != nil {
		p.log.Warn("running jobs did not finish before drain timeout", logger.Err(err))
	}
	p.cancelJobs()
	p.wg.Wait()

	if n := len(p.pending); n > 0 {
		p.log.Warn("dropping queued jobs on shutdown", logger.Int("dropped", n))
	}
	for len(p.pending) > 0 {
		p.dropJob(<-p.pending)
	}
	p.log.Info("worker pool stopped",
		logger.Int("completed", int(p.metrics.completed.Load())))
}

func (p *Pool) Stats() Stats {
	return Stats{
		Backend:   BackendPool,
		Workers:   p.pool.Cap(),
		Running:   p.pool.Running(),
		Queued:    len(p.pending),
		Capacity:  p.cfg.Capacity,
		Submitted: p.metrics.submitted.Load(),
		Rejected:  p.metrics.rejected.Load(),
		Completed: p.metrics.completed.Load(),
		Dropped:   p.metrics.dropped.Load(),
		Panics:    p.metrics.panics.Load(),
	}
}

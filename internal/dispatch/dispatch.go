// Package dispatch accepts job submissions and executes accepted jobs on a
// queue backend. Submission errors are returned to the caller; execution
// errors only ever become a failed job record.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"bedrockmate/internal/compute"
	"bedrockmate/internal/jobs"
	"bedrockmate/internal/logger"
	"bedrockmate/internal/queue"
	"bedrockmate/internal/store"
	"bedrockmate/internal/worlds"
)

// ErrRateLimited is returned by Submit when the admission limit is exceeded.
var ErrRateLimited = errors.New("submission rate limit exceeded")

// commitTimeout bounds each status write, which runs detached from the job's
// context so a cancelled job can still record its outcome.
const commitTimeout = 10 * time.Second

// WorldReader is the only part of the world store the dispatcher needs.
type WorldReader interface {
	GetWorld(ctx context.Context, id string) (*worlds.World, error)
}

type Option func(*Dispatcher)

// WithRateLimit caps submissions at r per second with the given burst.
// A non-positive rate disables the limit.
func WithRateLimit(r float64, burst int) Option {
	return func(d *Dispatcher) {
		if r <= 0 {
			d.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

func WithLogger(log logger.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

type Dispatcher struct {
	jobs       store.JobStore
	worlds     WorldReader
	strategies compute.Registry
	backend    queue.Backend
	limiter    *rate.Limiter
	log        logger.Logger
}

func New(js store.JobStore, ws WorldReader, strategies compute.Registry, backend queue.Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		jobs:       js,
		worlds:     ws,
		strategies: strategies,
		backend:    backend,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With(logger.Component("dispatcher"))
	return d
}

// ShutdownFailure is recorded on jobs the backend accepted but never ran.
const ShutdownFailure = "server shut down before the job ran"

// Start registers Execute and Abandon with the backend.
func (d *Dispatcher) Start() error {
	return d.backend.Start(d.Execute, d.Abandon)
}

func (d *Dispatcher) Stop() {
	d.backend.Stop()
}

func (d *Dispatcher) Stats() queue.Stats {
	return d.backend.Stats()
}

// Submit validates a submission, persists it as pending and hands it to the
// backend. It returns as soon as the job is queued. On any error no job
// record is left behind.
func (d *Dispatcher) Submit(ctx context.Context, worldID string, t jobs.Type, params json.RawMessage) (*jobs.Job, error) {
	if d.limiter != nil && !d.limiter.Allow() {
		return nil, ErrRateLimited
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", jobs.ErrUnknownJobType, string(t))
	}
	if _, err := d.worlds.GetWorld(ctx, worldID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", jobs.ErrWorldNotFound, worldID)
		}
		return nil, fmt.Errorf("failed to load world: %w", err)
	}
	normalized, err := jobs.NormalizeParams(t, params)
	if err != nil {
		return nil, err
	}

	j, err := d.jobs.CreateJob(ctx, worldID, t, normalized)
	if err != nil {
		return nil, err
	}

	if err := d.backend.Enqueue(ctx, j.ID); err != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		defer cancel()
		if _, derr := d.jobs.DeleteJob(cctx, j.ID); derr != nil {
			d.log.Error("failed to remove unscheduled job",
				logger.String("job_id", j.ID),
				logger.Err(derr))
		}
		return nil, err
	}

	d.log.Info("job submitted",
		logger.String("job_id", j.ID),
		logger.String("world_id", worldID),
		logger.String("job_type", string(t)))
	return j, nil
}

// Execute runs one job to a terminal state. It never returns an error and
// never panics; every failure is recorded on the job.
func (d *Dispatcher) Execute(ctx context.Context, jobID string) {
	log := d.log.With(logger.String("job_id", jobID))
	defer func() {
		if v := recover(); v != nil {
			log.Error("job panicked", logger.String("panic", fmt.Sprint(v)))
			d.commit(ctx, log, jobID, jobs.Fail(fmt.Sprintf("internal error: %v", v)))
		}
	}()

	j, err := d.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("job removed before execution")
		} else {
			log.Error("failed to load job", logger.Err(err))
		}
		return
	}
	if !d.commit(ctx, log, jobID, jobs.Start()) {
		log.Debug("job not runnable", logger.String("status", string(j.Status)))
		return
	}

	start := time.Now()
	result, err := d.run(ctx, log, j)
	if err == nil && len(result) == 0 {
		err = errors.New("computation returned no result")
	}
	if err != nil {
		log.Warn("job failed",
			logger.String("job_type", string(j.Type)),
			logger.Duration("elapsed", time.Since(start)),
			logger.Err(err))
		d.commit(ctx, log, jobID, jobs.Fail(jobs.FailureMessage(err)))
		return
	}
	if d.commit(ctx, log, jobID, jobs.Complete(result)) {
		log.Info("job completed",
			logger.String("job_type", string(j.Type)),
			logger.Duration("elapsed", time.Since(start)))
	}
}

// Abandon settles a job the backend dropped without running it. Failed is
// only reachable from running, so the job passes through running first.
func (d *Dispatcher) Abandon(jobID string) {
	log := d.log.With(logger.String("job_id", jobID))
	ctx := context.Background()
	if !d.commit(ctx, log, jobID, jobs.Start()) {
		return
	}
	if d.commit(ctx, log, jobID, jobs.Fail(ShutdownFailure)) {
		log.Warn("queued job dropped on shutdown")
	}
}

func (d *Dispatcher) run(ctx context.Context, log logger.Logger, j *jobs.Job) (json.RawMessage, error) {
	w, err := d.worlds.GetWorld(ctx, j.WorldID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, jobs.ErrWorldNotFound
		}
		return nil, fmt.Errorf("failed to load world: %w", err)
	}
	p, err := jobs.DecodeParams(j.Type, j.Parameters)
	if err != nil {
		return nil, err
	}
	s, err := d.strategies.Lookup(j.Type)
	if err != nil {
		return nil, err
	}
	if s.LongRunning() {
		d.commit(ctx, log, j.ID, jobs.ReportProgress(50))
	}
	return s.Compute(ctx, w.Seed, p)
}

// commit writes one transition and reports whether it applied. A job deleted
// mid-flight makes this a silent no-op.
func (d *Dispatcher) commit(ctx context.Context, log logger.Logger, jobID string, tr jobs.Transition) bool {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	applied, err := d.jobs.UpdateJobStatus(cctx, jobID, tr)
	if err != nil {
		log.Error("failed to update job status",
			logger.String("status", string(tr.To)),
			logger.Err(err))
		return false
	}
	if !applied {
		log.Debug("status update not applied", logger.String("status", string(tr.To)))
	}
	return applied
}

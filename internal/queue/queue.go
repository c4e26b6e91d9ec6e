// Package queue runs accepted jobs in the background. A Backend takes job ids
// from the dispatcher and calls the registered Handler for each, at most once.
package queue

import (
	"context"
	"errors"
)

var (
	// ErrQueueFull is returned by Enqueue when no more work can be accepted.
	ErrQueueFull = errors.New("queue is full")
	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("queue is stopped")
	// ErrNotStarted is returned by Enqueue before Start.
	ErrNotStarted = errors.New("queue is not started")
)

const (
	BackendPool  = "pool"
	BackendRedis = "redis"
)

// Handler executes one job. It must not panic; backends recover if it does.
type Handler func(ctx context.Context, jobID string)

// DropHandler is told about each accepted id that will never reach a Handler,
// so the job can be settled instead of staying pending.
type DropHandler func(jobID string)

// Backend is the execution substrate behind the dispatcher.
type Backend interface {
	// Start begins delivering enqueued ids to run. drop may be nil.
	Start(run Handler, drop DropHandler) error
	// Enqueue hands off jobID without waiting for it to run.
	Enqueue(ctx context.Context, jobID string) error
	// Stop refuses new work and waits a bounded time for running jobs.
	Stop()
	Stats() Stats
}

// Stats is a point-in-time view of a backend.
type Stats struct {
	Backend   string `json:"backend"`
	Workers   int    `json:"workers"`
	Running   int    `json:"running"`
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
	Submitted int64  `json:"submitted"`
	Rejected  int64  `json:"rejected"`
	Completed int64  `json:"completed"`
	Dropped   int64  `json:"dropped"`
	Panics    int64  `json:"panics"`
}

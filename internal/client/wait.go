package client

import (
	"context"
	"time"

	"bedrockmate/internal/jobs"
)

// DefaultPollInterval is how often WaitForJob re-fetches a job.
const DefaultPollInterval = 2 * time.Second

// JobGetter fetches a job by id. Both the HTTP Client and the job stores
// implement it.
type JobGetter interface {
	GetJob(ctx context.Context, id string) (*jobs.Job, error)
}

// WaitForJob polls getter every interval until the job reaches a terminal
// state and returns it. observe, if set, sees the job on the first poll and
// again whenever its status or progress changes. Fetch errors end the wait.
func WaitForJob(ctx context.Context, getter JobGetter, id string, interval time.Duration, observe func(*jobs.Job)) (*jobs.Job, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *jobs.Job
	for {
		j, err := getter.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if observe != nil && (last == nil || last.Status != j.Status || last.Progress != j.Progress) {
			observe(j)
		}
		if j.Done() {
			return j, nil
		}
		last = j

		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-ticker.C:
		}
	}
}

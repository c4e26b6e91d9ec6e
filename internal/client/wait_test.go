package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bedrockmate/internal/jobs"
)

// scriptedGetter returns successive snapshots, repeating the last one.
type scriptedGetter struct {
	mu    sync.Mutex
	steps []*jobs.Job
	calls int
	err   error
}

func (g *scriptedGetter) GetJob(context.Context, string) (*jobs.Job, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	i := g.calls
	if i >= len(g.steps) {
		i = len(g.steps) - 1
	}
	g.calls++
	return g.steps[i], nil
}

func TestWaitForJobReturnsTerminalJob(t *testing.T) {
	g := &scriptedGetter{steps: []*jobs.Job{
		{ID: "j", Status: jobs.StatusPending},
		{ID: "j", Status: jobs.StatusRunning},
		{ID: "j", Status: jobs.StatusRunning},
		{ID: "j", Status: jobs.StatusRunning, Progress: 50},
		{ID: "j", Status: jobs.StatusCompleted, Progress: 100},
	}}

	var seen []string
	got, err := WaitForJob(context.Background(), g, "j", time.Millisecond, func(j *jobs.Job) {
		seen = append(seen, string(j.Status))
	})
	if err != nil {
		t.Fatalf("WaitForJob returned error: %v", err)
	}
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	want := []string{"pending", "running", "running", "completed"}
	if len(seen) != len(want) {
		t.Fatalf("expected observations %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected observations %v, got %v", want, seen)
		}
	}
	if g.calls != 5 {
		t.Fatalf("expected 5 polls, got %d", g.calls)
	}
}

func TestWaitForJobStopsOnError(t *testing.T) {
	boom := errors.New("gone")
	g := &scriptedGetter{err: boom}
	if _, err := WaitForJob(context.Background(), g, "j", time.Millisecond, nil); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestWaitForJobHonoursContext(t *testing.T) {
	g := &scriptedGetter{steps: []*jobs.Job{{ID: "j", Status: jobs.StatusRunning}}}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	last, err := WaitForJob(ctx, g, "j", 5*time.Millisecond, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if last == nil || last.Status != jobs.StatusRunning {
		t.Fatalf("expected last snapshot, got %+v", last)
	}
}

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bedrockmate/internal/compute"
	"bedrockmate/internal/jobs"
	"bedrockmate/internal/logger"
	"bedrockmate/internal/queue"
	"bedrockmate/internal/store"
	"bedrockmate/internal/store/memory"
	"bedrockmate/internal/worlds"
)

// manualBackend records ids and lets the test decide when they run.
type manualBackend struct {
	mu      sync.Mutex
	ids     []string
	err     error
	handler queue.Handler
	drop    queue.DropHandler
	stopped bool
}

func (b *manualBackend) Start(h queue.Handler, drop queue.DropHandler) error {
	b.handler, b.drop = h, drop
	return nil
}

func (b *manualBackend) Stop()              { b.stopped = true }
func (b *manualBackend) Stats() queue.Stats { return queue.Stats{Backend: "manual", Queued: len(b.ids)} }

func (b *manualBackend) Enqueue(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.ids = append(b.ids, id)
	return nil
}

// fakeStrategy returns a canned result or error and can observe the store.
type fakeStrategy struct {
	long    bool
	result  json.RawMessage
	err     error
	panicky bool
	observe func(ctx context.Context, seed string, p jobs.Params)
}

func (f *fakeStrategy) LongRunning() bool { return f.long }

func (f *fakeStrategy) Compute(ctx context.Context, seed string, p jobs.Params) (json.RawMessage, error) {
	if f.panicky {
		panic("strategy exploded")
	}
	if f.observe != nil {
		f.observe(ctx, seed, p)
	}
	return f.result, f.err
}

type fixture struct {
	store   *memory.Store
	backend *manualBackend
	engine  *fakeStrategy
	d       *Dispatcher
	world   *worlds.World
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s := memory.New()
	w, err := s.CreateWorld(context.Background(), worlds.Input{Name: "main", Seed: "12345"})
	if err != nil {
		t.Fatalf("CreateWorld returned error: %v", err)
	}
	engine := &fakeStrategy{long: true, result: json.RawMessage(`{"structures":[]}`)}
	b := &manualBackend{}
	d := New(s, s, compute.NewRegistry(engine), b, opts...)
	if err := d.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	return &fixture{store: s, backend: b, engine: engine, d: d, world: w}
}

func (f *fixture) job(t *testing.T, id string) *jobs.Job {
	t.Helper()
	j, err := f.store.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJob(%s) returned error: %v", id, err)
	}
	return j
}

func (f *fixture) jobCount(t *testing.T) int {
	t.Helper()
	list, err := f.store.ListJobs(context.Background(), store.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	return len(list)
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	f := newFixture(t)
	j, err := f.d.Submit(context.Background(), f.world.ID, jobs.TypeStructures, json.RawMessage(`{"center_x":5}`))
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if j.Status != jobs.StatusPending || j.Progress != 0 || j.Result != nil || j.ErrorMessage != "" {
		t.Fatalf("unexpected submitted job %+v", j)
	}

	stored := f.job(t, j.ID)
	if stored.Status != jobs.StatusPending || stored.StartedAt != nil {
		t.Fatalf("unexpected stored job %+v", stored)
	}
	var params map[string]any
	if err := json.Unmarshal(stored.Parameters, &params); err != nil {
		t.Fatalf("stored parameters are not JSON: %v", err)
	}
	if params["structure_type"] != "all" || params["radius"] != float64(5000) || params["center_x"] != float64(5) {
		t.Fatalf("parameters were not normalized: %s", stored.Parameters)
	}
	if len(f.backend.ids) != 1 || f.backend.ids[0] != j.ID {
		t.Fatalf("expected job to be enqueued, got %v", f.backend.ids)
	}
}

func TestSubmitRejections(t *testing.T) {
	cases := []struct {
		name    string
		world   func(f *fixture) string
		typ     jobs.Type
		params  string
		want    error
		backend error
	}{
		{"unknown type", func(f *fixture) string { return f.world.ID }, "dungeon", `{}`, jobs.ErrUnknownJobType, nil},
		{"missing world", func(*fixture) string { return "nope" }, jobs.TypeBiome, `{}`, jobs.ErrWorldNotFound, nil},
		{"invalid params", func(f *fixture) string { return f.world.ID }, jobs.TypeBiome, `{"radius":`, jobs.ErrInvalidParameters, nil},
		{"queue full", func(f *fixture) string { return f.world.ID }, jobs.TypeSlimeMap, ``, queue.ErrQueueFull, queue.ErrQueueFull},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.backend.err = tc.backend
			_, err := f.d.Submit(context.Background(), tc.world(f), tc.typ, json.RawMessage(tc.params))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if n := f.jobCount(t); n != 0 {
				t.Fatalf("expected no job record, found %d", n)
			}
		})
	}
}

func TestSubmitRateLimited(t *testing.T) {
	f := newFixture(t, WithRateLimit(0.001, 2))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.d.Submit(ctx, f.world.ID, jobs.TypeSlimeMap, nil); err != nil {
			t.Fatalf("submission %d returned error: %v", i, err)
		}
	}
	if _, err := f.d.Submit(ctx, f.world.ID, jobs.TypeSlimeMap, nil); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if n := f.jobCount(t); n != 2 {
		t.Fatalf("expected 2 jobs, got %d", n)
	}
}

func TestExecuteCompletesLongRunningJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j, _ := f.d.Submit(ctx, f.world.ID, jobs.TypeBiome, json.RawMessage(`{"target":"mesa"}`))

	var during *jobs.Job
	f.engine.observe = func(_ context.Context, seed string, p jobs.Params) {
		during = f.job(t, j.ID)
		if seed != "12345" || p.Filter() != "mesa" || p.Area().Radius != 10000 {
			t.Errorf("strategy got seed %q params %+v", seed, p)
		}
	}
	f.engine.result = json.RawMessage(`{"biome":"mesa","x":1}`)

	f.d.Execute(ctx, j.ID)

	if during == nil || during.Status != jobs.StatusRunning || during.Progress != 50 || during.StartedAt == nil {
		t.Fatalf("expected running at 50%% during compute, got %+v", during)
	}
	done := f.job(t, j.ID)
	if done.Status != jobs.StatusCompleted || done.Progress != 100 || string(done.Result) != `{"biome":"mesa","x":1}` {
		t.Fatalf("unexpected completed job %+v", done)
	}
	if done.ErrorMessage != "" || done.CompletedAt == nil {
		t.Fatalf("completed job must have completed_at and no error: %+v", done)
	}
}

func TestExecuteSlimeMapRunsInProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j, _ := f.d.Submit(ctx, f.world.ID, jobs.TypeSlimeMap, json.RawMessage(`{"radius":0}`))
	f.d.Execute(ctx, j.ID)

	done := f.job(t, j.ID)
	if done.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %+v", done)
	}
	var res compute.SlimeMapResult
	if err := json.Unmarshal(done.Result, &res); err != nil {
		t.Fatalf("result is not a slime map: %v", err)
	}
	if len(res.SlimeChunks) != 1 || res.SlimeChunks[0] != (compute.ChunkCenter{X: 8, Z: 8}) {
		t.Fatalf("unexpected slime chunks %+v", res.SlimeChunks)
	}
}

func TestExecuteFailures(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, f *fixture) string
		want  string
	}{
		{
			name: "world deleted after submit",
			setup: func(t *testing.T, f *fixture) string {
				j, _ := f.d.Submit(context.Background(), f.world.ID, jobs.TypeStructures, nil)
				f.store.DeleteWorld(context.Background(), f.world.ID)
				return j.ID
			},
			want: "World not found",
		},
		{
			name: "engine failure",
			setup: func(t *testing.T, f *fixture) string {
				f.engine.err = fmt.Errorf("%w: bad seed", compute.ErrExternalFailure)
				j, _ := f.d.Submit(context.Background(), f.world.ID, jobs.TypeStructures, nil)
				return j.ID
			},
			want: "CLI error: bad seed",
		},
		{
			name: "engine timeout",
			setup: func(t *testing.T, f *fixture) string {
				f.engine.err = fmt.Errorf("%w: engine exceeded 5m0s", compute.ErrExternalTimeout)
				j, _ := f.d.Submit(context.Background(), f.world.ID, jobs.TypeBiome, nil)
				return j.ID
			},
			want: "CLI timeout",
		},
		{
			name: "corrupt stored parameters",
			setup: func(t *testing.T, f *fixture) string {
				j, _ := f.store.CreateJob(context.Background(), f.world.ID, jobs.TypeBiome, json.RawMessage(`{"radius":"far"}`))
				return j.ID
			},
			want: "invalid parameters",
		},
		{
			name: "no strategy registered",
			setup: func(t *testing.T, f *fixture) string {
				delete(f.d.strategies, jobs.TypeBiome)
				j, _ := f.d.Submit(context.Background(), f.world.ID, jobs.TypeBiome, nil)
				return j.ID
			},
			want: "unsupported job type",
		},
		{
			name: "strategy panics",
			setup: func(t *testing.T, f *fixture) string {
				f.engine.panicky = true
				j, _ := f.d.Submit(context.Background(), f.world.ID, jobs.TypeStructures, nil)
				return j.ID
			},
			want: "internal error: strategy exploded",
		},
		{
			name: "empty result",
			setup: func(t *testing.T, f *fixture) string {
				f.engine.result = nil
				j, _ := f.d.Submit(context.Background(), f.world.ID, jobs.TypeStructures, nil)
				return j.ID
			},
			want: "computation returned no result",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			id := tc.setup(t, f)
			f.d.Execute(context.Background(), id)

			j := f.job(t, id)
			if j.Status != jobs.StatusFailed {
				t.Fatalf("expected failed, got %+v", j)
			}
			if !strings.HasPrefix(j.ErrorMessage, tc.want) {
				t.Fatalf("expected error starting with %q, got %q", tc.want, j.ErrorMessage)
			}
			if j.Result != nil || j.CompletedAt == nil || j.StartedAt == nil {
				t.Fatalf("failed job must have timestamps and no result: %+v", j)
			}
		})
	}
}

func TestExecuteMissingJobIsNoop(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture(t, WithLogger(logger.NewFromZap(zap.New(core))))

	f.d.Execute(context.Background(), "does-not-exist")

	if n := f.jobCount(t); n != 0 {
		t.Fatalf("expected no jobs, got %d", n)
	}
	if logs.FilterMessage("job removed before execution").Len() != 1 {
		t.Fatalf("expected a debug entry for the vanished job")
	}
}

func TestExecuteJobDeletedMidFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j, _ := f.d.Submit(ctx, f.world.ID, jobs.TypeStructures, nil)
	f.engine.observe = func(context.Context, string, jobs.Params) {
		f.store.DeleteJob(ctx, j.ID)
	}
	f.d.Execute(ctx, j.ID)
	if _, err := f.store.GetJob(ctx, j.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted job reappeared: %v", err)
	}
}

func TestExecuteTwiceKeepsTerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j, _ := f.d.Submit(ctx, f.world.ID, jobs.TypeStructures, nil)
	f.d.Execute(ctx, j.ID)
	first := f.job(t, j.ID)

	time.Sleep(5 * time.Millisecond)
	f.engine.result = json.RawMessage(`{"second":true}`)
	f.d.Execute(ctx, j.ID)

	again := f.job(t, j.ID)
	if again.Status != jobs.StatusCompleted || !again.CompletedAt.Equal(*first.CompletedAt) || string(again.Result) != string(first.Result) {
		t.Fatalf("terminal job changed: before %+v after %+v", first, again)
	}
}

func TestAbandonFailsQueuedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j, err := f.d.Submit(ctx, f.world.ID, jobs.TypeStructures, nil)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	f.backend.drop(j.ID)

	got := f.job(t, j.ID)
	if got.Status != jobs.StatusFailed || got.ErrorMessage != ShutdownFailure || got.CompletedAt == nil {
		t.Fatalf("expected dropped job to fail with %q, got %+v", ShutdownFailure, got)
	}
}

func TestAbandonLeavesSettledJobsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	done, _ := f.d.Submit(ctx, f.world.ID, jobs.TypeStructures, nil)
	f.d.Execute(ctx, done.ID)
	gone, _ := f.d.Submit(ctx, f.world.ID, jobs.TypeStructures, nil)
	f.store.DeleteJob(ctx, gone.ID)

	f.d.Abandon(done.ID)
	f.d.Abandon(gone.ID)

	if got := f.job(t, done.ID); got.Status != jobs.StatusCompleted || got.ErrorMessage != "" {
		t.Fatalf("completed job changed: %+v", got)
	}
	if _, err := f.store.GetJob(ctx, gone.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted job reappeared: %v", err)
	}
}

// seedEcho returns a result naming the seed it was given.
type seedEcho struct{ delay time.Duration }

func (seedEcho) LongRunning() bool { return true }

func (s seedEcho) Compute(ctx context.Context, seed string, _ jobs.Params) (json.RawMessage, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return json.Marshal(map[string]string{"seed": seed})
}

func TestConcurrentJobsStayIndependent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	a, _ := s.CreateWorld(ctx, worlds.Input{Name: "a", Seed: "111"})
	b, _ := s.CreateWorld(ctx, worlds.Input{Name: "b", Seed: "222"})

	pool, err := queue.NewPool(queue.PoolConfig{Workers: 4, Capacity: 16}, nil)
	if err != nil {
		t.Fatalf("NewPool returned error: %v", err)
	}
	d := New(s, s, compute.NewRegistry(seedEcho{delay: 50 * time.Millisecond}), pool)
	if err := d.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer d.Stop()

	want := map[string]string{}
	for i := 0; i < 3; i++ {
		for _, w := range []*worlds.World{a, b} {
			j, err := d.Submit(ctx, w.ID, jobs.TypeBiome, nil)
			if err != nil {
				t.Fatalf("Submit returned error: %v", err)
			}
			want[j.ID] = w.Seed
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for id, seed := range want {
		for {
			j, err := s.GetJob(ctx, id)
			if err != nil {
				t.Fatalf("GetJob returned error: %v", err)
			}
			if j.Done() {
				var res map[string]string
				if j.Status != jobs.StatusCompleted || json.Unmarshal(j.Result, &res) != nil || res["seed"] != seed {
					t.Fatalf("job %s: expected result for seed %s, got %+v", id, seed, j)
				}
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %s never finished", id)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	if st := d.Stats(); st.Submitted != 6 {
		t.Fatalf("expected 6 submissions, got %+v", st)
	}
}

func TestStopSettlesQueuedJobs(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	w, _ := s.CreateWorld(ctx, worlds.Input{Name: "main", Seed: "1"})

	pool, err := queue.NewPool(queue.PoolConfig{Workers: 1, Capacity: 8, DrainTimeout: 50 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("NewPool returned error: %v", err)
	}
	d := New(s, s, compute.NewRegistry(seedEcho{delay: time.Minute}), pool)
	if err := d.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		j, err := d.Submit(ctx, w.ID, jobs.TypeBiome, nil)
		if err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
		ids = append(ids, j.ID)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		j, _ := s.GetJob(ctx, ids[0])
		if j.Status == jobs.StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first job never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	d.Stop()

	// The cancelled job records its own failure once its handler returns.
	deadline = time.Now().Add(5 * time.Second)
	for {
		j, _ := s.GetJob(ctx, ids[0])
		if j.Status == jobs.StatusFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cancelled job should fail, got %+v", j)
		}
		time.Sleep(5 * time.Millisecond)
	}
	for _, id := range ids[1:] {
		j, _ := s.GetJob(ctx, id)
		if j.Status != jobs.StatusFailed || j.ErrorMessage != ShutdownFailure {
			t.Fatalf("queued job %s was not settled: %+v", id, j)
		}
	}
}

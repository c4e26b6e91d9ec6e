package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"bedrockmate/internal/api"
	"bedrockmate/internal/bookmarks"
	"bedrockmate/internal/client"
	"bedrockmate/internal/compute"
	"bedrockmate/internal/dispatch"
	"bedrockmate/internal/jobs"
	"bedrockmate/internal/queue"
	"bedrockmate/internal/store/memory"
	"bedrockmate/internal/worlds"
)

type cannedEngine struct{}

func (cannedEngine) LongRunning() bool { return true }

func (cannedEngine) Compute(_ context.Context, seed string, p jobs.Params) (json.RawMessage, error) {
	return json.Marshal(map[string]any{"seed": seed, "filter": p.Filter()})
}

func newServer(t *testing.T) *client.Client {
	t.Helper()
	s := memory.New()
	pool, err := queue.NewPool(queue.PoolConfig{Workers: 2, Capacity: 8}, nil)
	if err != nil {
		t.Fatalf("NewPool returned error: %v", err)
	}
	d := dispatch.New(s, s, compute.NewRegistry(cannedEngine{}), pool)
	if err := d.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(d.Stop)

	srv := httptest.NewServer(api.NewServer(api.Config{PollInterval: 10 * time.Millisecond}, d, s, s, s, nil).Handler())
	t.Cleanup(srv.Close)
	return client.New(srv.URL)
}

func TestClientEndToEnd(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	health, err := c.Health(ctx)
	if err != nil || health["status"] != "ok" {
		t.Fatalf("unexpected health %v (%v)", health, err)
	}

	w, err := c.CreateWorld(ctx, worlds.Input{Name: "main", Seed: "-99"})
	if err != nil {
		t.Fatalf("CreateWorld returned error: %v", err)
	}
	if err := c.ActivateWorld(ctx, w.ID); err != nil {
		t.Fatalf("ActivateWorld returned error: %v", err)
	}
	active, err := c.ActiveWorld(ctx)
	if err != nil || active == nil || active.ID != w.ID {
		t.Fatalf("unexpected active world %+v (%v)", active, err)
	}

	j, err := c.SubmitJob(ctx, client.SubmitRequest{
		WorldID:    w.ID,
		JobType:    jobs.TypeStructures,
		Parameters: json.RawMessage(`{"structure_type":"village"}`),
	})
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	if j.Status != jobs.StatusPending {
		t.Fatalf("expected pending job, got %s", j.Status)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	done, err := c.WaitForJob(waitCtx, j.ID, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("WaitForJob returned error: %v", err)
	}
	var res map[string]string
	if done.Status != jobs.StatusCompleted || json.Unmarshal(done.Result, &res) != nil {
		t.Fatalf("unexpected final job %+v", done)
	}
	if res["seed"] != "-99" || res["filter"] != "village" {
		t.Fatalf("unexpected result %v", res)
	}

	list, err := c.ListJobs(ctx, w.ID, jobs.StatusCompleted)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one completed job, got %d (%v)", len(list), err)
	}

	if err := c.DeleteJob(ctx, j.ID); err != nil {
		t.Fatalf("DeleteJob returned error: %v", err)
	}
	if _, err := c.GetJob(ctx, j.ID); !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientErrorMapping(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()
	w, _ := c.CreateWorld(ctx, worlds.Input{Name: "x", Seed: "1"})

	_, err := c.SubmitJob(ctx, client.SubmitRequest{WorldID: w.ID, JobType: "dungeon"})
	if !errors.Is(err, client.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "Unknown job type: dungeon" {
		t.Fatalf("unexpected error detail %v", err)
	}

	if _, err := c.SubmitJob(ctx, client.SubmitRequest{WorldID: "missing", JobType: jobs.TypeBiome}); !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := c.CreateWorld(ctx, worlds.Input{Name: "no seed"}); !errors.Is(err, client.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}

	active, err := c.ActiveWorld(ctx)
	if err != nil || active != nil {
		t.Fatalf("expected no active world, got %+v (%v)", active, err)
	}

	types, err := c.JobTypes(ctx)
	if err != nil || len(types) != 3 || types[jobs.TypeSlimeMap].Icon == "" {
		t.Fatalf("unexpected job types %v (%v)", types, err)
	}
}

func TestClientBookmarks(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()
	w, _ := c.CreateWorld(ctx, worlds.Input{Name: "main", Seed: "7"})

	x, z := 320, -1024
	b, err := c.CreateBookmark(ctx, bookmarks.Input{WorldID: w.ID, Name: "village", X: &x, Z: &z, Category: "village"})
	if err != nil {
		t.Fatalf("CreateBookmark returned error: %v", err)
	}
	if b.Y != bookmarks.DefaultY || b.X != 320 {
		t.Fatalf("unexpected bookmark %+v", b)
	}

	name := "trading hall"
	if _, err := c.UpdateBookmark(ctx, b.ID, bookmarks.Patch{Name: &name}); err != nil {
		t.Fatalf("UpdateBookmark returned error: %v", err)
	}
	list, err := c.ListBookmarks(ctx, w.ID)
	if err != nil || len(list) != 1 || list[0].Name != name {
		t.Fatalf("unexpected bookmarks %+v (%v)", list, err)
	}

	// Deleting the world takes its bookmarks with it.
	if err := c.DeleteWorld(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWorld returned error: %v", err)
	}
	if _, err := c.GetBookmark(ctx, b.ID); !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.DeleteBookmark(ctx, b.ID); !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

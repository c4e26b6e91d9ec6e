// Package storetest is a conformance suite run against every store.Store
// backend.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"bedrockmate/internal/bookmarks"
	"bedrockmate/internal/jobs"
	"bedrockmate/internal/store"
	"bedrockmate/internal/worlds"
)

// Run exercises s. The store must be empty and migrated.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("JobLifecycle", func(t *testing.T) { testJobLifecycle(t, newStore(t)) })
	t.Run("RejectedTransitions", func(t *testing.T) { testRejectedTransitions(t, newStore(t)) })
	t.Run("MissingJob", func(t *testing.T) { testMissingJob(t, newStore(t)) })
	t.Run("ListJobs", func(t *testing.T) { testListJobs(t, newStore(t)) })
	t.Run("ConcurrentTransitions", func(t *testing.T) { testConcurrentTransitions(t, newStore(t)) })
	t.Run("Worlds", func(t *testing.T) { testWorlds(t, newStore(t)) })
	t.Run("ActivateWorld", func(t *testing.T) { testActivateWorld(t, newStore(t)) })
	t.Run("Bookmarks", func(t *testing.T) { testBookmarks(t, newStore(t)) })
	t.Run("DeleteWorldCascades", func(t *testing.T) { testDeleteWorldCascades(t, newStore(t)) })
}

func mustUpdate(t *testing.T, s store.Store, id string, tr jobs.Transition, want bool) {
	t.Helper()
	applied, err := s.UpdateJobStatus(context.Background(), id, tr)
	if err != nil {
		t.Fatalf("UpdateJobStatus(%s) returned error: %v", tr.To, err)
	}
	if applied != want {
		t.Fatalf("UpdateJobStatus(%s): expected applied=%v, got %v", tr.To, want, applied)
	}
}

func testJobLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	params := json.RawMessage(`{"center_x":1,"center_z":2,"radius":3}`)

	created, err := s.CreateJob(ctx, "world-1", jobs.TypeSlimeMap, params)
	if err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	if created.ID == "" || created.Status != jobs.StatusPending || created.Progress != 0 {
		t.Fatalf("unexpected created job %+v", created)
	}

	got, err := s.GetJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if got.WorldID != "world-1" || got.Type != jobs.TypeSlimeMap || got.StartedAt != nil || got.CompletedAt != nil {
		t.Fatalf("unexpected stored job %+v", got)
	}
	if got.Result != nil || got.ErrorMessage != "" {
		t.Fatalf("pending job must carry neither result nor error: %+v", got)
	}
	var decoded map[string]int
	if err := json.Unmarshal(got.Parameters, &decoded); err != nil || decoded["radius"] != 3 {
		t.Fatalf("parameters not preserved: %s (%v)", got.Parameters, err)
	}

	mustUpdate(t, s, created.ID, jobs.Start(), true)
	mustUpdate(t, s, created.ID, jobs.ReportProgress(50), true)

	running, _ := s.GetJob(ctx, created.ID)
	if running.Status != jobs.StatusRunning || running.Progress != 50 || running.StartedAt == nil {
		t.Fatalf("unexpected running job %+v", running)
	}

	mustUpdate(t, s, created.ID, jobs.Complete(json.RawMessage(`{"slime_chunks":[]}`)), true)
	done, _ := s.GetJob(ctx, created.ID)
	if done.Status != jobs.StatusCompleted || done.Progress != 100 || done.CompletedAt == nil {
		t.Fatalf("unexpected completed job %+v", done)
	}
	if string(done.Result) != `{"slime_chunks":[]}` || done.ErrorMessage != "" {
		t.Fatalf("unexpected result %s / %q", done.Result, done.ErrorMessage)
	}
	if done.StartedAt.After(*done.CompletedAt) || done.CreatedAt.After(*done.StartedAt) {
		t.Fatalf("timestamps out of order: %+v", done)
	}

	// A repeated terminal commit is rejected and leaves the record untouched.
	time.Sleep(5 * time.Millisecond)
	mustUpdate(t, s, created.ID, jobs.Complete(json.RawMessage(`{"other":true}`)), false)
	mustUpdate(t, s, created.ID, jobs.Fail("late"), false)
	again, _ := s.GetJob(ctx, created.ID)
	if !again.CompletedAt.Equal(*done.CompletedAt) || string(again.Result) != string(done.Result) || again.ErrorMessage != "" {
		t.Fatalf("terminal job changed: before %+v after %+v", done, again)
	}

	deleted, err := s.DeleteJob(ctx, created.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteJob: applied=%v err=%v", deleted, err)
	}
	if _, err := s.GetJob(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func testRejectedTransitions(t *testing.T, s store.Store) {
	ctx := context.Background()
	j, err := s.CreateJob(ctx, "w", jobs.TypeBiome, nil)
	if err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	mustUpdate(t, s, j.ID, jobs.Complete(json.RawMessage(`{}`)), false)
	mustUpdate(t, s, j.ID, jobs.Fail("nope"), false)

	if _, err := s.UpdateJobStatus(ctx, j.ID, jobs.Transition{To: jobs.StatusPending}); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	mustUpdate(t, s, j.ID, jobs.Start(), true)
	mustUpdate(t, s, j.ID, jobs.Fail("engine exploded"), true)
	mustUpdate(t, s, j.ID, jobs.Start(), false)

	got, _ := s.GetJob(ctx, j.ID)
	if got.Status != jobs.StatusFailed || got.ErrorMessage != "engine exploded" || got.Result != nil || got.CompletedAt == nil {
		t.Fatalf("unexpected failed job %+v", got)
	}
	if got.Parameters != nil {
		t.Fatalf("expected nil parameters, got %s", got.Parameters)
	}
}

func testMissingJob(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	mustUpdate(t, s, "missing", jobs.Start(), false)
	deleted, err := s.DeleteJob(ctx, "missing")
	if err != nil || deleted {
		t.Fatalf("DeleteJob(missing): applied=%v err=%v", deleted, err)
	}
}

func testListJobs(t *testing.T, s store.Store) {
	ctx := context.Background()
	var ids []string
	for i, w := range []string{"a", "b", "a", "a"} {
		j, err := s.CreateJob(ctx, w, jobs.TypeSlimeMap, nil)
		if err != nil {
			t.Fatalf("CreateJob %d returned error: %v", i, err)
		}
		ids = append(ids, j.ID)
	}
	mustUpdate(t, s, ids[2], jobs.Start(), true)

	all, err := s.ListJobs(ctx, store.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	if len(all) != 4 || all[0].ID != ids[3] || all[3].ID != ids[0] {
		t.Fatalf("expected newest first, got %v", jobIDs(all))
	}

	inA, _ := s.ListJobs(ctx, store.JobFilter{WorldID: "a"})
	if len(inA) != 3 {
		t.Fatalf("expected 3 jobs in world a, got %d", len(inA))
	}

	running, _ := s.ListJobs(ctx, store.JobFilter{WorldID: "a", Status: jobs.StatusRunning})
	if len(running) != 1 || running[0].ID != ids[2] {
		t.Fatalf("expected only %s running, got %v", ids[2], jobIDs(running))
	}

	limited, _ := s.ListJobs(ctx, store.JobFilter{Limit: 2})
	if len(limited) != 2 || limited[0].ID != ids[3] {
		t.Fatalf("unexpected limited list %v", jobIDs(limited))
	}

	none, err := s.ListJobs(ctx, store.JobFilter{WorldID: "zzz"})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %v (%v)", jobIDs(none), err)
	}
}

func testConcurrentTransitions(t *testing.T, s store.Store) {
	ctx := context.Background()
	j, err := s.CreateJob(ctx, "w", jobs.TypeStructures, nil)
	if err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	mustUpdate(t, s, j.ID, jobs.Start(), true)

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.UpdateJobStatus(ctx, j.ID, jobs.Complete(json.RawMessage(`{"n":1}`)))
			if err != nil {
				t.Errorf("racer %d: %v", i, err)
				return
			}
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if applied != 1 {
		t.Fatalf("expected exactly one terminal commit, got %d", applied)
	}
}

func testWorlds(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.CreateWorld(ctx, worlds.Input{Name: "no seed"}); !errors.Is(err, worlds.ErrInvalidWorld) {
		t.Fatalf("expected ErrInvalidWorld, got %v", err)
	}

	first, err := s.CreateWorld(ctx, worlds.Input{Name: "Survival", Seed: "-4172144997902289642", Description: "main"})
	if err != nil {
		t.Fatalf("CreateWorld returned error: %v", err)
	}
	second, err := s.CreateWorld(ctx, worlds.Input{Name: "Creative", Seed: "42"})
	if err != nil {
		t.Fatalf("CreateWorld returned error: %v", err)
	}

	got, err := s.GetWorld(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetWorld returned error: %v", err)
	}
	if got.Seed != "-4172144997902289642" || got.Name != "Survival" || got.Description != "main" || got.IsActive {
		t.Fatalf("unexpected world %+v", got)
	}

	list, err := s.ListWorlds(ctx)
	if err != nil || len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("unexpected world list %+v (%v)", list, err)
	}

	name := "Hardcore"
	updated, err := s.UpdateWorld(ctx, first.ID, worlds.Patch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateWorld returned error: %v", err)
	}
	if updated.Name != "Hardcore" || updated.Seed != first.Seed {
		t.Fatalf("unexpected updated world %+v", updated)
	}
	empty := ""
	if _, err := s.UpdateWorld(ctx, first.ID, worlds.Patch{Seed: &empty}); !errors.Is(err, worlds.ErrInvalidWorld) {
		t.Fatalf("expected ErrInvalidWorld, got %v", err)
	}
	if _, err := s.UpdateWorld(ctx, "missing", worlds.Patch{Name: &name}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	reread, _ := s.GetWorld(ctx, first.ID)
	if reread.Seed != first.Seed {
		t.Fatalf("rejected patch leaked into store: %+v", reread)
	}

	deleted, err := s.DeleteWorld(ctx, first.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteWorld: applied=%v err=%v", deleted, err)
	}
	if _, err := s.GetWorld(ctx, first.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if deleted, _ := s.DeleteWorld(ctx, first.ID); deleted {
		t.Fatalf("second delete should not apply")
	}
}

func testActivateWorld(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.ActiveWorld(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no active world, got %v", err)
	}
	a, _ := s.CreateWorld(ctx, worlds.Input{Name: "a", Seed: "1"})
	b, _ := s.CreateWorld(ctx, worlds.Input{Name: "b", Seed: "2"})

	if err := s.ActivateWorld(ctx, a.ID); err != nil {
		t.Fatalf("ActivateWorld returned error: %v", err)
	}
	if err := s.ActivateWorld(ctx, b.ID); err != nil {
		t.Fatalf("ActivateWorld returned error: %v", err)
	}
	active, err := s.ActiveWorld(ctx)
	if err != nil || active.ID != b.ID {
		t.Fatalf("expected %s active, got %+v (%v)", b.ID, active, err)
	}
	prev, _ := s.GetWorld(ctx, a.ID)
	if prev.IsActive {
		t.Fatalf("previous world still active")
	}
	if err := s.ActivateWorld(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	still, _ := s.ActiveWorld(ctx)
	if still == nil || still.ID != b.ID {
		t.Fatalf("failed activation changed the active world")
	}
}

func jobIDs(list []*jobs.Job) []string {
	out := make([]string, len(list))
	for i, j := range list {
		out[i] = j.ID
	}
	return out
}

func intp(v int) *int { return &v }

func testBookmarks(t *testing.T, s store.Store) {
	ctx := context.Background()
	w, err := s.CreateWorld(ctx, worlds.Input{Name: "Survival", Seed: "1"})
	if err != nil {
		t.Fatalf("CreateWorld returned error: %v", err)
	}

	if _, err := s.CreateBookmark(ctx, bookmarks.Input{WorldID: w.ID, Name: "no z", X: intp(1)}); !errors.Is(err, bookmarks.ErrInvalidBookmark) {
		t.Fatalf("expected ErrInvalidBookmark, got %v", err)
	}
	if _, err := s.CreateBookmark(ctx, bookmarks.Input{WorldID: "missing", Name: "x", X: intp(1), Z: intp(1)}); !errors.Is(err, bookmarks.ErrWorldNotFound) {
		t.Fatalf("expected ErrWorldNotFound, got %v", err)
	}

	home, err := s.CreateBookmark(ctx, bookmarks.Input{WorldID: w.ID, Name: "home", X: intp(120), Z: intp(-340), Category: "base"})
	if err != nil {
		t.Fatalf("CreateBookmark returned error: %v", err)
	}
	if home.Y != bookmarks.DefaultY || home.Dimension != bookmarks.Overworld || home.Icon != bookmarks.DefaultIcon {
		t.Fatalf("defaults not applied: %+v", home)
	}
	portal, _ := s.CreateBookmark(ctx, bookmarks.Input{WorldID: w.ID, Name: "hub", X: intp(15), Y: intp(70), Z: intp(-42), Dimension: bookmarks.Nether, Category: "portal"})
	farm, _ := s.CreateBookmark(ctx, bookmarks.Input{WorldID: w.ID, Name: "alpha farm", X: intp(0), Z: intp(0), Category: "base"})
	loose, _ := s.CreateBookmark(ctx, bookmarks.Input{WorldID: w.ID, Name: "cave", X: intp(5), Z: intp(5)})

	got, err := s.GetBookmark(ctx, portal.ID)
	if err != nil {
		t.Fatalf("GetBookmark returned error: %v", err)
	}
	if got.Y != 70 || got.Dimension != bookmarks.Nether || got.WorldID != w.ID || got.Z != -42 {
		t.Fatalf("unexpected bookmark %+v", got)
	}

	list, err := s.ListBookmarks(ctx, w.ID)
	if err != nil {
		t.Fatalf("ListBookmarks returned error: %v", err)
	}
	want := []string{loose.ID, farm.ID, home.ID, portal.ID}
	if len(list) != len(want) {
		t.Fatalf("expected %d bookmarks, got %d", len(want), len(list))
	}
	for i, b := range list {
		if b.ID != want[i] {
			t.Fatalf("bookmark %d: expected id %s, got %s (%s)", i, want[i], b.ID, b.Name)
		}
	}
	if other, _ := s.ListBookmarks(ctx, "elsewhere"); len(other) != 0 {
		t.Fatalf("expected no bookmarks for unknown world, got %d", len(other))
	}

	notes := "bed + chest"
	updated, err := s.UpdateBookmark(ctx, home.ID, bookmarks.Patch{Notes: &notes, Y: intp(80)})
	if err != nil {
		t.Fatalf("UpdateBookmark returned error: %v", err)
	}
	if updated.Notes != notes || updated.Y != 80 || updated.X != 120 || updated.Name != "home" {
		t.Fatalf("unexpected updated bookmark %+v", updated)
	}
	empty := ""
	if _, err := s.UpdateBookmark(ctx, home.ID, bookmarks.Patch{Name: &empty}); !errors.Is(err, bookmarks.ErrInvalidBookmark) {
		t.Fatalf("expected ErrInvalidBookmark, got %v", err)
	}
	if reread, _ := s.GetBookmark(ctx, home.ID); reread.Name != "home" {
		t.Fatalf("rejected patch leaked into store: %+v", reread)
	}
	if _, err := s.UpdateBookmark(ctx, "missing", bookmarks.Patch{Notes: &notes}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if deleted, err := s.DeleteBookmark(ctx, home.ID); err != nil || !deleted {
		t.Fatalf("DeleteBookmark: applied=%v err=%v", deleted, err)
	}
	if _, err := s.GetBookmark(ctx, home.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if deleted, _ := s.DeleteBookmark(ctx, home.ID); deleted {
		t.Fatalf("second delete should not apply")
	}
}

func testDeleteWorldCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	doomed, _ := s.CreateWorld(ctx, worlds.Input{Name: "doomed", Seed: "1"})
	kept, _ := s.CreateWorld(ctx, worlds.Input{Name: "kept", Seed: "2"})

	running, _ := s.CreateJob(ctx, doomed.ID, jobs.TypeBiome, nil)
	mustUpdate(t, s, running.ID, jobs.Start(), true)
	pending, _ := s.CreateJob(ctx, doomed.ID, jobs.TypeSlimeMap, nil)
	other, _ := s.CreateJob(ctx, kept.ID, jobs.TypeSlimeMap, nil)
	mark, _ := s.CreateBookmark(ctx, bookmarks.Input{WorldID: doomed.ID, Name: "spawn", X: intp(0), Z: intp(0)})
	keptMark, _ := s.CreateBookmark(ctx, bookmarks.Input{WorldID: kept.ID, Name: "spawn", X: intp(0), Z: intp(0)})

	if deleted, err := s.DeleteWorld(ctx, doomed.ID); err != nil || !deleted {
		t.Fatalf("DeleteWorld: applied=%v err=%v", deleted, err)
	}
	for _, id := range []string{running.ID, pending.ID} {
		if _, err := s.GetJob(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("job %s should be deleted with its world, got %v", id, err)
		}
	}
	if _, err := s.GetBookmark(ctx, mark.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("bookmark should be deleted with its world, got %v", err)
	}

	// The running job's eventual commit is a no-op.
	mustUpdate(t, s, running.ID, jobs.Complete(json.RawMessage(`{}`)), false)

	if _, err := s.GetJob(ctx, other.ID); err != nil {
		t.Fatalf("job of another world was removed: %v", err)
	}
	if _, err := s.GetBookmark(ctx, keptMark.ID); err != nil {
		t.Fatalf("bookmark of another world was removed: %v", err)
	}
}

// Package memory is an in-process store.Store. It is safe for concurrent use
// and loses everything on exit.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bedrockmate/internal/bookmarks"
	"bedrockmate/internal/jobs"
	"bedrockmate/internal/store"
	"bedrockmate/internal/worlds"
)

var _ store.Store = (*Store)(nil)

type jobEntry struct {
	job *jobs.Job
	seq uint64
}

type worldEntry struct {
	world *worlds.World
	seq   uint64
}

type Store struct {
	mu        sync.RWMutex
	jobs      map[string]jobEntry
	worlds    map[string]worldEntry
	bookmarks map[string]*bookmarks.Bookmark
	seq       uint64
	now       func() time.Time
}

func New() *Store {
	return &Store{
		jobs:      make(map[string]jobEntry),
		worlds:    make(map[string]worldEntry),
		bookmarks: make(map[string]*bookmarks.Bookmark),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *Store) Migrate(context.Context) error { return nil }
func (m *Store) Ping(context.Context) error    { return nil }
func (m *Store) Close() error                  { return nil }

func (m *Store) nextSeq() uint64 {
	m.seq++
	return m.seq
}

// Jobs

func (m *Store) CreateJob(_ context.Context, worldID string, t jobs.Type, params json.RawMessage) (*jobs.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j := &jobs.Job{
		ID:         uuid.NewString(),
		WorldID:    worldID,
		Type:       t,
		Parameters: append(json.RawMessage(nil), params...),
		Status:     jobs.StatusPending,
		CreatedAt:  m.now(),
	}
	m.jobs[j.ID] = jobEntry{job: j, seq: m.nextSeq()}
	return j.Clone(), nil
}

func (m *Store) GetJob(_ context.Context, id string) (*jobs.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.job.Clone(), nil
}

func (m *Store) ListJobs(_ context.Context, f store.JobFilter) ([]*jobs.Job, error) {
	m.mu.RLock()
	entries := make([]jobEntry, 0, len(m.jobs))
	for _, e := range m.jobs {
		if f.WorldID != "" && e.job.WorldID != f.WorldID {
			continue
		}
		if f.Status != "" && e.job.Status != f.Status {
			continue
		}
		entries = append(entries, jobEntry{job: e.job.Clone(), seq: e.seq})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(a, b int) bool { return entries[a].seq > entries[b].seq })
	if f.Limit > 0 && len(entries) > f.Limit {
		entries = entries[:f.Limit]
	}
	out := make([]*jobs.Job, len(entries))
	for i, e := range entries {
		out[i] = e.job
	}
	return out, nil
}

func (m *Store) UpdateJobStatus(_ context.Context, id string, tr jobs.Transition) (bool, error) {
	if err := tr.Validate(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.jobs[id]
	if !ok {
		return false, nil
	}
	return tr.Apply(e.job, m.now()), nil
}

func (m *Store) DeleteJob(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; !ok {
		return false, nil
	}
	delete(m.jobs, id)
	return true, nil
}

// Worlds

func (m *Store) CreateWorld(_ context.Context, in worlds.Input) (*worlds.World, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w := &worlds.World{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Seed:        in.Seed,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.worlds[w.ID] = worldEntry{world: w, seq: m.nextSeq()}
	c := *w
	return &c, nil
}

func (m *Store) GetWorld(_ context.Context, id string) (*worlds.World, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.worlds[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *e.world
	return &c, nil
}

func (m *Store) ListWorlds(context.Context) ([]*worlds.World, error) {
	m.mu.RLock()
	entries := make([]worldEntry, 0, len(m.worlds))
	for _, e := range m.worlds {
		c := *e.world
		entries = append(entries, worldEntry{world: &c, seq: e.seq})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(a, b int) bool { return entries[a].seq > entries[b].seq })
	out := make([]*worlds.World, len(entries))
	for i, e := range entries {
		out[i] = e.world
	}
	return out, nil
}

func (m *Store) UpdateWorld(_ context.Context, id string, p worlds.Patch) (*worlds.World, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.worlds[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := *e.world
	if err := p.Apply(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = m.now()
	*e.world = next
	return &next, nil
}

func (m *Store) ActivateWorld(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.worlds[id]; !ok {
		return store.ErrNotFound
	}
	now := m.now()
	for wid, e := range m.worlds {
		active := wid == id
		if e.world.IsActive != active {
			e.world.IsActive = active
			e.world.UpdatedAt = now
		}
	}
	return nil
}

func (m *Store) ActiveWorld(context.Context) (*worlds.World, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.worlds {
		if e.world.IsActive {
			c := *e.world
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) DeleteWorld(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.worlds[id]; !ok {
		return false, nil
	}
	delete(m.worlds, id)
	for jid, e := range m.jobs {
		if e.job.WorldID == id {
			delete(m.jobs, jid)
		}
	}
	for bid, b := range m.bookmarks {
		if b.WorldID == id {
			delete(m.bookmarks, bid)
		}
	}
	return true, nil
}

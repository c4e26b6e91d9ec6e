// Package store defines the persistence contracts the job engine depends on.
// Every method is a single atomic operation against the backend; callers never
// rely on read-modify-write atomicity across two calls.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"bedrockmate/internal/bookmarks"
	"bedrockmate/internal/jobs"
	"bedrockmate/internal/worlds"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	WorldID string
	Status  jobs.Status
	Limit   int
}

// JobStore persists jobs.
type JobStore interface {
	// CreateJob inserts a pending job with progress 0 and a fresh id.
	CreateJob(ctx context.Context, worldID string, t jobs.Type, params json.RawMessage) (*jobs.Job, error)

	GetJob(ctx context.Context, id string) (*jobs.Job, error)

	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, f JobFilter) ([]*jobs.Job, error)

	// UpdateJobStatus applies tr only if the job exists and its current status is
	// one of tr.Sources(). It reports whether the update was applied.
	UpdateJobStatus(ctx context.Context, id string, tr jobs.Transition) (bool, error)

	DeleteJob(ctx context.Context, id string) (bool, error)
}

// WorldStore persists worlds.
type WorldStore interface {
	CreateWorld(ctx context.Context, in worlds.Input) (*worlds.World, error)
	GetWorld(ctx context.Context, id string) (*worlds.World, error)
	ListWorlds(ctx context.Context) ([]*worlds.World, error)
	UpdateWorld(ctx context.Context, id string, p worlds.Patch) (*worlds.World, error)

	// ActivateWorld marks id as the single active world.
	ActivateWorld(ctx context.Context, id string) error

	// ActiveWorld returns ErrNotFound when no world is active.
	ActiveWorld(ctx context.Context) (*worlds.World, error)

	// DeleteWorld also removes the world's jobs and bookmarks.
	DeleteWorld(ctx context.Context, id string) (bool, error)
}

// BookmarkStore persists bookmarks.
type BookmarkStore interface {
	// CreateBookmark returns bookmarks.ErrWorldNotFound when in.WorldID does
	// not exist.
	CreateBookmark(ctx context.Context, in bookmarks.Input) (*bookmarks.Bookmark, error)
	GetBookmark(ctx context.Context, id string) (*bookmarks.Bookmark, error)

	// ListBookmarks returns a world's bookmarks ordered by category, then name.
	ListBookmarks(ctx context.Context, worldID string) ([]*bookmarks.Bookmark, error)
	UpdateBookmark(ctx context.Context, id string, p bookmarks.Patch) (*bookmarks.Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) (bool, error)
}

// Store is implemented by every backend.
type Store interface {
	JobStore
	WorldStore
	BookmarkStore

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"bedrockmate/internal/bookmarks"
	"bedrockmate/internal/store"
)

func (m *Store) CreateBookmark(_ context.Context, in bookmarks.Input) (*bookmarks.Bookmark, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.worlds[in.WorldID]; !ok {
		return nil, fmt.Errorf("%w: %s", bookmarks.ErrWorldNotFound, in.WorldID)
	}
	b := in.New(uuid.NewString(), m.now())
	m.bookmarks[b.ID] = b
	c := *b
	return &c, nil
}

func (m *Store) GetBookmark(_ context.Context, id string) (*bookmarks.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookmarks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (m *Store) ListBookmarks(_ context.Context, worldID string) ([]*bookmarks.Bookmark, error) {
	m.mu.RLock()
	out := []*bookmarks.Bookmark{}
	for _, b := range m.bookmarks {
		if b.WorldID == worldID {
			c := *b
			out = append(out, &c)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Store) UpdateBookmark(_ context.Context, id string, p bookmarks.Patch) (*bookmarks.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookmarks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := *b
	if err := p.Apply(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = m.now()
	*b = next
	return &next, nil
}

func (m *Store) DeleteBookmark(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookmarks[id]; !ok {
		return false, nil
	}
	delete(m.bookmarks, id)
	return true, nil
}

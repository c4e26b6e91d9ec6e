package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bedrockmate/internal/bookmarks"
	"bedrockmate/internal/store"
)

const bookmarkColumns = `id, world_id, name, x, y, z, dimension, category, icon, notes, created_at, updated_at`

// CreateBookmark checks the world and inserts in one transaction so a
// concurrent DeleteWorld cannot leave the bookmark behind.
func (s *Store) CreateBookmark(ctx context.Context, in bookmarks.Input) (*bookmarks.Bookmark, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.getWorld(ctx, tx, in.WorldID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", bookmarks.ErrWorldNotFound, in.WorldID)
		}
		return nil, err
	}

	b := in.New(uuid.NewString(), s.now())
	query := s.db.Rebind(`INSERT INTO bookmarks (` + bookmarkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, b.ID, b.WorldID, b.Name, b.X, b.Y, b.Z,
		b.Dimension, b.Category, b.Icon, b.Notes, b.CreatedAt, b.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create bookmark: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bookmark: %w", err)
	}
	return b, nil
}

func (s *Store) GetBookmark(ctx context.Context, id string) (*bookmarks.Bookmark, error) {
	return s.getBookmark(ctx, s.db, id)
}

func (s *Store) getBookmark(ctx context.Context, q sqlxQueryer, id string) (*bookmarks.Bookmark, error) {
	var b bookmarks.Bookmark
	query := s.db.Rebind(`SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE id = ?`)
	if err := q.GetContext(ctx, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}
	normalizeBookmark(&b)
	return &b, nil
}

func (s *Store) ListBookmarks(ctx context.Context, worldID string) ([]*bookmarks.Bookmark, error) {
	list := []*bookmarks.Bookmark{}
	query := s.db.Rebind(`SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE world_id = ? ORDER BY category, name, seq`)
	if err := s.db.SelectContext(ctx, &list, query, worldID); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	for _, b := range list {
		normalizeBookmark(b)
	}
	return list, nil
}

func (s *Store) UpdateBookmark(ctx context.Context, id string, p bookmarks.Patch) (*bookmarks.Bookmark, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	b, err := s.getBookmark(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(b); err != nil {
		return nil, err
	}
	b.UpdatedAt = s.now()

	query := s.db.Rebind(`UPDATE bookmarks SET name = ?, x = ?, y = ?, z = ?, dimension = ?,
		category = ?, icon = ?, notes = ?, updated_at = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, query, b.Name, b.X, b.Y, b.Z, b.Dimension,
		b.Category, b.Icon, b.Notes, b.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("failed to update bookmark: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bookmark update: %w", err)
	}
	return b, nil
}

func (s *Store) DeleteBookmark(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM bookmarks WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete bookmark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return n > 0, nil
}

func normalizeBookmark(b *bookmarks.Bookmark) {
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
}

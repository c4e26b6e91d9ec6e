package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bedrockmate/internal/store"
	"bedrockmate/internal/worlds"
)

const worldColumns = `id, name, seed, description, is_active, created_at, updated_at`

func (s *Store) CreateWorld(ctx context.Context, in worlds.Input) (*worlds.World, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	w := &worlds.World{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Seed:        in.Seed,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	query := s.db.Rebind(`INSERT INTO worlds (id, name, seed, description, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, w.ID, w.Name, w.Seed, w.Description, false, w.CreatedAt, w.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create world: %w", err)
	}
	return w, nil
}

func (s *Store) GetWorld(ctx context.Context, id string) (*worlds.World, error) {
	return s.getWorld(ctx, s.db, id)
}

func (s *Store) getWorld(ctx context.Context, q sqlxQueryer, id string) (*worlds.World, error) {
	var w worlds.World
	query := s.db.Rebind(`SELECT ` + worldColumns + ` FROM worlds WHERE id = ?`)
	if err := q.GetContext(ctx, &w, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get world: %w", err)
	}
	normalizeWorld(&w)
	return &w, nil
}

func (s *Store) ListWorlds(ctx context.Context) ([]*worlds.World, error) {
	list := []*worlds.World{}
	query := `SELECT ` + worldColumns + ` FROM worlds ORDER BY created_at DESC, seq DESC`
	if err := s.db.SelectContext(ctx, &list, query); err != nil {
		return nil, fmt.Errorf("failed to list worlds: %w", err)
	}
	for _, w := range list {
		normalizeWorld(w)
	}
	return list, nil
}

// UpdateWorld applies p inside a transaction so the patch sees a consistent row.
func (s *Store) UpdateWorld(ctx context.Context, id string, p worlds.Patch) (*worlds.World, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	w, err := s.getWorld(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(w); err != nil {
		return nil, err
	}
	w.UpdatedAt = s.now()

	query := s.db.Rebind(`UPDATE worlds SET name = ?, seed = ?, description = ?, updated_at = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, query, w.Name, w.Seed, w.Description, w.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("failed to update world: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit world update: %w", err)
	}
	return w, nil
}

func (s *Store) ActivateWorld(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	res, err := tx.ExecContext(ctx, s.db.Rebind(`UPDATE worlds SET is_active = ?, updated_at = ? WHERE id = ?`), true, now, id)
	if err != nil {
		return fmt.Errorf("failed to activate world: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to activate world: %w", err)
	} else if n == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(`UPDATE worlds SET is_active = ?, updated_at = ? WHERE id <> ? AND is_active = ?`), false, now, id, true); err != nil {
		return fmt.Errorf("failed to deactivate worlds: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}

func (s *Store) ActiveWorld(ctx context.Context) (*worlds.World, error) {
	var w worlds.World
	query := s.db.Rebind(`SELECT ` + worldColumns + ` FROM worlds WHERE is_active = ? LIMIT 1`)
	if err := s.db.GetContext(ctx, &w, query, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active world: %w", err)
	}
	normalizeWorld(&w)
	return &w, nil
}

// DeleteWorld removes the world with its jobs and bookmarks in one transaction.
func (s *Store) DeleteWorld(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM worlds WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete world: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete world: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	for _, table := range []string{"jobs", "bookmarks"} {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM `+table+` WHERE world_id = ?`), id); err != nil {
			return false, fmt.Errorf("failed to delete world %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit world delete: %w", err)
	}
	return true, nil
}

// sqlxQueryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type sqlxQueryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

func normalizeWorld(w *worlds.World) {
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
}

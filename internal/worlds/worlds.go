// Package worlds holds the world record jobs are scoped to. The job engine
// only ever reads a world's seed.
package worlds

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidWorld = errors.New("invalid world")

type World struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Seed        string    `db:"seed" json:"seed"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Input is the user-supplied part of a world.
type Input struct {
	Name        string `json:"name"`
	Seed        string `json:"seed"`
	Description string `json:"description"`
}

func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.Join(ErrInvalidWorld, errors.New("name is required"))
	}
	if strings.TrimSpace(in.Seed) == "" {
		return errors.Join(ErrInvalidWorld, errors.New("seed is required"))
	}
	return nil
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Name        *string `json:"name"`
	Seed        *string `json:"seed"`
	Description *string `json:"description"`
}

// Apply writes the non-nil fields of p onto w and reports whether the result is
// still valid.
func (p Patch) Apply(w *World) error {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.Seed != nil {
		w.Seed = *p.Seed
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
	return Input{Name: w.Name, Seed: w.Seed}.Validate()
}

// Package bookmarks holds saved coordinates within a world.
package bookmarks

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidBookmark = errors.New("invalid bookmark")
	ErrWorldNotFound   = errors.New("world not found")
)

type Dimension string

const (
	Overworld Dimension = "overworld"
	Nether    Dimension = "nether"
	End       Dimension = "end"
)

func (d Dimension) Valid() bool {
	switch d {
	case Overworld, Nether, End:
		return true
	}
	return false
}

const (
	DefaultY    = 64
	DefaultIcon = "📍"
)

type Bookmark struct {
	ID        string    `db:"id" json:"id"`
	WorldID   string    `db:"world_id" json:"world_id"`
	Name      string    `db:"name" json:"name"`
	X         int       `db:"x" json:"x"`
	Y         int       `db:"y" json:"y"`
	Z         int       `db:"z" json:"z"`
	Dimension Dimension `db:"dimension" json:"dimension"`
	Category  string    `db:"category" json:"category"`
	Icon      string    `db:"icon" json:"icon"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Input is the body of a create request. X and Z are required; Y,
// Dimension and Icon fall back to DefaultY, Overworld and DefaultIcon.
type Input struct {
	WorldID   string    `json:"world_id"`
	Name      string    `json:"name"`
	X         *int      `json:"x"`
	Y         *int      `json:"y"`
	Z         *int      `json:"z"`
	Dimension Dimension `json:"dimension"`
	Category  string    `json:"category"`
	Icon      string    `json:"icon"`
	Notes     string    `json:"notes"`
}

func (in Input) Validate() error {
	var errs []error
	if strings.TrimSpace(in.WorldID) == "" {
		errs = append(errs, errors.New("world_id is required"))
	}
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if in.X == nil || in.Z == nil {
		errs = append(errs, errors.New("x and z are required"))
	}
	if in.Dimension != "" && !in.Dimension.Valid() {
		errs = append(errs, fmt.Errorf("unknown dimension %q", in.Dimension))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidBookmark}, errs...)...)
	}
	return nil
}

// New builds the record for a validated input with defaults filled in.
func (in Input) New(id string, now time.Time) *Bookmark {
	b := &Bookmark{
		ID:        id,
		WorldID:   in.WorldID,
		Name:      in.Name,
		X:         *in.X,
		Y:         DefaultY,
		Z:         *in.Z,
		Dimension: in.Dimension,
		Category:  in.Category,
		Icon:      in.Icon,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Y != nil {
		b.Y = *in.Y
	}
	if b.Dimension == "" {
		b.Dimension = Overworld
	}
	if b.Icon == "" {
		b.Icon = DefaultIcon
	}
	return b
}

// Patch is a partial update; nil fields are left untouched. The world a
// bookmark belongs to cannot change.
type Patch struct {
	Name      *string    `json:"name"`
	X         *int       `json:"x"`
	Y         *int       `json:"y"`
	Z         *int       `json:"z"`
	Dimension *Dimension `json:"dimension"`
	Category  *string    `json:"category"`
	Icon      *string    `json:"icon"`
	Notes     *string    `json:"notes"`
}

func (p Patch) Apply(b *Bookmark) error {
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return errors.Join(ErrInvalidBookmark, errors.New("name is required"))
		}
		b.Name = *p.Name
	}
	if p.Dimension != nil {
		if !p.Dimension.Valid() {
			return errors.Join(ErrInvalidBookmark, fmt.Errorf("unknown dimension %q", *p.Dimension))
		}
		b.Dimension = *p.Dimension
	}
	if p.X != nil {
		b.X = *p.X
	}
	if p.Y != nil {
		b.Y = *p.Y
	}
	if p.Z != nil {
		b.Z = *p.Z
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.Icon != nil {
		b.Icon = *p.Icon
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
	return nil
}

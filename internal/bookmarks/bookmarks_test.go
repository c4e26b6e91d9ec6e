package bookmarks

import (
	"errors"
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func TestInputValidate(t *testing.T) {
	ok := Input{WorldID: "w", Name: "base", X: intp(0), Z: intp(-20)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []Input{
		{Name: "base", X: intp(1), Z: intp(1)},
		{WorldID: "w", X: intp(1), Z: intp(1)},
		{WorldID: "w", Name: "base", X: intp(1)},
		{WorldID: "w", Name: "base", X: intp(1), Z: intp(1), Dimension: "aether"},
	}
	for _, in := range bad {
		if err := in.Validate(); !errors.Is(err, ErrInvalidBookmark) {
			t.Fatalf("%+v: expected ErrInvalidBookmark, got %v", in, err)
		}
	}
}

func TestInputNewAppliesDefaults(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := Input{WorldID: "w", Name: "base", X: intp(10), Z: intp(-5)}.New("id", now)
	if b.Y != DefaultY || b.Dimension != Overworld || b.Icon != DefaultIcon {
		t.Fatalf("defaults not applied: %+v", b)
	}
	if b.X != 10 || b.Z != -5 || !b.CreatedAt.Equal(now) || !b.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected bookmark %+v", b)
	}

	// An explicit y of 0 is kept.
	b = Input{WorldID: "w", Name: "bedrock", X: intp(0), Y: intp(0), Z: intp(0), Dimension: Nether, Icon: "🌀"}.New("id", now)
	if b.Y != 0 || b.Dimension != Nether || b.Icon != "🌀" {
		t.Fatalf("explicit values overwritten: %+v", b)
	}
}

func TestPatchApply(t *testing.T) {
	b := &Bookmark{Name: "base", X: 1, Y: 64, Z: 1, Dimension: Overworld, Icon: DefaultIcon}
	end := End
	notes := "stronghold portal"
	if err := (Patch{Y: intp(30), Dimension: &end, Notes: &notes}).Apply(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Y != 30 || b.Dimension != End || b.Notes != notes || b.X != 1 || b.Name != "base" {
		t.Fatalf("unexpected bookmark %+v", b)
	}

	empty := ""
	if err := (Patch{Name: &empty}).Apply(b); !errors.Is(err, ErrInvalidBookmark) {
		t.Fatalf("expected ErrInvalidBookmark, got %v", err)
	}
	bad := Dimension("aether")
	if err := (Patch{Dimension: &bad}).Apply(b); !errors.Is(err, ErrInvalidBookmark) {
		t.Fatalf("expected ErrInvalidBookmark, got %v", err)
	}
}

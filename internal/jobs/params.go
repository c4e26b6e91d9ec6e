package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Geometry is the search area shared by every job type.
type Geometry struct {
	CenterX int `json:"center_x"`
	CenterZ int `json:"center_z"`
	Radius  int `json:"radius"`
}

// Params is the decoded parameter bag of a job. Each job type has exactly one
// concrete implementation.
type Params interface {
	JobType() Type
	Area() Geometry
	// Filter is the engine filter argument, empty for types without one.
	Filter() string
}

type StructuresParams struct {
	Geometry
	StructureType string `json:"structure_type"`
}

type BiomeParams struct {
	Geometry
	Target string `json:"target"`
}

type SlimeMapParams struct {
	Geometry
}

func (p *StructuresParams) JobType() Type  { return TypeStructures }
func (p *StructuresParams) Area() Geometry { return p.Geometry }
func (p *StructuresParams) Filter() string { return p.StructureType }

func (p *BiomeParams) JobType() Type  { return TypeBiome }
func (p *BiomeParams) Area() Geometry { return p.Geometry }
func (p *BiomeParams) Filter() string { return p.Target }

func (p *SlimeMapParams) JobType() Type  { return TypeSlimeMap }
func (p *SlimeMapParams) Area() Geometry { return p.Geometry }
func (p *SlimeMapParams) Filter() string { return "" }

// DefaultParams returns the parameters used when a job supplies none.
func DefaultParams(t Type) (Params, error) {
	switch t {
	case TypeStructures:
		return &StructuresParams{Geometry: Geometry{Radius: 5000}, StructureType: "all"}, nil
	case TypeBiome:
		return &BiomeParams{Geometry: Geometry{Radius: 10000}, Target: "jungle"}, nil
	case TypeSlimeMap:
		return &SlimeMapParams{Geometry: Geometry{Radius: 1000}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, string(t))
}

// DecodeParams parses raw over the defaults for t. Missing keys keep their
// defaults, unknown keys are ignored, and empty or null input yields the
// defaults unchanged.
func DecodeParams(t Type, raw json.RawMessage) (Params, error) {
	p, err := DefaultParams(t)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return p, nil
	}
	if err := json.Unmarshal(trimmed, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return p, nil
}

// NormalizeParams decodes raw and re-encodes it with every default filled in.
func NormalizeParams(t Type, raw json.RawMessage) (json.RawMessage, error) {
	p, err := DecodeParams(t, raw)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return b, nil
}

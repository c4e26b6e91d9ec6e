// Package compute holds the strategies that turn a job's typed parameters into
// a result document: the external engine for structures and biomes, and the
// in-process slime-chunk evaluator.
package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bedrockmate/internal/jobs"
)

var (
	// ErrExternalFailure wraps the engine's standard error on a non-zero exit.
	ErrExternalFailure = errors.New("CLI error")
	// ErrExternalTimeout is returned when the engine exceeds its wall-clock bound.
	ErrExternalTimeout = errors.New("CLI timeout")
	// ErrResultParse is returned when a successful run printed invalid JSON.
	ErrResultParse = errors.New("CLI returned invalid JSON")
)

// Strategy computes the result document for one job.
type Strategy interface {
	Compute(ctx context.Context, seed string, p jobs.Params) (json.RawMessage, error)

	// LongRunning reports whether the computation is expected to dominate
	// wall-clock time, in which case progress is reported before it starts.
	LongRunning() bool
}

// Registry maps job types to their strategy.
type Registry map[jobs.Type]Strategy

// NewRegistry wires the default strategies: engine for structures and biome,
// the slime evaluator for slime_map.
func NewRegistry(engine Strategy) Registry {
	return Registry{
		jobs.TypeStructures: engine,
		jobs.TypeBiome:      engine,
		jobs.TypeSlimeMap:   SlimeMap{},
	}
}

func (r Registry) Lookup(t jobs.Type) (Strategy, error) {
	s, ok := r[t]
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: %s", jobs.ErrUnsupportedJobType, t)
	}
	return s, nil
}

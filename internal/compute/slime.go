package compute

import (
	"context"
	"encoding/json"
	"fmt"

	"bedrockmate/internal/jobs"
)

// MaxSlimeChunks caps the number of chunks in a slime map result.
const MaxSlimeChunks = 100

const chunkSize = 16

// ChunkCenter is the block coordinate at the middle of a chunk.
type ChunkCenter struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// SlimeMapResult is the result document of a slime_map job.
type SlimeMapResult struct {
	CenterX     int           `json:"center_x"`
	CenterZ     int           `json:"center_z"`
	Radius      int           `json:"radius"`
	SlimeChunks []ChunkCenter `json:"slime_chunks"`
}

// IsSlimeChunk reports whether chunk (cx, cz) is a slime chunk on Bedrock.
// The classification is seed-independent and computed modulo 2^32.
func IsSlimeChunk(cx, cz int) bool {
	x, z := uint32(cx), uint32(cz)
	v := x*x*4987142 + x*5947611 + z*z*4392871 + z*389711
	v = (v >> 17) ^ v
	return v%10 == 0
}

// SlimeChunks scans the square of chunks within radius blocks of the center,
// row-major over x then z, and returns the first MaxSlimeChunks slime chunk
// centers. Block-to-chunk conversion truncates toward zero.
func SlimeChunks(centerX, centerZ, radius int) []ChunkCenter {
	chunkX := centerX / chunkSize
	chunkZ := centerZ / chunkSize
	r := radius / chunkSize

	out := []ChunkCenter{}
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			cx, cz := chunkX+dx, chunkZ+dz
			if !IsSlimeChunk(cx, cz) {
				continue
			}
			out = append(out, ChunkCenter{X: cx*chunkSize + 8, Z: cz*chunkSize + 8})
			if len(out) == MaxSlimeChunks {
				return out
			}
		}
	}
	return out
}

// SlimeMap is the in-process strategy for slime_map jobs. It ignores the seed.
type SlimeMap struct{}

func (SlimeMap) LongRunning() bool { return false }

func (SlimeMap) Compute(ctx context.Context, _ string, p jobs.Params) (json.RawMessage, error) {
	if p.JobType() != jobs.TypeSlimeMap {
		return nil, fmt.Errorf("%w: slime evaluator cannot run %s", jobs.ErrUnsupportedJobType, p.JobType())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := p.Area()
	return json.Marshal(SlimeMapResult{
		CenterX:     g.CenterX,
		CenterZ:     g.CenterZ,
		Radius:      g.Radius,
		SlimeChunks: SlimeChunks(g.CenterX, g.CenterZ, g.Radius),
	})
}

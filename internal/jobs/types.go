package jobs

import "fmt"

// Type names one of the fixed job kinds.
type Type string

const (
	TypeStructures Type = "structures"
	TypeBiome      Type = "biome"
	TypeSlimeMap   Type = "slime_map"
)

// Info is the human-facing description of a job type.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

var catalogue = map[Type]Info{
	TypeStructures: {
		Name:        "Structure map",
		Description: "Compute coordinates of villages, fortresses and other structures",
		Icon:        "🗺️",
	},
	TypeBiome: {
		Name:        "Biome search",
		Description: "Search for the nearest biome",
		Icon:        "🌴",
	},
	TypeSlimeMap: {
		Name:        "Slime map",
		Description: "Generate a wide-area slime chunk map",
		Icon:        "🟢",
	},
}

// Types lists every job type in a stable order.
func Types() []Type {
	return []Type{TypeStructures, TypeBiome, TypeSlimeMap}
}

// Catalogue returns a copy of the job type descriptions.
func Catalogue() map[Type]Info {
	out := make(map[Type]Info, len(catalogue))
	for t, info := range catalogue {
		out[t] = info
	}
	return out
}

// ParseType validates s against the fixed set.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownJobType, s)
	}
	return t, nil
}

func (t Type) Valid() bool {
	_, ok := catalogue[t]
	return ok
}

func (t Type) Info() Info { return catalogue[t] }

func (t Type) String() string { return string(t) }

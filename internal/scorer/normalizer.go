package scorer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/continuum-sec/continuum/internal/behavior"
)

// StandardNormalizer applies the per-feature (x-mean)/scale transform using
// parameters fitted offline against the training population. The parameters
// are fixed at load time; nothing is refitted at request time.
type StandardNormalizer struct {
	Mean  behavior.Vector `json:"mean"`
	Scale behavior.Vector `json:"scale"`
}

// Normalize implements Normalizer.
func (n *StandardNormalizer) Normalize(v behavior.Vector) behavior.Vector {
	out := make(behavior.Vector, len(v))
	for i := range v {
		scale := n.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v[i] - n.Mean[i]) / scale
	}
	return out
}

// LoadNormalizer reads offline-fitted normalizer parameters from a JSON file.
func LoadNormalizer(path string) (*StandardNormalizer, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from server config, not user input
	if err != nil {
		return nil, fmt.Errorf("scorer: read normalizer params: %w", err)
	}

	var n StandardNormalizer
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("scorer: parse normalizer params: %w", err)
	}
	if !n.Mean.Valid() || !n.Scale.Valid() {
		return nil, fmt.Errorf("scorer: normalizer params must have %d features", behavior.Size)
	}
	return &n, nil
}

// DefaultNormalizer returns parameters fitted against the reference mobile
// typing population. Used when no params file is configured.
func DefaultNormalizer() *StandardNormalizer {
	return &StandardNormalizer{
		Mean:  behavior.Vector{90, 320, 5, 310, 84, 5, 52, 108, 155, 4},
		Scale: behavior.Vector{6, 55, 3, 60, 9, 3, 12, 22, 28, 2.5},
	}
}

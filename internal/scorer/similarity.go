package scorer

import (
	"context"
	"fmt"
	"math"

	"github.com/continuum-sec/continuum/internal/behavior"
)

// CosineSimilarity is the default PairwiseSimilarity: cosine of the angle
// between two raw vectors, clamped to [0,1]. Behavioral features are
// non-negative so the cosine is rarely negative, but adversarial input can
// push it there; negative similarity carries no extra signal for our use.
type CosineSimilarity struct{}

// Similarity implements PairwiseSimilarity.
func (CosineSimilarity) Similarity(_ context.Context, a, b behavior.Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("scorer: vector length mismatch %d vs %d", len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim, nil
}

// DistanceVerifier is the default ContextVerifier. It maps the mean absolute
// per-feature difference of the normalized vectors into a similarity and
// discounts it by the contextual anomaly evidence. Pure and deterministic:
// the same (ref, test, context) triple always produces the same score.
type DistanceVerifier struct {
	// Sharpness controls how fast similarity decays with distance in
	// normalized feature units. Zero means DefaultSharpness.
	Sharpness float64
}

// DefaultSharpness gives ~0.37 similarity at one standard unit of mean
// per-feature distance.
const DefaultSharpness = 1.0

// Verify implements ContextVerifier.
func (d DistanceVerifier) Verify(_ context.Context, ref, test behavior.Vector, contextVec []float64) (float64, error) {
	if len(ref) != len(test) {
		return 0, fmt.Errorf("scorer: vector length mismatch %d vs %d", len(ref), len(test))
	}

	sharp := d.Sharpness
	if sharp == 0 {
		sharp = DefaultSharpness
	}

	var dist float64
	for i := range ref {
		dist += math.Abs(ref[i] - test[i])
	}
	dist /= float64(len(ref))

	sim := math.Exp(-sharp * dist)

	// Context slots: [distance, age/100, stage-one score, traveling, reserved].
	// A hot stage-one score or active travel shades the verdict down; the
	// discount is bounded so context alone can never zero out a match.
	if len(contextVec) >= 4 {
		anomaly := contextVec[2]
		if anomaly > 1.0 {
			sim *= 1.0 - math.Min((anomaly-1.0)*0.1, 0.2)
		}
		if contextVec[3] > 0 {
			sim *= 0.95
		}
	}

	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim, nil
}

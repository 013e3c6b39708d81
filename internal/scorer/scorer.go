// Package scorer defines the capability contracts for the learned models the
// decision pipeline consumes, plus deterministic in-process defaults.
//
// The pipeline never sees model internals: each model is a pure function of
// its inputs. Any conforming implementation (remote inference service, ONNX
// runtime, test double) can be substituted without touching the pipeline.
package scorer

import (
	"context"

	"github.com/continuum-sec/continuum/internal/behavior"
)

// ContextVerifier scores how likely two normalized behavior vectors belong to
// the same person, conditioned on an auxiliary context vector. Result is in
// [0,1], 1 meaning identical behavior. Deterministic for identical inputs.
type ContextVerifier interface {
	Verify(ctx context.Context, ref, test behavior.Vector, contextVec []float64) (float64, error)
}

// PairwiseSimilarity scores two raw (unnormalized) behavior vectors in [0,1].
// Distinct from ContextVerifier: no normalization, no context conditioning.
type PairwiseSimilarity interface {
	Similarity(ctx context.Context, a, b behavior.Vector) (float64, error)
}

// GraphRisk reports the likelihood in [0,1] that a user belongs to a known
// collusion or fraud structure. Unknown users score a mild baseline rather
// than zero: unknown identity is not evidence of innocence.
type GraphRisk interface {
	Risk(ctx context.Context, userID string) (float64, error)
}

// Drift scores in [0,1] how surprising a test vector is given the user's
// recent history sequence. Meaningful only when the sequence has at least
// MinDriftHistory entries; callers fall back to a default below that.
type Drift interface {
	Anomaly(ctx context.Context, history []behavior.Vector, test behavior.Vector) (float64, error)
}

// MinDriftHistory is the shortest history sequence a Drift scorer accepts.
const MinDriftHistory = 6

// Normalizer applies a fixed per-feature transform fitted offline. No
// learning happens at request time.
type Normalizer interface {
	Normalize(v behavior.Vector) behavior.Vector
}

// Package escalation implements the similarity verification stage: it builds
// the auxiliary context vector, normalizes the reference and test vectors
// through the offline-fitted normalizer, and binary-thresholds the external
// verifier's score.
package escalation

import (
	"context"
	"fmt"

	"github.com/continuum-sec/continuum/internal/behavior"
	"github.com/continuum-sec/continuum/internal/profile"
	"github.com/continuum-sec/continuum/internal/scorer"
)

const (
	// SimilarityThreshold is inclusive: a verifier score of exactly 0.8
	// passes.
	SimilarityThreshold = 0.8

	// ContextSize is the fixed length of the auxiliary context vector. The
	// external verifier's input shape depends on it.
	ContextSize = 5

	// defaultModerateScore stands in for the aggregate anomaly score when
	// the first stage produced none.
	defaultModerateScore = 1.5

	normEpsilon = 1e-8
)

// BuildContext derives the 5-element context vector consumed by the
// similarity verifier: normalized reference/test distance, normalized age,
// the first-stage anomaly score (or a moderate default), a travel indicator,
// and a reserved slot. The final element is intentionally fixed at zero; the
// verifier was trained on this shape and removing the slot would break it.
func BuildContext(p *profile.Snapshot, sample behavior.Vector, anomalyScore *float64, traveling bool) []float64 {
	dist := p.Reference.Distance(sample) / (p.Reference.Norm() + normEpsilon)

	score := defaultModerateScore
	if anomalyScore != nil {
		score = *anomalyScore
	}

	travel := 0.0
	if traveling {
		travel = 1.0
	}

	return []float64{dist, float64(p.Age) / 100.0, score, travel, 0.0}
}

// Stage wires the normalizer and verifier for the similarity stage.
type Stage struct {
	Normalizer scorer.Normalizer
	Verifier   scorer.ContextVerifier
	// Threshold overrides SimilarityThreshold when nonzero. Inclusive.
	Threshold float64
}

func (s *Stage) threshold() float64 {
	if s.Threshold != 0 {
		return s.Threshold
	}
	return SimilarityThreshold
}

// Result is the stage's verdict: the raw verifier score and whether it
// cleared the threshold.
type Result struct {
	Similarity float64
	Verified   bool
}

// Verify runs the external verifier once against the normalized vectors and
// context. The verifier is never retried; any error or out-of-range score is
// returned to the caller as a stage failure, not coerced into a verdict.
func (s *Stage) Verify(ctx context.Context, p *profile.Snapshot, sample behavior.Vector, anomalyScore *float64, traveling bool) (Result, error) {
	ref := s.Normalizer.Normalize(p.Reference)
	test := s.Normalizer.Normalize(sample)
	ctxVec := BuildContext(p, sample, anomalyScore, traveling)

	sim, err := s.Verifier.Verify(ctx, ref, test, ctxVec)
	if err != nil {
		return Result{}, err
	}
	if sim < 0 || sim > 1 {
		return Result{}, fmt.Errorf("escalation: verifier score %f out of range", sim)
	}
	return Result{Similarity: sim, Verified: sim >= s.threshold()}, nil
}

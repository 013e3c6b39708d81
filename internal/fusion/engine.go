package fusion

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/continuum-sec/continuum/internal/behavior"
	"github.com/continuum-sec/continuum/internal/idgen"
	"github.com/continuum-sec/continuum/internal/scorer"
)

// Engine fuses the three risk signals into a terminal decision.
type Engine struct {
	graph           scorer.GraphRisk
	drift           scorer.Drift
	similarity      scorer.PairwiseSimilarity
	store           Store
	blockThreshold  float64
	reviewThreshold float64
}

// NewEngine creates a fusion engine over the three scorers, persisting
// assessments to the given audit store.
func NewEngine(graph scorer.GraphRisk, drift scorer.Drift, similarity scorer.PairwiseSimilarity, store Store) *Engine {
	return &Engine{
		graph:           graph,
		drift:           drift,
		similarity:      similarity,
		store:           store,
		blockThreshold:  DefaultBlockThreshold,
		reviewThreshold: DefaultReviewThreshold,
	}
}

// WithBlockThreshold overrides the default block threshold.
func (e *Engine) WithBlockThreshold(t float64) *Engine {
	e.blockThreshold = t
	return e
}

// WithReviewThreshold overrides the default manual-review threshold.
func (e *Engine) WithReviewThreshold(t float64) *Engine {
	e.reviewThreshold = t
	return e
}

// Fuse gathers the three risk signals for a sample and folds them into a
// terminal decision. Scorer errors and out-of-range scores surface as
// errors; they are never coerced into a decision. Each signal call is
// single-shot, no retries.
func (e *Engine) Fuse(ctx context.Context, userID string, reference, sample behavior.Vector, history []behavior.Vector) (*Assessment, error) {
	graphRisk, err := e.graph.Risk(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("graph risk: %w", err)
	}
	if err := checkRange("graph risk", graphRisk); err != nil {
		return nil, err
	}

	driftRisk := DefaultRisk
	if len(history) >= scorer.MinDriftHistory {
		driftRisk, err = e.drift.Anomaly(ctx, history, sample)
		if err != nil {
			return nil, fmt.Errorf("drift anomaly: %w", err)
		}
		if err := checkRange("drift anomaly", driftRisk); err != nil {
			return nil, err
		}
	}

	sim, err := e.similarity.Similarity(ctx, reference, sample)
	if err != nil {
		return nil, fmt.Errorf("similarity: %w", err)
	}
	if err := checkRange("similarity", sim); err != nil {
		return nil, err
	}
	similarityRisk := 1.0 - sim

	final := WeightGraph*graphRisk + WeightDrift*driftRisk + WeightSimilarity*similarityRisk

	label := LabelPass
	switch {
	case final > e.blockThreshold:
		label = LabelBlock
	case final > e.reviewThreshold:
		label = LabelManualReview
	}

	assessment := &Assessment{
		ID:     idgen.WithPrefix("asmt_"),
		UserID: userID,
		Tier:   TierFusion,
		Label:  label,
		Score:  math.Round(final*1000) / 1000,
		Factors: map[string]float64{
			"graph_risk":      graphRisk,
			"drift_anomaly":   driftRisk,
			"similarity_risk": similarityRisk,
		},
		EvaluatedAt: time.Now(),
	}

	// Persist asynchronously (best-effort audit trail)
	if e.store != nil {
		go func() {
			_ = e.store.Record(context.Background(), assessment)
		}()
	}

	return assessment, nil
}

func checkRange(name string, v float64) error {
	if v < 0 || v > 1 || math.IsNaN(v) {
		return fmt.Errorf("%s score %f out of range", name, v)
	}
	return nil
}

// Package fusion implements the final authentication stage: three
// independent risk signals (collusion graph, temporal drift, raw similarity)
// fused with fixed weights into a terminal decision, with every evaluation
// persisted as an audit assessment.
package fusion

import (
	"context"
	"time"
)

// Tier identifies which stage of the pipeline produced a decision.
type Tier string

const (
	TierAnomaly    Tier = "T1"
	TierSimilarity Tier = "T2"
	TierFusion     Tier = "T3"
	TierSystem     Tier = "System"
)

// Label is a terminal decision label.
type Label string

const (
	LabelPass         Label = "PASS"
	LabelSkip         Label = "SKIP"
	LabelBlock        Label = "BLOCK"
	LabelManualReview Label = "MANUAL_REVIEW"
	LabelUnknownState Label = "UNKNOWN_STATE"
)

// Fusion weights. Fixed, sum to 1.
const (
	WeightGraph      = 0.5
	WeightDrift      = 0.2
	WeightSimilarity = 0.3
)

// Default decision thresholds on the fused score.
const (
	DefaultBlockThreshold  = 0.6
	DefaultReviewThreshold = 0.35
)

// DefaultRisk stands in for a signal that cannot be computed (unknown user
// in the graph, history too short for drift). Mildly positive rather than
// zero.
const DefaultRisk = 0.1

// Assessment is one persisted evaluation record. Every tier that reaches a
// terminal decision produces one; fusion evaluations additionally carry the
// per-signal factor breakdown.
type Assessment struct {
	ID          string             `json:"id"`
	UserID      string             `json:"userId"`
	Tier        Tier               `json:"tier"`
	Label       Label              `json:"label"`
	Score       float64            `json:"score"`
	Factors     map[string]float64 `json:"factors,omitempty"`
	Flags       []string           `json:"flags,omitempty"`
	EvaluatedAt time.Time          `json:"evaluatedAt"`
}

// Store persists assessments for the audit trail.
type Store interface {
	Record(ctx context.Context, assessment *Assessment) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error)
}

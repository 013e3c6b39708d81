// Package profile owns per-user behavioral baselines and their rolling
// sample history. All mutation goes through the Store, which serializes
// access per user id.
package profile

import (
	"errors"
	"time"

	"github.com/continuum-sec/continuum/internal/behavior"
)

// Errors
var (
	ErrNotFound            = errors.New("profile: not found")
	ErrInsufficientSamples = errors.New("profile: enrollment batch below minimum size")
	ErrNotEnrolled         = errors.New("profile: user not enrolled")
)

const (
	// MinEnrollmentSamples is the smallest batch that can establish a
	// baseline; fewer samples is a no-op failure.
	MinEnrollmentSamples = 5
	// MinHistorySamples is the smallest history seed accepted by the
	// explicit enrollment API.
	MinHistorySamples = 15
	// HistoryCapacity bounds the rolling FIFO of recent samples consumed
	// by drift scoring.
	HistoryCapacity = 20

	// DeviationFloor keeps per-feature spread away from zero so z-scores
	// stay finite for users with near-constant features.
	DeviationFloor = 1e-2

	// EMA learning rates for slow baseline adaptation.
	alphaMean   = 0.05
	alphaSpread = 0.02

	// Poisoning guards: a sample only feeds the EMA when its anomaly score
	// is known and below updateScoreCeiling and at least minUpdateFeatures
	// of its features are present.
	updateScoreCeiling = 1.5
	minUpdateFeatures  = 6
)

// Profile is the per-user behavioral baseline. Owned exclusively by the
// Store; callers only ever see Snapshot copies.
type Profile struct {
	UserID string
	// Reference is the running mean vector (the enrolled baseline).
	Reference behavior.Vector
	// Deviation is the running per-feature spread, floor-clamped.
	Deviation behavior.Vector
	// Age is set at enrollment and immutable thereafter.
	Age      int
	Enrolled bool
	// IdleStreak counts consecutive low-activity evaluations. Resets on
	// any scored sample.
	IdleStreak int
	// History is a bounded FIFO of recent samples, oldest first.
	History []behavior.Vector

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is a consistent, deep copy of a profile at a point in time.
// Safe to read while the store continues to mutate the original.
type Snapshot struct {
	UserID     string
	Reference  behavior.Vector
	Deviation  behavior.Vector
	Age        int
	Enrolled   bool
	IdleStreak int
	History    []behavior.Vector
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p *Profile) snapshot() *Snapshot {
	history := make([]behavior.Vector, len(p.History))
	for i, v := range p.History {
		history[i] = v.Clone()
	}
	return &Snapshot{
		UserID:     p.UserID,
		Reference:  p.Reference.Clone(),
		Deviation:  p.Deviation.Clone(),
		Age:        p.Age,
		Enrolled:   p.Enrolled,
		IdleStreak: p.IdleStreak,
		History:    history,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

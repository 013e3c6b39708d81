// Package engine drives a behavioral sample through the three-stage decision
// pipeline: statistical anomaly gate, similarity verification, risk fusion.
// It owns enrollment, the per-request state machine, and the side-effect
// discipline around the profile store.
package engine

import (
	"context"
	"time"

	"github.com/continuum-sec/continuum/internal/anomaly"
	"github.com/continuum-sec/continuum/internal/behavior"
	"github.com/continuum-sec/continuum/internal/escalation"
	"github.com/continuum-sec/continuum/internal/fusion"
	"github.com/continuum-sec/continuum/internal/idgen"
	"github.com/continuum-sec/continuum/internal/profile"
)

// SessionObserver receives session arrivals and confirmed-fraud flags. The
// collusion graph implements it; a nil observer disables both.
type SessionObserver interface {
	Observe(userID, deviceID, sourceAddr string, now time.Time)
	Flag(userID string)
}

// Request is one authentication evaluation.
type Request struct {
	UserID     string
	Age        int
	Sample     behavior.Vector
	Location   behavior.LocationContext
	DeviceID   string
	SourceAddr string
}

// Decision is the terminal outcome of one request.
type Decision struct {
	AssessmentID string             `json:"assessmentId"`
	UserID       string             `json:"userId"`
	Tier         fusion.Tier        `json:"tier"`
	Label        fusion.Label       `json:"label"`
	Score        *float64           `json:"score,omitempty"`
	Factors      map[string]float64 `json:"factors,omitempty"`
	Flags        []string           `json:"flags,omitempty"`
	Enrolled     bool               `json:"enrolled,omitempty"` // true when this request auto-enrolled the user
	EvaluatedAt  time.Time          `json:"evaluatedAt"`
}

// Orchestrator wires the profile store, the two escalation stages, and the
// session observer into the request state machine.
type Orchestrator struct {
	profiles   *profile.Store
	similarity *escalation.Stage
	fusion     *fusion.Engine
	store      fusion.Store
	observer   SessionObserver
	thresholds anomaly.Thresholds
	autoEnroll bool
}

// New creates an orchestrator. store receives the audit assessment of every
// terminal decision; it may be nil to disable the trail. observer may be nil.
func New(profiles *profile.Store, similarity *escalation.Stage, fusionEngine *fusion.Engine, store fusion.Store) *Orchestrator {
	return &Orchestrator{
		profiles:   profiles,
		similarity: similarity,
		fusion:     fusionEngine,
		store:      store,
		thresholds: anomaly.DefaultThresholds(),
	}
}

// WithThresholds overrides the anomaly gate's routing cutoffs.
func (o *Orchestrator) WithThresholds(th anomaly.Thresholds) *Orchestrator {
	o.thresholds = th
	return o
}

// WithObserver attaches a session observer (the collusion graph).
func (o *Orchestrator) WithObserver(obs SessionObserver) *Orchestrator {
	o.observer = obs
	return o
}

// WithAutoEnroll enables first-contact bootstrap: an unknown user's first
// sample seeds their profile instead of failing with ErrUnenrolled.
func (o *Orchestrator) WithAutoEnroll(enabled bool) *Orchestrator {
	o.autoEnroll = enabled
	return o
}

// Enroll creates a profile from an explicit enrollment batch. The batch
// needs at least profile.MinEnrollmentSamples vectors and the history seed
// at least profile.MinHistorySamples; fewer is rejected with no side
// effects. Returns the created (or pre-existing) profile snapshot and
// whether this call created it.
func (o *Orchestrator) Enroll(ctx context.Context, userID string, age int, batch, history []behavior.Vector) (*profile.Snapshot, bool, error) {
	if userID == "" {
		return nil, false, &ValidationError{Field: "userId", Reason: "required"}
	}
	if len(batch) < profile.MinEnrollmentSamples {
		return nil, false, profile.ErrInsufficientSamples
	}
	if len(history) < profile.MinHistorySamples {
		return nil, false, profile.ErrInsufficientSamples
	}
	for _, v := range batch {
		if !v.Valid() {
			return nil, false, &ValidationError{Field: "samples", Reason: "wrong feature count"}
		}
	}
	for _, v := range history {
		if !v.Valid() {
			return nil, false, &ValidationError{Field: "history", Reason: "wrong feature count"}
		}
	}
	return o.profiles.GetOrEnroll(userID, age, batch, history)
}

// Authenticate evaluates one sample. The profile is snapshotted up front and
// the per-user lock is never held across an external scorer call; only the
// final mutation (EMA update, idle streak, history append) re-acquires it.
func (o *Orchestrator) Authenticate(ctx context.Context, req *Request) (*Decision, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	snap, bootstrapped, err := o.lookup(req)
	if err != nil {
		return nil, err
	}

	if o.observer != nil {
		o.observer.Observe(req.UserID, req.DeviceID, req.SourceAddr, time.Now())
	}

	res := anomaly.DetectWith(o.thresholds, snap, req.Sample, req.Location)

	switch res.Outcome {
	case anomaly.Pass:
		_ = o.profiles.Update(req.UserID, req.Sample, res.Score)
		return o.resolve(req.UserID, fusion.TierAnomaly, fusion.LabelPass, res.Score, nil, res.Flags, bootstrapped), nil

	case anomaly.Skip:
		_ = o.profiles.MarkIdle(req.UserID)
		return o.resolve(req.UserID, fusion.TierAnomaly, fusion.LabelSkip, nil, nil, res.Flags, bootstrapped), nil

	case anomaly.EscalateSimilarity:
		traveling := hasTravelFlag(res.Flags)
		verdict, err := o.similarity.Verify(ctx, snap, req.Sample, res.Score, traveling)
		if err != nil {
			return nil, &ScorerFault{Tier: fusion.TierSimilarity, Err: err}
		}
		if verdict.Verified {
			_ = o.profiles.ResetIdle(req.UserID)
			sim := verdict.Similarity
			return o.resolve(req.UserID, fusion.TierSimilarity, fusion.LabelPass, &sim, nil, res.Flags, bootstrapped), nil
		}
		return o.fuse(ctx, req, snap, res, bootstrapped)

	case anomaly.EscalateFusion:
		return o.fuse(ctx, req, snap, res, bootstrapped)

	default:
		// A tier returned a label the state machine does not know. Resolve
		// explicitly instead of propagating silently.
		return o.resolve(req.UserID, fusion.TierSystem, fusion.LabelUnknownState, nil, nil, res.Flags, bootstrapped), nil
	}
}

// fuse runs the final stage and applies its side effects: the sample joins
// the rolling history regardless of outcome, the idle streak resets, and a
// BLOCK flags the user in the session graph.
func (o *Orchestrator) fuse(ctx context.Context, req *Request, snap *profile.Snapshot, res anomaly.Result, bootstrapped bool) (*Decision, error) {
	assessment, err := o.fusion.Fuse(ctx, req.UserID, snap.Reference, req.Sample, snap.History)
	if err != nil {
		return nil, &ScorerFault{Tier: fusion.TierFusion, Err: err}
	}

	_ = o.profiles.AppendHistory(req.UserID, req.Sample)
	_ = o.profiles.ResetIdle(req.UserID)

	if assessment.Label == fusion.LabelBlock && o.observer != nil {
		o.observer.Flag(req.UserID)
	}

	score := assessment.Score
	return &Decision{
		AssessmentID: assessment.ID,
		UserID:       req.UserID,
		Tier:         assessment.Tier,
		Label:        assessment.Label,
		Score:        &score,
		Factors:      assessment.Factors,
		Flags:        res.Flags,
		Enrolled:     bootstrapped,
		EvaluatedAt:  assessment.EvaluatedAt,
	}, nil
}

// lookup returns a profile snapshot, bootstrapping an unknown user from the
// incoming sample when auto-enrollment is on: the sample is replicated to
// satisfy the minimum batch, so the first evaluation runs against a
// reference equal to itself.
func (o *Orchestrator) lookup(req *Request) (*profile.Snapshot, bool, error) {
	snap, err := o.profiles.Get(req.UserID)
	if err == nil {
		return snap, false, nil
	}
	if !o.autoEnroll {
		return nil, false, ErrUnenrolled
	}

	batch := make([]behavior.Vector, profile.MinEnrollmentSamples)
	for i := range batch {
		batch[i] = req.Sample.Clone()
	}
	seed := make([]behavior.Vector, profile.MinHistorySamples)
	for i := range seed {
		seed[i] = req.Sample.Clone()
	}

	snap, created, err := o.profiles.GetOrEnroll(req.UserID, req.Age, batch, seed)
	if err != nil {
		return nil, false, err
	}
	return snap, created, nil
}

// resolve assembles a first- or second-stage terminal decision and records
// it on the audit trail.
func (o *Orchestrator) resolve(userID string, tier fusion.Tier, label fusion.Label, score *float64, factors map[string]float64, flags []string, bootstrapped bool) *Decision {
	d := &Decision{
		AssessmentID: idgen.WithPrefix("asmt_"),
		UserID:       userID,
		Tier:         tier,
		Label:        label,
		Score:        score,
		Factors:      factors,
		Flags:        flags,
		Enrolled:     bootstrapped,
		EvaluatedAt:  time.Now(),
	}

	if o.store != nil {
		a := &fusion.Assessment{
			ID:          d.AssessmentID,
			UserID:      userID,
			Tier:        tier,
			Label:       label,
			Flags:       flags,
			EvaluatedAt: d.EvaluatedAt,
		}
		if score != nil {
			a.Score = *score
		}
		go func() {
			_ = o.store.Record(context.Background(), a)
		}()
	}
	return d
}

func hasTravelFlag(flags []string) bool {
	for _, f := range flags {
		if f == anomaly.FlagTravelDistance {
			return true
		}
	}
	return false
}

func validate(req *Request) error {
	if req == nil {
		return &ValidationError{Field: "request", Reason: "required"}
	}
	if req.UserID == "" {
		return &ValidationError{Field: "userId", Reason: "required"}
	}
	if !req.Sample.Valid() {
		return &ValidationError{Field: "sample", Reason: "wrong feature count"}
	}
	if !req.Location.Complete() {
		return &ValidationError{Field: "location", Reason: "incomplete location context"}
	}
	return nil
}

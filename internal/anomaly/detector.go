// Package anomaly implements the first, cheapest authentication stage: a
// statistical gate over per-feature z-scores plus a handful of hard rule
// checks (impossible travel, session speed, high-signal feature deviation).
// It decides whether a sample passes outright, is too sparse to judge, or
// must escalate to the similarity or fusion stages.
package anomaly

import (
	"github.com/continuum-sec/continuum/internal/behavior"
	"github.com/continuum-sec/continuum/internal/profile"
)

const (
	// PassThreshold admits a sample without escalation when no rule flags
	// fire.
	PassThreshold = 0.8
	// SevereThreshold routes a sample straight to risk fusion, skipping
	// similarity verification.
	SevereThreshold = 2.0

	// MinScoredFeatures is the smallest number of present features a sample
	// needs to be statistically scoreable. Below it the interval is treated
	// as idle, not anomalous.
	MinScoredFeatures = 4

	// agingFactor inflates the aggregate score for older users, whose
	// natural typing variance runs higher.
	agingFactor  = 1.15
	agingCohort  = 60
	zFlagCutoff  = 3.0
	travelCutoff = 10.0  // km between last login and current session
	speedCutoff  = 120.0 // km/h between the two 30s location samples
	scoreEpsilon = 1e-8
)

// Rule flags raised by the detector. Each is individually informative and
// independent of the aggregate score.
const (
	FlagTravelDistance = "unusual_login_distance"
	FlagSessionSpeed   = "abnormal_session_speed"
	FlagAccuracy       = "suspicious_accuracy_deviation"
	FlagFlightTime     = "suspicious_flight_time_deviation"
	FlagErrorRate      = "suspicious_error_rate_deviation"
)

// Outcome is the detector's routing verdict.
type Outcome int

const (
	// Pass admits the sample; the caller should feed it to the profile EMA.
	Pass Outcome = iota
	// Skip means the sample was too sparse to score; the interval counts as
	// idle and nothing escalates.
	Skip
	// EscalateSimilarity routes a moderate anomaly to the similarity stage.
	EscalateSimilarity
	// EscalateFusion routes a severe anomaly straight to risk fusion.
	EscalateFusion
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Skip:
		return "skip"
	case EscalateSimilarity:
		return "escalate_similarity"
	case EscalateFusion:
		return "escalate_fusion"
	default:
		return "unknown"
	}
}

// Result carries the detector's verdict plus everything downstream stages
// need: the aggregate score (nil when the sample was unscoreable), the raw
// per-feature z-scores, and any triggered rule flags.
type Result struct {
	Outcome  Outcome
	Score    *float64
	ZScores  behavior.Vector
	Flags    []string
	SpeedKmh float64
}

// Score computes the aggregate anomaly score of a sample against a profile
// snapshot: the mean of per-feature absolute z-scores, inflated by the aging
// factor for the older cohort. Returns (nil, nil) when fewer than
// MinScoredFeatures features are present.
func Score(p *profile.Snapshot, sample behavior.Vector) (*float64, behavior.Vector) {
	if sample.NonzeroCount() < MinScoredFeatures {
		return nil, nil
	}
	z := behavior.ZScores(sample, p.Reference, p.Deviation, scoreEpsilon)
	score := z.Mean()
	if p.Age >= agingCohort {
		score *= agingFactor
	}
	return &score, z
}

// RuleFlags runs the location and high-signal feature checks. Feature checks
// are gated on the feature being present; a zero feature never flags. The
// returned speed is the implied km/h between the two 30s location samples.
func RuleFlags(p *profile.Snapshot, sample behavior.Vector, loc behavior.LocationContext) ([]string, float64) {
	var flags []string

	if loc.TravelDistanceKm() > travelCutoff {
		flags = append(flags, FlagTravelDistance)
	}
	speed := loc.SessionSpeedKmh()
	if speed > speedCutoff {
		flags = append(flags, FlagSessionSpeed)
	}

	z := behavior.ZScores(sample, p.Reference, p.Deviation, scoreEpsilon)
	if sample[behavior.Accuracy] > 0 && z[behavior.Accuracy] > zFlagCutoff {
		flags = append(flags, FlagAccuracy)
	}
	if sample[behavior.FlightTime] > 0 && z[behavior.FlightTime] > zFlagCutoff {
		flags = append(flags, FlagFlightTime)
	}
	if sample[behavior.ErrorRate] > 0 && z[behavior.ErrorRate] > zFlagCutoff {
		flags = append(flags, FlagErrorRate)
	}
	return flags, speed
}

// Thresholds are the two routing cutoffs of the gate. Zero values fall back
// to the package defaults, so the zero Thresholds is usable.
type Thresholds struct {
	Pass   float64
	Severe float64
}

// DefaultThresholds returns the calibrated production cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Pass: PassThreshold, Severe: SevereThreshold}
}

func (t Thresholds) orDefaults() Thresholds {
	if t.Pass == 0 {
		t.Pass = PassThreshold
	}
	if t.Severe == 0 {
		t.Severe = SevereThreshold
	}
	return t
}

// Detect evaluates one sample against a profile snapshot with the default
// thresholds. Stateless; the caller applies the side effects the outcome
// implies (EMA update on Pass, idle increment on Skip).
func Detect(p *profile.Snapshot, sample behavior.Vector, loc behavior.LocationContext) Result {
	return DetectWith(DefaultThresholds(), p, sample, loc)
}

// DetectWith is Detect with explicit routing thresholds.
func DetectWith(th Thresholds, p *profile.Snapshot, sample behavior.Vector, loc behavior.LocationContext) Result {
	th = th.orDefaults()
	score, z := Score(p, sample)
	flags, speed := RuleFlags(p, sample, loc)

	res := Result{Score: score, ZScores: z, Flags: flags, SpeedKmh: speed}
	if score == nil {
		res.Outcome = Skip
		return res
	}

	switch {
	case *score < th.Pass && len(flags) == 0:
		res.Outcome = Pass
	case *score >= th.Severe || len(flags) > 1:
		res.Outcome = EscalateFusion
	default:
		res.Outcome = EscalateSimilarity
	}
	return res
}

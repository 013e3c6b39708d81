package scorer

import (
	"context"
	"fmt"
	"math"

	"github.com/continuum-sec/continuum/internal/behavior"
)

// GaussianDrift is the default Drift scorer. It predicts a per-feature
// Gaussian for the next sample from an exponentially weighted pass over the
// history sequence, then scores the test vector by its average negative
// log-likelihood under that prediction, scaled into [0,1].
type GaussianDrift struct {
	// Alpha is the EWMA weight for the predicted mean. Zero means
	// defaultDriftAlpha.
	Alpha float64
}

const (
	defaultDriftAlpha = 0.3
	// nllNormalizer divides the mean NLL before clamping into [0,1].
	nllNormalizer = 5.0
	// varianceFloor keeps the predicted variance away from zero for users
	// with near-constant history.
	varianceFloor = 1e-2
)

// Anomaly implements Drift.
func (g GaussianDrift) Anomaly(_ context.Context, history []behavior.Vector, test behavior.Vector) (float64, error) {
	if len(history) < MinDriftHistory {
		return 0, fmt.Errorf("scorer: drift history too short: %d < %d", len(history), MinDriftHistory)
	}
	if !test.Valid() {
		return 0, fmt.Errorf("scorer: invalid test vector length %d", len(test))
	}

	alpha := g.Alpha
	if alpha == 0 {
		alpha = defaultDriftAlpha
	}

	// EWMA mean and EWMA of squared residuals over the sequence, oldest
	// first, so recent samples dominate the prediction.
	mu := history[0].Clone()
	variance := make(behavior.Vector, behavior.Size)
	for i := range variance {
		variance[i] = varianceFloor
	}
	for _, v := range history[1:] {
		for i := range mu {
			resid := v[i] - mu[i]
			mu[i] += alpha * resid
			variance[i] = alpha*resid*resid + (1-alpha)*variance[i]
			if variance[i] < varianceFloor {
				variance[i] = varianceFloor
			}
		}
	}

	var nll float64
	for i := range test {
		d := test[i] - mu[i]
		nll += 0.5 * (math.Log(variance[i]) + d*d/variance[i])
	}
	nll /= float64(len(test))

	score := nll / nllNormalizer
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

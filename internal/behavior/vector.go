// Package behavior defines the fixed-order behavioral feature vector and the
// location context captured alongside each sample.
package behavior

import "math"

// Size is the number of features in a behavior vector. Every stage of the
// pipeline assumes this length and the feature order below.
const Size = 10

// Feature indexes into a Vector. The order is fixed system-wide: the client
// emits features in this order and the offline-fitted normalizer depends on it.
const (
	Accuracy = iota
	FlightTime
	ErrorCount
	TypingSpeed
	Consistency
	ErrorRate
	KeyHoldTime
	KeystrokeCount
	Latency
	BackspaceCount
)

// Vector is a single behavioral sample: one fixed-order feature snapshot of a
// usage interval.
type Vector []float64

// Valid reports whether the vector has the expected feature count.
func (v Vector) Valid() bool {
	return len(v) == Size
}

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	cp := make(Vector, len(v))
	copy(cp, v)
	return cp
}

// NonzeroCount returns the number of present (nonzero) features. A feature
// reported as exactly zero is treated as missing, not observed.
func (v Vector) NonzeroCount() int {
	n := 0
	for _, x := range v {
		if x != 0 {
			n++
		}
	}
	return n
}

// Norm returns the Euclidean norm.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Distance returns the Euclidean distance to other. Vectors must be the
// same length.
func (v Vector) Distance(other Vector) float64 {
	var sum float64
	for i := range v {
		d := v[i] - other[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ZScores computes per-feature absolute z-scores of sample against the
// reference/deviation pair: |sample[i]-ref[i]| / (dev[i]+eps).
func ZScores(sample, ref, dev Vector, eps float64) Vector {
	z := make(Vector, len(sample))
	for i := range sample {
		z[i] = math.Abs(sample[i]-ref[i]) / (dev[i] + eps)
	}
	return z
}

// Mean returns the arithmetic mean of the elements, 0 for an empty vector.
func (v Vector) Mean() float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// BatchStats computes the per-feature mean and population standard deviation
// of a batch of vectors. All vectors must have length Size.
func BatchStats(batch []Vector) (mean, stddev Vector) {
	mean = make(Vector, Size)
	stddev = make(Vector, Size)
	if len(batch) == 0 {
		return mean, stddev
	}

	n := float64(len(batch))
	for _, v := range batch {
		for i := range mean {
			mean[i] += v[i]
		}
	}
	for i := range mean {
		mean[i] /= n
	}

	for _, v := range batch {
		for i := range stddev {
			d := v[i] - mean[i]
			stddev[i] += d * d
		}
	}
	for i := range stddev {
		stddev[i] = math.Sqrt(stddev[i] / n)
	}
	return mean, stddev
}

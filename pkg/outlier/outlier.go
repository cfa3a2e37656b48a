// Package outlier filters federated-learning participants whose reported
// training loss deviates abnormally from the group. This is a heuristic
// screen against data poisoning, misconfiguration and divergence, not an
// adversarially robust guarantee: a coordinated set of colluding clients
// reporting similar losses will not be detected.
package outlier

import "math"

// DefaultThreshold is the absolute z-score above which a loss is flagged.
const DefaultThreshold = 2.5

// Sample is one client's self-reported training loss.
type Sample struct {
	ClientID string
	Loss     float64
}

// Detector flags clients by loss z-score.
type Detector struct {
	threshold float64
}

// NewDetector builds a detector; a non-positive threshold selects the default.
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Detector{threshold: threshold}
}

// Detect returns the set of client IDs whose |z-score| exceeds the threshold.
// With fewer than two samples, or zero variance across samples, nothing can
// or needs to be filtered and the empty set is returned.
func (d *Detector) Detect(samples []Sample) map[string]bool {
	outliers := make(map[string]bool)
	if len(samples) < 2 {
		return outliers
	}

	var sum float64
	for _, s := range samples {
		sum += s.Loss
	}
	mean := sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		d := s.Loss - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(samples)))
	if std == 0 {
		return outliers
	}

	for _, s := range samples {
		if math.Abs(s.Loss-mean)/std > d.threshold {
			outliers[s.ClientID] = true
		}
	}

	return outliers
}

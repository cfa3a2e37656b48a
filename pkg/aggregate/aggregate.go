// Package aggregate reduces per-client evaluation metrics into round-level
// statistics weighted by local example counts.
package aggregate

import "errors"

var ErrNoExamples = errors.New("no examples to aggregate")

// Weighted pairs an example count with the metrics computed over those
// examples.
type Weighted struct {
	NumExamples int
	Metrics     map[string]float64
}

// WeightedMean computes the example-count-weighted mean for every metric key
// present in all entries. Entries with zero examples contribute nothing; if
// the total example count is zero the reduction fails explicitly rather than
// dividing by zero.
func WeightedMean(results []Weighted) (map[string]float64, error) {
	total := 0
	for _, r := range results {
		total += r.NumExamples
	}
	if total == 0 {
		return nil, ErrNoExamples
	}

	// Only keys every entry reports are aggregated; a partial key would
	// otherwise skew the denominator.
	keys := make(map[string]int)
	for _, r := range results {
		for k := range r.Metrics {
			keys[k]++
		}
	}

	out := make(map[string]float64)
	for k, n := range keys {
		if n != len(results) {
			continue
		}
		var acc float64
		for _, r := range results {
			acc += float64(r.NumExamples) * r.Metrics[k]
		}
		out[k] = acc / float64(total)
	}

	return out, nil
}

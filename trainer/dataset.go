package trainer

import "math/rand/v2"

// SyntheticDataset builds a reproducible classification dataset with
// one Gaussian cluster per class. The demo node trains on it when no
// real dataset is mounted; tests use it for end-to-end coverage.
func SyntheticDataset(seed uint64, examples, features, classes int) ([][]float64, []int) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	centroids := make([][]float64, classes)
	for c := range centroids {
		centroids[c] = make([]float64, features)
		for f := range centroids[c] {
			centroids[c][f] = rng.NormFloat64() * 3
		}
	}

	data := make([][]float64, examples)
	labels := make([]int, examples)
	for i := range data {
		c := rng.IntN(classes)
		labels[i] = c
		data[i] = make([]float64, features)
		for f := range data[i] {
			data[i][f] = centroids[c][f] + rng.NormFloat64()
		}
	}

	return data, labels
}

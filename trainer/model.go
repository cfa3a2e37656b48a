// Package trainer implements the hospital-side training client: local
// differentially private training, encrypted update reporting and
// uncertainty-aware evaluation of the global model.
package trainer

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/hospinet/fedtrain/round"
)

var (
	ErrShapeMismatch = errors.New("parameter tensors do not match the model manifest")
	ErrNoData        = errors.New("model has no local examples")
)

// Model is a trainable classifier bound to a node's local dataset.
// Parameter tensors are exchanged flattened, in manifest order.
type Model interface {
	Manifest() []round.TensorSpec
	Parameters() [][]float64
	SetParameters(params [][]float64) error
	NumExamples() int

	// Gradients returns the mean loss over the local dataset together
	// with the loss gradient of every parameter tensor.
	Gradients() (float64, [][]float64, error)

	// Apply takes one gradient-descent step.
	Apply(grads [][]float64, lr float64) error

	// Forward scores the local dataset. A non-nil rng makes the pass
	// stochastic (dropout-style masking) for uncertainty estimation;
	// preds holds one class-probability row per local example.
	Forward(rng *rand.Rand) (loss, accuracy float64, preds [][]float64, err error)
}

const dropoutRate = 0.1

// LinearClassifier is a softmax regression model over a fixed local
// dataset. It is the reference Model used by the demo node and tests.
type LinearClassifier struct {
	features int
	classes  int
	weights  []float64 // classes x features, row-major
	bias     []float64

	data   [][]float64
	labels []int
}

var _ Model = (*LinearClassifier)(nil)

func NewLinearClassifier(features, classes int, data [][]float64, labels []int) *LinearClassifier {
	return &LinearClassifier{
		features: features,
		classes:  classes,
		weights:  make([]float64, classes*features),
		bias:     make([]float64, classes),
		data:     data,
		labels:   labels,
	}
}

func (m *LinearClassifier) Manifest() []round.TensorSpec {
	return []round.TensorSpec{
		{Name: "weight", Shape: []int{m.classes, m.features}},
		{Name: "bias", Shape: []int{m.classes}},
	}
}

func (m *LinearClassifier) Parameters() [][]float64 {
	w := make([]float64, len(m.weights))
	copy(w, m.weights)
	b := make([]float64, len(m.bias))
	copy(b, m.bias)

	return [][]float64{w, b}
}

func (m *LinearClassifier) SetParameters(params [][]float64) error {
	if len(params) != 2 || len(params[0]) != len(m.weights) || len(params[1]) != len(m.bias) {
		return ErrShapeMismatch
	}
	copy(m.weights, params[0])
	copy(m.bias, params[1])

	return nil
}

func (m *LinearClassifier) NumExamples() int { return len(m.data) }

func (m *LinearClassifier) logits(x []float64, mask *rand.Rand) []float64 {
	out := make([]float64, m.classes)
	for c := 0; c < m.classes; c++ {
		sum := m.bias[c]
		for f := 0; f < m.features; f++ {
			w := m.weights[c*m.features+f]
			if mask != nil && mask.Float64() < dropoutRate {
				continue
			}
			sum += w * x[f]
		}
		out[c] = sum
	}

	return out
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}

	return probs
}

func (m *LinearClassifier) Gradients() (float64, [][]float64, error) {
	if len(m.data) == 0 {
		return 0, nil, ErrNoData
	}

	gw := make([]float64, len(m.weights))
	gb := make([]float64, len(m.bias))
	var loss float64

	for i, x := range m.data {
		probs := softmax(m.logits(x, nil))
		label := m.labels[i]
		loss += -math.Log(math.Max(probs[label], 1e-12))

		for c := 0; c < m.classes; c++ {
			diff := probs[c]
			if c == label {
				diff -= 1
			}
			gb[c] += diff
			for f := 0; f < m.features; f++ {
				gw[c*m.features+f] += diff * x[f]
			}
		}
	}

	n := float64(len(m.data))
	loss /= n
	for i := range gw {
		gw[i] /= n
	}
	for i := range gb {
		gb[i] /= n
	}

	return loss, [][]float64{gw, gb}, nil
}

func (m *LinearClassifier) Apply(grads [][]float64, lr float64) error {
	if len(grads) != 2 || len(grads[0]) != len(m.weights) || len(grads[1]) != len(m.bias) {
		return ErrShapeMismatch
	}
	for i, g := range grads[0] {
		m.weights[i] -= lr * g
	}
	for i, g := range grads[1] {
		m.bias[i] -= lr * g
	}

	return nil
}

func (m *LinearClassifier) Forward(rng *rand.Rand) (float64, float64, [][]float64, error) {
	if len(m.data) == 0 {
		return 0, 0, nil, ErrNoData
	}

	preds := make([][]float64, len(m.data))
	var loss float64
	correct := 0

	for i, x := range m.data {
		probs := softmax(m.logits(x, rng))
		preds[i] = probs
		label := m.labels[i]
		loss += -math.Log(math.Max(probs[label], 1e-12))

		best := 0
		for c, p := range probs {
			if p > probs[best] {
				best = c
			}
		}
		if best == label {
			correct++
		}
	}

	n := float64(len(m.data))

	return loss / n, float64(correct) / n, preds, nil
}

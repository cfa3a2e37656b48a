package trainer

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hospinet/fedtrain/pkg/dp"
	"github.com/hospinet/fedtrain/pkg/hecrypt"
	"github.com/hospinet/fedtrain/round"
)

const (
	defaultLearningRate = 0.1
	defaultMCPasses     = 10
)

var ErrNoPublicContext = errors.New("trainer has no public encryption context")

// LocalTrainer turns round tasks into results: it trains the model with
// differentially private gradient steps, encrypts the updated tensors
// and evaluates the global model with Monte Carlo uncertainty.
type LocalTrainer struct {
	nodeID   string
	model    Model
	pub      *hecrypt.PublicContext
	privacy  dp.Params
	lr       float64
	mcPasses int
	rng      *rand.Rand
}

// Option tweaks a LocalTrainer.
type Option func(*LocalTrainer)

func WithLearningRate(lr float64) Option {
	return func(t *LocalTrainer) { t.lr = lr }
}

func WithMCPasses(n int) Option {
	return func(t *LocalTrainer) { t.mcPasses = n }
}

func NewLocalTrainer(nodeID string, model Model, pub *hecrypt.PublicContext, privacy dp.Params, seed uint64, opts ...Option) (*LocalTrainer, error) {
	if pub == nil {
		return nil, ErrNoPublicContext
	}

	t := &LocalTrainer{
		nodeID:   nodeID,
		model:    model,
		pub:      pub,
		privacy:  privacy,
		lr:       defaultLearningRate,
		mcPasses: defaultMCPasses,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Fit runs the requested epochs of private training and returns the
// encrypted update. Training errors never escape: they come back as a
// zero-example result tagged with the failure reason.
func (t *LocalTrainer) Fit(task round.FitTask) round.FitResult {
	tensors, err := task.Params.Float64Tensors()
	if err != nil {
		return round.FitFailure(t.nodeID, task.Round, err)
	}
	if err := t.model.SetParameters(tensors); err != nil {
		return round.FitFailure(t.nodeID, task.Round, err)
	}

	step, err := dp.NewPrivateStep(t.privacy, t.rng.Uint64())
	if err != nil {
		return round.FitFailure(t.nodeID, task.Round, err)
	}

	var loss float64
	for epoch := 0; epoch < task.Config.Epochs; epoch++ {
		l, grads, err := t.model.Gradients()
		if err != nil {
			return round.FitFailure(t.nodeID, task.Round, err)
		}
		for _, g := range grads {
			step.Apply(g)
		}
		if err := t.model.Apply(grads, t.lr); err != nil {
			return round.FitFailure(t.nodeID, task.Round, err)
		}
		loss = l
	}

	manifest := t.model.Manifest()
	params := t.model.Parameters()
	blobs := make([][]byte, 0, len(params))
	for i, tensor := range params {
		blob, err := t.pub.EncryptTensor(tensor)
		if err != nil {
			return round.FitFailure(t.nodeID, task.Round, fmt.Errorf("encrypting %s: %w", manifest[i].Name, err))
		}
		blobs = append(blobs, blob)
	}

	return round.FitResult{
		NodeID:      t.nodeID,
		Round:       task.Round,
		Params:      round.ParameterVector{Type: round.TensorEncrypted, Tensors: blobs, Manifest: manifest},
		NumExamples: t.model.NumExamples(),
		Metrics: map[string]float64{
			"loss":       loss,
			"dp_epsilon": step.EpsilonSpent(),
		},
	}
}

// Evaluate scores the global model on the local dataset. Uncertainty is
// the mean predictive entropy over Monte Carlo stochastic passes.
func (t *LocalTrainer) Evaluate(task round.EvaluateTask) round.EvaluateResult {
	fail := func(err error) round.EvaluateResult {
		return round.EvaluateResult{NodeID: t.nodeID, Round: task.Round, FailReason: err.Error()}
	}

	tensors, err := task.Params.Float64Tensors()
	if err != nil {
		return fail(err)
	}
	if err := t.model.SetParameters(tensors); err != nil {
		return fail(err)
	}

	loss, accuracy, _, err := t.model.Forward(nil)
	if err != nil {
		return fail(err)
	}

	uncertainty, err := t.predictiveEntropy()
	if err != nil {
		return fail(err)
	}

	return round.EvaluateResult{
		NodeID:      t.nodeID,
		Round:       task.Round,
		Loss:        loss,
		Accuracy:    accuracy,
		Uncertainty: uncertainty,
		NumExamples: t.model.NumExamples(),
	}
}

// predictiveEntropy averages the class probabilities from mcPasses
// stochastic forward passes and returns the mean entropy per example.
func (t *LocalTrainer) predictiveEntropy() (float64, error) {
	var mean [][]float64
	for pass := 0; pass < t.mcPasses; pass++ {
		_, _, preds, err := t.model.Forward(t.rng)
		if err != nil {
			return 0, err
		}
		if mean == nil {
			mean = make([][]float64, len(preds))
			for i := range mean {
				mean[i] = make([]float64, len(preds[i]))
			}
		}
		for i, row := range preds {
			for c, p := range row {
				mean[i][c] += p / float64(t.mcPasses)
			}
		}
	}
	if len(mean) == 0 {
		return 0, ErrNoData
	}

	var entropy float64
	for _, row := range mean {
		for _, p := range row {
			if p > 0 {
				entropy += -p * math.Log(p)
			}
		}
	}

	return entropy / float64(len(mean)), nil
}

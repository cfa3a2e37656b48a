package trainer_test

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospinet/fedtrain/pkg/dp"
	"github.com/hospinet/fedtrain/pkg/hecrypt"
	"github.com/hospinet/fedtrain/round"
	"github.com/hospinet/fedtrain/trainer"
)

var (
	cryptoOnce sync.Once
	cryptoCtx  *hecrypt.Context
	cryptoErr  error
)

func testCrypto(t *testing.T) *hecrypt.Context {
	t.Helper()
	cryptoOnce.Do(func() {
		cryptoCtx, cryptoErr = hecrypt.NewContext(hecrypt.DefaultConfig())
	})
	require.NoError(t, cryptoErr)

	return cryptoCtx
}

func testModel(t *testing.T, examples int) *trainer.LinearClassifier {
	t.Helper()
	data, labels := trainer.SyntheticDataset(7, examples, 4, 2)

	return trainer.NewLinearClassifier(4, 2, data, labels)
}

func globalParams(m trainer.Model) round.ParameterVector {
	return round.PlaintextVector(m.Parameters(), m.Manifest())
}

func TestNewLocalTrainerRequiresContext(t *testing.T) {
	_, err := trainer.NewLocalTrainer("node-1", testModel(t, 10), nil, dp.DefaultParams(), 1)
	assert.ErrorIs(t, err, trainer.ErrNoPublicContext)
}

func TestFitProducesEncryptedUpdate(t *testing.T) {
	ctx := testCrypto(t)
	model := testModel(t, 32)
	tr, err := trainer.NewLocalTrainer("node-1", model, ctx.Public(), dp.DefaultParams(), 1)
	require.NoError(t, err)

	task := round.FitTask{
		Round:  1,
		Config: round.FitConfig{Epochs: 2, ServerRound: 1},
		Params: globalParams(model),
	}
	res := tr.Fit(task)

	require.True(t, res.OK(), "fit failed: %s", res.FailReason)
	assert.Equal(t, "node-1", res.NodeID)
	assert.Equal(t, 1, res.Round)
	assert.Equal(t, 32, res.NumExamples)
	assert.Equal(t, round.TensorEncrypted, res.Params.Type)
	require.NoError(t, res.Params.MatchesManifest(model.Manifest()))

	assert.Contains(t, res.Metrics, "loss")
	// Two epochs under epsilon 1.0, one noised step per tensor per epoch.
	assert.InDelta(t, 4.0, res.Metrics["dp_epsilon"], 1e-9)

	// The key holder can decrypt the update and sees finite values.
	for i, blob := range res.Params.Tensors {
		tensor, err := ctx.Public().DeserializeTensor(blob)
		require.NoError(t, err)
		values, err := ctx.DecryptTensor(tensor, res.Params.Manifest[i].Elements())
		require.NoError(t, err)
		for _, v := range values {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}

func TestFitFailureIsTaggedNotFatal(t *testing.T) {
	ctx := testCrypto(t)
	empty := trainer.NewLinearClassifier(4, 2, nil, nil)
	tr, err := trainer.NewLocalTrainer("node-1", empty, ctx.Public(), dp.DefaultParams(), 1)
	require.NoError(t, err)

	res := tr.Fit(round.FitTask{
		Round:  3,
		Config: round.FitConfig{Epochs: 1},
		Params: globalParams(empty),
	})

	assert.False(t, res.OK())
	assert.Equal(t, "node-1", res.NodeID)
	assert.Equal(t, 3, res.Round)
	assert.Zero(t, res.NumExamples, "a failed node reports zero examples")
	assert.NotEmpty(t, res.FailReason)
}

func TestFitRejectsMismatchedParameters(t *testing.T) {
	ctx := testCrypto(t)
	model := testModel(t, 10)
	tr, err := trainer.NewLocalTrainer("node-1", model, ctx.Public(), dp.DefaultParams(), 1)
	require.NoError(t, err)

	wrong := trainer.NewLinearClassifier(8, 3, nil, nil)
	res := tr.Fit(round.FitTask{
		Round:  1,
		Config: round.FitConfig{Epochs: 1},
		Params: globalParams(wrong),
	})

	assert.False(t, res.OK())
	assert.NotEmpty(t, res.FailReason)
}

func TestEvaluate(t *testing.T) {
	ctx := testCrypto(t)
	model := testModel(t, 32)
	tr, err := trainer.NewLocalTrainer("node-1", model, ctx.Public(), dp.DefaultParams(), 1, trainer.WithMCPasses(5))
	require.NoError(t, err)

	res := tr.Evaluate(round.EvaluateTask{Round: 2, Params: globalParams(model)})

	require.True(t, res.OK(), "evaluate failed: %s", res.FailReason)
	assert.Equal(t, 2, res.Round)
	assert.Equal(t, 32, res.NumExamples)
	assert.GreaterOrEqual(t, res.Accuracy, 0.0)
	assert.LessOrEqual(t, res.Accuracy, 1.0)
	assert.Greater(t, res.Loss, 0.0)
	// Predictive entropy of a two-class model lies in [0, ln 2].
	assert.GreaterOrEqual(t, res.Uncertainty, 0.0)
	assert.LessOrEqual(t, res.Uncertainty, math.Log(2)+1e-9)
}

func TestEvaluateFailureTagged(t *testing.T) {
	ctx := testCrypto(t)
	empty := trainer.NewLinearClassifier(4, 2, nil, nil)
	tr, err := trainer.NewLocalTrainer("node-1", empty, ctx.Public(), dp.DefaultParams(), 1)
	require.NoError(t, err)

	res := tr.Evaluate(round.EvaluateTask{Round: 1, Params: globalParams(empty)})
	assert.False(t, res.OK())
	assert.NotEmpty(t, res.FailReason)
}

func TestLinearClassifierTrainingReducesLoss(t *testing.T) {
	model := testModel(t, 64)

	initial, _, err := model.Gradients()
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, grads, err := model.Gradients()
		require.NoError(t, err)
		require.NoError(t, model.Apply(grads, 0.1))
	}

	final, _, err := model.Gradients()
	require.NoError(t, err)
	assert.Less(t, final, initial, "plain gradient descent must reduce training loss")
}

func TestLinearClassifierSetParameters(t *testing.T) {
	model := testModel(t, 10)

	params := model.Parameters()
	params[0][0] = 0.5
	require.NoError(t, model.SetParameters(params))
	assert.InDelta(t, 0.5, model.Parameters()[0][0], 1e-12)

	assert.ErrorIs(t, model.SetParameters([][]float64{{1, 2}}), trainer.ErrShapeMismatch)
	assert.ErrorIs(t, model.Apply([][]float64{{1, 2}}, 0.1), trainer.ErrShapeMismatch)
}

func TestLinearClassifierNoData(t *testing.T) {
	model := trainer.NewLinearClassifier(4, 2, nil, nil)

	_, _, err := model.Gradients()
	assert.ErrorIs(t, err, trainer.ErrNoData)

	_, _, _, err = model.Forward(nil)
	assert.ErrorIs(t, err, trainer.ErrNoData)
}

func TestSyntheticDataset(t *testing.T) {
	data, labels := trainer.SyntheticDataset(42, 100, 8, 3)
	require.Len(t, data, 100)
	require.Len(t, labels, 100)
	for i, x := range data {
		assert.Len(t, x, 8)
		assert.GreaterOrEqual(t, labels[i], 0)
		assert.Less(t, labels[i], 3)
	}

	again, againLabels := trainer.SyntheticDataset(42, 100, 8, 3)
	assert.Equal(t, data, again, "same seed yields the same dataset")
	assert.Equal(t, labels, againLabels)
}

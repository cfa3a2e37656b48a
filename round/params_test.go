package round_test

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospinet/fedtrain/round"
)

var manifest = []round.TensorSpec{
	{Name: "weight", Shape: []int{2, 3}},
	{Name: "bias", Shape: []int{2}},
}

func TestTensorSpecElements(t *testing.T) {
	assert.Equal(t, 6, round.TensorSpec{Name: "weight", Shape: []int{2, 3}}.Elements())
	assert.Equal(t, 2, round.TensorSpec{Name: "bias", Shape: []int{2}}.Elements())
	assert.Equal(t, 1, round.TensorSpec{Name: "scalar"}.Elements())
}

func TestPlaintextVectorRoundTrip(t *testing.T) {
	tensors := [][]float64{
		{0.1, -0.2, 0.3, 0.4, -0.5, 0.6},
		{1.5, -2.5},
	}

	v := round.PlaintextVector(tensors, manifest)
	require.NoError(t, v.Validate())
	assert.Equal(t, round.TensorPlaintext, v.Type)

	got, err := v.Float64Tensors()
	require.NoError(t, err)
	assert.Equal(t, tensors, got)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		desc string
		mod  func(v *round.ParameterVector)
		err  error
	}{
		{
			desc: "valid vector",
			mod:  func(v *round.ParameterVector) {},
		},
		{
			desc: "missing tensor",
			mod: func(v *round.ParameterVector) {
				v.Tensors = v.Tensors[:1]
			},
			err: round.ErrTensorCount,
		},
		{
			desc: "truncated plaintext tensor",
			mod: func(v *round.ParameterVector) {
				v.Tensors[0] = v.Tensors[0][:8]
			},
			err: round.ErrTensorSize,
		},
		{
			desc: "ciphertext sizes are not checked",
			mod: func(v *round.ParameterVector) {
				v.Type = round.TensorEncrypted
				v.Tensors[0] = []byte{0xde, 0xad}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			v := round.PlaintextVector([][]float64{
				{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
				{1.0, 2.0},
			}, manifest)
			tc.mod(&v)
			assert.ErrorIs(t, v.Validate(), tc.err)
		})
	}
}

func TestMatchesManifest(t *testing.T) {
	v := round.ParameterVector{Manifest: manifest}

	cases := []struct {
		desc  string
		other []round.TensorSpec
		err   error
	}{
		{
			desc:  "identical manifest",
			other: []round.TensorSpec{{Name: "weight", Shape: []int{2, 3}}, {Name: "bias", Shape: []int{2}}},
		},
		{
			desc:  "swapped tensor order",
			other: []round.TensorSpec{{Name: "bias", Shape: []int{2}}, {Name: "weight", Shape: []int{2, 3}}},
			err:   round.ErrManifestMismatch,
		},
		{
			desc:  "shape mismatch",
			other: []round.TensorSpec{{Name: "weight", Shape: []int{3, 2}}, {Name: "bias", Shape: []int{2}}},
			err:   round.ErrManifestMismatch,
		},
		{
			desc:  "rank mismatch",
			other: []round.TensorSpec{{Name: "weight", Shape: []int{6}}, {Name: "bias", Shape: []int{2}}},
			err:   round.ErrManifestMismatch,
		},
		{
			desc:  "missing entry",
			other: []round.TensorSpec{{Name: "weight", Shape: []int{2, 3}}},
			err:   round.ErrManifestMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.ErrorIs(t, v.MatchesManifest(tc.other), tc.err)
		})
	}
}

func TestParameterVectorBinaryRoundTrip(t *testing.T) {
	v := round.PlaintextVector([][]float64{{0.25, -0.75}}, []round.TensorSpec{{Name: "bias", Shape: []int{2}}})

	data, err := v.MarshalBinary()
	require.NoError(t, err)

	var got round.ParameterVector
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, v, got)
}

func TestFitTaskCBORRoundTrip(t *testing.T) {
	task := round.FitTask{
		Round:  3,
		Config: round.FitConfig{Epochs: 2, ServerRound: 3},
		Params: round.PlaintextVector([][]float64{
			{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
			{1.0, 2.0},
		}, manifest),
		Clients: []string{"node-1", "node-2"},
	}

	payload, err := cbor.Marshal(task)
	require.NoError(t, err)

	var got round.FitTask
	require.NoError(t, cbor.Unmarshal(payload, &got))
	assert.Equal(t, task, got)
}

func TestResultOK(t *testing.T) {
	ok := round.FitResult{NodeID: "node-1", NumExamples: 10}
	assert.True(t, ok.OK())

	failed := round.FitFailure("node-1", 3, assert.AnError)
	assert.False(t, failed.OK())
	assert.Equal(t, 3, failed.Round)
	assert.Equal(t, assert.AnError.Error(), failed.FailReason)
	assert.Zero(t, failed.NumExamples)

	empty := round.FitResult{NodeID: "node-1"}
	assert.False(t, empty.OK(), "zero examples is not a usable update")

	eval := round.EvaluateResult{NodeID: "node-1", NumExamples: 5, Accuracy: 0.9}
	assert.True(t, eval.OK())
	assert.False(t, round.EvaluateResult{NodeID: "node-1", FailReason: "oom"}.OK())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "awaiting_clients", round.AwaitingClients.String())
	assert.Equal(t, "aggregating", round.Aggregating.String())
	assert.Equal(t, "finalized", round.Finalized.String())
	assert.Equal(t, "unknown", round.Phase(200).String())
}

func TestRoundStatus(t *testing.T) {
	r := round.Round{
		Number:      2,
		TotalRounds: 5,
		Phase:       round.FitCollected,
		Clients:     []string{"node-1", "node-2"},
		FitResults:  []round.FitResult{{NodeID: "node-1", NumExamples: 10}},
	}

	s := r.Status()
	assert.Equal(t, 2, s.Round)
	assert.Equal(t, 5, s.TotalRounds)
	assert.Equal(t, "fit_collected", s.Phase)
	assert.Equal(t, 2, s.NumClients)
	assert.Equal(t, 1, s.NumResults)
}

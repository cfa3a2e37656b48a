package dp_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospinet/fedtrain/pkg/dp"
)

func l2(v []float64) float64 {
	var sq float64
	for _, x := range v {
		sq += x * x
	}

	return math.Sqrt(sq)
}

func TestNewPrivateStep(t *testing.T) {
	cases := []struct {
		desc   string
		params dp.Params
		err    error
	}{
		{desc: "defaults", params: dp.DefaultParams()},
		{desc: "zero epsilon", params: dp.Params{Epsilon: 0, Delta: 1e-5, MaxGradNorm: 1}, err: dp.ErrInvalidEpsilon},
		{desc: "negative epsilon", params: dp.Params{Epsilon: -1, Delta: 1e-5, MaxGradNorm: 1}, err: dp.ErrInvalidEpsilon},
		{desc: "zero delta", params: dp.Params{Epsilon: 1, Delta: 0, MaxGradNorm: 1}, err: dp.ErrInvalidDelta},
		{desc: "delta of one", params: dp.Params{Epsilon: 1, Delta: 1, MaxGradNorm: 1}, err: dp.ErrInvalidDelta},
		{desc: "zero clip bound", params: dp.Params{Epsilon: 1, Delta: 1e-5, MaxGradNorm: 0}, err: dp.ErrInvalidClip},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			s, err := dp.NewPrivateStep(tc.params, 1)
			assert.ErrorIs(t, err, tc.err)
			if tc.err == nil {
				assert.NotNil(t, s)
			}
		})
	}
}

func TestClipBoundsGradientNorm(t *testing.T) {
	s, err := dp.NewPrivateStep(dp.DefaultParams(), 1)
	require.NoError(t, err)

	grad := []float64{3, 4}
	s.Clip(grad)
	assert.InDelta(t, 1.0, l2(grad), 1e-9)
	// Direction is preserved.
	assert.InDelta(t, 3.0/5.0, grad[0], 1e-9)
	assert.InDelta(t, 4.0/5.0, grad[1], 1e-9)

	small := []float64{0.1, 0.2}
	s.Clip(small)
	assert.InDelta(t, 0.1, small[0], 1e-9, "gradients inside the bound stay untouched")
	assert.InDelta(t, 0.2, small[1], 1e-9)
}

func TestNoiseMultiplier(t *testing.T) {
	p := dp.DefaultParams()
	want := math.Sqrt(2*math.Log(1.25/p.Delta)) / p.Epsilon
	assert.InDelta(t, want, p.NoiseMultiplier(), 1e-12)

	// Tighter epsilon needs more noise.
	tight := dp.Params{Epsilon: 0.5, Delta: 1e-5, MaxGradNorm: 1}
	assert.Greater(t, tight.NoiseMultiplier(), p.NoiseMultiplier())
}

func TestApplyAddsNoiseAndCounts(t *testing.T) {
	s, err := dp.NewPrivateStep(dp.DefaultParams(), 42)
	require.NoError(t, err)

	grad := []float64{0.5, -0.5}
	orig := append([]float64(nil), grad...)
	s.Apply(grad)
	assert.NotEqual(t, orig, grad)
	assert.Equal(t, 1, s.Steps())

	s.Apply(grad)
	assert.Equal(t, 2, s.Steps())
}

func TestApplyDeterministicForSeed(t *testing.T) {
	a, err := dp.NewPrivateStep(dp.DefaultParams(), 7)
	require.NoError(t, err)
	b, err := dp.NewPrivateStep(dp.DefaultParams(), 7)
	require.NoError(t, err)

	ga := []float64{0.3, 0.3, 0.3}
	gb := []float64{0.3, 0.3, 0.3}
	a.Apply(ga)
	b.Apply(gb)
	assert.Equal(t, ga, gb)
}

func TestEpsilonSpent(t *testing.T) {
	p := dp.Params{Epsilon: 0.5, Delta: 1e-5, MaxGradNorm: 1}
	s, err := dp.NewPrivateStep(p, 1)
	require.NoError(t, err)

	assert.Zero(t, s.EpsilonSpent())
	for i := 0; i < 3; i++ {
		s.Apply([]float64{0.1})
	}
	assert.InDelta(t, 1.5, s.EpsilonSpent(), 1e-12)
}

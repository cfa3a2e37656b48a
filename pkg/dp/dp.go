// Package dp implements the clip-then-noise private training step that
// bounds each example's contribution to a model update. It is the single
// function boundary between local training and privacy accounting,
// independent of any particular model or optimizer.
package dp

import (
	"errors"
	"math"
	"math/rand/v2"
)

var (
	ErrInvalidEpsilon = errors.New("epsilon must be positive")
	ErrInvalidDelta   = errors.New("delta must be in (0, 1)")
	ErrInvalidClip    = errors.New("max gradient norm must be positive")
)

// Params holds the differential-privacy budget for one training session.
// The defaults are configurable, not fixed constants.
type Params struct {
	Epsilon     float64 `toml:"epsilon"`
	Delta       float64 `toml:"delta"`
	MaxGradNorm float64 `toml:"max_grad_norm"`
}

// DefaultParams returns the platform defaults: epsilon 1.0, delta 1e-5,
// L2 clipping bound 1.0.
func DefaultParams() Params {
	return Params{Epsilon: 1.0, Delta: 1e-5, MaxGradNorm: 1.0}
}

func (p Params) validate() error {
	if p.Epsilon <= 0 {
		return ErrInvalidEpsilon
	}
	if p.Delta <= 0 || p.Delta >= 1 {
		return ErrInvalidDelta
	}
	if p.MaxGradNorm <= 0 {
		return ErrInvalidClip
	}

	return nil
}

// NoiseMultiplier calibrates the Gaussian mechanism for the target budget:
// sigma = sqrt(2 ln(1.25/delta)) / epsilon.
func (p Params) NoiseMultiplier() float64 {
	return math.Sqrt(2*math.Log(1.25/p.Delta)) / p.Epsilon
}

// PrivateStep clips a gradient to the L2 bound and adds calibrated Gaussian
// noise. It also tracks how many steps were taken for epsilon accounting.
type PrivateStep struct {
	params Params
	sigma  float64
	rng    *rand.Rand
	steps  int
}

// NewPrivateStep builds a private step; the seed makes noise reproducible in
// tests and must be random in production.
func NewPrivateStep(p Params, seed uint64) (*PrivateStep, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	return &PrivateStep{
		params: p,
		sigma:  p.NoiseMultiplier() * p.MaxGradNorm,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Apply clips the gradient in place to the L2 bound, adds noise, and counts
// the step.
func (s *PrivateStep) Apply(grad []float64) {
	s.Clip(grad)
	for i := range grad {
		grad[i] += s.rng.NormFloat64() * s.sigma
	}
	s.steps++
}

// Clip bounds the gradient without adding noise. Exposed so callers can test
// the clipping invariant in isolation.
func (s *PrivateStep) Clip(grad []float64) {
	var sq float64
	for _, g := range grad {
		sq += g * g
	}
	norm := math.Sqrt(sq)
	if norm > s.params.MaxGradNorm {
		scale := s.params.MaxGradNorm / norm
		for i := range grad {
			grad[i] *= scale
		}
	}
}

// Steps returns the number of noised steps taken so far.
func (s *PrivateStep) Steps() int { return s.steps }

// EpsilonSpent reports the budget consumed under basic sequential
// composition. Coarse by design: it upper-bounds tighter accountants.
func (s *PrivateStep) EpsilonSpent() float64 {
	return s.params.Epsilon * float64(s.steps)
}

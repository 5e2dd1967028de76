// Package consistency implements the consistency-model denoiser
// parametrization on top of an arbitrary network backbone.
//
// The denoised estimate for a sample at noise level σ is
//
//	D(x, σ) = c_skip(σ)·x + c_out(σ)·F(x, σ)
//
// with
//
//	c_skip(σ) = σ_data² / ((σ − σ_min)² + σ_data²)
//	c_out(σ)  = σ_data·(σ − σ_min) / sqrt(σ_data² + σ²)
//
// so that D reduces to the identity at σ = σ_min regardless of F.
package consistency

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Backbone is the network a Model wraps. P is the backbone's parameter type.
// rng may be nil when training is false.
type Backbone[P any] interface {
	Predict(params P, x Tensor, step int, cond Tensor, training bool, rng *rand.Rand) (Tensor, error)
}

// BackboneFunc adapts a plain function to the Backbone interface.
type BackboneFunc[P any] func(params P, x Tensor, step int, cond Tensor, training bool, rng *rand.Rand) (Tensor, error)

// Predict calls f.
func (f BackboneFunc[P]) Predict(params P, x Tensor, step int, cond Tensor, training bool, rng *rand.Rand) (Tensor, error) {
	return f(params, x, step, cond, training, rng)
}

// Model holds the immutable parametrization settings. It is safe for
// concurrent use as long as the backbone is.
type Model[P any] struct {
	stdData  float64
	minNoise float64
	backbone Backbone[P]
}

// New creates a Model. stdData must be positive and minNoise non-negative.
func New[P any](stdData, minNoise float64, backbone Backbone[P]) (*Model[P], error) {
	if !(stdData > 0) {
		return nil, fmt.Errorf("std_data must be > 0, got %g", stdData)
	}
	if !(minNoise >= 0) {
		return nil, fmt.Errorf("min_noise must be >= 0, got %g", minNoise)
	}
	if backbone == nil {
		return nil, fmt.Errorf("backbone is required")
	}
	return &Model[P]{stdData: stdData, minNoise: minNoise, backbone: backbone}, nil
}

// StdData returns the configured data standard deviation.
func (m *Model[P]) StdData() float64 { return m.stdData }

// MinNoise returns the noise floor at which the model is the identity.
func (m *Model[P]) MinNoise() float64 { return m.minNoise }

// SkipWeight is the coefficient applied to the noisy input.
func (m *Model[P]) SkipWeight(noise float64) float64 {
	d := noise - m.minNoise
	s2 := m.stdData * m.stdData
	return s2 / (d*d + s2)
}

// OutputWeight is the coefficient applied to the backbone prediction.
func (m *Model[P]) OutputWeight(noise float64) float64 {
	return m.stdData * (noise - m.minNoise) / math.Sqrt(m.stdData*m.stdData+noise*noise)
}

// Denoise blends x with the backbone prediction, one noise level per sample.
// Backbone errors are returned unchanged.
func (m *Model[P]) Denoise(params P, x, cond Tensor, noise []float64, step int, training bool, rng *rand.Rand) (Tensor, error) {
	if len(noise) != x.BatchSize() {
		return Tensor{}, fmt.Errorf("%w: %d noise levels for batch of %d", ErrShapeMismatch, len(noise), x.BatchSize())
	}
	skip := make([]float64, len(noise))
	out := make([]float64, len(noise))
	for i, n := range noise {
		skip[i] = m.SkipWeight(n)
		out[i] = m.OutputWeight(n)
	}

	pred, err := m.backbone.Predict(params, x, step, cond, training, rng)
	if err != nil {
		return Tensor{}, err
	}
	if !pred.SameShape(x) {
		return Tensor{}, fmt.Errorf("%w: backbone returned %v for input %v", ErrShapeMismatch, pred.Shape, x.Shape)
	}

	a, err := BatchMul(skip, x)
	if err != nil {
		return Tensor{}, err
	}
	b, err := BatchMul(out, pred)
	if err != nil {
		return Tensor{}, err
	}
	return add(a, b)
}

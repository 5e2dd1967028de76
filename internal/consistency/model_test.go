package consistency_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/couchcryptid/precip-bench/internal/consistency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	scale float32
}

func identity() consistency.Backbone[params] {
	return consistency.BackboneFunc[params](func(_ params, x consistency.Tensor, _ int, _ consistency.Tensor, _ bool, _ *rand.Rand) (consistency.Tensor, error) {
		return x, nil
	})
}

func scaled() consistency.Backbone[params] {
	return consistency.BackboneFunc[params](func(p params, x consistency.Tensor, _ int, _ consistency.Tensor, _ bool, _ *rand.Rand) (consistency.Tensor, error) {
		out := consistency.NewTensor(x.Shape...)
		for i, v := range x.Data {
			out.Data[i] = p.scale * v
		}
		return out, nil
	})
}

func newModel(t *testing.T, stdData, minNoise float64, b consistency.Backbone[params]) *consistency.Model[params] {
	t.Helper()
	m, err := consistency.New(stdData, minNoise, b)
	require.NoError(t, err)
	return m
}

func sampleBatch(batch int, dims ...int) consistency.Tensor {
	x := consistency.NewTensor(append([]int{batch}, dims...)...)
	for i := range x.Data {
		x.Data[i] = float32(i%7) - 2.5
	}
	return x
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	_, err := consistency.New(0, 0.002, identity())
	require.Error(t, err)
	_, err = consistency.New(0.5, -1, identity())
	require.Error(t, err)
	_, err = consistency.New[params](0.5, 0.002, nil)
	require.Error(t, err)
}

func TestWeights_BoundaryCondition(t *testing.T) {
	for _, minNoise := range []float64{0, 0.002, 0.5, 3} {
		m := newModel(t, 0.5, minNoise, identity())
		assert.InDelta(t, 1.0, m.SkipWeight(minNoise), 1e-12)
		assert.InDelta(t, 0.0, m.OutputWeight(minNoise), 1e-12)
	}
}

func TestWeights_ZeroMinNoiseAtZeroNoise(t *testing.T) {
	m := newModel(t, 0.5, 0, identity())
	assert.Equal(t, 1.0, m.SkipWeight(0))
	assert.Equal(t, 0.0, m.OutputWeight(0))
	assert.False(t, math.IsNaN(m.OutputWeight(0)))
}

func TestSkipWeight_InUnitInterval(t *testing.T) {
	m := newModel(t, 0.5, 0.002, identity())
	for _, noise := range []float64{-80, -1, 0, 0.002, 0.1, 1, 10, 80, 1e6} {
		w := m.SkipWeight(noise)
		assert.Greater(t, w, 0.0, "noise=%g", noise)
		assert.LessOrEqual(t, w, 1.0, "noise=%g", noise)
	}
	assert.Less(t, m.SkipWeight(80), m.SkipWeight(1))
}

func TestOutputWeight_KnownValue(t *testing.T) {
	m := newModel(t, 0.5, 0.002, identity())
	noise := 1.0
	want := 0.5 * (noise - 0.002) / math.Sqrt(0.25+noise*noise)
	assert.InDelta(t, want, m.OutputWeight(noise), 1e-15)
	assert.InDelta(t, 0.25/((noise-0.002)*(noise-0.002)+0.25), m.SkipWeight(noise), 1e-15)
}

func TestDenoise_IdentityAtMinNoise(t *testing.T) {
	m := newModel(t, 0.5, 0.002, identity())
	x := sampleBatch(3, 2, 4, 4)
	noise := []float64{0.002, 0.002, 0.002}

	out, err := m.Denoise(params{}, x, consistency.Tensor{}, noise, 0, false, nil)
	require.NoError(t, err)
	assert.Equal(t, x.Shape, out.Shape)
	assert.Equal(t, x.Data, out.Data)
}

func TestDenoise_PreservesShape(t *testing.T) {
	m := newModel(t, 0.5, 0.002, scaled())
	for _, batch := range []int{1, 2, 5} {
		x := sampleBatch(batch, 1, 3, 8)
		noise := make([]float64, batch)
		for i := range noise {
			noise[i] = 0.1 * float64(i+1)
		}
		out, err := m.Denoise(params{scale: 2}, x, consistency.Tensor{}, noise, 1, false, nil)
		require.NoError(t, err)
		assert.Equal(t, x.Shape, out.Shape)
		assert.Len(t, out.Data, len(x.Data))
	}
}

func TestDenoise_PerSampleWeights(t *testing.T) {
	m := newModel(t, 0.5, 0.002, scaled())
	x := consistency.NewTensor(2, 3)
	copy(x.Data, []float32{1, 2, 3, 1, 2, 3})
	noise := []float64{0.002, 2}

	out, err := m.Denoise(params{scale: -1}, x, consistency.Tensor{}, noise, 4, false, nil)
	require.NoError(t, err)

	// Sample 0 sits on the boundary and is returned unchanged.
	assert.Equal(t, []float32{1, 2, 3}, out.Data[:3])

	skip, o := m.SkipWeight(2), m.OutputWeight(2)
	for k, v := range []float32{1, 2, 3} {
		want := float32(skip)*v + float32(o)*(-v)
		assert.InDelta(t, want, out.Data[3+k], 1e-6)
	}
}

func TestDenoise_ForwardsArgumentsToBackbone(t *testing.T) {
	var gotStep int
	var gotTraining bool
	var gotRNG *rand.Rand
	var gotCond consistency.Tensor
	b := consistency.BackboneFunc[params](func(_ params, x consistency.Tensor, step int, cond consistency.Tensor, training bool, rng *rand.Rand) (consistency.Tensor, error) {
		gotStep, gotTraining, gotRNG, gotCond = step, training, rng, cond
		return x, nil
	})
	m := newModel(t, 0.5, 0.002, b)
	rng := rand.New(rand.NewPCG(1, 2))
	cond := consistency.NewTensor(1, 2)

	_, err := m.Denoise(params{}, sampleBatch(1, 2), cond, []float64{0.3}, 7, true, rng)
	require.NoError(t, err)
	assert.Equal(t, 7, gotStep)
	assert.True(t, gotTraining)
	assert.Same(t, rng, gotRNG)
	assert.Equal(t, cond.Shape, gotCond.Shape)
}

func TestDenoise_PropagatesBackboneError(t *testing.T) {
	boom := errors.New("backbone failed")
	b := consistency.BackboneFunc[params](func(params, consistency.Tensor, int, consistency.Tensor, bool, *rand.Rand) (consistency.Tensor, error) {
		return consistency.Tensor{}, boom
	})
	m := newModel(t, 0.5, 0.002, b)

	_, err := m.Denoise(params{}, sampleBatch(2, 3), consistency.Tensor{}, []float64{1, 1}, 0, false, nil)
	assert.Same(t, boom, err)
}

func TestDenoise_ShapeErrors(t *testing.T) {
	m := newModel(t, 0.5, 0.002, identity())
	_, err := m.Denoise(params{}, sampleBatch(2, 3), consistency.Tensor{}, []float64{1}, 0, false, nil)
	require.ErrorIs(t, err, consistency.ErrShapeMismatch)

	bad := consistency.BackboneFunc[params](func(_ params, _ consistency.Tensor, _ int, _ consistency.Tensor, _ bool, _ *rand.Rand) (consistency.Tensor, error) {
		return consistency.NewTensor(2, 4), nil
	})
	m = newModel(t, 0.5, 0.002, bad)
	_, err = m.Denoise(params{}, sampleBatch(2, 3), consistency.Tensor{}, []float64{1, 1}, 0, false, nil)
	require.ErrorIs(t, err, consistency.ErrShapeMismatch)
}

func TestBatchMul(t *testing.T) {
	x := consistency.NewTensor(2, 2, 2)
	for i := range x.Data {
		x.Data[i] = 1
	}
	out, err := consistency.BatchMul([]float64{2, 3}, x)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2, 2, 2, 3, 3, 3, 3}, out.Data)
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1, 1, 1}, x.Data)
}

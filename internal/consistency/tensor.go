package consistency

import (
	"errors"
	"fmt"
	"slices"
)

// ErrShapeMismatch is returned when tensors or weight vectors disagree on shape.
var ErrShapeMismatch = errors.New("shape mismatch")

// Tensor is a dense row-major float32 array whose leading dimension is the batch.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zero tensor of the given shape.
func NewTensor(shape ...int) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Tensor{Shape: slices.Clone(shape), Data: make([]float32, n)}
}

// BatchSize returns the leading dimension, or 0 for a scalar tensor.
func (t Tensor) BatchSize() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// SameShape reports whether t and o have identical dimensions.
func (t Tensor) SameShape(o Tensor) bool {
	return slices.Equal(t.Shape, o.Shape) && len(t.Data) == len(o.Data)
}

// BatchMul scales every sample of t by its own weight: out[b, ...] = w[b] * t[b, ...].
func BatchMul(w []float64, t Tensor) (Tensor, error) {
	b := t.BatchSize()
	if len(w) != b {
		return Tensor{}, fmt.Errorf("%w: %d weights for batch of %d", ErrShapeMismatch, len(w), b)
	}
	out := Tensor{Shape: slices.Clone(t.Shape), Data: make([]float32, len(t.Data))}
	if b == 0 {
		return out, nil
	}
	stride := len(t.Data) / b
	for i, wi := range w {
		s := float32(wi)
		for k := i * stride; k < (i+1)*stride; k++ {
			out.Data[k] = s * t.Data[k]
		}
	}
	return out, nil
}

// add returns a + b elementwise; shapes must match.
func add(a, b Tensor) (Tensor, error) {
	if !a.SameShape(b) {
		return Tensor{}, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, a.Shape, b.Shape)
	}
	out := Tensor{Shape: slices.Clone(a.Shape), Data: make([]float32, len(a.Data))}
	for i := range a.Data {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return out, nil
}

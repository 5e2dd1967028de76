package skill

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	errEmpty     = errors.New("empty sample")
	errNonFinite = errors.New("non-finite value in sample")
)

// checkFinite rejects NaN and infinite values, which sort unpredictably and
// break the binned and integrated scores.
func checkFinite(samples ...[]float64) error {
	for _, s := range samples {
		for i, x := range s {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: %g at index %d", errNonFinite, x, i)
			}
		}
	}
	return nil
}

func checkPaired(ref, pred []float64) error {
	if len(ref) != len(pred) {
		return fmt.Errorf("length mismatch: reference has %d values, forecast has %d", len(ref), len(pred))
	}
	if len(ref) == 0 {
		return errEmpty
	}
	return nil
}

// MeanAbsoluteError is mean |ref - pred| over all paired values.
func MeanAbsoluteError(ref, pred []float64) (float64, error) {
	if err := checkPaired(ref, pred); err != nil {
		return 0, err
	}
	return floats.Distance(ref, pred, 1) / float64(len(ref)), nil
}

// RootMeanSquaredError is sqrt(mean (ref - pred)²) over all paired values.
func RootMeanSquaredError(ref, pred []float64) (float64, error) {
	if err := checkPaired(ref, pred); err != nil {
		return 0, err
	}
	d := floats.Distance(ref, pred, 2)
	return d / math.Sqrt(float64(len(ref))), nil
}

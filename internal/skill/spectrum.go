package skill

import (
	"errors"
	"math"
	"slices"
	"sort"

	"github.com/couchcryptid/precip-bench/internal/spectral"
)

// DefaultPSDFloor is the smallest power kept before taking log10.
const DefaultPSDFloor = 1e-10

var errNoOverlap = errors.New("spectra share no wavenumber range")

// LogPSDDistance compares log10 power of two spectra. When the wavenumber
// grids differ, pred is interpolated linearly in log-log space onto the
// reference wavenumbers inside their common range.
func LogPSDDistance(ref, pred spectral.Spectrum, n Norm, floor float64) (float64, error) {
	if len(ref.Power) == 0 || len(pred.Power) == 0 {
		return 0, errEmpty
	}
	lr := logPower(ref.Power, floor)
	lp := logPower(pred.Power, floor)
	if slices.Equal(ref.Wavenumbers, pred.Wavenumbers) {
		return distance(lr, lp, n), nil
	}

	logKp := make([]float64, len(pred.Wavenumbers))
	for i, k := range pred.Wavenumbers {
		logKp[i] = math.Log10(k)
	}
	var a, b []float64
	for i, k := range ref.Wavenumbers {
		v, ok := interpolate(logKp, lp, math.Log10(k))
		if !ok {
			continue
		}
		a = append(a, lr[i])
		b = append(b, v)
	}
	if len(a) == 0 {
		return 0, errNoOverlap
	}
	return distance(a, b, n), nil
}

func logPower(p []float64, floor float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = math.Log10(math.Max(v, floor))
	}
	return out
}

// interpolate evaluates the piecewise-linear function through (xs, ys) at x.
// xs must be increasing; x outside [xs[0], xs[last]] is rejected.
func interpolate(xs, ys []float64, x float64) (float64, bool) {
	if len(xs) == 0 || x < xs[0] || x > xs[len(xs)-1] {
		return 0, false
	}
	k := sort.SearchFloat64s(xs, x)
	if xs[k] == x {
		return ys[k], true
	}
	t := (x - xs[k-1]) / (xs[k] - xs[k-1])
	return ys[k-1] + t*(ys[k]-ys[k-1]), true
}

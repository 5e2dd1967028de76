package domain

import (
	"errors"
	"fmt"
	"time"
)

// TimeRange selects the half-open time-index interval [Start, End).
type TimeRange struct {
	Start int
	End   int
}

// Len returns the number of selected indices before clamping.
func (r TimeRange) Len() int { return r.End - r.Start }

// Validate rejects empty or negative ranges.
func (r TimeRange) Validate() error {
	if r.Start < 0 {
		return errors.New("time range start must be >= 0")
	}
	if r.End <= r.Start {
		return fmt.Errorf("time range [%d, %d) is empty", r.Start, r.End)
	}
	return nil
}

// Restrict applies the shared time selection and the spatial crop
// (rows 0..ny, columns 0..nx) to f. Bounds past the available extent are
// clamped. Coordinates are cropped along with the field so the result
// still satisfies GriddedField.Validate.
func Restrict(f GriddedField, tr TimeRange, nx, ny int) (GriddedField, error) {
	if err := tr.Validate(); err != nil {
		return GriddedField{}, err
	}
	if nx <= 0 || ny <= 0 {
		return GriddedField{}, fmt.Errorf("crop %dx%d must be positive", nx, ny)
	}
	src := f.Precip
	t0 := min(tr.Start, src.T)
	t1 := min(tr.End, src.T)
	rows := min(ny, src.Ny)
	cols := min(nx, src.Nx)

	out := NewCube(t1-t0, rows, cols)
	for t := t0; t < t1; t++ {
		for i := range rows {
			base := ((t-t0)*rows + i) * cols
			copy(out.Data[base:base+cols], src.Data[(t*src.Ny+i)*src.Nx:])
		}
	}

	times := make([]time.Time, t1-t0)
	copy(times, f.Times[t0:t1])
	lons := make([]float64, cols)
	copy(lons, f.Lons[:cols])
	lats := make([]float64, rows)
	copy(lats, f.Lats[:rows])

	return GriddedField{Precip: out, Lons: lons, Lats: lats, Times: times}, nil
}

// ResolveIndex maps a possibly negative index (counting from the end) onto
// [0, n).
func ResolveIndex(i, n int) (int, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index out of range for length %d", n)
	}
	return i, nil
}

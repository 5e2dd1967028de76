package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrGridMismatch is returned when two fields that must share a grid do not.
	ErrGridMismatch = errors.New("grid mismatch")
	// ErrNonFinite is returned when a field holds NaN or infinite values.
	ErrNonFinite = errors.New("non-finite value")
)

// Cube is a row-major (time, row, column) array of a physical quantity.
type Cube struct {
	T, Ny, Nx int
	Data      []float64
}

// NewCube allocates a zero-filled cube.
func NewCube(t, ny, nx int) Cube {
	return Cube{T: t, Ny: ny, Nx: nx, Data: make([]float64, t*ny*nx)}
}

// At returns the value at time t, row i, column j.
func (c Cube) At(t, i, j int) float64 {
	return c.Data[(t*c.Ny+i)*c.Nx+j]
}

// Set stores v at time t, row i, column j.
func (c Cube) Set(t, i, j int, v float64) {
	c.Data[(t*c.Ny+i)*c.Nx+j] = v
}

// Slice returns the 2-D field at time index t as a row-major view.
func (c Cube) Slice(t int) []float64 {
	n := c.Ny * c.Nx
	return c.Data[t*n : (t+1)*n]
}

// SameShape reports whether c and o have identical dimensions.
func (c Cube) SameShape(o Cube) bool {
	return c.T == o.T && c.Ny == o.Ny && c.Nx == o.Nx
}

// Shape returns the dimensions as (time, rows, columns).
func (c Cube) Shape() [3]int {
	return [3]int{c.T, c.Ny, c.Nx}
}

// GriddedField is a precipitation field together with its coordinates.
// Longitudes and latitudes are shared across time.
type GriddedField struct {
	Precip Cube
	Lons   []float64
	Lats   []float64
	Times  []time.Time
}

// Validate checks that coordinate lengths match the field extents and that
// every value is finite.
func (f GriddedField) Validate() error {
	if len(f.Precip.Data) != f.Precip.T*f.Precip.Ny*f.Precip.Nx {
		return fmt.Errorf("precip holds %d values for shape %v", len(f.Precip.Data), f.Precip.Shape())
	}
	if len(f.Lons) != f.Precip.Nx {
		return fmt.Errorf("longitude length %d does not match %d columns", len(f.Lons), f.Precip.Nx)
	}
	if len(f.Lats) != f.Precip.Ny {
		return fmt.Errorf("latitude length %d does not match %d rows", len(f.Lats), f.Precip.Ny)
	}
	if len(f.Times) != f.Precip.T {
		return fmt.Errorf("time length %d does not match %d steps", len(f.Times), f.Precip.T)
	}
	for k, v := range f.Precip.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			n := f.Precip.Ny * f.Precip.Nx
			return fmt.Errorf("%w: %g at (t=%d, row=%d, col=%d)",
				ErrNonFinite, v, k/n, (k%n)/f.Precip.Nx, k%f.Precip.Nx)
		}
	}
	return nil
}

// LastTime returns the final timestamp, or the zero time for an empty field.
func (f GriddedField) LastTime() time.Time {
	if len(f.Times) == 0 {
		return time.Time{}
	}
	return f.Times[len(f.Times)-1]
}

// ForecastRecord is the unit handed to metrics and plots.
type ForecastRecord struct {
	Label   string
	Data    Cube
	XLength float64 // km
	YLength float64 // km
}

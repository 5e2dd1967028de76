// Package netcdf reads and writes gridded precipitation files. Both NetCDF
// classic and NetCDF-4/HDF5 containers are supported.
//
// A file holds a 3-D variable "precip" (time, latitude, longitude), the 1-D
// coordinate variables "longitude" and "latitude", and a CF time variable
// "time" whose "units" attribute reads "<unit> since <reference date>".
package netcdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/precip-bench/internal/domain"
)

// Variable names expected in every dataset file.
const (
	VarPrecip    = "precip"
	VarLongitude = "longitude"
	VarLatitude  = "latitude"
	VarTime      = "time"
)

var (
	// ErrMissingVariable is returned when a required variable is absent.
	ErrMissingVariable = errors.New("missing variable")
	// ErrMaskedValues is returned when precip cells carry the variable's
	// _FillValue or missing_value marker.
	ErrMaskedValues = errors.New("masked values")
)

// Loader reads GriddedFields from files on disk.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load opens path, reads the precipitation field with its coordinates, and
// closes the file before returning, also on failure.
func (l *Loader) Load(ctx context.Context, path string) (domain.GriddedField, error) {
	if err := ctx.Err(); err != nil {
		return domain.GriddedField{}, err
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		return domain.GriddedField{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	f, err := readField(nc)
	if err != nil {
		return domain.GriddedField{}, fmt.Errorf("read %s: %w", path, err)
	}
	l.logger.Debug("dataset file read", "path", path,
		"shape", f.Precip.Shape(), "first_time", firstTime(f), "last_time", f.LastTime())
	return f, nil
}

func readField(nc api.Group) (domain.GriddedField, error) {
	vars := nc.ListVariables()
	for _, name := range []string{VarPrecip, VarLongitude, VarLatitude, VarTime} {
		if !slices.Contains(vars, name) {
			return domain.GriddedField{}, fmt.Errorf("%w: %q", ErrMissingVariable, name)
		}
	}

	precip, err := readPrecip(nc)
	if err != nil {
		return domain.GriddedField{}, err
	}
	lons, err := readVector(nc, VarLongitude)
	if err != nil {
		return domain.GriddedField{}, err
	}
	lats, err := readVector(nc, VarLatitude)
	if err != nil {
		return domain.GriddedField{}, err
	}
	times, err := readTimes(nc)
	if err != nil {
		return domain.GriddedField{}, err
	}

	f := domain.GriddedField{Precip: precip, Lons: lons, Lats: lats, Times: times}
	if err := f.Validate(); err != nil {
		return domain.GriddedField{}, err
	}
	return f, nil
}

func readPrecip(nc api.Group) (domain.Cube, error) {
	vg, err := nc.GetVarGetter(VarPrecip)
	if err != nil {
		return domain.Cube{}, fmt.Errorf("%s: %w", VarPrecip, err)
	}
	if dims := vg.Dimensions(); len(dims) != 3 {
		return domain.Cube{}, fmt.Errorf("%s: expected 3 dimensions, got %d %v", VarPrecip, len(dims), dims)
	}
	v, err := vg.Values()
	if err != nil {
		return domain.Cube{}, fmt.Errorf("%s: %w", VarPrecip, err)
	}

	var c domain.Cube
	switch vals := v.(type) {
	case [][][]float32:
		c = cubeOf(vals)
	case [][][]float64:
		c = cubeOf(vals)
	case [][][]int16:
		c = cubeOf(vals)
	case [][][]int32:
		c = cubeOf(vals)
	default:
		return domain.Cube{}, fmt.Errorf("%s: unsupported type %T", VarPrecip, v)
	}
	if n := unpack(c.Data, vg.Attributes()); n > 0 {
		return domain.Cube{}, fmt.Errorf("%s: %w: %d of %d cells", VarPrecip, ErrMaskedValues, n, len(c.Data))
	}
	return c, nil
}

func readVector(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	out, ok := vectorOf(v)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported type %T", name, v)
	}
	return out, nil
}

type number interface {
	~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func cubeOf[T number](v [][][]T) domain.Cube {
	t := len(v)
	var ny, nx int
	if t > 0 {
		ny = len(v[0])
		if ny > 0 {
			nx = len(v[0][0])
		}
	}
	c := domain.NewCube(t, ny, nx)
	k := 0
	for _, plane := range v {
		for _, row := range plane {
			for _, x := range row {
				c.Data[k] = float64(x)
				k++
			}
		}
	}
	return c
}

func vectorOf(v any) ([]float64, bool) {
	switch vals := v.(type) {
	case []float32:
		return convert(vals), true
	case []float64:
		return convert(vals), true
	case []int16:
		return convert(vals), true
	case []int32:
		return convert(vals), true
	case []int64:
		return convert(vals), true
	}
	return nil, false
}

func convert[T number](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// unpack replaces cells equal to _FillValue or missing_value with NaN, then
// applies CF scale_factor / add_offset packing in place. Markers are compared
// against the packed values. It returns the number of masked cells.
func unpack(data []float64, attrs api.AttributeMap) int {
	if attrs == nil {
		return 0
	}
	var markers []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		if v, ok := floatAttr(attrs, key); ok {
			markers = append(markers, v)
		}
	}
	masked := 0
	if len(markers) > 0 {
		for i, x := range data {
			if slices.Contains(markers, x) {
				data[i] = math.NaN()
				masked++
			}
		}
	}

	scale, hasScale := floatAttr(attrs, "scale_factor")
	offset, hasOffset := floatAttr(attrs, "add_offset")
	if !hasScale && !hasOffset {
		return masked
	}
	if !hasScale {
		scale = 1
	}
	for i, x := range data {
		data[i] = x*scale + offset
	}
	return masked
}

func floatAttr(attrs api.AttributeMap, key string) (float64, bool) {
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case []float32:
		return first(x)
	case []float64:
		return first(x)
	case []int16:
		return first(x)
	case []int32:
		return first(x)
	}
	return 0, false
}

func first[T number](v []T) (float64, bool) {
	if len(v) == 0 {
		return 0, false
	}
	return float64(v[0]), true
}

func firstTime(f domain.GriddedField) any {
	if len(f.Times) == 0 {
		return nil
	}
	return f.Times[0]
}

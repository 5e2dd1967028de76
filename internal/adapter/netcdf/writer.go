package netcdf

import (
	"fmt"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/couchcryptid/precip-bench/internal/domain"
)

// WriteField stores f as a NetCDF classic file at path. Times are encoded
// as hours since epoch; precipitation is written as float32 in unit.
func WriteField(path string, f domain.GriddedField, epoch time.Time, unit string) (err error) {
	if err := f.Validate(); err != nil {
		return err
	}
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := cw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	hours := make([]float64, len(f.Times))
	for i, t := range f.Times {
		hours[i] = t.Sub(epoch).Hours()
	}

	vars := []struct {
		name  string
		vals  any
		dims  []string
		attrs map[string]any
	}{
		{VarLongitude, f.Lons, []string{VarLongitude}, map[string]any{"units": "degrees_east"}},
		{VarLatitude, f.Lats, []string{VarLatitude}, map[string]any{"units": "degrees_north"}},
		{VarTime, hours, []string{VarTime}, map[string]any{
			"units": "hours since " + epoch.UTC().Format("2006-01-02 15:04:05"),
		}},
		{VarPrecip, planes(f.Precip), []string{VarTime, VarLatitude, VarLongitude}, map[string]any{"units": unit}},
	}
	for _, v := range vars {
		attrs, err := orderedAttrs(v.attrs)
		if err != nil {
			return err
		}
		if err := cw.AddVar(v.name, api.Variable{Values: v.vals, Dimensions: v.dims, Attributes: attrs}); err != nil {
			return fmt.Errorf("write %s: %w", v.name, err)
		}
	}
	return nil
}

func orderedAttrs(m map[string]any) (api.AttributeMap, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return util.NewOrderedMap(keys, m)
}

func planes(c domain.Cube) [][][]float32 {
	out := make([][][]float32, c.T)
	for t := range c.T {
		out[t] = make([][]float32, c.Ny)
		for i := range c.Ny {
			row := make([]float32, c.Nx)
			for j := range c.Nx {
				row[j] = float32(c.At(t, i, j))
			}
			out[t][i] = row
		}
	}
	return out
}

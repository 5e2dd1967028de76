package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

var referenceLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimeUnits splits a CF units string such as
// "hours since 1900-01-01 00:00:00" into a step and a reference instant.
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	unit, ref, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: missing \"since\"", units)
	}

	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds", "second", "secs", "sec", "s":
		step = time.Second
	case "minutes", "minute", "mins", "min":
		step = time.Minute
	case "hours", "hour", "hrs", "hr", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("time units %q: unsupported unit %q", units, unit)
	}

	ref = strings.TrimSpace(ref)
	// "1900-01-01 00:00:00.0" and trailing " UTC" both appear in the wild.
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, ".0")
	for _, layout := range referenceLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return step, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("time units %q: unparseable reference date %q", units, ref)
}

// DecodeTimes converts offsets counted in step units since ref to instants.
// Fractional offsets are rounded to the nearest second.
func DecodeTimes(offsets []float64, step time.Duration, ref time.Time) []time.Time {
	out := make([]time.Time, len(offsets))
	for i, v := range offsets {
		secs := math.Round(v * step.Seconds())
		out[i] = ref.Add(time.Duration(secs) * time.Second)
	}
	return out
}

func readTimes(nc api.Group) ([]time.Time, error) {
	vg, err := nc.GetVarGetter(VarTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", VarTime, err)
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", VarTime, err)
	}
	offsets, ok := vectorOf(raw)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported type %T", VarTime, raw)
	}

	attrs := vg.Attributes()
	if attrs == nil {
		return nil, fmt.Errorf("%s: missing units attribute", VarTime)
	}
	u, ok := attrs.Get("units")
	if !ok {
		return nil, fmt.Errorf("%s: missing units attribute", VarTime)
	}
	units, ok := u.(string)
	if !ok {
		return nil, fmt.Errorf("%s: units attribute has type %T", VarTime, u)
	}
	step, ref, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	return DecodeTimes(offsets, step, ref), nil
}

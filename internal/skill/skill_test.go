package skill

import (
	"math"
	"testing"

	"github.com/couchcryptid/precip-bench/internal/domain"
	"github.com/couchcryptid/precip-bench/internal/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// precipSample returns a deterministic skewed sample with many dry cells.
func precipSample(n int, scale float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		u := float64((i*7919)%n) / float64(n)
		if u < 0.6 {
			continue
		}
		out[i] = scale * -math.Log(1-u+1e-9)
	}
	return out
}

func record(label string, t, ny, nx int, scale float64) domain.ForecastRecord {
	c := domain.NewCube(t, ny, nx)
	copy(c.Data, precipSample(len(c.Data), scale))
	return domain.ForecastRecord{Label: label, Data: c, XLength: 336, YLength: 224}
}

func TestMeanAbsoluteError(t *testing.T) {
	v, err := MeanAbsoluteError([]float64{1, 2, 3}, []float64{2, 2, 5})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	_, err = MeanAbsoluteError([]float64{1}, []float64{1, 2})
	require.Error(t, err)
	_, err = MeanAbsoluteError(nil, nil)
	require.ErrorIs(t, err, errEmpty)
}

func TestRootMeanSquaredError(t *testing.T) {
	v, err := RootMeanSquaredError([]float64{1, 2, 3}, []float64{2, 2, 5})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(5.0/3), v, 1e-12)
}

func TestCRPS(t *testing.T) {
	v, err := CRPS([]float64{0}, []float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	// Two-point reference against a point mass in the middle:
	// ∫0..1 (0.5)² + ∫1..2 (0.5)² = 0.5
	v, err = CRPS([]float64{0, 2}, []float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-12)

	// Symmetric in its arguments.
	a, b := precipSample(500, 1), precipSample(400, 2)
	ab, err := CRPS(a, b)
	require.NoError(t, err)
	ba, err := CRPS(b, a)
	require.NoError(t, err)
	assert.InDelta(t, ab, ba, 1e-12)

	_, err = CRPS(nil, []float64{1})
	require.ErrorIs(t, err, errEmpty)
}

func TestCRPS_GrowsWithShift(t *testing.T) {
	ref := precipSample(1000, 1)
	var last float64
	for _, shift := range []float64{0.1, 0.5, 1, 2} {
		pred := make([]float64, len(ref))
		for i, v := range ref {
			pred[i] = v + shift
		}
		v, err := CRPS(ref, pred)
		require.NoError(t, err)
		assert.Greater(t, v, last)
		last = v
	}
}

func TestPerkinsSkillScore(t *testing.T) {
	ref := precipSample(1000, 1)

	v, err := PerkinsSkillScore(ref, ref, DefaultPerkinsBins)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	v, err = PerkinsSkillScore([]float64{0, 0, 0}, []float64{10, 10}, DefaultPerkinsBins)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-12)

	v, err = PerkinsSkillScore(ref, precipSample(1000, 3), 0)
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
	assert.Less(t, v, 1.0)

	v, err = PerkinsSkillScore([]float64{2, 2}, []float64{2}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestDistributionScores_RejectNonFinite(t *testing.T) {
	clean := []float64{0, 1, 1.5, 2}
	for name, bad := range map[string][]float64{
		"nan":  {0, 1, math.NaN(), 2},
		"+inf": {0, 1, math.Inf(1), 2},
		"-inf": {math.Inf(-1), 1, 1.5, 2},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := CRPS(bad, clean)
			require.ErrorIs(t, err, errNonFinite)
			_, err = CRPS(clean, bad)
			require.ErrorIs(t, err, errNonFinite)

			_, err = PerkinsSkillScore(bad, clean, 10)
			require.ErrorIs(t, err, errNonFinite)
			_, err = PerkinsSkillScore(clean, bad, 10)
			require.ErrorIs(t, err, errNonFinite)

			_, err = LogCDFDistance(clean, bad, L2)
			require.ErrorIs(t, err, errNonFinite)
		})
	}
}

func TestLogCDFDistance(t *testing.T) {
	ref := precipSample(2000, 1)

	for _, n := range []Norm{L2, Max} {
		v, err := LogCDFDistance(ref, ref, n)
		require.NoError(t, err)
		assert.Equal(t, 0.0, v, n.String())
	}

	pred := precipSample(2000, 2)
	l2, err := LogCDFDistance(ref, pred, L2)
	require.NoError(t, err)
	mx, err := LogCDFDistance(ref, pred, Max)
	require.NoError(t, err)
	assert.Greater(t, l2, 0.0)
	assert.GreaterOrEqual(t, mx, l2)

	v, err := LogCDFDistance([]float64{0, 0}, []float64{0, -1}, L2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestLogPSDDistance_SameGrid(t *testing.T) {
	s := spectral.Spectrum{Wavenumbers: []float64{1, 2, 3}, Power: []float64{1, 0.1, 0.01}}
	v, err := LogPSDDistance(s, s, L2, DefaultPSDFloor)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	p := spectral.Spectrum{Wavenumbers: s.Wavenumbers, Power: []float64{10, 1, 0.01}}
	l2, err := LogPSDDistance(s, p, L2, DefaultPSDFloor)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(2.0/3), l2, 1e-12)
	mx, err := LogPSDDistance(s, p, Max, DefaultPSDFloor)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mx, 1e-12)
}

func TestLogPSDDistance_FloorsZeroPower(t *testing.T) {
	s := spectral.Spectrum{Wavenumbers: []float64{1, 2}, Power: []float64{0, 1e-12}}
	p := spectral.Spectrum{Wavenumbers: []float64{1, 2}, Power: []float64{1e-11, 0}}
	v, err := LogPSDDistance(s, p, Max, 1e-10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestLogPSDDistance_InterpolatesOtherGrid(t *testing.T) {
	powerLaw := func(ks []float64) spectral.Spectrum {
		s := spectral.Spectrum{Wavenumbers: ks, Power: make([]float64, len(ks))}
		for i, k := range ks {
			s.Power[i] = math.Pow(k, -2)
		}
		return s
	}
	ref := powerLaw([]float64{1, 2, 3, 4})
	pred := powerLaw([]float64{0.5, 1.5, 2.5, 3.5, 4.5})

	v, err := LogPSDDistance(ref, pred, Max, DefaultPSDFloor)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-12)

	_, err = LogPSDDistance(ref, powerLaw([]float64{10, 20}), L2, DefaultPSDFloor)
	require.ErrorIs(t, err, errNoOverlap)
}

func TestBattery_OrderAndNames(t *testing.T) {
	b := Battery(Options{Unit: "mm/h"}, spectral.Radial{})

	var names []string
	for _, m := range b {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{
		"MAE (mm/h)",
		"RMSE (mm/h)",
		"logCDF-l2 (no units)",
		"logCDF-max (no units)",
		"Perkins Skill Score (no units)",
		"CRPS (mm/h)",
		"logPSD-l2 (no units)",
		"logPSD-max (no units)",
	}, names)

	m, ok := Lookup(b, "CRPS (mm/h)")
	require.True(t, ok)
	assert.Equal(t, "CRPS (mm/h)", m.Name)
	_, ok = Lookup(b, "Brier")
	assert.False(t, ok)
}

func TestBattery_IdenticalRecords(t *testing.T) {
	ref := record("CombiPrecip", 3, 16, 24, 1)
	pred := ref
	pred.Label = "copy"

	want := map[string]float64{
		"MAE (mm/h)":                     0,
		"RMSE (mm/h)":                    0,
		"logCDF-l2 (no units)":           0,
		"logCDF-max (no units)":          0,
		"Perkins Skill Score (no units)": 1,
		"CRPS (mm/h)":                    0,
		"logPSD-l2 (no units)":           0,
		"logPSD-max (no units)":          0,
	}
	for _, m := range Battery(Options{Unit: "mm/h"}, spectral.NewCachedEstimator(spectral.Radial{}, 4)) {
		v, err := m.Func(ref, pred)
		require.NoError(t, err, m.Name)
		assert.InDelta(t, want[m.Name], v, 1e-12, m.Name)
	}
}

func TestBattery_DifferentRecords(t *testing.T) {
	ref := record("CombiPrecip", 2, 16, 16, 1)
	pred := record("WRF", 2, 16, 16, 2)

	for _, m := range Battery(Options{Unit: "mm/h"}, spectral.Radial{}) {
		v, err := m.Func(ref, pred)
		require.NoError(t, err, m.Name)
		assert.False(t, math.IsNaN(v), m.Name)
		if m.Name == "Perkins Skill Score (no units)" {
			assert.Less(t, v, 1.0)
			continue
		}
		assert.Greater(t, v, 0.0, m.Name)
	}
}

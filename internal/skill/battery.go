// Package skill scores candidate precipitation products against a reference.
//
// Each metric is a named pure function of two forecast records. A battery is
// an ordered list of metrics; its order is the report order.
package skill

import (
	"fmt"

	"github.com/couchcryptid/precip-bench/internal/domain"
	"github.com/couchcryptid/precip-bench/internal/spectral"
)

// Func scores pred against ref.
type Func func(ref, pred domain.ForecastRecord) (float64, error)

// Metric is a display name bound to a scoring function.
type Metric struct {
	Name string
	Func Func
}

// Options tune the default battery.
type Options struct {
	Unit        string
	PSDFloor    float64
	PerkinsBins int
}

// Battery returns the standard metric list: MAE, RMSE, logCDF (l2, max),
// Perkins skill score, CRPS and logPSD (l2, max).
func Battery(opts Options, est spectral.Estimator) []Metric {
	floor := opts.PSDFloor
	if floor <= 0 {
		floor = DefaultPSDFloor
	}
	return []Metric{
		{Name: fmt.Sprintf("MAE (%s)", opts.Unit), Func: flat(MeanAbsoluteError)},
		{Name: fmt.Sprintf("RMSE (%s)", opts.Unit), Func: flat(RootMeanSquaredError)},
		{Name: "logCDF-l2 (no units)", Func: logCDF(L2)},
		{Name: "logCDF-max (no units)", Func: logCDF(Max)},
		{Name: "Perkins Skill Score (no units)", Func: perkins(opts.PerkinsBins)},
		{Name: fmt.Sprintf("CRPS (%s)", opts.Unit), Func: flat(CRPS)},
		{Name: "logPSD-l2 (no units)", Func: logPSD(est, L2, floor)},
		{Name: "logPSD-max (no units)", Func: logPSD(est, Max, floor)},
	}
}

// Lookup finds a metric by display name.
func Lookup(battery []Metric, name string) (Metric, bool) {
	for _, m := range battery {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

func flat(f func(ref, pred []float64) (float64, error)) Func {
	return func(ref, pred domain.ForecastRecord) (float64, error) {
		return f(ref.Data.Data, pred.Data.Data)
	}
}

func logCDF(n Norm) Func {
	return func(ref, pred domain.ForecastRecord) (float64, error) {
		return LogCDFDistance(ref.Data.Data, pred.Data.Data, n)
	}
}

func perkins(bins int) Func {
	return func(ref, pred domain.ForecastRecord) (float64, error) {
		return PerkinsSkillScore(ref.Data.Data, pred.Data.Data, bins)
	}
}

func logPSD(est spectral.Estimator, n Norm, floor float64) Func {
	return func(ref, pred domain.ForecastRecord) (float64, error) {
		rs, err := est.Spectrum(ref)
		if err != nil {
			return 0, fmt.Errorf("reference spectrum: %w", err)
		}
		ps, err := est.Spectrum(pred)
		if err != nil {
			return 0, fmt.Errorf("%s spectrum: %w", pred.Label, err)
		}
		return LogPSDDistance(rs, ps, n, floor)
	}
}

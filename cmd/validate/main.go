// Command validate checks that the configured precipitation datasets can be
// benchmarked together: every file loads, the restricted grids and
// coordinates agree with the reference, the time axes line up, and the
// values are physically plausible.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/precip-bench/internal/adapter/netcdf"
	"github.com/couchcryptid/precip-bench/internal/config"
	"github.com/couchcryptid/precip-bench/internal/domain"
)

// coordTolerance is the largest coordinate difference, in degrees, still
// treated as the same grid.
const coordTolerance = 1e-4

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "override DATA_DIR")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if code := run(context.Background(), cfg); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, cfg *config.Config) int {
	fmt.Println("=== Precipitation Dataset Validation ===")
	fmt.Println()

	loader := netcdf.NewLoader(slog.New(slog.NewTextHandler(io.Discard, nil)))
	availability, ds := validateSources(ctx, cfg, loader)

	phases := []*phase{availability}
	ref, ok := ds.Get(cfg.Reference)
	if ok {
		phases = append(phases,
			validateGrid(ds, cfg.Reference, ref),
			validateTimes(ds, cfg.Reference, ref),
			validateValues(ds),
		)
	} else {
		availability.errorf("reference %q could not be loaded; remaining phases skipped", cfg.Reference)
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Datasets: %d configured, %d loaded, reference %q\n", len(cfg.Datasets), ds.Len(), cfg.Reference)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateSources loads and restricts every configured file.
func validateSources(ctx context.Context, cfg *config.Config, loader *netcdf.Loader) (*phase, *domain.NamedDataset) {
	p := &phase{name: "Phase 1: Source Availability"}
	ds := domain.NewNamedDataset()
	for _, src := range cfg.Datasets {
		path := cfg.DatasetPath(src)
		f, err := loader.Load(ctx, path)
		if err != nil {
			p.errorf("%s: %v", src.Label, err)
			continue
		}
		if f.Precip.T < cfg.Times.End {
			p.errorf("%s: %d time steps, TIME_END is %d", src.Label, f.Precip.T, cfg.Times.End)
		}
		if f.Precip.Ny < cfg.CropNY || f.Precip.Nx < cfg.CropNX {
			p.errorf("%s: grid %dx%d smaller than crop %dx%d",
				src.Label, f.Precip.Ny, f.Precip.Nx, cfg.CropNY, cfg.CropNX)
		}
		r, err := domain.Restrict(f, cfg.Times, cfg.CropNX, cfg.CropNY)
		if err != nil {
			p.errorf("%s: %v", src.Label, err)
			continue
		}
		ds.Set(src.Label, r)
	}
	return p, ds
}

// validateGrid checks shapes and coordinates against the reference.
func validateGrid(ds *domain.NamedDataset, refLabel string, ref domain.GriddedField) *phase {
	p := &phase{name: "Phase 2: Grid Alignment"}
	if err := ds.CheckAligned(refLabel); err != nil {
		p.errorf("%v", err)
	}
	for _, label := range ds.Labels() {
		f, _ := ds.Get(label)
		if d, i := maxDiff(f.Lons, ref.Lons); d > coordTolerance {
			p.errorf("%s: longitude[%d] differs from reference by %.6f deg", label, i, d)
		}
		if d, i := maxDiff(f.Lats, ref.Lats); d > coordTolerance {
			p.errorf("%s: latitude[%d] differs from reference by %.6f deg", label, i, d)
		}
	}
	return p
}

// validateTimes checks that every restricted time axis equals the reference's.
func validateTimes(ds *domain.NamedDataset, refLabel string, ref domain.GriddedField) *phase {
	p := &phase{name: "Phase 3: Temporal Alignment"}
	for _, label := range ds.Labels() {
		if label == refLabel {
			continue
		}
		f, _ := ds.Get(label)
		if len(f.Times) != len(ref.Times) {
			p.errorf("%s: %d time steps, reference has %d", label, len(f.Times), len(ref.Times))
			continue
		}
		for i := range f.Times {
			if !f.Times[i].Equal(ref.Times[i]) {
				p.errorf("%s: time[%d] is %s, reference is %s", label, i, f.Times[i], ref.Times[i])
				break
			}
		}
	}
	return p
}

// validateValues rejects non-finite or negative rates and all-dry fields.
func validateValues(ds *domain.NamedDataset) *phase {
	p := &phase{name: "Phase 4: Value Sanity"}
	for _, label := range ds.Labels() {
		f, _ := ds.Get(label)
		var nonFinite, negative, wet int
		for _, v := range f.Precip.Data {
			switch {
			case math.IsNaN(v) || math.IsInf(v, 0):
				nonFinite++
			case v < 0:
				negative++
			case v > 0:
				wet++
			}
		}
		if nonFinite > 0 {
			p.errorf("%s: %d non-finite values", label, nonFinite)
		}
		if negative > 0 {
			p.errorf("%s: %d negative values", label, negative)
		}
		if wet == 0 {
			p.errorf("%s: no precipitation anywhere in the window", label)
		}
	}
	return p
}

// maxDiff returns the largest absolute difference and its index. Length
// mismatches count as infinite at the first missing index.
func maxDiff(a, b []float64) (float64, int) {
	if len(a) != len(b) {
		return math.Inf(1), min(len(a), len(b))
	}
	var worst float64
	idx := 0
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > worst {
			worst, idx = d, i
		}
	}
	return worst, idx
}

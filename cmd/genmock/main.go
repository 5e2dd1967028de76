// Command genmock writes synthetic precipitation datasets for local runs and
// validation. Every configured dataset (DATASETS or CONFIG_FILE) gets one
// NetCDF file; the reference holds a smooth advected rain field and each
// candidate is a scaled, displaced, and noisier copy of it.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir data -nt 60 -ny 240 -nx 360
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/precip-bench/internal/adapter/netcdf"
	"github.com/couchcryptid/precip-bench/internal/config"
	"github.com/couchcryptid/precip-bench/internal/domain"
)

var (
	epoch     = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	firstTime = time.Date(2021, time.July, 12, 0, 0, 0, 0, time.UTC)
)

// Grid bounds cover the Alpine domain.
const (
	minLon, maxLon = 5.0, 11.0
	minLat, maxLat = 45.0, 48.0
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory to write dataset files into (default DATA_DIR)")
	nt := flag.Int("nt", 60, "number of hourly time steps")
	ny := flag.Int("ny", 240, "number of latitude rows")
	nx := flag.Int("nx", 360, "number of longitude columns")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	cfg, dir, err := resolveConfig(*outDir)
	if err != nil {
		return err
	}
	*outDir = dir

	if *nt < 1 || *ny < 2 || *nx < 2 {
		flag.Usage()
		return fmt.Errorf("need -nt >= 1, -ny >= 2, -nx >= 2")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", *outDir, err)
	}

	rng := newRNG(*seed)
	base := rainField(rng, *nt, *ny, *nx)

	k := 0
	for _, src := range cfg.Datasets {
		field := base
		if src.Label != cfg.Reference {
			k++
			field = perturb(rng, base, k)
		}
		path := filepath.Join(*outDir, filepath.Base(src.File))
		if err := netcdf.WriteField(path, field, epoch, cfg.Unit); err != nil {
			return fmt.Errorf("%s: %w", src.Label, err)
		}
		fmt.Printf("Wrote %s (%s, shape %v)\n", path, src.Label, field.Precip.Shape())
	}
	return nil
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// resolveConfig loads the dataset layout. With an explicit outDir a broken
// environment falls back to the built-in datasets instead of failing.
func resolveConfig(outDir string) (*config.Config, string, error) {
	cfg, err := config.Load()
	if err != nil {
		if outDir == "" {
			return nil, "", err
		}
		log.Printf("ignoring configuration (%v); writing default datasets", err)
		cfg = config.Defaults()
	}
	if outDir == "" {
		outDir = cfg.DataDir
	}
	return cfg, outDir, nil
}

// wave is one travelling sinusoid of the synthetic field.
type wave struct {
	kx, ky, phase, amp, speed float64
}

// rainField superposes a few travelling waves and keeps the positive part,
// which gives patchy rain cells with a realistic share of dry pixels.
func rainField(rng *rand.Rand, nt, ny, nx int) domain.GriddedField {
	waves := make([]wave, 8)
	for i := range waves {
		waves[i] = wave{
			kx:    float64(1+rng.IntN(6)) * 2 * math.Pi / float64(nx),
			ky:    float64(1+rng.IntN(4)) * 2 * math.Pi / float64(ny),
			phase: rng.Float64() * 2 * math.Pi,
			amp:   0.5 + rng.Float64(),
			speed: 0.2 + 0.3*rng.Float64(),
		}
	}

	c := domain.NewCube(nt, ny, nx)
	for t := range nt {
		for i := range ny {
			for j := range nx {
				var v float64
				for _, w := range waves {
					v += w.amp * math.Sin(w.kx*float64(j)+w.ky*float64(i)+w.phase-w.speed*float64(t))
				}
				c.Set(t, i, j, math.Max(v-0.8, 0))
			}
		}
	}
	return withCoords(c)
}

// perturb returns a copy of base scaled by 1+0.1k, shifted k columns east,
// with multiplicative noise growing with k.
func perturb(rng *rand.Rand, base domain.GriddedField, k int) domain.GriddedField {
	src := base.Precip
	c := domain.NewCube(src.T, src.Ny, src.Nx)
	scale := 1 + 0.1*float64(k)
	noise := 0.05 * float64(k)
	for t := range src.T {
		for i := range src.Ny {
			for j := range src.Nx {
				v := src.At(t, i, (j+src.Nx-k)%src.Nx) * scale
				v *= 1 + noise*rng.NormFloat64()
				c.Set(t, i, j, math.Max(v, 0))
			}
		}
	}
	return withCoords(c)
}

func withCoords(c domain.Cube) domain.GriddedField {
	lons := make([]float64, c.Nx)
	for j := range lons {
		lons[j] = minLon + (maxLon-minLon)*float64(j)/float64(c.Nx-1)
	}
	lats := make([]float64, c.Ny)
	for i := range lats {
		lats[i] = minLat + (maxLat-minLat)*float64(i)/float64(c.Ny-1)
	}
	times := make([]time.Time, c.T)
	for t := range times {
		times[t] = firstTime.Add(time.Duration(t) * time.Hour)
	}
	return domain.GriddedField{Precip: c, Lons: lons, Lats: lats, Times: times}
}

// Package plot renders benchmark comparison figures with gonum/plot.
package plot

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/couchcryptid/precip-bench/internal/domain"
	"github.com/couchcryptid/precip-bench/internal/spectral"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Output file names, written inside the renderer's directory.
const (
	MapsFile = "maps_comparison.png"
	CDFFile  = "cdf_comparison.png"
	PSDFile  = "psd_comparison.png"
)

// cdfPoints caps the number of vertices per CDF curve.
const cdfPoints = 512

// Renderer writes figures into a fixed directory.
type Renderer struct {
	dir       string
	estimator spectral.Estimator
	psdFloor  float64
	logger    *slog.Logger
}

// NewRenderer creates a Renderer. The spectral estimator should be the one
// used for metrics so spectra are shared through its cache.
func NewRenderer(dir string, est spectral.Estimator, psdFloor float64, logger *slog.Logger) *Renderer {
	return &Renderer{dir: dir, estimator: est, psdFloor: psdFloor, logger: logger}
}

func (r *Renderer) path(name string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create figure directory: %w", err)
	}
	return filepath.Join(r.dir, name), nil
}

// RenderMaps draws one heat map per record at time index t, side by side,
// sharing a colour range and the given extent. northFirst reports that row 0
// is the northernmost latitude.
func (r *Renderer) RenderMaps(records []domain.ForecastRecord, t int, extent domain.SpatialExtent, northFirst bool) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("no records to map")
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, rec := range records {
		if t < 0 || t >= rec.Data.T {
			return "", fmt.Errorf("%s: time index %d out of range", rec.Label, t)
		}
		if rec.Data.Nx < 2 || rec.Data.Ny < 2 {
			return "", fmt.Errorf("%s: grid too small to map", rec.Label)
		}
		s := rec.Data.Slice(t)
		lo = math.Min(lo, slices.Min(s))
		hi = math.Max(hi, slices.Max(s))
	}
	if hi <= lo {
		hi = lo + 1
	}

	cm := moreland.ExtendedBlackBody()
	cm.SetMax(hi)
	cm.SetMin(lo)
	pal := cm.Palette(255)

	row := make([]*plot.Plot, len(records))
	for i, rec := range records {
		p := plot.New()
		p.Title.Text = rec.Label
		p.X.Label.Text = "Longitude"
		if i == 0 {
			p.Y.Label.Text = "Latitude"
		}
		h := plotter.NewHeatMap(mapGrid{cube: rec.Data, t: t, extent: extent, northFirst: northFirst}, pal)
		h.Min, h.Max = lo, hi
		p.Add(h)
		p.X.Min, p.X.Max = extent.MinLon, extent.MaxLon
		p.Y.Min, p.Y.Max = extent.MinLat, extent.MaxLat
		row[i] = p
	}

	width := vg.Length(len(records)) * 4 * vg.Inch
	img := vgimg.NewWith(vgimg.UseWH(width, 3.5*vg.Inch), vgimg.UseDPI(96))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 1, Cols: len(records),
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 2,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align([][]*plot.Plot{row}, tiles, dc)
	for i, p := range row {
		p.Draw(canvases[0][i])
	}

	out, err := r.path(MapsFile)
	if err != nil {
		return "", err
	}
	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	r.logger.Info("figure written", "path", out)
	return out, f.Close()
}

// RenderCDFs draws the empirical CDF of every record over its full time range.
func (r *Renderer) RenderCDFs(records []domain.ForecastRecord) (string, error) {
	p := plot.New()
	p.X.Label.Text = "Precipitation"
	p.Y.Label.Text = "Empirical CDF"
	p.Legend.Top = false
	p.Legend.Left = false

	anyPositive := false
	curves := make([]plotter.XYs, len(records))
	for i, rec := range records {
		curves[i] = ecdfCurve(rec.Data.Data)
		anyPositive = anyPositive || len(curves[i]) > 0
	}
	if anyPositive {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	for i, rec := range records {
		if len(curves[i]) == 0 {
			continue
		}
		if err := addLine(p, i, rec.Label, curves[i]); err != nil {
			return "", err
		}
	}
	return r.save(p, CDFFile)
}

// RenderPSDs draws the radially averaged PSD of every record on log-log axes.
func (r *Renderer) RenderPSDs(records []domain.ForecastRecord) (string, error) {
	p := plot.New()
	p.X.Label.Text = "Wavenumber (1/km)"
	p.Y.Label.Text = "PSD"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	for i, rec := range records {
		s, err := r.estimator.Spectrum(rec)
		if err != nil {
			return "", fmt.Errorf("%s spectrum: %w", rec.Label, err)
		}
		xys := make(plotter.XYs, len(s.Power))
		for k := range s.Power {
			xys[k].X = s.Wavenumbers[k]
			xys[k].Y = math.Max(s.Power[k], r.psdFloor)
		}
		if err := addLine(p, i, rec.Label, xys); err != nil {
			return "", err
		}
	}
	return r.save(p, PSDFile)
}

func (r *Renderer) save(p *plot.Plot, name string) (string, error) {
	out, err := r.path(name)
	if err != nil {
		return "", err
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, out); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	r.logger.Info("figure written", "path", out)
	return out, nil
}

func addLine(p *plot.Plot, i int, label string, xys plotter.XYs) error {
	l, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	l.Color = plotutil.Color(i)
	l.Dashes = plotutil.Dashes(i)
	l.Width = vg.Points(1.5)
	p.Add(l)
	p.Legend.Add(label, l)
	return nil
}

// ecdfCurve returns up to cdfPoints vertices of the empirical CDF restricted
// to positive values, so it can be drawn on a log axis.
func ecdfCurve(data []float64) plotter.XYs {
	s := slices.Clone(data)
	slices.Sort(s)
	n := len(s)
	first, _ := slices.BinarySearch(s, math.SmallestNonzeroFloat64)
	if first >= n {
		return nil
	}
	step := max(1, (n-first)/cdfPoints)
	var xys plotter.XYs
	for k := first; k < n; k += step {
		xys = append(xys, plotter.XY{X: s[k], Y: float64(k+1) / float64(n)})
	}
	if last := xys[len(xys)-1]; last.X != s[n-1] || last.Y != 1 {
		xys = append(xys, plotter.XY{X: s[n-1], Y: 1})
	}
	return xys
}

// mapGrid exposes one time slice of a cube as a plotter.GridXYZ. Cell centres
// are spread evenly over the extent; Y always increases northwards.
type mapGrid struct {
	cube       domain.Cube
	t          int
	extent     domain.SpatialExtent
	northFirst bool
}

func (g mapGrid) Dims() (c, r int) { return g.cube.Nx, g.cube.Ny }

func (g mapGrid) Z(c, r int) float64 {
	if g.northFirst {
		r = g.cube.Ny - 1 - r
	}
	return g.cube.At(g.t, r, c)
}

func (g mapGrid) X(c int) float64 {
	return g.extent.MinLon + float64(c)*(g.extent.MaxLon-g.extent.MinLon)/float64(g.cube.Nx-1)
}

func (g mapGrid) Y(r int) float64 {
	return g.extent.MinLat + float64(r)*(g.extent.MaxLat-g.extent.MinLat)/float64(g.cube.Ny-1)
}

var _ plotter.GridXYZ = mapGrid{}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/precip-bench/internal/domain"
	"github.com/couchcryptid/precip-bench/internal/observability"
	"github.com/couchcryptid/precip-bench/internal/skill"
)

// DatasetLoader reads one gridded field from storage.
type DatasetLoader interface {
	Load(ctx context.Context, path string) (domain.GriddedField, error)
}

// Renderer persists the three comparison figures and returns their paths.
type Renderer interface {
	RenderMaps(records []domain.ForecastRecord, t int, extent domain.SpatialExtent, northFirst bool) (string, error)
	RenderCDFs(records []domain.ForecastRecord) (string, error)
	RenderPSDs(records []domain.ForecastRecord) (string, error)
}

// ReportSink receives the finished report.
type ReportSink interface {
	Publish(ctx context.Context, report domain.Report) error
}

// Options fix what a run loads and how it is restricted.
type Options struct {
	// Sources are loaded in order; File is a path the loader can open.
	Sources   []domain.DatasetSource
	Reference string
	Times     domain.TimeRange
	CropNX    int
	CropNY    int
	// PlotTime selects the mapped time slice; negative values count from the end.
	PlotTime int
	Unit     string
	Battery  []skill.Metric
}

// Pipeline orchestrates the load-restrict-derive-report run.
type Pipeline struct {
	opts     Options
	loader   DatasetLoader
	renderer Renderer
	sink     ReportSink
	out      io.Writer
	logger   *slog.Logger
	metrics  *observability.Metrics
	last     atomic.Pointer[domain.Report]
}

// New creates a Pipeline. sink may be nil; the text report is written to out.
func New(opts Options, l DatasetLoader, r Renderer, sink ReportSink, out io.Writer, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		opts:     opts,
		loader:   l,
		renderer: r,
		sink:     sink,
		out:      out,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has produced a report.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.last.Load() == nil {
		return errors.New("no benchmark report produced yet")
	}
	return nil
}

// LastReport returns the report of the most recent successful run.
func (p *Pipeline) LastReport() (domain.Report, bool) {
	r := p.last.Load()
	if r == nil {
		return domain.Report{}, false
	}
	return *r, true
}

// Run executes one benchmark. Any failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (domain.Report, error) {
	p.logger.Info("benchmark started", "datasets", len(p.opts.Sources), "reference", p.opts.Reference)
	p.metrics.RunSucceeded.Set(0)

	ds, err := p.load(ctx)
	if err != nil {
		return domain.Report{}, err
	}
	if err := ds.CheckAligned(p.opts.Reference); err != nil {
		return domain.Report{}, err
	}

	ref, _ := ds.Get(p.opts.Reference)
	extent, err := domain.ExtentOf(ref.Lons, ref.Lats)
	if err != nil {
		return domain.Report{}, fmt.Errorf("reference extent: %w", err)
	}
	length, err := domain.LengthOf(ref.Lons, ref.Lats)
	if err != nil {
		return domain.Report{}, fmt.Errorf("reference length: %w", err)
	}
	p.logger.Info("reference grid derived",
		"min_lon", extent.MinLon, "max_lon", extent.MaxLon,
		"min_lat", extent.MinLat, "max_lat", extent.MaxLat,
		"x_km", length.X, "y_km", length.Y)

	records := ds.Records(length)
	refRecord, candidates, err := domain.SelectReference(records, p.opts.Reference)
	if err != nil {
		return domain.Report{}, err
	}

	northFirst := len(ref.Lats) > 1 && ref.Lats[0] > ref.Lats[len(ref.Lats)-1]
	if err := p.render(records, refRecord.Data.T, extent, northFirst); err != nil {
		return domain.Report{}, err
	}

	report, err := p.evaluate(ctx, refRecord, candidates)
	if err != nil {
		return domain.Report{}, err
	}
	if err := WriteText(p.out, report); err != nil {
		return domain.Report{}, fmt.Errorf("write report: %w", err)
	}
	if p.sink != nil {
		if err := p.sink.Publish(ctx, report); err != nil {
			return domain.Report{}, err
		}
	}

	p.last.Store(&report)
	p.metrics.RunSucceeded.Set(1)
	p.logger.Info("benchmark finished", "metrics", len(report.Sections), "candidates", len(candidates))
	return report, nil
}

// load reads and restricts every source in order.
func (p *Pipeline) load(ctx context.Context) (*domain.NamedDataset, error) {
	ds := domain.NewNamedDataset()
	for _, src := range p.opts.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		f, err := p.loader.Load(ctx, src.File)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", src.Label, err)
		}
		p.metrics.LoadDuration.Observe(time.Since(start).Seconds())

		restricted, err := domain.Restrict(f, p.opts.Times, p.opts.CropNX, p.opts.CropNY)
		if err != nil {
			return nil, fmt.Errorf("restrict %q: %w", src.Label, err)
		}
		if restricted.Precip.T == 0 {
			return nil, fmt.Errorf("restrict %q: no time steps in [%d, %d), file has %d",
				src.Label, p.opts.Times.Start, p.opts.Times.End, f.Precip.T)
		}
		if err := restricted.Validate(); err != nil {
			return nil, fmt.Errorf("validate %q: %w", src.Label, err)
		}
		ds.Set(src.Label, restricted)
		p.metrics.DatasetsLoaded.Inc()
		p.logger.Info("dataset time window", "dataset", src.Label,
			"first_time", restricted.Times[0], "last_time", restricted.LastTime(),
			"shape", restricted.Precip.Shape())
	}
	return ds, nil
}

func (p *Pipeline) render(records []domain.ForecastRecord, steps int, extent domain.SpatialExtent, northFirst bool) error {
	t, err := domain.ResolveIndex(p.opts.PlotTime, steps)
	if err != nil {
		return fmt.Errorf("plot time %d: %w", p.opts.PlotTime, err)
	}
	if _, err := p.renderer.RenderMaps(records, t, extent, northFirst); err != nil {
		return fmt.Errorf("render maps: %w", err)
	}
	if _, err := p.renderer.RenderCDFs(records); err != nil {
		return fmt.Errorf("render cdfs: %w", err)
	}
	if _, err := p.renderer.RenderPSDs(records); err != nil {
		return fmt.Errorf("render psds: %w", err)
	}
	return nil
}

// evaluate scores every candidate with every metric, in battery order.
func (p *Pipeline) evaluate(ctx context.Context, ref domain.ForecastRecord, candidates []domain.ForecastRecord) (domain.Report, error) {
	report := domain.NewReport(ref.Label, p.opts.Unit)
	for _, m := range p.opts.Battery {
		if err := ctx.Err(); err != nil {
			return domain.Report{}, err
		}
		section := domain.ReportSection{Metric: m.Name, Scores: make([]domain.Score, 0, len(candidates))}
		for _, c := range candidates {
			start := time.Now()
			v, err := m.Func(ref, c)
			p.metrics.MetricDuration.WithLabelValues(m.Name).Observe(time.Since(start).Seconds())
			if err != nil {
				p.metrics.MetricEvaluations.WithLabelValues(m.Name, "error").Inc()
				return domain.Report{}, fmt.Errorf("%s for %q: %w", m.Name, c.Label, err)
			}
			p.metrics.MetricEvaluations.WithLabelValues(m.Name, "success").Inc()
			p.metrics.Score.WithLabelValues(m.Name, c.Label).Set(v)
			section.Scores = append(section.Scores, domain.Score{Label: c.Label, Value: v})
		}
		report.Sections = append(report.Sections, section)
	}
	return report, nil
}

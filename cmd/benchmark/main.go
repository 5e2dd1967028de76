// Command benchmark loads the configured precipitation products, scores every
// candidate against the reference, writes comparison figures, and prints the
// report to stdout. With HTTP_ADDR set it keeps serving /report, /metrics,
// and health probes until interrupted.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/precip-bench/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/precip-bench/internal/adapter/kafka"
	"github.com/couchcryptid/precip-bench/internal/adapter/netcdf"
	"github.com/couchcryptid/precip-bench/internal/adapter/plot"
	"github.com/couchcryptid/precip-bench/internal/config"
	"github.com/couchcryptid/precip-bench/internal/domain"
	"github.com/couchcryptid/precip-bench/internal/observability"
	"github.com/couchcryptid/precip-bench/internal/pipeline"
	"github.com/couchcryptid/precip-bench/internal/skill"
	"github.com/couchcryptid/precip-bench/internal/spectral"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics and the PSD figure share one spectrum cache.
	estimator := spectral.NewCachedEstimator(spectral.Radial{}, cfg.SpectrumCacheSize)
	battery := skill.Battery(skill.Options{Unit: cfg.Unit, PSDFloor: cfg.PSDFloor}, estimator)
	renderer := plot.NewRenderer(cfg.FigsDir, estimator, cfg.PSDFloor, logger)

	var sink pipeline.ReportSink
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewReportWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sink = writer
		logger.Info("kafka report publishing enabled", "topic", cfg.KafkaReportTopic)
	}

	sources := make([]domain.DatasetSource, len(cfg.Datasets))
	for i, src := range cfg.Datasets {
		sources[i] = domain.DatasetSource{Label: src.Label, File: cfg.DatasetPath(src)}
	}
	p := pipeline.New(pipeline.Options{
		Sources:   sources,
		Reference: cfg.Reference,
		Times:     cfg.Times,
		CropNX:    cfg.CropNX,
		CropNY:    cfg.CropNY,
		PlotTime:  cfg.PlotTime,
		Unit:      cfg.Unit,
		Battery:   battery,
	}, netcdf.NewLoader(logger), renderer, sink, os.Stdout, logger, metrics)

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	_, runErr := p.Run(ctx)

	hits, misses := estimator.Stats()
	metrics.SpectrumCache.WithLabelValues("hit").Add(float64(hits))
	metrics.SpectrumCache.WithLabelValues("miss").Add(float64(misses))

	if cfg.PushgatewayURL != "" {
		if err := observability.Push(context.Background(), cfg.PushgatewayURL, prometheus.DefaultGatherer); err != nil {
			logger.Error("metrics push failed", "error", err)
		}
	}

	code := 0
	if runErr != nil {
		logger.Error("benchmark failed", "error", runErr)
		code = 1
	}

	if srv != nil {
		if runErr == nil {
			logger.Info("serving report until interrupted", "addr", cfg.HTTPAddr)
			<-ctx.Done()
		}
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	return code
}

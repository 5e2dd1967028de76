//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/precip-bench/internal/adapter/kafka"
	"github.com/couchcryptid/precip-bench/internal/adapter/netcdf"
	"github.com/couchcryptid/precip-bench/internal/adapter/plot"
	"github.com/couchcryptid/precip-bench/internal/config"
	"github.com/couchcryptid/precip-bench/internal/domain"
	"github.com/couchcryptid/precip-bench/internal/observability"
	"github.com/couchcryptid/precip-bench/internal/pipeline"
	"github.com/couchcryptid/precip-bench/internal/skill"
	"github.com/couchcryptid/precip-bench/internal/spectral"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testReportTopic = "test-precip-scores"

var epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("precip-bench"))
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start kafka container")

	brokers, err := c.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeDatasets stores three aligned fixture files and returns their sources.
func writeDatasets(t *testing.T) []domain.DatasetSource {
	t.Helper()
	dir := t.TempDir()
	start := time.Date(2021, time.July, 12, 0, 0, 0, 0, time.UTC)

	sources := []domain.DatasetSource{
		{Label: "QM (all)", File: filepath.Join(dir, "qm.nc")},
		{Label: "CombiPrecip", File: filepath.Join(dir, "cpc.nc")},
		{Label: "WRF", File: filepath.Join(dir, "wrf.nc")},
	}
	for k, src := range sources {
		c := domain.NewCube(6, 16, 24)
		for tt := range c.T {
			for i := range c.Ny {
				for j := range c.Nx {
					v := math.Sin(float64(i+tt)/3) * math.Cos(float64(j+k)/4)
					c.Set(tt, i, j, math.Max(v, 0)*(1+0.1*float64(k)))
				}
			}
		}
		f := domain.GriddedField{Precip: c, Lons: make([]float64, 24), Lats: make([]float64, 16), Times: make([]time.Time, 6)}
		for j := range f.Lons {
			f.Lons[j] = 5 + 0.25*float64(j)
		}
		for i := range f.Lats {
			f.Lats[i] = 45 + 0.2*float64(i)
		}
		for tt := range f.Times {
			f.Times[tt] = start.Add(time.Duration(tt) * time.Hour)
		}
		require.NoError(t, netcdf.WriteField(src.File, f, epoch, "mm/h"))
	}
	return sources
}

// TestBenchmarkPublishesScores runs the whole benchmark against fixture files
// and reads the published scores back from Kafka.
func TestBenchmarkPublishesScores(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testReportTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaReportTopic: testReportTopic}
	writer := kafka.NewReportWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	figs := filepath.Join(t.TempDir(), "figs")
	est := spectral.NewCachedEstimator(spectral.Radial{}, 8)
	p := pipeline.New(pipeline.Options{
		Sources:   writeDatasets(t),
		Reference: "CombiPrecip",
		Times:     domain.TimeRange{Start: 0, End: 4},
		CropNX:    20,
		CropNY:    12,
		PlotTime:  -1,
		Unit:      "mm/h",
		Battery:   skill.Battery(skill.Options{Unit: "mm/h"}, est),
	}, netcdf.NewLoader(discardLogger()), plot.NewRenderer(figs, est, 1e-10, discardLogger()),
		writer, &bytes.Buffer{}, discardLogger(), observability.NewMetricsForTesting())

	report, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Sections, 8)

	for _, name := range []string{plot.MapsFile, plot.CDFFile, plot.PSDFile} {
		_, err := os.Stat(filepath.Join(figs, name))
		assert.NoError(t, err, name)
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testReportTopic,
		Partition: 0,
		MaxWait:   time.Second,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	want := make(map[string]float64)
	for _, s := range report.Sections {
		for _, sc := range s.Scores {
			want[s.Metric+"|"+sc.Label] = sc.Value
		}
	}
	require.Len(t, want, 16)

	for range want {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from report topic")

		var got kafka.ScoreMessage
		require.NoError(t, json.Unmarshal(msg.Value, &got))
		key := string(msg.Key)
		assert.Equal(t, got.Metric+"|"+got.Candidate, key)
		assert.Equal(t, "CombiPrecip", got.Reference)
		assert.InDelta(t, want[key], got.Value, 1e-12, key)
	}
}

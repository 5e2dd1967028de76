package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/precip-bench/internal/config"
	"github.com/couchcryptid/precip-bench/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// ScoreMessage is the JSON value of one published score.
type ScoreMessage struct {
	Reference   string    `json:"reference"`
	Metric      string    `json:"metric"`
	Candidate   string    `json:"candidate"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit"`
	GeneratedAt time.Time `json:"generated_at"`
}

// messageWriter is the subset of *kafkago.Writer the ReportWriter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ReportWriter publishes benchmark scores to a Kafka topic.
// It implements pipeline.ReportSink.
type ReportWriter struct {
	writer messageWriter
	logger *slog.Logger
}

// NewReportWriter creates a Kafka producer for the configured report topic.
func NewReportWriter(cfg *config.Config, logger *slog.Logger) *ReportWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaReportTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &ReportWriter{writer: w, logger: logger}
}

// Publish sends one message per (metric, candidate) score in a single
// WriteMessages call.
func (w *ReportWriter) Publish(ctx context.Context, report domain.Report) error {
	var msgs []kafkago.Message
	for _, section := range report.Sections {
		for _, score := range section.Scores {
			msg, err := serializeScore(report, section.Metric, score)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	w.logger.Info("report published", "messages", len(msgs))
	return nil
}

func (w *ReportWriter) Close() error {
	return w.writer.Close()
}

// serializeScore marshals one score into a Kafka message keyed by
// "metric|candidate".
func serializeScore(report domain.Report, metric string, score domain.Score) (kafkago.Message, error) {
	data, err := json.Marshal(ScoreMessage{
		Reference:   report.Reference,
		Metric:      metric,
		Candidate:   score.Label,
		Value:       score.Value,
		Unit:        report.Unit,
		GeneratedAt: report.GeneratedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize score %s/%s: %w", metric, score.Label, err)
	}
	return kafkago.Message{
		Key:   []byte(metric + "|" + score.Label),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "reference", Value: []byte(report.Reference)},
			{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}

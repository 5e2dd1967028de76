package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/precip-bench/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var generatedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testReport() domain.Report {
	return domain.Report{
		GeneratedAt: generatedAt,
		Reference:   "CombiPrecip",
		Unit:        "mm/h",
		Sections: []domain.ReportSection{
			{Metric: "MAE (mm/h)", Scores: []domain.Score{{Label: "WRF", Value: 0.5}, {Label: "QM (all)", Value: 0.25}}},
			{Metric: "Perkins Skill Score (no units)", Scores: []domain.Score{{Label: "WRF", Value: 0.9}}},
		},
	}
}

func newTestWriter(fw *fakeWriter) *ReportWriter {
	return &ReportWriter{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestSerializeScore(t *testing.T) {
	r := testReport()
	msg, err := serializeScore(r, "MAE (mm/h)", domain.Score{Label: "WRF", Value: 0.5})
	require.NoError(t, err)

	assert.Equal(t, []byte("MAE (mm/h)|WRF"), msg.Key)
	var got ScoreMessage
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, ScoreMessage{
		Reference:   "CombiPrecip",
		Metric:      "MAE (mm/h)",
		Candidate:   "WRF",
		Value:       0.5,
		Unit:        "mm/h",
		GeneratedAt: generatedAt,
	}, got)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "reference", msg.Headers[0].Key)
	assert.Equal(t, []byte("CombiPrecip"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(generatedAt.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeScore_NaN(t *testing.T) {
	_, err := serializeScore(testReport(), "MAE (mm/h)", domain.Score{Label: "WRF", Value: math.NaN()})
	require.Error(t, err)
}

func TestPublish_OneMessagePerScore(t *testing.T) {
	fw := &fakeWriter{}
	w := newTestWriter(fw)

	require.NoError(t, w.Publish(context.Background(), testReport()))
	require.Len(t, fw.msgs, 3)
	assert.Equal(t, "MAE (mm/h)|WRF", string(fw.msgs[0].Key))
	assert.Equal(t, "MAE (mm/h)|QM (all)", string(fw.msgs[1].Key))
	assert.Equal(t, "Perkins Skill Score (no units)|WRF", string(fw.msgs[2].Key))

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestPublish_EmptyReport(t *testing.T) {
	fw := &fakeWriter{err: errors.New("should not be called")}
	require.NoError(t, newTestWriter(fw).Publish(context.Background(), domain.Report{}))
}

func TestPublish_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	err := newTestWriter(&fakeWriter{err: boom}).Publish(context.Background(), testReport())
	require.ErrorIs(t, err, boom)
}

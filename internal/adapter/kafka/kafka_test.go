package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
)

var generatedAt = time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)

type fakeWriter struct {
	err    error
	msgs   []kafkago.Message
	calls  int
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
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

func testWriter(fw *fakeWriter) *Writer {
	return &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func headerMap(msg kafkago.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func rankingReport() domain.Report {
	return domain.Report{
		Name:        "top_20_confirmed",
		Kind:        domain.KindRanking,
		RunID:       "run-1",
		GeneratedAt: generatedAt,
		SortBy:      domain.KeyConfirmed,
		Rows: []domain.MetricRow{
			{Country: "US", Confirmed: domain.Some(1000), Deaths: domain.Some(50), MortalityRate: 5},
			{Country: "Italy", Confirmed: domain.Some(400), Recovered: domain.None()},
		},
	}
}

func TestSerializeToMessage(t *testing.T) {
	report := rankingReport()

	msg, err := serializeToMessage(report, 1, report.Rows[0], reportHeaders(report))
	require.NoError(t, err)

	assert.Equal(t, []byte("US"), msg.Key)

	var decoded RankingMessage
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "top_20_confirmed", decoded.Report)
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 1, decoded.Rank)
	assert.Equal(t, domain.KeyConfirmed, decoded.SortBy)
	assert.Equal(t, report.Rows[0], decoded.Row)
	assert.True(t, generatedAt.Equal(decoded.GeneratedAt))

	assert.Equal(t, map[string]string{
		"report":       "top_20_confirmed",
		"kind":         "ranking",
		"run_id":       "run-1",
		"generated_at": generatedAt.Format(time.RFC3339),
	}, headerMap(msg))
}

func TestWriter_Export_Ranking(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw)

	require.NoError(t, w.Export(context.Background(), rankingReport()))

	assert.Equal(t, 1, fw.calls, "one batch per report")
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("US"), fw.msgs[0].Key)
	assert.Equal(t, []byte("Italy"), fw.msgs[1].Key)
	assert.Contains(t, string(fw.msgs[1].Value), `"rank":2`)
	assert.Contains(t, string(fw.msgs[1].Value), `"recovered":null`)
}

func TestWriter_Export_Series(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw)

	day := time.Date(2020, 1, 22, 0, 0, 0, 0, time.UTC)
	report := domain.Report{
		Name:        "china_trend",
		Kind:        domain.KindTrend,
		RunID:       "run-1",
		GeneratedAt: generatedAt,
		Country:     "China",
		Series: []domain.TimeSeries{
			{Name: "confirmed", Points: []domain.Point{{Date: day, Value: domain.Some(445)}}},
			{Name: "daily_new", Points: []domain.Point{{Date: day, Value: domain.None()}}},
		},
	}
	require.NoError(t, w.Export(context.Background(), report))

	assert.Equal(t, 1, fw.calls, "one batch per report")
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("china_trend/confirmed"), fw.msgs[0].Key)
	assert.Equal(t, []byte("china_trend/daily_new"), fw.msgs[1].Key)
	assert.Equal(t, "trend", headerMap(fw.msgs[0])["kind"])
	assert.Equal(t, "run-1", headerMap(fw.msgs[1])["run_id"])

	var decoded SeriesMessage
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &decoded))
	assert.Equal(t, "china_trend", decoded.Report)
	assert.Equal(t, domain.KindTrend, decoded.Kind)
	assert.Equal(t, "China", decoded.Country)
	assert.Equal(t, "confirmed", decoded.Series.Name)
	assert.Equal(t, []domain.Value{domain.Some(445)}, decoded.Series.Values())
}

// A full-length provincial breakdown must fit within kafka-go's default
// 1 MiB BatchBytes per message.
func TestSerializeReport_LargeBreakdown(t *testing.T) {
	const (
		provinces = 34
		days      = 1143
		maxBytes  = 1 << 20
	)
	start := time.Date(2020, 1, 22, 0, 0, 0, 0, time.UTC)

	report := domain.Report{
		Name:        "china_provinces",
		Kind:        domain.KindBreakdown,
		RunID:       "0f8c2a7e-3a1b-4c55-9e0d-6a2b8f1c4d3e",
		GeneratedAt: generatedAt,
		Country:     "China",
	}
	total := 0
	for p := range provinces {
		s := domain.TimeSeries{Name: fmt.Sprintf("Province %02d", p), Points: make([]domain.Point, days)}
		for d := range days {
			s.Points[d] = domain.Point{Date: start.AddDate(0, 0, d), Value: domain.Some(float64(68000 + p*d))}
		}
		report.Series = append(report.Series, s)
	}

	msgs, err := serializeReport(report)
	require.NoError(t, err)
	require.Len(t, msgs, provinces)
	for _, m := range msgs {
		assert.Less(t, len(m.Value), maxBytes, string(m.Key))
		total += len(m.Value)
	}
	assert.Greater(t, total, maxBytes, "the report as a whole exceeds one message")
	assert.Equal(t, []byte("china_provinces/Province 00"), msgs[0].Key)

	fw := &fakeWriter{}
	require.NoError(t, testWriter(fw).Export(context.Background(), report))
	assert.Len(t, fw.msgs, provinces)
}

func TestWriter_Export_EmptyRanking(t *testing.T) {
	fw := &fakeWriter{}
	report := rankingReport()
	report.Rows = nil

	require.NoError(t, testWriter(fw).Export(context.Background(), report))
	assert.Zero(t, fw.calls)
}

func TestWriter_Export_Error(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}

	err := testWriter(fw).Export(context.Background(), rankingReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_20_confirmed")
	assert.Contains(t, err.Error(), "leader not available")
}

func TestWriter_Close(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, testWriter(fw).Close())
	assert.True(t, fw.closed)
}

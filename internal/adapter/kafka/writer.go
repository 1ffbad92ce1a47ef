package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/config"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes reports to a Kafka topic.
// It implements pipeline.Exporter.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Export publishes a ranking as one message per row keyed by country, and a
// trend or breakdown report as one message per series keyed by
// "report/series". All messages of a report go out in one WriteMessages call.
func (w *Writer) Export(ctx context.Context, report domain.Report) error {
	msgs, err := serializeReport(report)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish report %s: %w", report.Name, err)
	}
	w.logger.Debug("report published", "report", report.Name, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// RankingMessage is the value of one ranking row message.
type RankingMessage struct {
	Report      string           `json:"report"`
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	SortBy      domain.SortKey   `json:"sort_by"`
	Rank        int              `json:"rank"`
	Row         domain.MetricRow `json:"row"`
}

// SeriesMessage is the value of one series message of a trend or breakdown
// report.
type SeriesMessage struct {
	Report      string            `json:"report"`
	Kind        domain.ReportKind `json:"kind"`
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Country     string            `json:"country"`
	Series      domain.TimeSeries `json:"series"`
}

func serializeReport(report domain.Report) ([]kafkago.Message, error) {
	headers := reportHeaders(report)

	if report.Kind != domain.KindRanking {
		msgs := make([]kafkago.Message, 0, len(report.Series))
		for _, s := range report.Series {
			msg, err := serializeSeries(report, s, headers)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
		return msgs, nil
	}

	msgs := make([]kafkago.Message, 0, len(report.Rows))
	for i, row := range report.Rows {
		msg, err := serializeToMessage(report, i+1, row, headers)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func serializeSeries(report domain.Report, series domain.TimeSeries, headers []kafkago.Header) (kafkago.Message, error) {
	data, err := json.Marshal(SeriesMessage{
		Report:      report.Name,
		Kind:        report.Kind,
		RunID:       report.RunID,
		GeneratedAt: report.GeneratedAt,
		Country:     report.Country,
		Series:      series,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize series %s/%s: %w", report.Name, series.Name, err)
	}
	return kafkago.Message{
		Key:     []byte(report.Name + "/" + series.Name),
		Value:   data,
		Headers: headers,
	}, nil
}

// serializeToMessage marshals one ranking row into a Kafka message.
func serializeToMessage(report domain.Report, rank int, row domain.MetricRow, headers []kafkago.Header) (kafkago.Message, error) {
	data, err := json.Marshal(RankingMessage{
		Report:      report.Name,
		RunID:       report.RunID,
		GeneratedAt: report.GeneratedAt,
		SortBy:      report.SortBy,
		Rank:        rank,
		Row:         row,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize ranking row %s: %w", row.Country, err)
	}
	return kafkago.Message{
		Key:     []byte(row.Country),
		Value:   data,
		Headers: headers,
	}, nil
}

func reportHeaders(report domain.Report) []kafkago.Header {
	return []kafkago.Header{
		{Key: "report", Value: []byte(report.Name)},
		{Key: "kind", Value: []byte(report.Kind)},
		{Key: "run_id", Value: []byte(report.RunID)},
		{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
	}
}

// Package kafka publishes city timepoint records to a sink topic for
// downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/cleanskies/no2-data-prep/internal/config"
	"github.com/cleanskies/no2-data-prep/internal/domain"
)

// Writer produces city timepoint batches to a Kafka topic.
// It implements pipeline.TimepointSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// WriteTimepoints serializes and publishes one period's records in a
// single WriteMessages call.
func (w *Writer) WriteTimepoints(ctx context.Context, p domain.Period, records []domain.CityTimepoint) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish timepoints for %s: %w", p, err)
	}
	w.logger.Info("timepoints published", "period", p.String(), "count", len(records))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a CityTimepoint into a Kafka message keyed
// by the record's stable identity so reprocessed periods upsert in place.
func serializeToMessage(record domain.CityTimepoint) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize city timepoint: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(record.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "city", Value: []byte(record.CityName)},
			{Key: "processed_at", Value: []byte(record.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}

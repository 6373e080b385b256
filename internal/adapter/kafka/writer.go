package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/covid-projections/covid-data-etl/internal/config"
	"github.com/covid-projections/covid-data-etl/internal/domain"
)

// publishBatchSize bounds the number of messages per WriteMessages call.
const publishBatchSize = 1000

// Writer publishes raw records to the source topic, one message per record.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured source topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSourceTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger.With("component", "kafka_writer", "topic", cfg.KafkaSourceTopic)}
}

// Publish serializes every record of raw under the dataset key.
func (w *Writer) Publish(ctx context.Context, dataset string, raw domain.RawTable) error {
	msgs := make([]kafkago.Message, 0, publishBatchSize)
	flush := func() error {
		if len(msgs) == 0 {
			return nil
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish %s: %w", dataset, err)
		}
		msgs = msgs[:0]
		return nil
	}
	for _, rec := range raw.Records {
		msg, err := serializeRecord(dataset, rec)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		if len(msgs) == publishBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	w.logger.Info("published records", "dataset", dataset, "records", len(raw.Records))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeRecord marshals a raw record into a Kafka message keyed by dataset.
func serializeRecord(dataset string, rec domain.RawRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record: %w", dataset, err)
	}
	return kafkago.Message{
		Key:   []byte(dataset),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dataset", Value: []byte(dataset)},
		},
	}, nil
}

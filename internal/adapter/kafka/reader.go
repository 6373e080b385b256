// Package kafka carries raw source records over a Kafka topic. Each message
// holds one raw record as a JSON object, keyed by the dataset it belongs to.
package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/covid-projections/covid-data-etl/internal/config"
	"github.com/covid-projections/covid-data-etl/internal/domain"
	"github.com/covid-projections/covid-data-etl/internal/observability"
)

const source = "kafka"

// Source reads raw records from the configured topic.
type Source struct {
	brokers     []string
	topic       string
	readTimeout time.Duration
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewSource creates a Kafka raw-record source.
func NewSource(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Source {
	return &Source{
		brokers:     cfg.KafkaBrokers,
		topic:       cfg.KafkaSourceTopic,
		readTimeout: cfg.KafkaReadTimeout,
		metrics:     metrics,
		logger:      logger.With("component", "kafka_source", "topic", cfg.KafkaSourceTopic),
	}
}

// Extractor returns an extractor for one dataset's records.
func (s *Source) Extractor(dataset string) *Extractor {
	return &Extractor{source: s, dataset: dataset}
}

// Extractor drains the topic and keeps the records of one dataset. It
// implements pipeline.Extractor.
type Extractor struct {
	source  *Source
	dataset string
}

// Extract reads the topic from the first offset up to the high-water mark
// observed while reading. Messages for other datasets are skipped; messages
// that are not JSON objects are logged and skipped.
func (e *Extractor) Extract(ctx context.Context) (domain.RawTable, error) {
	start := time.Now()
	raw, err := e.source.drain(ctx, e.dataset)
	e.source.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		e.source.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
		return domain.RawTable{}, err
	}
	e.source.metrics.FetchRequests.WithLabelValues(source, "success").Inc()
	return raw, nil
}

func (s *Source) drain(ctx context.Context, dataset string) (domain.RawTable, error) {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   s.brokers,
		Topic:     s.topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer r.Close()
	if err := r.SetOffset(kafkago.FirstOffset); err != nil {
		return domain.RawTable{}, fmt.Errorf("seek %s: %w", s.topic, err)
	}

	collector := newCollector()
	skipped := 0
	for {
		readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
		msg, err := r.ReadMessage(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				// Nothing arrived within the read timeout: the topic is drained.
				break
			}
			return domain.RawTable{}, fmt.Errorf("read %s: %w", s.topic, err)
		}

		if string(msg.Key) == dataset {
			rec, err := mapMessage(msg)
			if err != nil {
				skipped++
				s.logger.Warn("skipping invalid record", "offset", msg.Offset, "error", err)
			} else {
				collector.add(rec)
			}
		}
		if msg.Offset+1 >= msg.HighWaterMark {
			break
		}
	}

	raw := collector.table()
	s.logger.Info("drained topic", "dataset", dataset, "records", len(raw.Records), "skipped", skipped)
	return raw, nil
}

// mapMessage decodes a message value into a raw record. Numbers are kept as
// json.Number so that integer location codes survive untouched.
func mapMessage(msg kafkago.Message) (domain.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(msg.Value))
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec == nil {
		return nil, errors.New("decode record: not a JSON object")
	}
	return domain.RawRecord(rec), nil
}

// collector accumulates records and the union of their columns.
type collector struct {
	columns map[string]bool
	records []domain.RawRecord
}

func newCollector() *collector {
	return &collector{columns: make(map[string]bool)}
}

func (c *collector) add(rec domain.RawRecord) {
	for k := range rec {
		c.columns[k] = true
	}
	c.records = append(c.records, rec)
}

func (c *collector) table() domain.RawTable {
	cols := make([]string, 0, len(c.columns))
	for k := range c.columns {
		cols = append(cols, k)
	}
	slices.Sort(cols)
	return domain.RawTable{Columns: cols, Records: c.records}
}

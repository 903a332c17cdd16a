package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	Compression  string
	MaxAttempts  int
}

// A Kafka publisher writes events keyed by object ID so that
// all the events of an object land on the same partition.
type Kafka struct {
	writer *kafkago.Writer
}

// Writer defaults. Events are written one by one by the request path,
// a larger batch would hold each write until the batch timeout.
const (
	DefaultBatchSize    = 1
	DefaultBatchTimeout = 10 * time.Millisecond
)

// NewKafka returns a new Kafka publisher.
func NewKafka(cfg KafkaConfig) *Kafka {
	return &Kafka{
		writer: newWriter(cfg),
	}
}

func newWriter(cfg KafkaConfig) *kafkago.Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}

	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafkago.RequireAll,
		Compression:  CompressionFromString(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		Async:        false,
	}
}

// Publish sends the event.
func (p *Kafka) Publish(ctx context.Context, e Event) error {
	msg, err := message(e)
	if err != nil {
		return err
	}
	return errors.Wrap(p.writer.WriteMessages(ctx, msg), "could not publish event")
}

// Close flushes and closes the underlying writer.
func (p *Kafka) Close() error {
	return p.writer.Close()
}

func message(e Event) (kafkago.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, errors.Wrap(err, "could not marshal event")
	}

	return kafkago.Message{
		Key:   []byte(e.ObjectID),
		Value: payload,
		Time:  e.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}

// CompressionFromString maps textual codec to kafka-go value.
func CompressionFromString(name string) kafkago.Compression {
	switch strings.ToLower(name) {
	case "gzip":
		return kafkago.Gzip
	case "snappy":
		return kafkago.Snappy
	case "lz4":
		return kafkago.Lz4
	case "zstd":
		return kafkago.Zstd
	default:
		return kafkago.Snappy
	}
}

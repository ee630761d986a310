package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/domain/event"
)

// KafkaConfig configures the Kafka audit sink
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchSize    int
	BatchTimeout time.Duration
}

// Validate checks that the sink can be built
func (c KafkaConfig) Validate() error {
	var missing []string
	if len(c.Brokers) == 0 {
		missing = append(missing, "brokers")
	}
	if strings.TrimSpace(c.Topic) == "" {
		missing = append(missing, "topic")
	}
	if len(missing) > 0 {
		return fmt.Errorf("kafka audit sink: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// MessageWriter is the part of *kafka.Writer the sink uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes audit events as JSON, keyed by instance so one
// instance's events stay ordered within a partition
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

// NewKafkaSink builds a sink backed by a kafka-go writer
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		BatchSize:              batchSize,
	}
	if cfg.ClientID != "" {
		writer.Transport = &kafka.Transport{ClientID: cfg.ClientID}
	}
	return NewKafkaSinkWithWriter(writer, cfg.Topic), nil
}

// NewKafkaSinkWithWriter wraps an existing writer
func NewKafkaSinkWithWriter(writer MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

// Name identifies the sink in dispatcher listings
func (s *KafkaSink) Name() string { return "audit.kafka" }

// Record publishes evt
func (s *KafkaSink) Record(ctx context.Context, evt *event.Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	key := evt.InstanceID
	if key == "" {
		key = evt.TenantID
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "tenant_id", Value: []byte(evt.TenantID)},
			{Key: "correlation_id", Value: []byte(evt.CorrelationID)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish audit event %s to %s: %w", evt.ID, s.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	if err := s.writer.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}

var _ port.AuditSink = (*KafkaSink)(nil)

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/ringi/internal/application/dispatcher"
	"github.com/garyjia/ringi/internal/domain/event"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func (m *mockWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func sampleEvent() *event.Event {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return event.NewEvent(event.TypeStepApproved, "tenant-1", "user-1", at, map[string]interface{}{
		"display_id": "WF-3",
	}).ForInstance("instance-1").ForStep("step-1")
}

func TestLogSink_Record(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Record(context.Background(), sampleEvent()))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Audit event", entries[0].Message)
	assert.Equal(t, "audit", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	assert.Equal(t, "step.approved", fields["event_type"])
	assert.Equal(t, "instance-1", fields["instance_id"])
	assert.Equal(t, "step-1", fields["step_id"])
}

func TestKafkaConfig_Validate(t *testing.T) {
	assert.Error(t, KafkaConfig{}.Validate())
	assert.Error(t, KafkaConfig{Brokers: []string{"localhost:9092"}}.Validate())
	assert.NoError(t, KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "audit"}.Validate())

	_, err := NewKafkaSink(KafkaConfig{Topic: "audit"})
	assert.Error(t, err)
}

func TestKafkaSink_Record(t *testing.T) {
	w := &mockWriter{}
	sink := NewKafkaSinkWithWriter(w, "ringi.audit")
	evt := sampleEvent()

	require.NoError(t, sink.Record(context.Background(), evt))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "instance-1", string(msg.Key))
	assert.Equal(t, evt.Timestamp, msg.Time)

	var decoded event.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, event.TypeStepApproved, decoded.Type)
	assert.Equal(t, "WF-3", decoded.Payload["display_id"])

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "step.approved", headers["event_type"])
	assert.Equal(t, "tenant-1", headers["tenant_id"])
}

func TestKafkaSink_KeyFallsBackToTenant(t *testing.T) {
	w := &mockWriter{}
	sink := NewKafkaSinkWithWriter(w, "ringi.audit")
	evt := event.NewEvent(event.TypeDefinitionCreated, "tenant-9", "user-1", time.Now(), nil)

	require.NoError(t, sink.Record(context.Background(), evt))
	assert.Equal(t, "tenant-9", string(w.messages[0].Key))
}

func TestKafkaSink_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	sink := NewKafkaSinkWithWriter(&mockWriter{err: boom}, "ringi.audit")

	err := sink.Record(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
}

func TestKafkaSink_Close(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, NewKafkaSinkWithWriter(w, "t").Close())
	assert.True(t, w.closed)

	var nilSink *KafkaSink
	assert.NoError(t, nilSink.Close())
}

func TestSubscribe_FansOutToEverySink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := &mockWriter{}
	d := dispatcher.NewDispatcher()

	Subscribe(d, NewLogSink(zap.New(core)), NewKafkaSinkWithWriter(w, "ringi.audit"))
	handlers := d.ListHandlers(event.TypeAll)
	require.Len(t, handlers, 2)
	assert.Equal(t, "audit.log", handlers[0].Name)
	assert.Equal(t, "audit.kafka", handlers[1].Name)

	d.DispatchAsync(context.Background(), sampleEvent())
	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeCommentPosted, "tenant-1", "user-2", time.Now(), nil))
	require.NoError(t, d.Close())

	assert.Equal(t, 2, w.count())
	assert.Equal(t, 2, logs.Len())
}

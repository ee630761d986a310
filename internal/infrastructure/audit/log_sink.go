package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/domain/event"
)

// LogSink writes every audit event as one structured log line
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs to logger under the "audit" name
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

// Name identifies the sink in dispatcher listings
func (s *LogSink) Name() string { return "audit.log" }

// Record logs evt
func (s *LogSink) Record(ctx context.Context, evt *event.Event) error {
	fields := []zap.Field{
		zap.String("event_id", evt.ID),
		zap.String("event_type", string(evt.Type)),
		zap.String("tenant_id", evt.TenantID),
		zap.String("actor_id", evt.ActorID),
		zap.Time("timestamp", evt.Timestamp),
		zap.String("correlation_id", evt.CorrelationID),
	}
	if evt.InstanceID != "" {
		fields = append(fields, zap.String("instance_id", evt.InstanceID))
	}
	if evt.StepID != "" {
		fields = append(fields, zap.String("step_id", evt.StepID))
	}
	if len(evt.Payload) > 0 {
		fields = append(fields, zap.Any("payload", evt.Payload))
	}
	s.logger.Info("Audit event", fields...)
	return nil
}

var _ port.AuditSink = (*LogSink)(nil)

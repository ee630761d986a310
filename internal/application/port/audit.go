package port

import (
	"context"
	"time"

	"github.com/garyjia/ringi/internal/domain/event"
)

// AuditSink stores or forwards audit events. Failures are logged by the
// caller and never reach the user.
type AuditSink interface {
	Name() string
	Record(ctx context.Context, evt *event.Event) error
}

// MetricsRecorder observes engine operations
type MetricsRecorder interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
}

// NopMetrics discards observations
type NopMetrics struct{}

// ObserveOperation does nothing
func (NopMetrics) ObserveOperation(string, string, time.Duration) {}

package audit

import (
	"context"

	"github.com/garyjia/ringi/internal/application/dispatcher"
	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/domain/event"
)

// Subscribe attaches every sink to all event types. Sink errors are returned
// to the dispatcher, which logs them.
func Subscribe(d dispatcher.Dispatcher, sinks ...port.AuditSink) {
	for _, sink := range sinks {
		sink := sink
		d.SubscribeNamed(event.TypeAll, sink.Name(), func(ctx context.Context, evt *event.Event) error {
			return sink.Record(ctx, evt)
		})
	}
}

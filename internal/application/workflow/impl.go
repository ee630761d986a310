package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/ringi/internal/application/dispatcher"
	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/domain/event"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Deps are the ports the engine needs
type Deps struct {
	Definitions port.DefinitionRepository
	Instances   port.InstanceRepository
	Steps       port.StepRepository
	Comments    port.CommentRepository
	Counter     port.DisplayNumberCounter
	TxManager   port.TransactionManager
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	definitions port.DefinitionRepository
	instances   port.InstanceRepository
	steps       port.StepRepository
	comments    port.CommentRepository
	counter     port.DisplayNumberCounter
	txManager   port.TransactionManager

	dispatcher dispatcher.Dispatcher
	clock      domainwf.Clock
	metrics    port.MetricsRecorder
	logger     Logger
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting audit events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithClock overrides the system clock
func WithClock(c domainwf.Clock) EngineOption {
	return func(e *engineImpl) {
		e.clock = c
	}
}

// WithMetrics sets the operation metrics recorder
func WithMetrics(m port.MetricsRecorder) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// NewEngine creates a new workflow engine
func NewEngine(deps Deps, opts ...EngineOption) Engine {
	e := &engineImpl{
		definitions: deps.Definitions,
		instances:   deps.Instances,
		steps:       deps.Steps,
		comments:    deps.Comments,
		counter:     deps.Counter,
		txManager:   deps.TxManager,
		clock:       domainwf.SystemClock{},
		metrics:     port.NopMetrics{},
		logger:      nopLogger{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// run wraps one engine operation: actor check, metrics and failure logging
func (e *engineImpl) run(ctx context.Context, op string, actor Actor, fn func() error) error {
	start := time.Now()
	err := e.checkActor(actor)
	if err == nil {
		err = fn()
	}

	kind := domainwf.ErrorKind(err)
	e.metrics.ObserveOperation(op, kind, time.Since(start))

	if kind == "error" {
		e.logger.Error("Workflow operation failed",
			"operation", op,
			"tenant_id", actor.TenantID.String(),
			"user_id", actor.UserID.String(),
			"error", err,
		)
	}
	return err
}

func (e *engineImpl) checkActor(actor Actor) error {
	if actor.TenantID.IsZero() {
		return domainwf.Validationf("tenant id is required")
	}
	if actor.UserID.IsZero() {
		return domainwf.Validationf("user id is required")
	}
	return nil
}

// write runs fn in a transaction and dispatches the events it collected once
// the transaction has committed
func (e *engineImpl) write(ctx context.Context, fn func(ctx context.Context, out *outbox) error) error {
	var out outbox
	if err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		out = outbox{}
		return fn(txCtx, &out)
	}); err != nil {
		return err
	}
	e.publish(ctx, out)
	return nil
}

func (e *engineImpl) publish(ctx context.Context, out outbox) {
	if e.dispatcher == nil {
		return
	}
	for _, evt := range out {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

// outbox collects audit events produced inside a transaction
type outbox []*event.Event

func (o *outbox) add(evt *event.Event) {
	*o = append(*o, evt)
}

func newEvent(typ event.Type, actor Actor, at time.Time, payload map[string]interface{}) *event.Event {
	return event.NewEvent(typ, actor.TenantID.String(), actor.UserID.String(), at, payload)
}

func instanceEvent(typ event.Type, actor Actor, inst *domainwf.Instance, at time.Time) *event.Event {
	return newEvent(typ, actor, at, map[string]interface{}{
		"display_id": inst.DisplayID(),
		"status":     inst.Status().String(),
		"version":    inst.Version,
	}).ForInstance(inst.ID.String())
}

func stepEvent(typ event.Type, actor Actor, inst *domainwf.Instance, step *domainwf.Step, at time.Time) *event.Event {
	evt := newEvent(typ, actor, at, map[string]interface{}{
		"display_id":      inst.DisplayID(),
		"step_display_id": step.DisplayID(),
		"step_id":         step.DefinitionStepID,
	}).ForInstance(inst.ID.String()).ForStep(step.ID.String())
	if c, ok := step.State.(domainwf.StepCompleted); ok && c.Comment != nil {
		evt = evt.WithPayload("comment", *c.Comment)
	}
	return evt
}

// wrap adds operation context without hiding the sentinel
func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ringi/internal/application/dispatcher"
	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/domain/event"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

// SystemActor is the actor id on events raised by background jobs
const SystemActor = "system"

// OverdueMonitorConfig tunes the overdue scan
type OverdueMonitorConfig struct {
	Interval  time.Duration // how often to scan (default: 1 minute)
	BatchSize int           // steps fetched per scan (default: 100)
}

// OverdueMonitor periodically looks for active steps past their due date and
// raises one step.overdue audit event per step
type OverdueMonitor struct {
	finder     port.OverdueStepFinder
	dispatcher dispatcher.Dispatcher
	clock      domainwf.Clock
	logger     *zap.Logger

	interval  time.Duration
	batchSize int

	// State
	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}

	scanMu   sync.Mutex
	notified map[domainwf.StepID]struct{}
}

// NewOverdueMonitor creates a new overdue monitor
func NewOverdueMonitor(
	finder port.OverdueStepFinder,
	d dispatcher.Dispatcher,
	clock domainwf.Clock,
	cfg OverdueMonitorConfig,
	logger *zap.Logger,
) *OverdueMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if clock == nil {
		clock = domainwf.SystemClock{}
	}
	return &OverdueMonitor{
		finder:     finder,
		dispatcher: d,
		clock:      clock,
		logger:     logger.Named("overdue_monitor"),
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		notified:   make(map[domainwf.StepID]struct{}),
	}
}

// Name returns the worker name for identification
func (m *OverdueMonitor) Name() string {
	return "overdue_monitor"
}

// Start launches the scan loop
func (m *OverdueMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("overdue monitor is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.isRunning = true

	m.logger.Info("Overdue monitor started",
		zap.Duration("interval", m.interval),
		zap.Int("batch_size", m.batchSize))

	go m.loop(loopCtx, m.done)
	return nil
}

// Stop cancels the loop and waits for the current scan to finish
func (m *OverdueMonitor) Stop() error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	m.logger.Info("Overdue monitor stopped")
	return nil
}

func (m *OverdueMonitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.Scan(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("Overdue scan failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan walks the whole overdue set page by page and returns how many steps
// were newly reported
func (m *OverdueMonitor) Scan(ctx context.Context) (int, error) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	now := m.clock.Now()
	reported, overdue := 0, 0
	seen := make(map[domainwf.StepID]struct{})

	var after *port.OverdueCursor
	for {
		steps, err := m.finder.ListOverdue(ctx, now, after, m.batchSize)
		if err != nil {
			// Keep what was reported so far so a retry does not repeat it
			for id := range seen {
				m.notified[id] = struct{}{}
			}
			return reported, fmt.Errorf("failed to list overdue steps: %w", err)
		}

		for _, step := range steps {
			seen[step.ID] = struct{}{}
			if _, ok := m.notified[step.ID]; ok {
				continue
			}
			m.dispatcher.DispatchAsync(ctx, overdueEvent(step, now))
			reported++
		}
		overdue += len(steps)

		if len(steps) < m.batchSize {
			break
		}
		if after = port.CursorAfter(steps[len(steps)-1]); after == nil {
			break
		}
	}

	// seen is the full overdue set; anything missing was decided or cancelled
	m.notified = seen

	if reported > 0 {
		m.logger.Info("Overdue steps reported",
			zap.Int("reported", reported),
			zap.Int("overdue", overdue))
	}
	return reported, nil
}

func overdueEvent(step *domainwf.Step, now time.Time) *event.Event {
	payload := map[string]interface{}{
		"step_display_id": step.DisplayID(),
		"step_id":         step.DefinitionStepID,
		"overdue_by":      now.Sub(*step.DueDate).Round(time.Second).String(),
		"due_date":        step.DueDate.UTC().Format(time.RFC3339),
	}
	if step.AssignedTo != nil {
		payload["assigned_to"] = step.AssignedTo.String()
	}
	return event.NewEvent(event.TypeStepOverdue, step.TenantID.String(), SystemActor, now, payload).
		ForInstance(step.InstanceID.String()).
		ForStep(step.ID.String())
}

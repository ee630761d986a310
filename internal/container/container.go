package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ringi/internal/application/dispatcher"
	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/application/workflow"
	"github.com/garyjia/ringi/internal/infrastructure/metrics"
	"github.com/garyjia/ringi/internal/infrastructure/persistence/sqlstore"
	"github.com/garyjia/ringi/internal/infrastructure/worker"
	httpapi "github.com/garyjia/ringi/internal/interfaces/http"
	"github.com/garyjia/ringi/pkg/database"
	"github.com/garyjia/ringi/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	rawDB        *database.DB
	db           *sqlstore.DB
	repositories *RepositoryBundle

	// Infrastructure - Observability
	audit   *AuditBundle
	metrics *metrics.Recorder

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine
	workers    *worker.WorkerManager

	// Interfaces
	server *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. Audit sinks and metrics
// 3. Event dispatcher and workflow engine
// 4. Background workers
// 5. HTTP server (built, not listening; see Serve)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("driver", c.rawDB.Driver))

	// Step 2: Initialize audit sinks and metrics
	if err := c.initObservability(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	c.logger.Info("Audit sinks initialized", zap.Int("sink_count", len(c.audit.Sinks)))

	// Step 3: Initialize dispatcher and workflow engine
	if err := c.initDispatcherAndWorkflow(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize dispatcher and workflow: %w", err)
	}
	c.logger.Info("Dispatcher and workflow engine initialized")

	// Step 4: Start background workers
	c.workers = ProvideWorkers(&c.config.Engine, c.repositories, c.dispatcher, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		c.teardown()
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers started", zap.Int("worker_count", c.workers.GetWorkerCount()))

	// Step 5: Build the HTTP server
	c.initServer()

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Serve runs the HTTP server until ctx is cancelled.
func (c *Container) Serve(ctx context.Context) error {
	if !c.ready.Load() {
		return fmt.Errorf("container is not started")
	}
	return c.server.Start(ctx)
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized so far, in reverse order.
func (c *Container) teardown() []error {
	var errs []error

	// Step 1: Stop the HTTP server
	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop server: %w", err))
		}
		c.server = nil
	}

	// Step 2: Stop background workers before the dispatcher they feed
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// Step 3: Drain the dispatcher so in-flight audit events reach the sinks
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	// Step 4: Flush and close audit sinks
	if c.audit != nil {
		if err := c.audit.Close(); err != nil {
			c.logger.Error("Failed to close audit sinks", zap.Error(err))
			errs = append(errs, fmt.Errorf("close audit sinks: %w", err))
		}
		c.audit = nil
	}

	// Step 5: Close database
	if c.rawDB != nil {
		if err := c.rawDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.rawDB = nil
		c.db = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	// Check database
	switch {
	case c.db == nil:
		set("database", false, "not initialized")
	default:
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.db.PingContext(pingCtx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	// Check dispatcher
	if c.dispatcher != nil {
		set("dispatcher", true, "")
	} else if c.config.Engine.DispatchEvents {
		set("dispatcher", false, "not initialized")
	}

	// Check engine
	if c.engine != nil {
		set("engine", true, "")
	} else {
		set("engine", false, "not initialized")
	}

	return status
}

// initDatabase opens the database and builds all repositories.
func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, &c.config.Database, c.config.AutoMigrate, c.logger)
	if err != nil {
		return err
	}
	c.rawDB = bundle.Raw
	c.db = bundle.TxManager

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		_ = c.rawDB.Close()
		c.rawDB, c.db = nil, nil
		return err
	}
	c.repositories = repos
	return nil
}

// initObservability builds the audit sinks and the metrics recorder.
func (c *Container) initObservability() error {
	bundle, err := ProvideAuditSinks(&c.config.Audit, c.logger)
	if err != nil {
		return err
	}
	c.audit = bundle
	c.metrics = ProvideMetrics(&c.config.Metrics)
	return nil
}

// initDispatcherAndWorkflow wires the dispatcher to the sinks and builds the
// engine on top of the repositories.
func (c *Container) initDispatcherAndWorkflow() error {
	if c.config.Engine.DispatchEvents {
		c.dispatcher = ProvideDispatcher(&c.config.Engine, c.audit.Sinks, c.logger)
	}

	deps := &WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	}
	if c.metrics != nil {
		deps.Metrics = c.metrics
	}

	engine, err := ProvideWorkflowEngine(deps)
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

// initServer builds the HTTP adapter.
func (c *Container) initServer() {
	db := c.db
	opts := []httpapi.ServerOption{
		httpapi.WithHealthProbe(func(ctx context.Context) error {
			return db.PingContext(ctx)
		}),
	}
	if c.metrics != nil {
		opts = append(opts, httpapi.WithMetricsHandler(c.metrics.Handler()))
	}
	c.server = httpapi.NewServer(c.config.Server, c.engine, utils.NewKVLogger(c.logger.Named("http")), opts...)
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher, nil when dispatch is disabled.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the workflow engine.
func (c *Container) Engine() workflow.Engine {
	return c.engine
}

// Metrics returns the Prometheus recorder, nil when disabled.
func (c *Container) Metrics() *metrics.Recorder {
	return c.metrics
}

// Workers returns the background worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Server returns the HTTP server.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

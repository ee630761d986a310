package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/ringi/internal/application/dispatcher"
	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/application/workflow"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
	"github.com/garyjia/ringi/internal/infrastructure/audit"
	"github.com/garyjia/ringi/internal/infrastructure/metrics"
	"github.com/garyjia/ringi/internal/infrastructure/persistence/repository"
	"github.com/garyjia/ringi/internal/infrastructure/persistence/sqlstore"
	"github.com/garyjia/ringi/internal/infrastructure/worker"
	"github.com/garyjia/ringi/pkg/database"
	"github.com/garyjia/ringi/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Raw       *database.DB
	TxManager *sqlstore.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Definitions port.DefinitionRepository
	Instances   port.InstanceRepository
	Steps       port.StepRepository
	Overdue     port.OverdueStepFinder
	Comments    port.CommentRepository
	Counter     port.DisplayNumberCounter
}

// AuditBundle holds the audit sinks and whatever must be closed with them.
type AuditBundle struct {
	Sinks []port.AuditSink
	kafka *audit.KafkaSink
}

// Close releases the sinks that hold connections.
func (b *AuditBundle) Close() error {
	if b == nil {
		return nil
	}
	return b.kafka.Close()
}

// ProvideDatabase opens the configured database and, when migrate is set,
// applies any pending migrations.
func ProvideDatabase(ctx context.Context, cfg *database.Config, migrate bool, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(*cfg, logger)
	if err != nil {
		return nil, err
	}

	if migrate {
		if _, err := database.NewMigrator(db, logger).Run(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		Raw:       db,
		TxManager: sqlstore.NewDB(db.DB, sqlstore.Dialect(db.Driver), logger),
	}, nil
}

// ProvideRepositories creates all repositories over one transaction-aware
// connection.
func ProvideRepositories(db *sqlstore.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	steps := repository.NewStepRepository(db, logger)
	return &RepositoryBundle{
		Definitions: repository.NewDefinitionRepository(db, logger),
		Instances:   repository.NewInstanceRepository(db, logger),
		Steps:       steps,
		Overdue:     steps,
		Comments:    repository.NewCommentRepository(db, logger),
		Counter:     repository.NewCounterRepository(db, logger),
	}, nil
}

// ProvideAuditSinks builds the sinks selected by cfg.
func ProvideAuditSinks(cfg *AuditConfig, logger *zap.Logger) (*AuditBundle, error) {
	bundle := &AuditBundle{}
	if cfg == nil {
		return bundle, nil
	}

	if cfg.Log {
		bundle.Sinks = append(bundle.Sinks, audit.NewLogSink(logger))
	}
	if cfg.Kafka != nil {
		sink, err := audit.NewKafkaSink(*cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka audit sink: %w", err)
		}
		bundle.kafka = sink
		bundle.Sinks = append(bundle.Sinks, sink)
		logger.Info("Kafka audit sink enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}
	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher and subscribes the sinks.
func ProvideDispatcher(cfg *EngineConfig, sinks []port.AuditSink, logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))),
		dispatcher.WithHandlerTimeout(cfg.HandlerTimeout),
	)
	audit.Subscribe(d, sinks...)
	return d
}

// ProvideMetrics returns the Prometheus recorder, or nil when disabled.
func ProvideMetrics(cfg *MetricsConfig) *metrics.Recorder {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return metrics.NewRecorder(cfg.Namespace)
}

// ProvideWorkers builds the background workers. The overdue monitor needs the
// dispatcher to report anything, so it is skipped when dispatch is off.
func ProvideWorkers(cfg *EngineConfig, repos *RepositoryBundle, d dispatcher.Dispatcher, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger.Named("workers"))
	if d == nil || cfg.OverdueInterval <= 0 {
		return manager
	}
	manager.Register(worker.NewOverdueMonitor(repos.Overdue, d, domainwf.SystemClock{}, worker.OverdueMonitorConfig{
		Interval:  cfg.OverdueInterval,
		BatchSize: cfg.OverdueBatchSize,
	}, logger))
	return manager
}

// WorkflowDeps holds everything the engine is built from.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Metrics    port.MetricsRecorder
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(utils.NewKVLogger(deps.Logger.Named("engine"))),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}
	if deps.Metrics != nil {
		opts = append(opts, workflow.WithMetrics(deps.Metrics))
	}

	return workflow.NewEngine(workflow.Deps{
		Definitions: deps.Repos.Definitions,
		Instances:   deps.Repos.Instances,
		Steps:       deps.Repos.Steps,
		Comments:    deps.Repos.Comments,
		Counter:     deps.Repos.Counter,
		TxManager:   deps.TxManager,
	}, opts...), nil
}

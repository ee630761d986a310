// Package container provides dependency injection and lifecycle management
// for the ringi approval engine.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/ringi/internal/infrastructure/audit"
	httpapi "github.com/garyjia/ringi/internal/interfaces/http"
	"github.com/garyjia/ringi/pkg/database"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database connection and migration settings
	Database    database.Config
	AutoMigrate bool

	// Server configuration
	Server httpapi.ServerConfig

	// Audit sinks
	Audit AuditConfig

	// Metrics configuration
	Metrics MetricsConfig

	// Engine configuration
	Engine EngineConfig
}

// AuditConfig selects the audit sinks.
type AuditConfig struct {
	// Log writes every event to the application log
	Log bool

	// Kafka publishes every event to a topic. Nil disables the sink.
	Kafka *audit.KafkaConfig
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// EngineConfig holds workflow engine settings.
type EngineConfig struct {
	// DispatchEvents turns audit event dispatch on
	DispatchEvents bool

	// HandlerTimeout bounds each audit sink call
	HandlerTimeout time.Duration

	// OverdueInterval is the overdue step scan period. Zero disables the scan.
	OverdueInterval  time.Duration
	OverdueBatchSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: database.Config{
			Driver:          database.DriverSQLite,
			Path:            "data/ringi.db",
			ConnMaxLifetime: 5 * time.Minute,
		},
		AutoMigrate: true,
		Server:      httpapi.DefaultServerConfig(),
		Audit: AuditConfig{
			Log: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "ringi",
		},
		Engine: EngineConfig{
			DispatchEvents:   true,
			HandlerTimeout:   5 * time.Second,
			OverdueInterval:  time.Minute,
			OverdueBatchSize: 100,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", database.DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case database.DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Audit.Kafka != nil {
		if err := c.Audit.Kafka.Validate(); err != nil {
			return err
		}
	}

	return nil
}

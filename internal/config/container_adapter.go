package config

import (
	"github.com/garyjia/ringi/internal/container"
	"github.com/garyjia/ringi/internal/infrastructure/audit"
	httpapi "github.com/garyjia/ringi/internal/interfaces/http"
	"github.com/garyjia/ringi/pkg/database"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	cfg := &container.Config{
		Database: database.Config{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		AutoMigrate: c.Database.AutoMigrate,
		Server: httpapi.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
		Audit: container.AuditConfig{
			Log: c.Audit.Log,
		},
		Metrics: container.MetricsConfig{
			Enabled:   c.Metrics.Enabled,
			Namespace: c.Metrics.Namespace,
		},
		Engine: container.EngineConfig{
			DispatchEvents:   c.Engine.DispatchEvents,
			HandlerTimeout:   c.Engine.HandlerTimeout,
			OverdueInterval:  c.Engine.OverdueInterval,
			OverdueBatchSize: c.Engine.OverdueBatchSize,
		},
	}

	if c.Audit.Kafka.Enabled {
		cfg.Audit.Kafka = &audit.KafkaConfig{
			Brokers:      c.Audit.Kafka.Brokers,
			Topic:        c.Audit.Kafka.Topic,
			ClientID:     c.Audit.Kafka.ClientID,
			BatchSize:    c.Audit.Kafka.BatchSize,
			BatchTimeout: c.Audit.Kafka.BatchTimeout,
		}
	}

	return cfg
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/ringi/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite3 or pgx
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// AuditConfig selects the audit sinks
type AuditConfig struct {
	Log   bool        `mapstructure:"log"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig holds the Kafka audit sink configuration
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	ClientID     string        `mapstructure:"client_id"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// EngineConfig holds workflow engine configuration
type EngineConfig struct {
	DispatchEvents   bool          `mapstructure:"dispatch_events"`
	HandlerTimeout   time.Duration `mapstructure:"handler_timeout"`
	OverdueInterval  time.Duration `mapstructure:"overdue_interval"`
	OverdueBatchSize int           `mapstructure:"overdue_batch_size"`
}

// Load reads an optional .env file, then the YAML file at configPath, then
// environment variables. An empty configPath uses defaults and environment
// only.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set
func loadDotEnv(path string) error {
	err := gotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "data/ringi.db")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Audit defaults
	v.SetDefault("audit.log", true)
	v.SetDefault("audit.kafka.enabled", false)
	v.SetDefault("audit.kafka.topic", "ringi.audit")
	v.SetDefault("audit.kafka.client_id", "ringi")
	v.SetDefault("audit.kafka.batch_size", 100)
	v.SetDefault("audit.kafka.batch_timeout", 10*time.Millisecond)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "ringi")

	// Engine defaults
	v.SetDefault("engine.dispatch_events", true)
	v.SetDefault("engine.handler_timeout", 5*time.Second)
	v.SetDefault("engine.overdue_interval", time.Minute)
	v.SetDefault("engine.overdue_batch_size", 100)
}

// bindEnvVars binds the environment variables that carry secrets or
// deployment-specific addresses
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"database.driver":     "RINGI_DATABASE_DRIVER",
		"database.dsn":        "RINGI_DATABASE_DSN",
		"database.path":       "RINGI_DATABASE_PATH",
		"audit.kafka.enabled": "RINGI_KAFKA_ENABLED",
		"audit.kafka.brokers": "RINGI_KAFKA_BROKERS",
		"audit.kafka.topic":   "RINGI_KAFKA_TOPIC",
		"server.port":         "RINGI_PORT",
		"logger.level":        "RINGI_LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
	case "pgx":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for pgx")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite3 or pgx, got %q", c.Database.Driver)
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	if c.Audit.Kafka.Enabled {
		if len(c.Audit.Kafka.Brokers) == 0 {
			return fmt.Errorf("audit.kafka.brokers is required when kafka is enabled")
		}
		for _, broker := range c.Audit.Kafka.Brokers {
			if err := utils.ValidateHostPort(broker); err != nil {
				return fmt.Errorf("audit.kafka.brokers: %w", err)
			}
		}
		if c.Audit.Kafka.Topic == "" {
			return fmt.Errorf("audit.kafka.topic is required when kafka is enabled")
		}
		if err := utils.ValidateTopicName(c.Audit.Kafka.Topic); err != nil {
			return fmt.Errorf("audit.kafka.topic: %w", err)
		}
	}

	return nil
}

// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/picking-engine/pkg/kafka"
	"github.com/wms-platform/picking-engine/pkg/mongodb"
	"github.com/wms-platform/picking-engine/pkg/temporal"
	"github.com/wms-platform/picking-engine/pkg/tracing"
)

// FileEnvVar names the optional YAML overlay
const FileEnvVar = "PICKING_CONFIG_FILE"

// PickingConfig holds the engine's own settings
type PickingConfig struct {
	MaxOrdersPerBatch int           `yaml:"maxOrdersPerBatch"`
	OrderServiceURL   string        `yaml:"orderServiceUrl"`
	OrderTimeout      time.Duration `yaml:"orderTimeout"`
	ValidateRequests  bool          `yaml:"validateRequests"`
	ValidateEvents    bool          `yaml:"validateEvents"`
	PickTimeout       time.Duration `yaml:"pickTimeout"`
}

// OutboxConfig controls the outbox relay
type OutboxConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	BatchSize    int           `yaml:"batchSize"`
}

// Config is the configuration shared by the api and worker binaries
type Config struct {
	ServiceName string           `yaml:"serviceName"`
	ServerAddr  string           `yaml:"serverAddr"`
	LogLevel    string           `yaml:"logLevel"`
	Environment string           `yaml:"environment"`
	MongoDB     *mongodb.Config  `yaml:"mongodb"`
	Kafka       *kafka.Config    `yaml:"kafka"`
	Tracing     *tracing.Config  `yaml:"tracing"`
	Temporal    *temporal.Config `yaml:"temporal"`
	Picking     PickingConfig    `yaml:"picking"`
	Outbox      OutboxConfig     `yaml:"outbox"`
}

// Default returns the built-in defaults for serviceName
func Default(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		ServerAddr:  ":8004",
		LogLevel:    "info",
		Environment: "development",
		MongoDB:     mongodb.DefaultConfig(),
		Kafka:       kafka.DefaultConfig(),
		Tracing:     tracing.DefaultConfig(serviceName),
		Temporal:    temporal.DefaultConfig(),
		Picking: PickingConfig{
			MaxOrdersPerBatch: 5,
			OrderServiceURL:   "http://localhost:8001",
			OrderTimeout:      5 * time.Second,
			ValidateRequests:  true,
			ValidateEvents:    true,
			PickTimeout:       4 * time.Hour,
		},
		Outbox: OutboxConfig{
			PollInterval: time.Second,
			BatchSize:    100,
		},
	}
}

// LoadDotEnv loads .env from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration for serviceName
func Load(serviceName string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Default(serviceName)
	if path := os.Getenv(FileEnvVar); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddr = getEnv("SERVER_ADDR", c.ServerAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.MongoDB.URI = getEnv("MONGODB_URI", c.MongoDB.URI)
	c.MongoDB.Database = getEnv("MONGODB_DATABASE", c.MongoDB.Database)
	c.MongoDB.Username = getEnv("MONGODB_USERNAME", c.MongoDB.Username)
	c.MongoDB.Password = getEnv("MONGODB_PASSWORD", c.MongoDB.Password)

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	c.Kafka.ClientID = getEnv("KAFKA_CLIENT_ID", c.Kafka.ClientID)

	c.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)
	c.Tracing.Environment = c.Environment
	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)

	c.Temporal.HostPort = getEnv("TEMPORAL_HOST", c.Temporal.HostPort)
	c.Temporal.Namespace = getEnv("TEMPORAL_NAMESPACE", c.Temporal.Namespace)
	c.Temporal.TaskQueue = getEnv("TEMPORAL_TASK_QUEUE", c.Temporal.TaskQueue)

	c.Picking.MaxOrdersPerBatch = getEnvInt("MAX_ORDERS_PER_BATCH", c.Picking.MaxOrdersPerBatch)
	c.Picking.OrderServiceURL = getEnv("ORDER_SERVICE_URL", c.Picking.OrderServiceURL)
	c.Picking.ValidateRequests = getEnvBool("VALIDATE_REQUESTS", c.Picking.ValidateRequests)
	c.Picking.ValidateEvents = getEnvBool("VALIDATE_EVENTS", c.Picking.ValidateEvents)
}

// Validate rejects settings the binaries cannot start with
func (c *Config) Validate() error {
	if c.Picking.MaxOrdersPerBatch < 1 {
		return fmt.Errorf("picking.maxOrdersPerBatch must be at least 1, got %d", c.Picking.MaxOrdersPerBatch)
	}
	if c.MongoDB.URI == "" || c.MongoDB.Database == "" {
		return fmt.Errorf("mongodb uri and database are required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

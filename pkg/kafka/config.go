package kafka

import (
	"time"
)

// Config holds Kafka producer configuration
type Config struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"clientId"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"` // 0: no ack, 1: leader ack, -1: all replicas ack
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "picking-engine",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,
		WriteTimeout: 10 * time.Second,
	}
}

// Topics contains the Kafka topics used by the picking engine
var Topics = struct {
	PickingBatches string
	DeadLetter     string
}{
	PickingBatches: "wms.picking.batches",
	DeadLetter:     "wms.picking.batches.dlq",
}

package stream

import (
	"errors"
	"time"
)

var (
	// ErrNoBrokers happens when a reader or writer is configured without brokers.
	ErrNoBrokers = errors.New("no kafka brokers configured")

	// ErrNoTopic happens when a reader or writer is configured without a topic.
	ErrNoTopic = errors.New("no kafka topic configured")
)

// TopicConfig
type TopicConfig struct {
	Name              string `koanf:"name"`
	CreateIfNotExist  bool   `koanf:"create_if_not_exist"`
	NumPartitions     int    `koanf:"num_partitions"`
	ReplicationFactor int    `koanf:"replication_factor"`
}

// ReaderConfig
type ReaderConfig struct {
	Topic TopicConfig `koanf:"topic"`

	Brokers  []string      `koanf:"brokers"`
	GroupID  string        `koanf:"group_id"`
	MinBytes int           `koanf:"min_bytes"`
	MaxBytes int           `koanf:"max_bytes"`
	MaxWait  time.Duration `koanf:"max_wait"`
}

// WriterConfig
type WriterConfig struct {
	Topic TopicConfig `koanf:"topic"`

	Addr     string `koanf:"addr"`
	Balancer string `koanf:"balancer"`
}

// Validate
func (c ReaderConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	if c.Topic.Name == "" {
		return ErrNoTopic
	}
	return nil
}

// Validate
func (c WriterConfig) Validate() error {
	if c.Addr == "" {
		return ErrNoBrokers
	}
	if c.Topic.Name == "" {
		return ErrNoTopic
	}
	return nil
}

// Package stream builds the kafka readers and writers of the conversion worker.
package stream

import (
	"net"
	"strconv"

	kafka "github.com/segmentio/kafka-go"
)

// NewReader creates a consumer group reader, creating its topic first when configured to.
func NewReader(config ReaderConfig) (*kafka.Reader, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := createTopic(config.Brokers[0], config.Topic); err != nil {
		return nil, err
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  config.Brokers,
		GroupID:  config.GroupID,
		Topic:    config.Topic.Name,
		MinBytes: config.MinBytes,
		MaxBytes: config.MaxBytes,
		MaxWait:  config.MaxWait,
	}), nil
}

// NewWriter creates a writer, creating its topic first when configured to.
func NewWriter(config WriterConfig) (*kafka.Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := createTopic(config.Addr, config.Topic); err != nil {
		return nil, err
	}

	return &kafka.Writer{
		Addr:     kafka.TCP(config.Addr),
		Topic:    config.Topic.Name,
		Balancer: createBalancer(config.Balancer),
	}, nil
}

// createTopic
func createTopic(addr string, config TopicConfig) error {
	if !config.CreateIfNotExist {
		return nil
	}

	conn, err := kafka.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	// topics can only be created through the controller
	controller, err := conn.Controller()
	if err != nil {
		return err
	}

	controllerConn, err := kafka.Dial(
		"tcp",
		net.JoinHostPort(
			controller.Host,
			strconv.Itoa(controller.Port),
		),
	)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	return controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             config.Name,
		NumPartitions:     config.NumPartitions,
		ReplicationFactor: config.ReplicationFactor,
	})
}

// createBalancer
func createBalancer(balancer string) kafka.Balancer {
	switch balancer {

	// Classical round robin
	case "roundrobin":
		return &kafka.RoundRobin{}

	// FNV-1a
	case "hash":
		return &kafka.Hash{}

	// CRC32 hash
	case "crc32":
		return &kafka.CRC32Balancer{}

	// Murmur2 hash
	case "murmur2":
		return &kafka.Murmur2Balancer{}

	// Partition that received the least bytes
	default:
		return &kafka.LeastBytes{}
	}
}

package stream

import (
	"testing"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestCreateBalancer(t *testing.T) {
	for name, expected := range map[string]kafka.Balancer{
		"roundrobin": &kafka.RoundRobin{},
		"hash":       &kafka.Hash{},
		"crc32":      &kafka.CRC32Balancer{},
		"murmur2":    &kafka.Murmur2Balancer{},
		"leastbytes": &kafka.LeastBytes{},
		"":           &kafka.LeastBytes{},
	} {
		t.Run(name, func(t *testing.T) {
			require.IsType(t, expected, createBalancer(name))
		})
	}
}

func TestFactoriesValidate(t *testing.T) {
	_, err := NewReader(ReaderConfig{Topic: TopicConfig{Name: "requests"}})
	require.Equal(t, ErrNoBrokers, err)

	_, err = NewReader(ReaderConfig{Brokers: []string{"localhost:9092"}})
	require.Equal(t, ErrNoTopic, err)

	_, err = NewWriter(WriterConfig{Topic: TopicConfig{Name: "results"}})
	require.Equal(t, ErrNoBrokers, err)

	_, err = NewWriter(WriterConfig{Addr: "localhost:9092"})
	require.Equal(t, ErrNoTopic, err)
}

func TestFactoriesWithoutTopicCreation(t *testing.T) {
	r, err := NewReader(ReaderConfig{
		Topic:   TopicConfig{Name: "requests"},
		Brokers: []string{"localhost:9092"},
		GroupID: "imgconv",
	})
	require.NoError(t, err)
	require.Equal(t, "requests", r.Config().Topic)
	require.NoError(t, r.Close())

	w, err := NewWriter(WriterConfig{
		Topic:    TopicConfig{Name: "results"},
		Addr:     "localhost:9092",
		Balancer: "hash",
	})
	require.NoError(t, err)
	require.Equal(t, "results", w.Topic)
	require.IsType(t, &kafka.Hash{}, w.Balancer)
}

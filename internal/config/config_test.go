package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"imgconv/internal/bench"
)

const document = `
log:
  level: debug
  format: json
convert:
  jpeg_quality: 90
  png_compression: best
bench:
  input: fixtures/large.png
  iterations: 10
server:
  addr: ":9000"
  cache_ttl: 30s
worker:
  pipelines: 4
  reader:
    brokers:
      - kafka-1:9092
      - kafka-2:9092
    topic:
      name: requests
  storage:
    endpoint: minio:9000
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "imgconv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("", nil, nil)
	require.NoError(t, err)
	require.Equal(t, Default(), c)

	require.Equal(t, "artifacter.png", c.Bench.Input)
	require.Equal(t, "test.jpeg", c.Bench.Output)
	require.Equal(t, "jpeg", c.Bench.Format)
	require.Equal(t, 100, c.Bench.Iterations)
}

func TestLoadFile(t *testing.T) {
	c, err := Load(writeConfig(t, document), nil, nil)
	require.NoError(t, err)

	require.Equal(t, "debug", c.Log.Level)
	require.Equal(t, "json", c.Log.Format)
	require.Equal(t, 90, c.Convert.JPEGQuality)
	require.Equal(t, "best", c.Convert.PNGCompression)
	require.Equal(t, "fixtures/large.png", c.Bench.Input)
	require.Equal(t, 10, c.Bench.Iterations)
	require.Equal(t, ":9000", c.Server.Addr)
	require.Equal(t, 30*time.Second, c.Server.CacheTTL)
	require.Equal(t, 4, c.Worker.Pipelines)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.Worker.Reader.Brokers)
	require.Equal(t, "requests", c.Worker.Reader.Topic.Name)
	require.Equal(t, "minio:9000", c.Worker.Storage.Endpoint)

	// untouched values keep their defaults
	require.Equal(t, "test.jpeg", c.Bench.Output)
	require.Equal(t, 256, c.Convert.GIFColors)
	require.Equal(t, "imgconv", c.Worker.Reader.GroupID)
	require.Equal(t, int64(64<<20), c.Worker.Storage.MaxObjectBytes)
}

func TestLoadFlags(t *testing.T) {
	flags := pflag.NewFlagSet("bench", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.Int("iterations", 100, "")
	flags.String("output", "test.jpeg", "")
	flags.String("unmapped", "", "")
	require.NoError(t, flags.Parse([]string{"--iterations=7", "--log-level=warn", "--unmapped=x"}))

	keys := map[string]string{
		"log-level":  "log.level",
		"iterations": "bench.iterations",
		"output":     "bench.output",
	}

	c, err := Load(writeConfig(t, document), flags, keys)
	require.NoError(t, err)

	require.Equal(t, "warn", c.Log.Level)
	require.Equal(t, 7, c.Bench.Iterations)

	// unchanged flags do not override the file or the defaults
	require.Equal(t, "fixtures/large.png", c.Bench.Input)
	require.Equal(t, "test.jpeg", c.Bench.Output)
}

func TestLoadFailures(t *testing.T) {
	for name, tc := range map[string]struct {
		content string
		target  error
	}{
		"zero iterations":     {"bench:\n  iterations: 0\n", bench.ErrInvalidConfig},
		"zero concurrency":    {"bench:\n  concurrency: 0\n", bench.ErrInvalidConfig},
		"unknown format":      {"bench:\n  format: webm\n", bench.ErrInvalidConfig},
		"jpeg quality":        {"convert:\n  jpeg_quality: 101\n", ErrInvalidConfig},
		"gif colors":          {"convert:\n  gif_colors: 0\n", ErrInvalidConfig},
		"png compression":     {"convert:\n  png_compression: maximal\n", ErrInvalidConfig},
		"pnm subtype":         {"convert:\n  pnm_subtype: pbm\n", ErrInvalidConfig},
		"no worker pipelines": {"worker:\n  pipelines: 0\n", ErrInvalidConfig},
		"negative object cap": {"worker:\n  storage:\n    max_object_bytes: -1\n", ErrInvalidConfig},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content), nil, nil)
			require.True(t, errors.Is(err, tc.target), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil, nil)
	require.Error(t, err)
}

func TestConvertOptions(t *testing.T) {
	opts, err := Default().Convert.Options()
	require.NoError(t, err)
	require.Len(t, opts, 5)
}

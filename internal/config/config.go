// Package config loads the imgconv configuration from defaults, an optional
// YAML file and command line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"imgconv"
	"imgconv/internal/bench"
	"imgconv/internal/logger"
	"imgconv/internal/metrics"
	"imgconv/internal/processor"
	"imgconv/internal/server"
	"imgconv/internal/storage"
	"imgconv/internal/stream"
	"imgconv/pnm"
)

const delim = "."

// ErrInvalidConfig happens when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete configuration of every imgconv command.
type Config struct {
	Log     logger.Config `koanf:"log"`
	Convert ConvertConfig `koanf:"convert"`
	Bench   bench.Config  `koanf:"bench"`
	Server  server.Config `koanf:"server"`
	Worker  WorkerConfig  `koanf:"worker"`
}

// ConvertConfig holds the encoder parameters shared by all commands.
type ConvertConfig struct {
	JPEGQuality     int    `koanf:"jpeg_quality"`
	PNGCompression  string `koanf:"png_compression"`
	GIFColors       int    `koanf:"gif_colors"`
	PNMSubtype      string `koanf:"pnm_subtype"`
	AutoOrientation bool   `koanf:"auto_orientation"`
}

// WorkerConfig configures the stream worker.
type WorkerConfig struct {
	Pipelines      int           `koanf:"pipelines"`
	BackoffInitial time.Duration `koanf:"backoff_initial"`
	BackoffMax     time.Duration `koanf:"backoff_max"`

	Reader    stream.ReaderConfig `koanf:"reader"`
	Writer    stream.WriterConfig `koanf:"writer"`
	Storage   storage.Config      `koanf:"storage"`
	Processor processor.Config    `koanf:"processor"`
	Metrics   metrics.Config      `koanf:"metrics"`
}

var pngCompressionLevels = map[string]png.CompressionLevel{
	"default": png.DefaultCompression,
	"none":    png.NoCompression,
	"fast":    png.BestSpeed,
	"best":    png.BestCompression,
}

// Default returns the configuration used when neither a file nor flags
// override a value.
func Default() Config {
	return Config{
		Log: logger.Config{
			Level:  "info",
			Format: "text",
			File: logger.FileConfig{
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
		Convert: ConvertConfig{
			JPEGQuality:    imgconv.DefaultJPEGQuality,
			PNGCompression: "default",
			GIFColors:      256,
			PNMSubtype:     pnm.PAM.String(),
		},
		Bench:  bench.DefaultConfig(),
		Server: server.DefaultConfig(),
		Worker: WorkerConfig{
			Pipelines:      1,
			BackoffInitial: 100 * time.Millisecond,
			BackoffMax:     10 * time.Second,
			Reader: stream.ReaderConfig{
				Topic:    stream.TopicConfig{Name: "imgconv.requests", NumPartitions: 1, ReplicationFactor: 1},
				Brokers:  []string{"localhost:9092"},
				GroupID:  "imgconv",
				MinBytes: 1,
				MaxBytes: 10 << 20,
				MaxWait:  time.Second,
			},
			Writer: stream.WriterConfig{
				Topic:    stream.TopicConfig{Name: "imgconv.results", NumPartitions: 1, ReplicationFactor: 1},
				Addr:     "localhost:9092",
				Balancer: "hash",
			},
			Storage: storage.Config{
				Endpoint:       "localhost:9000",
				Region:         "us-east-1",
				MaxObjectBytes: 64 << 20,
			},
			Processor: processor.Config{DestinationBucket: "converted"},
			Metrics:   metrics.Config{Addr: ":9090"},
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path
// when path is not empty, and the changed flags named in keys. keys maps a
// flag name to the dotted configuration key it overrides.
func Load(path string, flags *pflag.FlagSet, keys map[string]string) (Config, error) {
	k := koanf.New(delim)

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, delim, k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := keys[f.Name]
			if !ok {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var c Config
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	return c, c.Validate()
}

// Validate
func (c Config) Validate() error {
	if _, err := c.Convert.Options(); err != nil {
		return err
	}
	if err := c.Bench.Validate(); err != nil {
		return err
	}
	if c.Worker.Pipelines < 1 {
		return fmt.Errorf("%w: worker needs at least one pipeline, got %d", ErrInvalidConfig, c.Worker.Pipelines)
	}
	if c.Worker.Storage.MaxObjectBytes < 0 {
		return fmt.Errorf("%w: negative storage max object bytes %d", ErrInvalidConfig, c.Worker.Storage.MaxObjectBytes)
	}
	return nil
}

// Options translates the configuration into conversion options.
func (c ConvertConfig) Options() ([]imgconv.Option, error) {
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return nil, fmt.Errorf("%w: jpeg quality must be within 1 and 100, got %d", ErrInvalidConfig, c.JPEGQuality)
	}
	if c.GIFColors < 1 || c.GIFColors > 256 {
		return nil, fmt.Errorf("%w: gif colors must be within 1 and 256, got %d", ErrInvalidConfig, c.GIFColors)
	}

	level, ok := pngCompressionLevels[strings.ToLower(c.PNGCompression)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown png compression %q", ErrInvalidConfig, c.PNGCompression)
	}

	subtype, err := pnm.ParseSubtype(c.PNMSubtype)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return []imgconv.Option{
		imgconv.WithJPEGQuality(c.JPEGQuality),
		imgconv.WithPNGCompression(level),
		imgconv.WithGIFColors(c.GIFColors),
		imgconv.WithPNMSubtype(subtype),
		imgconv.WithAutoOrientation(c.AutoOrientation),
	}, nil
}

// Package logger is a thin structured logging layer over logrus.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// FieldPackage is the name of the package emitting the entry.
	FieldPackage = "package"

	// FieldFunction is the name of the function emitting the entry.
	FieldFunction = "function"
)

// Fields is a set of structured key/value pairs attached to an entry.
type Fields map[string]interface{}

// Log is a leveled logger carrying a set of fields.
type Log interface {
	WithField(key string, value interface{}) Log
	WithFields(fields Fields) Log

	Trace(msg string)
	Debug(msg string)
	Info(msg string)
	Infof(format string, args ...interface{})
	Warn(msg string)
	Error(err error, msg string)
	Errorf(err error, format string, args ...interface{})
}

// FileConfig enables rotating file output.
type FileConfig struct {
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// Config
type Config struct {
	Level  string     `koanf:"level"`
	Format string     `koanf:"format"`
	File   FileConfig `koanf:"file"`
}

type entry struct {
	e *logrus.Entry
}

// New creates a logger writing to stderr, and to a rotating file when one is configured.
func New(conf Config) (Log, error) {
	level, err := logrus.ParseLevel(conf.Level)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetLevel(level)

	switch strings.ToLower(conf.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", conf.Format)
	}

	var out io.Writer = os.Stderr
	if conf.File.Path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   conf.File.Path,
			MaxSize:    conf.File.MaxSizeMB,
			MaxBackups: conf.File.MaxBackups,
			MaxAge:     conf.File.MaxAgeDays,
			LocalTime:  true,
		})
	}
	l.SetOutput(out)

	return &entry{e: logrus.NewEntry(l)}, nil
}

// NewNullLogger returns a logger that discards its output and the hook
// recording every entry, for use in tests.
func NewNullLogger() (Log, *logtest.Hook) {
	l, hook := logtest.NewNullLogger()
	l.SetLevel(logrus.TraceLevel)
	return &entry{e: logrus.NewEntry(l)}, hook
}

func (l *entry) WithField(key string, value interface{}) Log {
	return &entry{e: l.e.WithField(key, value)}
}

func (l *entry) WithFields(fields Fields) Log {
	return &entry{e: l.e.WithFields(logrus.Fields(fields))}
}

func (l *entry) Trace(msg string) {
	l.e.Trace(msg)
}

func (l *entry) Debug(msg string) {
	l.e.Debug(msg)
}

func (l *entry) Info(msg string) {
	l.e.Info(msg)
}

func (l *entry) Infof(format string, args ...interface{}) {
	l.e.Infof(format, args...)
}

func (l *entry) Warn(msg string) {
	l.e.Warn(msg)
}

func (l *entry) Error(err error, msg string) {
	l.e.WithError(err).Error(msg)
}

func (l *entry) Errorf(err error, format string, args ...interface{}) {
	l.e.WithError(err).Errorf(format, args...)
}

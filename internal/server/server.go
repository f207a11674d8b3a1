// Package server exposes the conversion API over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"

	"imgconv/format"
	"imgconv/internal/logger"
)

var (
	// ErrNoConverterProvided happens when converter is not provided.
	ErrNoConverterProvided = errors.New("no converter provided")

	// ErrNoReporterProvided happens when reporter is not provided.
	ErrNoReporterProvided = errors.New("no reporter provided")
)

// Config
type Config struct {
	Addr            string        `koanf:"addr"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheCleanup    time.Duration `koanf:"cache_cleanup"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultConfig
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodyBytes:    32 << 20,
		CacheTTL:        5 * time.Minute,
		CacheCleanup:    10 * time.Minute,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Converter is the interface that wraps the conversion methods.
type Converter interface {
	Convert(ctx context.Context, buf []byte, to format.Format) ([]byte, error)
	ConvertFrom(ctx context.Context, buf []byte, from, to format.Format) ([]byte, error)
}

// Reporter records conversions and serves the collected metrics.
type Reporter interface {
	ConversionFinished(source, target string, elapsed time.Duration, in, out int, err error)
	Handler() http.Handler
}

// Server
type Server struct {
	conf Config

	converter Converter
	reporter  Reporter
	results   *cache.Cache

	router *mux.Router
	http   *http.Server

	log logger.Log
}

// New creates the HTTP server and registers its routes.
func New(conf Config, converter Converter, reporter Reporter, log logger.Log) (*Server, error) {
	if converter == nil {
		return nil, ErrNoConverterProvided
	}
	if reporter == nil {
		return nil, ErrNoReporterProvided
	}

	s := &Server{
		conf:      conf,
		converter: converter,
		reporter:  reporter,
		results:   cache.New(conf.CacheTTL, conf.CacheCleanup),
		router:    mux.NewRouter(),
		log:       log.WithField(logger.FieldPackage, "server"),
	}
	s.routes()

	s.http = &http.Server{
		Addr:         conf.Addr,
		Handler:      s.router,
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
	}
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/convert/{format}", s.handleConvert).Methods(http.MethodPost)
	s.router.HandleFunc("/guess", s.handleGuess).Methods(http.MethodPost)
	s.router.HandleFunc("/formats", s.handleFormats).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.reporter.Handler()).Methods(http.MethodGet)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on the configured address until Stop is called.
func (s *Server) Serve() error {
	s.log.WithFields(logger.Fields{
		logger.FieldFunction: "Server.Serve",
		"addr":               s.conf.Addr,
	}).Info("Serving the conversion API.")

	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.conf.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

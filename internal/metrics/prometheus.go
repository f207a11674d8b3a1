// Package metrics exposes conversion and pipeline metrics to prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	DirectionIn  = "in"
	DirectionOut = "out"
)

// Config
type Config struct {
	Addr string `koanf:"addr"`
}

// Reporter collects conversion and pipeline metrics into its own registry.
type Reporter struct {
	registry *prometheus.Registry

	conversionDuration *prometheus.HistogramVec
	conversionsTotal   *prometheus.CounterVec
	bytesTotal         *prometheus.CounterVec
	pipelineFailures   *prometheus.CounterVec
}

// NewReporter creates a reporter with a fresh registry holding the
// conversion metrics, the go runtime collector and build info.
func NewReporter() (*Reporter, error) {
	r := &Reporter{
		registry: prometheus.NewRegistry(),

		conversionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imgconv_conversion_duration_seconds",
				Help:    "Conversion duration distributions.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"source", "target"},
		),
		conversionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgconv_conversions_total",
				Help: "Number of conversions by outcome.",
			},
			[]string{"target", "result"},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgconv_bytes_total",
				Help: "Bytes read and written by conversions.",
			},
			[]string{"direction"},
		),
		pipelineFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgconv_pipeline_errors_total",
				Help: "Number of pipeline errors.",
			},
			[]string{"failure"},
		),
	}

	for _, c := range []prometheus.Collector{
		r.conversionDuration,
		r.conversionsTotal,
		r.bytesTotal,
		r.pipelineFailures,
		collectors.NewGoCollector(),
		collectors.NewBuildInfoCollector(),
	} {
		if err := r.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ConversionFinished records one conversion. Sizes are only counted for
// successful conversions.
func (r *Reporter) ConversionFinished(source, target string, elapsed time.Duration, in, out int, err error) {
	if err != nil {
		r.conversionsTotal.WithLabelValues(target, ResultFailure).Inc()
		return
	}
	r.conversionDuration.WithLabelValues(source, target).Observe(elapsed.Seconds())
	r.conversionsTotal.WithLabelValues(target, ResultSuccess).Inc()
	r.bytesTotal.WithLabelValues(DirectionIn).Add(float64(in))
	r.bytesTotal.WithLabelValues(DirectionOut).Add(float64(out))
}

// PipelineFailed
func (r *Reporter) PipelineFailed(failure string) {
	r.pipelineFailures.WithLabelValues(failure).Inc()
}

// Registry returns the registry backing the reporter.
func (r *Reporter) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the prometheus exposition format.
func (r *Reporter) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server is a standalone metrics endpoint for processes without their own HTTP server.
type Server struct {
	server *http.Server
}

// NewServer
func NewServer(conf Config, r *Reporter) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return &Server{
		server: &http.Server{
			Addr:              conf.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Serve blocks until the server is stopped.
func (s *Server) Serve() error {
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

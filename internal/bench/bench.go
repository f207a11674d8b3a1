// Package bench times repeated conversions of a single input file.
package bench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"imgconv/format"
	"imgconv/internal/logger"
)

var (
	// ErrNoConverterProvided happens when converter is not provided.
	ErrNoConverterProvided = errors.New("no converter provided")

	// ErrInvalidConfig happens when the benchmark configuration is out of range.
	ErrInvalidConfig = errors.New("invalid benchmark configuration")
)

// Config
type Config struct {
	Input       string `koanf:"input"`
	Output      string `koanf:"output"`
	Format      string `koanf:"format"`
	Iterations  int    `koanf:"iterations"`
	Concurrency int    `koanf:"concurrency"`
	Warmup      int    `koanf:"warmup"`
}

// DefaultConfig converts artifacter.png to test.jpeg a hundred times, one at a time.
func DefaultConfig() Config {
	return Config{
		Input:       "artifacter.png",
		Output:      "test.jpeg",
		Format:      "jpeg",
		Iterations:  100,
		Concurrency: 1,
	}
}

// Validate
func (c Config) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidConfig, c.Iterations)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("%w: warmup must not be negative, got %d", ErrInvalidConfig, c.Warmup)
	}
	if format.Parse(c.Format) == format.Unknown {
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, c.Format)
	}
	return nil
}

// Converter is the interface that wraps the basic Convert method.
type Converter interface {
	Convert(ctx context.Context, buf []byte, to format.Format) ([]byte, error)
}

// Reporter receives the outcome of every timed conversion.
type Reporter interface {
	ConversionFinished(source, target string, elapsed time.Duration, in, out int, err error)
}

// Result summarises a benchmark run.
type Result struct {
	Iterations int

	// Elapsed is the wall-clock time of the timed loop.
	Elapsed time.Duration
	Min     time.Duration
	Max     time.Duration
	Mean    time.Duration

	InputBytes  int
	OutputBytes int

	// Output holds the bytes produced by the last completed conversion.
	Output []byte
}

// Milliseconds returns the elapsed wall-clock time in whole milliseconds.
func (r *Result) Milliseconds() int64 {
	return r.Elapsed.Milliseconds()
}

// Runner
type Runner struct {
	conf   Config
	target format.Format

	converter Converter
	reporter  Reporter

	log logger.Log
}

// NewRunner binds the converter once for every run. The reporter may be nil.
func NewRunner(conf Config, converter Converter, reporter Reporter, log logger.Log) (*Runner, error) {
	if converter == nil {
		return nil, ErrNoConverterProvided
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return &Runner{
		conf:      conf,
		target:    format.Parse(conf.Format),
		converter: converter,
		reporter:  reporter,
		log:       log.WithField(logger.FieldPackage, "bench"),
	}, nil
}

// Run reads the input file, measures the conversions and writes the last
// output to the output file.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	log := r.log.WithFields(logger.Fields{
		logger.FieldFunction: "Runner.Run",
		"input":              r.conf.Input,
		"output":             r.conf.Output,
	})

	input, err := os.ReadFile(r.conf.Input)
	if err != nil {
		log.Error(err, "Failed to read the input file.")
		return nil, err
	}

	res, err := r.Measure(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(r.conf.Output, res.Output, 0o644); err != nil {
		log.Error(err, "Failed to write the output file.")
		return nil, err
	}

	log.WithFields(logger.Fields{
		"elapsed_ms": res.Milliseconds(),
		"bytes":      res.OutputBytes,
	}).Info("Benchmark finished.")
	return res, nil
}

// Measure runs the warmup and the timed iterations against input.
func (r *Runner) Measure(ctx context.Context, input []byte) (*Result, error) {
	log := r.log.WithFields(logger.Fields{
		logger.FieldFunction: "Runner.Measure",
		"format":             r.target.String(),
		"iterations":         r.conf.Iterations,
		"concurrency":        r.conf.Concurrency,
	})

	for i := 0; i < r.conf.Warmup; i++ {
		if _, err := r.converter.Convert(ctx, input, r.target); err != nil {
			log.Error(err, "Warmup conversion failed.")
			return nil, err
		}
	}

	log.Debug("Starting the timed loop.")
	t := newTally(r.conf.Iterations)
	start := time.Now()
	if r.conf.Concurrency == 1 {
		for i := 0; i < r.conf.Iterations; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := r.once(ctx, input, t); err != nil {
				log.Error(err, "Conversion failed.")
				return nil, err
			}
		}
	} else {
		if err := r.fanOut(ctx, input, t); err != nil {
			log.Error(err, "Conversion failed.")
			return nil, err
		}
	}
	elapsed := time.Since(start)

	return t.result(elapsed, len(input)), nil
}

func (r *Runner) fanOut(ctx context.Context, input []byte, t *tally) error {
	wp := workerpool.New(r.conf.Concurrency)

	var (
		mu       sync.Mutex
		firstErr error
	)
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for i := 0; i < r.conf.Iterations; i++ {
		wp.Submit(func() {
			if failed() {
				return
			}
			err := ctx.Err()
			if err == nil {
				err = r.once(ctx, input, t)
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}
	wp.StopWait()
	return firstErr
}

func (r *Runner) once(ctx context.Context, input []byte, t *tally) error {
	start := time.Now()
	out, err := r.converter.Convert(ctx, input, r.target)
	d := time.Since(start)

	if r.reporter != nil {
		r.reporter.ConversionFinished(format.Guess(input).String(), r.target.String(), d, len(input), len(out), err)
	}
	if err != nil {
		return err
	}
	t.add(d, out)
	return nil
}

// tally accumulates per-iteration timings. It is safe for concurrent use.
type tally struct {
	mu        sync.Mutex
	durations []time.Duration
	last      []byte
}

func newTally(n int) *tally {
	return &tally{durations: make([]time.Duration, 0, n)}
}

func (t *tally) add(d time.Duration, out []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.durations = append(t.durations, d)
	t.last = out
}

func (t *tally) result(elapsed time.Duration, inputBytes int) *Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := &Result{
		Iterations:  len(t.durations),
		Elapsed:     elapsed,
		InputBytes:  inputBytes,
		OutputBytes: len(t.last),
		Output:      t.last,
	}
	if len(t.durations) == 0 {
		return res
	}

	var total time.Duration
	res.Min = t.durations[0]
	for _, d := range t.durations {
		total += d
		if d < res.Min {
			res.Min = d
		}
		if d > res.Max {
			res.Max = d
		}
	}
	res.Mean = total / time.Duration(len(t.durations))
	return res
}

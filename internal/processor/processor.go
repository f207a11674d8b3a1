// Package processor converts stored images on behalf of the worker pipeline.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imgconv/format"
	"imgconv/internal/logger"
	"imgconv/internal/message"
)

var (
	// ErrNoConverterProvided happens when converter is not provided.
	ErrNoConverterProvided = errors.New("no converter provided")

	// ErrNoStorageProvided happens when storage is not provided.
	ErrNoStorageProvided = errors.New("no storage provided")

	// ErrNoReporterProvided happens when reporter is not provided.
	ErrNoReporterProvided = errors.New("no reporter provided")
)

// Config
type Config struct {
	DestinationBucket string `koanf:"destination_bucket"`
}

// Converter is the interface that wraps the basic ConvertFrom method.
//
// ConvertFrom decodes the image held in buf as the from format, sniffing it
// when from is Unknown, and encodes it as the target format.
// ConvertFrom must return a non-nil error if the conversion has failed.
type Converter interface {
	ConvertFrom(ctx context.Context, buf []byte, from, to format.Format) ([]byte, error)
}

// Storage keeps source and converted images.
type Storage interface {
	Store(ctx context.Context, loc message.Location, f format.Format, data []byte) error
	Retrieve(ctx context.Context, loc message.Location) ([]byte, format.Format, error)
}

// Reporter receives the outcome of every conversion.
type Reporter interface {
	ConversionFinished(source, target string, elapsed time.Duration, in, out int, err error)
}

// processor is a wrapper over the converter that interacts with the
// provided storage to retrieve source images and store the converted ones.
type processor struct {
	config Config

	converter Converter
	storage   Storage
	reporter  Reporter

	log logger.Log
}

// NewProcessor creates a new image processor.
// It returns an error if the creation failed.
func NewProcessor(
	config Config,
	converter Converter,
	storage Storage,
	reporter Reporter,
	log logger.Log,
) (*processor, error) {
	if converter == nil {
		return nil, ErrNoConverterProvided
	}

	if storage == nil {
		return nil, ErrNoStorageProvided
	}

	if reporter == nil {
		return nil, ErrNoReporterProvided
	}

	return &processor{
		config:    config,
		converter: converter,
		storage:   storage,
		reporter:  reporter,
		log:       log.WithField(logger.FieldPackage, "processor"),
	}, nil
}

// Process retrieves the source image from the storage, converts it and
// uploads the result to the destination bucket.
// Process returns an error in case if the conversion has failed.
func (p *processor) Process(ctx context.Context, req *message.Request) (*message.Result, error) {
	log := p.log.WithFields(logger.Fields{
		logger.FieldFunction: "processor.Process",
		"request":            req.ID,
		"format":             req.Format.String(),
	})
	log.Info("Processing a new conversion request.")

	source, from, err := p.storage.Retrieve(ctx, req.Source)
	if err != nil {
		log.Error(err, "Failed to retrieve the source image from the storage.")
		return nil, err
	}

	start := time.Now()
	converted, err := p.converter.ConvertFrom(ctx, source, from, req.Format)
	p.reporter.ConversionFinished(from.String(), req.Format.String(), time.Since(start), len(source), len(converted), err)
	if err != nil {
		log.Error(err, "Failed to convert the image.")
		return nil, err
	}

	dest := message.Location{
		Bucket: p.config.DestinationBucket,
		Object: convertedObjectName(req),
	}
	if err := p.storage.Store(ctx, dest, req.Format, converted); err != nil {
		log.Error(err, "Failed to store the converted image.")
		return nil, err
	}

	log.Info("Conversion request has been processed.")
	return &message.Result{
		ID:        req.ID,
		Source:    req.Source,
		Converted: &dest,
		Format:    req.Format,
	}, nil
}

func convertedObjectName(req *message.Request) string {
	return fmt.Sprintf("converted_%s%s", req.ID, req.Format.Extension())
}

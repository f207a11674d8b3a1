// Package pipeline consumes conversion requests from a stream and publishes
// their results.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"

	"imgconv/internal/logger"
	"imgconv/internal/message"
)

const (
	// retryFetchCount defines the number of retries
	// to fetch a message from the reader before giving up.
	retryFetchCount = 3

	// retryWriteCount defines the number of retries
	// to write a message to the writer before giving up.
	retryWriteCount = 3

	// retryCommitCount defines the number of retries
	// to commit a message to the reader before giving up.
	retryCommitCount = 3
)

// Failure labels passed to the reporter.
const (
	FailureFetch   = "fetch"
	FailureDecode  = "decode"
	FailureProcess = "process"
	FailureEncode  = "encode"
	FailureWrite   = "write"
	FailureCommit  = "commit"
)

var (
	// ErrNoReaderProvided happens when reader is not provided.
	ErrNoReaderProvided = errors.New("no reader provided")

	// ErrNoWriterProvided happens when writer is not provided.
	ErrNoWriterProvided = errors.New("no writer provided")

	// ErrNoSleeperProvided happens when sleeper is not provided.
	ErrNoSleeperProvided = errors.New("no sleeper provided")

	// ErrNoProcessorProvided happens when processor is not provided.
	ErrNoProcessorProvided = errors.New("no processor provided")

	// ErrNoReporterProvided happens when reporter is not provided.
	ErrNoReporterProvided = errors.New("no reporter provided")
)

// Reader is a transactional message reader.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Writer is an atomic message writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Processor converts the image a request points at.
type Processor interface {
	Process(ctx context.Context, req *message.Request) (*message.Result, error)
}

// Sleeper is a routine sleeper with some sleeping strategy
// and ability to reset the strategy state.
type Sleeper interface {
	Sleep()
	Reset()
}

// Reporter collects pipeline failures.
type Reporter interface {
	PipelineFailed(failure string)
}

// Pipeline is an image conversion pipeline.
type Pipeline struct {
	id string

	processor Processor
	reader    Reader
	writer    Writer

	sleeper  Sleeper
	reporter Reporter

	log logger.Log
}

// NewPipeline creates and initializes a new image conversion pipeline.
func NewPipeline(
	reader Reader,
	writer Writer,
	processor Processor,
	sleeper Sleeper,
	reporter Reporter,
	log logger.Log,
) (*Pipeline, error) {
	if reader == nil {
		return nil, ErrNoReaderProvided
	}

	if writer == nil {
		return nil, ErrNoWriterProvided
	}

	if processor == nil {
		return nil, ErrNoProcessorProvided
	}

	if sleeper == nil {
		return nil, ErrNoSleeperProvided
	}

	if reporter == nil {
		return nil, ErrNoReporterProvided
	}

	id := uuid.NewString()
	return &Pipeline{
		id:        id,
		processor: processor,
		reader:    reader,
		writer:    writer,
		sleeper:   sleeper,
		reporter:  reporter,
		log: log.WithFields(logger.Fields{
			logger.FieldPackage: "pipeline",
			"pipeline_id":       id,
		}),
	}, nil
}

// ID returns the unique id of the pipeline.
func (p *Pipeline) ID() string {
	return p.id
}

// Run starts the conversion pipeline, that ensures that each request is
// handled at least once.
//
// The request is read from the kafka stream and sent to the processor, that
// retrieves the source image from the storage, converts it and stores the
// result. The outcome, including failed conversions, is written to the
// result stream before the request is committed. Malformed requests carry
// no id to answer to and are committed without a result.
func (p *Pipeline) Run(ctx context.Context) error {
	log := p.log.WithField(logger.FieldFunction, "Pipeline.Run")
	log.Info("Starting the pipeline.")

	failedFetches := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("Pipeline has been stopped.")
			return nil
		default:
			// Nop
		}

		log.Debug("Fetching the next message from the reader.")
		m, err := p.reader.FetchMessage(ctx)
		if err != nil {
			log.Error(err, "Failed to fetch a message from the kafka reader")
			if ctx.Err() != nil {
				continue
			}
			p.reporter.PipelineFailed(FailureFetch)

			failedFetches += 1
			if failedFetches >= retryFetchCount {
				log.Errorf(err,
					"Giving up fetching the message. Stopping pipeline because of %d consecutive failed fetches",
					retryFetchCount)
				return err
			}
			p.sleeper.Sleep()
			continue
		}
		failedFetches = 0
		log.Debug("Fetched a new message")

		if result := p.handle(ctx, m); result != nil {
			if err := p.write(ctx, *result); err != nil {
				return err
			}
		}

		if err := p.commit(ctx, m); err != nil {
			return err
		}

		p.sleeper.Reset()
	}
}

// handle turns a request message into the result message to publish, or nil
// when the request cannot be answered.
func (p *Pipeline) handle(ctx context.Context, m kafka.Message) *kafka.Message {
	log := p.log.WithFields(logger.Fields{
		logger.FieldFunction: "Pipeline.handle",
		"offset":             m.Offset,
		"partition":          m.Partition,
	})

	req, err := message.DecodeRequest(m.Value)
	if err != nil {
		log.Error(err, "Dropping a malformed request.")
		p.reporter.PipelineFailed(FailureDecode)
		return nil
	}

	result, err := p.processor.Process(ctx, req)
	if err != nil {
		log.WithField("request", req.ID).Error(err, "Failed to process the request.")
		p.reporter.PipelineFailed(FailureProcess)
		result = message.Failed(req, err)
	}

	value, err := result.Encode()
	if err != nil {
		log.WithField("request", req.ID).Error(err, "Failed to encode the result.")
		p.reporter.PipelineFailed(FailureEncode)
		return nil
	}

	return &kafka.Message{
		Key:   []byte(result.ID),
		Value: value,
	}
}

func (p *Pipeline) write(ctx context.Context, msg kafka.Message) error {
	log := p.log.WithField(logger.FieldFunction, "Pipeline.write")

	for attempt := 1; ; attempt++ {
		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		log.Error(err, "Failed to write the message to the kafka writer")
		p.reporter.PipelineFailed(FailureWrite)

		if attempt >= retryWriteCount {
			log.Errorf(err,
				"Giving up writing the message. Stopping pipeline because of %d consecutive failed writes",
				retryWriteCount)
			return err
		}
		p.sleeper.Sleep()
	}
}

func (p *Pipeline) commit(ctx context.Context, m kafka.Message) error {
	log := p.log.WithField(logger.FieldFunction, "Pipeline.commit")

	for attempt := 1; ; attempt++ {
		err := p.reader.CommitMessages(ctx, m)
		if err == nil {
			return nil
		}
		log.Error(err, "Failed to commit read message to the kafka reader")
		p.reporter.PipelineFailed(FailureCommit)

		if attempt >= retryCommitCount {
			log.Errorf(err,
				"Giving up committing the message. Stopping pipeline because of %d consecutive failed commits",
				retryCommitCount)
			return err
		}
		p.sleeper.Sleep()
	}
}

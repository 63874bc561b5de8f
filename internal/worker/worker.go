package worker

import (
	"context"
	"errors"
	"io"
	"time"

	"strapisync/internal/config"
	"strapisync/internal/logger"
	"strapisync/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the worker uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Worker struct {
	config    *config.Config
	logger    *logger.Logger
	reader    MessageReader
	processor *processors.EventProcessor
	retryWait time.Duration
}

func New(cfg *config.Config, logger *logger.Logger, engine processors.Engine) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.BrokerList(),
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaTopic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return NewWithReader(cfg, logger, reader, processors.NewEventProcessor(engine, logger.Named("processor")))
}

// NewWithReader builds a worker around an already configured reader.
func NewWithReader(cfg *config.Config, logger *logger.Logger, reader MessageReader, processor *processors.EventProcessor) *Worker {
	return &Worker{
		config:    cfg,
		logger:    logger,
		reader:    reader,
		processor: processor,
		retryWait: time.Second,
	}
}

// Start consumes events until ctx is cancelled or the reader is closed.
// Every fetched message is committed once handled, whether or not it could
// be applied, so a poison message never blocks the partition.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started, listening for events on %s...", w.config.KafkaTopic)

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			w.logger.Error("Failed to read message: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.retryWait):
			}
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))
		w.handle(ctx, message)

		if err := w.reader.CommitMessages(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("Failed to commit offset %d: %v", message.Offset, err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, message kafka.Message) {
	event, err := processors.Decode(message.Value)
	if err != nil {
		w.logger.Error("Failed to parse event: %v", err)
		return
	}

	timeout := w.config.EventTimeout
	if event.Type == processors.TypeSyncRequested || event.Type == processors.TypeBootstrapRequested {
		timeout = w.config.BulkSyncTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := w.processor.Process(ctx, event); err != nil {
		w.logger.Error("Failed to process event %s %s: %v", event.Type, event.ID, err)
		return
	}

	w.logger.Debug("Event %s %s processed", event.Type, event.ID)
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if err := w.reader.Close(); err != nil {
		w.logger.Error("Failed to close reader: %v", err)
	}
}

package worker

import (
	"context"
	"fmt"
	"time"

	"strapisync/internal/config"
	"strapisync/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher queues events on the topic the worker consumes.
type Publisher struct {
	writer MessageWriter
}

func NewPublisher(cfg *config.Config) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.BrokerList()...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	})
}

func NewPublisherWithWriter(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// Publish writes the event keyed by entity id so changes to one entity stay
// on one partition and keep their order.
func (p *Publisher) Publish(ctx context.Context, event processors.Event) error {
	value, err := processors.Encode(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	key := event.ID
	if key == "" {
		key = event.Type
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

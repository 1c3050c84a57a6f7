// Package broker carries conversion requests over Kafka so the HTTP server
// and the converter can run as separate processes.
package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"filealchemist/internal/queue"
)

// Producer publishes job ids. It implements queue.Dispatcher.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(broker, topic string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(broker),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		// All requests share one key and therefore one partition, which
		// keeps conversions in dispatch order.
		AllowAutoTopicCreation: true,
	}}
}

func (p *Producer) Dispatch(ctx context.Context, id uuid.UUID) error {
	const op = "broker.Producer.Dispatch"
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte("jobs"),
		Value: []byte(id.String()),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads job ids and processes them one at a time.
type Consumer struct {
	reader *kafka.Reader
	proc   queue.Processor
}

func NewConsumer(broker, topic, group string, proc queue.Processor) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{broker},
			Topic:   topic,
			GroupID: group,
		}),
		proc: proc,
	}
}

// Run blocks until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("error reading message")
			continue
		}

		id, err := ParseMessage(msg)
		if err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed message")
			continue
		}
		if err := c.proc.Process(ctx, id); err != nil {
			queue.ReportError(err, id)
		}
	}
}

func ParseMessage(msg kafka.Message) (uuid.UUID, error) {
	id, err := uuid.ParseBytes(msg.Value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("broker.ParseMessage: %w", err)
	}
	return id, nil
}

// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Resolution events travel as JSON with their type in a
// header; the consumer hands each message to a MessageHandler and commits it
// once handled.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/config"
)

const fetchBackoff = time.Second

// Message is what a MessageHandler receives. Type is empty when the
// producer set no type header.
type Message struct {
	Key   []byte
	Type  string
	Value []byte
	Time  time.Time
}

// MessageHandler processes one message. Returned errors are logged; the
// message is committed regardless.
type MessageHandler func(ctx context.Context, msg Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic as part of a consumer group.
type Consumer struct {
	reader  messageReader
	logger  *slog.Logger
	handler MessageHandler
	backoff time.Duration
}

// NewConsumer creates a group Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
		backoff: fetchBackoff,
	}
}

// Start consumes until ctx is cancelled and then closes the reader. A
// message whose handler fails is still committed so that one poison
// message cannot stall the group.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		raw, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		msg := Message{Key: raw.Key, Value: raw.Value, Time: raw.Time}
		for _, h := range raw.Headers {
			if h.Key == TypeHeader {
				msg.Type = string(h.Value)
			}
		}
		log := c.logger.With("partition", raw.Partition, "offset", raw.Offset)
		log.Debug("message received", "type", msg.Type, "value_size", len(raw.Value))
		if err := c.handler(ctx, msg); err != nil {
			log.Error("failed to process message", "error", err)
		}
		if err := c.reader.CommitMessages(ctx, raw); err != nil && ctx.Err() == nil {
			log.Error("failed to commit message", "error", err)
		}
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

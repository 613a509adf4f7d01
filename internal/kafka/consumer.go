package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-community/internal/logger"
)

type Consumer struct {
	reader *kafka.Reader
	source string
	logger *logger.Logger
}

// NewConsumer reads topic as part of groupID. Envelopes published by source are
// skipped, since that instance already handled them locally.
func NewConsumer(brokers []string, topic, groupID, source string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, source: source, logger: log}
}

// Start blocks, handing each foreign envelope to handler until ctx ends.
func (c *Consumer) Start(ctx context.Context, handler func(ctx context.Context, env Envelope) error) {
	c.logger.LogKafka("CONSUME", c.reader.Config().Topic, "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				c.logger.LogKafka("CONSUME", c.reader.Config().Topic, "consumer stopped")
				return
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		env, err := DecodeEnvelope(msg.Value)
		if err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", msg.Offset, err))
			continue
		}
		if env.Source == c.source {
			continue
		}

		if err := handler(ctx, env); err != nil {
			c.logger.Error("KAFKA", fmt.Sprintf("handler failed for %s %s: %v", env.Topic, env.ID, err))
		}
	}
}

func DecodeEnvelope(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

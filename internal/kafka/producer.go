package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"ms-community/internal/logger"
)

// Publisher sends domain events. Services depend on this rather than on the
// Kafka writer so they run unchanged when Kafka is disabled.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

// Envelope wraps every published payload.
type Envelope struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Source     string          `json:"source"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type Producer struct {
	Writer *kafka.Writer
	Source string
	Logger *logger.Logger
}

// NewProducer writes to any topic on brokers. source tags the envelopes so a
// consumer can recognise messages from its own instance.
func NewProducer(brokers []string, source string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{Writer: writer, Source: source, Logger: log}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	msg, err := NewMessage(topic, key, p.Source, payload)
	if err != nil {
		return err
	}

	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s", key))
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NewMessage builds the Kafka message for payload, enveloped.
func NewMessage(topic, key, source string, payload interface{}) (kafka.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	env := Envelope{
		ID:         uuid.New().String(),
		Topic:      topic,
		Source:     source,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Topic: topic, Key: []byte(key), Value: value}, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

// MemoryPublisher keeps published messages in memory.
type MemoryPublisher struct {
	mu       sync.Mutex
	Messages []kafka.Message
	Err      error
}

func (m *MemoryPublisher) Publish(_ context.Context, topic, key string, payload interface{}) error {
	if m.Err != nil {
		return m.Err
	}
	msg, err := NewMessage(topic, key, "memory", payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.Messages = append(m.Messages, msg)
	m.mu.Unlock()
	return nil
}

// Topics returns the topic of every message in publish order.
func (m *MemoryPublisher) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Messages))
	for _, msg := range m.Messages {
		out = append(out, msg.Topic)
	}
	return out
}

package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-community/internal/logger"
)

const (
	TopicEventCreated        = "community.events.created"
	TopicEventUpdated        = "community.events.updated"
	TopicEventDeleted        = "community.events.deleted"
	TopicSignupCreated       = "community.signups.created"
	TopicRegistrationCreated = "community.registrations.created"
	TopicRecurrenceCompleted = "community.recurrence.completed"
)

// AllTopics is bootstrapped at startup.
var AllTopics = []string{
	TopicEventCreated,
	TopicEventUpdated,
	TopicEventDeleted,
	TopicSignupCreated,
	TopicRegistrationCreated,
	TopicRecurrenceCompleted,
}

// EnsureTopicsExist creates Kafka topics if they don't already exist
func EnsureTopicsExist(ctx context.Context, brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("TOPIC", topic, "created")
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.LogKafka("TOPIC", topic, "already exists")
		default:
			// Keep going; a missing topic only costs us that event stream.
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
		}
	}
	return nil
}

// ListTopics returns a list of all existing topics
func ListTopics(ctx context.Context, brokers []string) ([]string, error) {
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, err
	}

	topicMap := make(map[string]bool)
	var topics []string
	for _, p := range partitions {
		if !topicMap[p.Topic] {
			topicMap[p.Topic] = true
			topics = append(topics, p.Topic)
		}
	}
	return topics, nil
}

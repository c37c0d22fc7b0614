// Package events publishes domain events to the event bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// TopicRiskComputed is the default topic of RiskComputed events.
const TopicRiskComputed = "risk.computed"

// RiskComputed is emitted after an analysis is persisted.
type RiskComputed struct {
	RecordID uuid.UUID `json:"record_id"`
	StudyID  uuid.UUID `json:"study_id"`
	Score    float64   `json:"score"`
	Category string    `json:"category"`
}

// Publisher delivers events. Delivery is best-effort; callers decide what a
// failure means.
type Publisher interface {
	Publish(ctx context.Context, event RiskComputed) error
	Close() error
}

// messageWriter is the part of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events to one Kafka topic, keyed by study id so that
// events of the same study stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafkago.RequireAll,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event RiskComputed) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", p.topic, err)
	}
	msg := kafkago.Message{
		Key:   []byte(event.StudyID.String()),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(TopicRiskComputed)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, RiskComputed) error { return nil }
func (NoopPublisher) Close() error                                { return nil }

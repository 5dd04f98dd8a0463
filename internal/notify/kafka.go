package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"wisefido-risk/owl-common/config"

	"github.com/segmentio/kafka-go"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by subject so one subject's alerts stay
// ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaWriter builds the synchronous writer used by KafkaPublisher.
func NewKafkaWriter(cfg *config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.SubjectID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "alert_type", Value: []byte(event.AlertType)},
			{Key: "severity", Value: []byte(event.Severity)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write alert event to kafka: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

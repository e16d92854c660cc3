package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/scrapyard-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// ChangeEventProducer publishes tenant-scoped store change notifications.
// Messages are keyed by tenant id so one tenant's events stay ordered on a
// single partition.
type ChangeEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewChangeEventProducer creates the producer and ensures the topic exists
func NewChangeEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ChangeEventProducer, error) {
	if cfg.ChangeEventTopic == "" {
		return nil, fmt.Errorf("kafka change event topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for change event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.ChangeEventTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure change event topic %s exists: %w", cfg.ChangeEventTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.ChangeEventTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Notifications tolerate async delivery
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.ChangeEventTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.ChangeEventTopic, "count", len(messages))
			}
		},
	}

	return &ChangeEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.ChangeEventTopic,
	}, nil
}

func (p *ChangeEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal change event value: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish change event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish change event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Change event published",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *ChangeEventProducer) Close() error {
	p.logger.Info("Closing change event Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close change event kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}

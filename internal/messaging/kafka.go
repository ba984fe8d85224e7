package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/config"
	"github.com/temcen/cellar/pkg/models"
)

// KafkaMessage wraps a catalog batch with delivery bookkeeping.
type KafkaMessage struct {
	models.CatalogImportMessage
	RetryCount int `json:"retry_count"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Stats() kafka.ReaderStats
	Close() error
}

// MessageBus publishes catalog import batches and feeds them to a handler,
// retrying with exponential backoff and parking failures on a dead letter
// topic.
type MessageBus struct {
	writer     messageWriter
	reader     messageReader
	dlqWriter  messageWriter
	topic      string
	dlqTopic   string
	brokers    []string
	maxRetries int
	baseDelay  time.Duration
	logger     *logrus.Logger
}

func NewMessageBus(cfg *config.Config, logger *logrus.Logger) (*MessageBus, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}
	topic := cfg.Kafka.Topics.CatalogImport
	dlqTopic := cfg.Kafka.Topics.DeadLetter

	writer := newProducer(cfg)

	// Create consumer
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	// Create DLQ writer
	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        dlqTopic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	mb := newMessageBus(writer, reader, dlqWriter, topic, dlqTopic, cfg.Kafka.MaxRetries, time.Second, logger)
	mb.brokers = cfg.Kafka.Brokers
	return mb, nil
}

// NewPublisher returns a bus that can only publish. It does not join the
// consumer group.
func NewPublisher(cfg *config.Config, logger *logrus.Logger) (*MessageBus, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}
	mb := newMessageBus(newProducer(cfg), nil, nil, cfg.Kafka.Topics.CatalogImport, cfg.Kafka.Topics.DeadLetter, cfg.Kafka.MaxRetries, time.Second, logger)
	mb.brokers = cfg.Kafka.Brokers
	return mb, nil
}

func newProducer(cfg *config.Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topics.CatalogImport,
		Balancer:     &kafka.Hash{}, // Key by job so a job's batches stay ordered
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
}

func newMessageBus(writer messageWriter, reader messageReader, dlqWriter messageWriter, topic, dlqTopic string, maxRetries int, baseDelay time.Duration, logger *logrus.Logger) *MessageBus {
	return &MessageBus{
		writer:     writer,
		reader:     reader,
		dlqWriter:  dlqWriter,
		topic:      topic,
		dlqTopic:   dlqTopic,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// PublishCatalogBatch writes one batch to the import topic.
func (mb *MessageBus) PublishCatalogBatch(ctx context.Context, batch models.CatalogImportMessage) error {
	if batch.Timestamp.IsZero() {
		batch.Timestamp = time.Now()
	}

	messageBytes, err := json.Marshal(KafkaMessage{CatalogImportMessage: batch})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(batch.JobID.String()),
		Value: messageBytes,
		Headers: []kafka.Header{
			{Key: "job_id", Value: []byte(batch.JobID.String())},
			{Key: "sequence", Value: []byte(fmt.Sprintf("%d", batch.Sequence))},
			{Key: "timestamp", Value: []byte(batch.Timestamp.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mb.writer.WriteMessages(ctx, kafkaMessage); err != nil {
		mb.logger.WithError(err).WithField("job_id", batch.JobID).Error("Failed to publish message to Kafka")
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"job_id":   batch.JobID,
		"sequence": batch.Sequence,
		"records":  len(batch.Records),
		"topic":    mb.topic,
	}).Info("Message published to Kafka")

	return nil
}

// DeadLetterFunc is told about a batch that exhausted its retries and was
// parked on the DLQ.
type DeadLetterFunc func(ctx context.Context, batch models.CatalogImportMessage, cause error)

// ConsumeCatalogBatches blocks, handing every batch to handler until ctx is
// cancelled or the reader is closed. onDeadLetter may be nil.
func (mb *MessageBus) ConsumeCatalogBatches(ctx context.Context, handler func(context.Context, models.CatalogImportMessage) error, onDeadLetter DeadLetterFunc) error {
	if mb.reader == nil {
		return fmt.Errorf("message bus is publish-only")
	}
	for {
		message, err := mb.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			mb.logger.WithError(err).Error("Failed to read message from Kafka")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(mb.baseDelay):
			}
			continue
		}

		var kafkaMessage KafkaMessage
		if err := json.Unmarshal(message.Value, &kafkaMessage); err != nil {
			mb.logger.WithError(err).Error("Failed to unmarshal Kafka message")
			if dlqErr := mb.sendToDLQ(ctx, message.Key, message.Value, err); dlqErr != nil {
				mb.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
			continue
		}

		// Process message with retry logic
		if err := mb.processWithRetry(ctx, &kafkaMessage, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			mb.logger.WithError(err).WithField("job_id", kafkaMessage.JobID).Error("Failed to process message after retries")

			if dlqErr := mb.sendToDLQ(ctx, message.Key, kafkaMessage, err); dlqErr != nil {
				mb.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
			if onDeadLetter != nil {
				onDeadLetter(ctx, kafkaMessage.CatalogImportMessage, err)
			}
		}
	}
}

func (mb *MessageBus) processWithRetry(ctx context.Context, message *KafkaMessage, handler func(context.Context, models.CatalogImportMessage) error) error {
	for attempt := 0; attempt <= mb.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			delay := mb.baseDelay * time.Duration(1<<uint(attempt-1))
			mb.logger.WithFields(logrus.Fields{
				"job_id":  message.JobID,
				"attempt": attempt,
				"delay":   delay,
			}).Info("Retrying message processing")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		message.RetryCount = attempt
		if err := handler(ctx, message.CatalogImportMessage); err != nil {
			mb.logger.WithError(err).WithFields(logrus.Fields{
				"job_id":  message.JobID,
				"attempt": attempt,
			}).Warn("Message processing failed")

			if attempt == mb.maxRetries {
				return fmt.Errorf("max retries exceeded: %w", err)
			}
			continue
		}

		// Success
		mb.logger.WithFields(logrus.Fields{
			"job_id":   message.JobID,
			"sequence": message.Sequence,
			"attempt":  attempt,
		}).Info("Message processed successfully")
		return nil
	}

	return fmt.Errorf("unexpected retry loop exit")
}

func (mb *MessageBus) sendToDLQ(ctx context.Context, key []byte, original interface{}, originalError error) error {
	dlqMessage := map[string]interface{}{
		"original_message": original,
		"error":            originalError.Error(),
		"dlq_timestamp":    time.Now(),
	}

	dlqBytes, err := json.Marshal(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   key,
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "job_id", Value: key},
			{Key: "original_topic", Value: []byte(mb.topic)},
			{Key: "error", Value: []byte(originalError.Error())},
		},
	}

	if err := mb.dlqWriter.WriteMessages(ctx, kafkaMessage); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"job_id": string(key),
		"topic":  mb.dlqTopic,
		"error":  originalError.Error(),
	}).Warn("Message sent to DLQ")

	return nil
}

// Ping dials the first reachable broker.
func (mb *MessageBus) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range mb.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no Kafka brokers configured")
	}
	return lastErr
}

func (mb *MessageBus) Close() error {
	var errors []error

	if err := mb.writer.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close producer: %w", err))
	}

	if mb.reader != nil {
		if err := mb.reader.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close consumer: %w", err))
		}
	}

	if mb.dlqWriter != nil {
		if err := mb.dlqWriter.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close DLQ writer: %w", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("errors closing message bus: %v", errors)
	}

	return nil
}

// GetMetrics returns the consumer's reader statistics. A publish-only bus
// has none.
func (mb *MessageBus) GetMetrics() map[string]float64 {
	if mb.reader == nil {
		return map[string]float64{}
	}
	stats := mb.reader.Stats()
	return map[string]float64{
		"consumer_lag":    float64(stats.Lag),
		"consumer_offset": float64(stats.Offset),
		"messages_read":   float64(stats.Messages),
		"bytes_read":      float64(stats.Bytes),
		"rebalances":      float64(stats.Rebalances),
		"timeouts":        float64(stats.Timeouts),
		"errors":          float64(stats.Errors),
	}
}

package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"injectionfilter/internal/config"
	"injectionfilter/internal/constants"
	"injectionfilter/internal/logger"
	"injectionfilter/pkg/metrics"
	"injectionfilter/pkg/models"
	"injectionfilter/pkg/tracing"
)

const (
	headerEventType   = "event_type"
	headerContentType = "content-type"
)

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes change envelopes as JSON, one synchronous write
// per event.
type KafkaProducer struct {
	writer messageWriter
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           constants.KafkaBatchTimeout,
			WriteTimeout:           constants.KafkaWriteTimeout,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		logger: log.With("component", "kafka_producer"),
	}
}

// Publish writes msg keyed by the filter key, so every change to one
// filter lands on the same partition in order.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	km, err := toKafkaMessage(ctx, topic, msg)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, km)
	metrics.ObserveChangeEvent(err)
	if err != nil {
		return fmt.Errorf("failed to write change event %s to %s: %w", msg.ID, topic, err)
	}

	p.logger.DebugwCtx(ctx, "Published change event",
		"topic", topic,
		"message_id", msg.ID,
		"key", string(km.Key),
	)
	return nil
}

func toKafkaMessage(ctx context.Context, topic string, msg models.MessageEnvelope) (kafka.Message, error) {
	if err := models.ValidateMessageEnvelope(&msg); err != nil {
		return kafka.Message{}, fmt.Errorf("refusing to publish invalid envelope: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode change event: %w", err)
	}

	headers := tracing.InjectTraceContext(ctx, []kafka.Header{
		{Key: headerContentType, Value: []byte("application/json")},
		{Key: headerEventType, Value: []byte(msg.Metadata.EventType)},
	})

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.FilterKey()),
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	}, nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

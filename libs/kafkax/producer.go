package kafkax

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes one event per topic, where the topic equals the event type.
// With no brokers configured it only logs what it would have sent.
type Producer struct {
	writer MessageWriter
	logger *slog.Logger
}

func NewProducer(brokers string, logger *slog.Logger) *Producer {
	list := SplitBrokers(brokers)
	if len(list) == 0 {
		logger.Warn("kafka producer disabled (no kafka brokers configured)")
		return &Producer{logger: logger}
	}
	return NewProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(list...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, logger)
}

func NewProducerWithWriter(w MessageWriter, logger *slog.Logger) *Producer {
	return &Producer{writer: w, logger: logger}
}

// Publish writes payload to the eventType topic keyed by key and returns the generated event id.
func (p *Producer) Publish(ctx context.Context, eventType, key string, payload []byte) (string, error) {
	eventID := uuid.NewString()
	return eventID, p.PublishEvent(ctx, eventID, eventType, key, payload)
}

// PublishEvent is Publish with a caller supplied event id, as relayed from an outbox row.
// Trace headers are taken from ctx.
func (p *Producer) PublishEvent(ctx context.Context, eventID, eventType, key string, payload []byte) error {
	if p.writer == nil {
		p.logger.Debug("event dropped (producer disabled)", "event_type", eventType, "event_id", eventID)
		return nil
	}
	msg := kafka.Message{
		Topic: eventType,
		Key:   []byte(key),
		Value: payload,
		Headers: EventMeta{EventID: eventID, EventType: eventType}.Headers(),
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
	return p.writer.WriteMessages(ctx, msg)
}

// Enabled is false when no brokers were configured.
func (p *Producer) Enabled() bool {
	return p.writer != nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

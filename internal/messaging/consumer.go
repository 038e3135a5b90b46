package messaging

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// Handler processes one message payload. Returning an error stops
// consumption without committing the message.
type Handler func(ctx context.Context, payload []byte) error

type Consumer struct {
	reader     *kafka.Reader
	topic      string
	groupID    string
	eventTypes map[string]bool
}

type consumerConfig struct {
	reader     kafka.ReaderConfig
	eventTypes map[string]bool
}

type ConsumerOption func(*consumerConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.reader.StartOffset = offset
	}
}

// WithEventTypes restricts the handler to messages whose event-type header
// is one of types. Other messages are committed without being handled.
func WithEventTypes(types ...string) ConsumerOption {
	return func(cfg *consumerConfig) {
		if cfg.eventTypes == nil {
			cfg.eventTypes = make(map[string]bool, len(types))
		}
		for _, t := range types {
			cfg.eventTypes[t] = true
		}
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := consumerConfig{
		reader: kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer{
		reader:     kafka.NewReader(cfg.reader),
		topic:      topic,
		groupID:    groupID,
		eventTypes: cfg.eventTypes,
	}
}

// accepts reports whether a message with the given event-type header should
// reach the handler. Without a filter every message does.
func (c *Consumer) accepts(eventType string) bool {
	return len(c.eventTypes) == 0 || c.eventTypes[eventType]
}

// Consume fetches, handles and commits messages until ctx is done or the
// handler fails.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.processMessage(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler Handler) error {
	carrier := NewMessageCarrier(&msg)
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, carrier)

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	eventType := carrier.EventType()
	if eventType != "" {
		span.SetAttributes(attribute.String("messaging.event_type", eventType))
	}

	if !c.accepts(eventType) {
		span.AddEvent("skipped")
		return nil
	}

	if err := handler(spanCtx, msg.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

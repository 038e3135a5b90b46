package messaging

import (
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

const (
	HeaderContentType = "content-type"
	HeaderEventType   = "event-type"

	contentTypeJSON = "application/json"
)

// Typed events carry their type in a message header so consumers can route
// without decoding the payload.
type Typed interface {
	EventType() string
}

var _ propagation.TextMapCarrier = (*MessageCarrier)(nil)

// MessageCarrier reads and writes the headers of one Kafka message: the trace
// context for OpenTelemetry propagators and the event metadata the shop puts
// on every order event. Keys match case-insensitively and Set never leaves a
// duplicate behind.
type MessageCarrier struct {
	msg *kafka.Message
}

func NewMessageCarrier(msg *kafka.Message) *MessageCarrier {
	return &MessageCarrier{msg: msg}
}

func (c *MessageCarrier) index(key string) int {
	for i, h := range c.msg.Headers {
		if strings.EqualFold(h.Key, key) {
			return i
		}
	}
	return -1
}

func (c *MessageCarrier) Get(key string) string {
	if i := c.index(key); i >= 0 {
		return string(c.msg.Headers[i].Value)
	}
	return ""
}

func (c *MessageCarrier) Set(key, value string) {
	if i := c.index(key); i >= 0 {
		c.msg.Headers[i] = kafka.Header{Key: key, Value: []byte(value)}
		return
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *MessageCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// Describe marks the message as a JSON payload of event's type.
func (c *MessageCarrier) Describe(event any) {
	c.Set(HeaderContentType, contentTypeJSON)
	if t, ok := event.(Typed); ok {
		c.Set(HeaderEventType, t.EventType())
	}
}

// EventType is the event-type header, or "" for messages from producers that
// do not set one.
func (c *MessageCarrier) EventType() string {
	return c.Get(HeaderEventType)
}

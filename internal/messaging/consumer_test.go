package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestConsumerEventTypeFilter(t *testing.T) {
	cfg := consumerConfig{}
	WithEventTypes("order.confirmed", "order.cancelled")(&cfg)
	c := &Consumer{topic: "order.events", groupID: "g", eventTypes: cfg.eventTypes}

	tests := []struct {
		name      string
		eventType string
		handled   bool
	}{
		{name: "accepted type", eventType: "order.confirmed", handled: true},
		{name: "other type", eventType: "order.shipped", handled: false},
		{name: "missing header", eventType: "", handled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := kafka.Message{Value: []byte(`{}`)}
			if tt.eventType != "" {
				msg.Headers = []kafka.Header{{Key: HeaderEventType, Value: []byte(tt.eventType)}}
			}

			called := false
			err := c.processMessage(context.Background(), msg, func(ctx context.Context, payload []byte) error {
				called = true
				return nil
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if called != tt.handled {
				t.Errorf("expected handled=%v, got %v", tt.handled, called)
			}
		})
	}
}

func TestConsumerWithoutFilterHandlesEverything(t *testing.T) {
	c := &Consumer{topic: "order.events", groupID: "g"}
	boom := errors.New("boom")

	err := c.processMessage(context.Background(), kafka.Message{}, func(ctx context.Context, payload []byte) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected handler error to propagate, got %v", err)
	}
}

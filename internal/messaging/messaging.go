package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
)

// Header names carried by every event, whatever the transport.
const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
)

// Event is a domain event ready to be published.
type Event struct {
	ID         string
	Type       string
	Key        string
	OccurredAt time.Time
	Payload    []byte
}

// NewEvent encodes payload as JSON and stamps a fresh event id.
func NewEvent(eventType, key string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

func (e Event) headers() map[string]string {
	return map[string]string{
		HeaderEventID:   e.ID,
		HeaderEventType: e.Type,
	}
}

// Message represents a message consumed from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// EventType returns the event type header, if any.
func (m Message) EventType() string {
	return m.Headers[HeaderEventType]
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, event Event) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewNoop returns a client that drops published events and blocks consumers
// until their context ends.
func NewNoop(topic string) Client {
	return noopClient{topic: topic}
}

type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, Event) error { return nil }
func (n noopClient) Consume(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (n noopClient) Topic() string { return n.topic }

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	switch cfg.Messaging.Driver {
	case "noop":
		logger.Info("messaging disabled; using noop client")
		return NewNoop(cfg.Messaging.Kafka.Topic), nil
	case "kafka":
		return newKafkaClient(lc, cfg, logger)
	case "rabbitmq":
		return newRabbitClient(lc, cfg.Messaging.RabbitMQ, logger), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
)

// rabbitClient publishes to a durable topic exchange, routing by event type,
// and consumes from one durable queue bound to every routing key.
type rabbitClient struct {
	cfg    config.RabbitMQ
	logger *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	publish *amqp.Channel
}

func newRabbitClient(lc fx.Lifecycle, cfg config.RabbitMQ, logger *zap.Logger) Client {
	client := &rabbitClient{cfg: cfg, logger: logger}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.connect()
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing rabbitmq client")
			return client.close()
		},
	})
	return client
}

func (r *rabbitClient) connect() error {
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(r.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", r.cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(r.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare queue %s: %w", r.cfg.Queue, err)
	}
	if err := ch.QueueBind(r.cfg.Queue, "#", r.cfg.Exchange, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("bind queue %s: %w", r.cfg.Queue, err)
	}

	r.mu.Lock()
	r.conn = conn
	r.publish = ch
	r.mu.Unlock()

	r.logger.Info("rabbitmq connected", zap.String("exchange", r.cfg.Exchange), zap.String("queue", r.cfg.Queue))
	return nil
}

func (r *rabbitClient) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn, r.publish = nil, nil
	return err
}

// Publish is serialised because an AMQP channel is not safe for concurrent
// publishers.
func (r *rabbitClient) Publish(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.publish == nil {
		return errors.New("rabbitmq client not connected")
	}

	headers := amqp.Table{}
	for name, value := range event.headers() {
		headers[name] = value
	}
	return r.publish.PublishWithContext(ctx, r.cfg.Exchange, event.Type, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Headers:      headers,
		Body:         event.Payload,
	})
}

func (r *rabbitClient) Consume(ctx context.Context, handler Handler) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return errors.New("rabbitmq client not connected")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(r.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", r.cfg.Queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, fromDelivery(r.cfg.Exchange, d)); err != nil {
				r.logger.Error("message handler failed", zap.Error(err), zap.Uint64("delivery_tag", d.DeliveryTag))
				_ = d.Nack(false, true)
				continue
			}
			if err := d.Ack(false); err != nil {
				r.logger.Warn("ack failed", zap.Error(err))
			}
		}
	}
}

func (r *rabbitClient) Topic() string { return r.cfg.Exchange }

func fromDelivery(exchange string, d amqp.Delivery) Message {
	headers := make(map[string]string, len(d.Headers)+1)
	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	if _, ok := headers[HeaderEventType]; !ok && d.Type != "" {
		headers[HeaderEventType] = d.Type
	}
	return Message{
		Topic:   exchange,
		Key:     []byte(d.RoutingKey),
		Value:   d.Body,
		Headers: headers,
		Offset:  int64(d.DeliveryTag),
		Time:    d.Timestamp,
	}
}

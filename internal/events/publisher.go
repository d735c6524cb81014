// Package events publishes wallet change events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/350ops/walleybranch/internal/store"
)

// DefaultExchange is the topic exchange change events are published to.
const DefaultExchange = "wallet.events"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements store.ChangePublisher.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

var _ store.ChangePublisher = (*Publisher)(nil)

// NewPublisher dials url and declares a durable topic exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// RoutingKey is wallet.<entity>.<op>, e.g. wallet.cards.create.
func RoutingKey(c store.Change) string {
	return "wallet." + string(c.Entity) + "." + string(c.Op)
}

// PublishChange sends c as a persistent JSON message.
func (p *Publisher) PublishChange(ctx context.Context, c store.Change) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	at := c.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(c), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    at,
		Type:         string(c.Op),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKey(c), err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// rabbitPublisher emits catalog events to a RabbitMQ exchange. Each
// event goes out under its own routing key so consumers can bind to
// uploads and removals independently.
type rabbitPublisher struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	exchange  string
	keyPrefix string
}

// NewRabbitMQPublisher connects to the broker and declares the exchange
// package events are published to. routingKey becomes the key prefix;
// the event type is appended per message.
func NewRabbitMQPublisher(url, exchange, exchangeType, routingKey string) (Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	// Durable, non-internal exchange: package events must survive a
	// broker restart alongside the index itself.
	if err := ch.ExchangeDeclare(exchange, exchangeType, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &rabbitPublisher{
		conn:      conn,
		channel:   ch,
		exchange:  exchange,
		keyPrefix: routingKey,
	}, nil
}

// routingKey builds the per-event key, e.g. "pypi.package.upload" for a
// configured prefix of "pypi".
func (p *rabbitPublisher) routingKey(e Event) string {
	if p.keyPrefix == "" {
		return e.Type
	}
	return p.keyPrefix + "." + e.Type
}

func (p *rabbitPublisher) Publish(e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event for %s: %w", e.Filename, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.channel.PublishWithContext(ctx, p.exchange, p.routingKey(e), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         e.Type,
		MessageId:    e.Filename,
		Timestamp:    e.Timestamp,
		Body:         payload,
	})
}

func (p *rabbitPublisher) Close() error {
	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

package rabbitmq

import (
	"context"
	"fmt"

	"ms-boxoffice/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const ExchangeKind = "topic"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends messages to a durable topic exchange, routed by event type.
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   *logger.Logger
}

func NewPublisher(url, exchange string, l *logger.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, exchange: exchange, logger: l}, nil
}

// Publish sends body with routingKey. key is carried as the message id.
func (p *Publisher) Publish(ctx context.Context, routingKey, key string, body []byte) error {
	err := p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    key,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", routingKey, err)
	}
	p.logger.LogBroker("PUBLISH", p.exchange+"/"+routingKey, key)
	return nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Package notify publishes booking lifecycle messages to RabbitMQ so that
// mailers and other consumers can react without touching the booking path.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// Publisher sends notifications to a durable topic exchange. The routing key
// is the notification type, e.g. booking.confirmed.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *zerolog.Logger
}

// Dial connects to RabbitMQ and declares the exchange.
func Dial(url, exchange string, log *zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Msg("rabbitmq publisher ready")
	return &Publisher{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

// Publish sends one notification as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, n model.BookingNotification) error {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		n.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.Type + ":" + n.BookingID,
			Timestamp:    n.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", n.Type, err)
	}
	p.log.Debug().Str("type", n.Type).Str("booking_id", n.BookingID).Msg("notification published")
	return nil
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Nop discards notifications. It is used when RabbitMQ is not configured.
type Nop struct{}

// Publish implements the notifier contract and does nothing.
func (Nop) Publish(context.Context, model.BookingNotification) error { return nil }

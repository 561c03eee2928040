package external

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// EventPublisher announces committed balance changes to the rest of the system.
// Publishing is best-effort: a failed publish never fails the mutation that
// produced it.
type EventPublisher interface {
	PublishBalanceChanged(ctx context.Context, event *BalanceChangedEvent) error
	Close() error
}

// BalanceChangedEvent describes one committed mutation.
type BalanceChangedEvent struct {
	EventID    string          `json:"event_id"`
	UserID     int64           `json:"user_id"`
	Operation  string          `json:"operation"` // "add", "subtract", "set"
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
	ActorID    int64           `json:"actor_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// PublisherConfig configures the RabbitMQ event publisher.
type PublisherConfig struct {
	URL      string
	Exchange string
}

type rabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewEventPublisher connects to RabbitMQ and declares the balance events exchange.
func NewEventPublisher(config *PublisherConfig) (EventPublisher, error) {
	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		config.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", config.Exchange, err)
	}

	return &rabbitPublisher{
		conn:     conn,
		channel:  channel,
		exchange: config.Exchange,
	}, nil
}

func (p *rabbitPublisher) PublishBalanceChanged(ctx context.Context, event *BalanceChangedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode balance event: %w", err)
	}

	routingKey := "balance." + event.Operation
	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Timestamp:    event.OccurredAt,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish balance event: %w", err)
	}
	return nil
}

func (p *rabbitPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// noopPublisher is used when eventing is disabled.
type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event.
func NewNoopPublisher() EventPublisher { return noopPublisher{} }

func (noopPublisher) PublishBalanceChanged(ctx context.Context, event *BalanceChangedEvent) error {
	return nil
}

func (noopPublisher) Close() error { return nil }

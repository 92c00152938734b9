package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/wu-shaobing/quant-platform-sub002/internal/config"
	"github.com/wu-shaobing/quant-platform-sub002/internal/model"
)

const (
	dialAttempts   = 10
	dialRetryDelay = 2 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher relays account events (orders, fills) onto an AMQP queue
// for downstream consumers such as risk monitors and audit pipelines.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	logger  *slog.Logger
}

// NewPublisher connects to the broker with retries and declares the
// target queue.
func NewPublisher(cfg config.FeedConfig, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var conn *amqp091.Connection
	var err error
	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp091.Dial(cfg.URI)
		if err == nil {
			break
		}
		logger.Warn("feed broker connection attempt failed", "attempt", i+1, "error", err)
		time.Sleep(dialRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to broker after %d attempts: %w", dialAttempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		logger.Warn("publisher confirms unavailable", "error", err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", cfg.Queue, err)
	}

	return &Publisher{conn: conn, channel: ch, queue: cfg.Queue, logger: logger}, nil
}

// PublishOrderUpdate relays one order status change.
func (p *Publisher) PublishOrderUpdate(o model.OrderUpdate) error {
	return p.publish("order_update", o)
}

// PublishTradeFill relays one executed fill.
func (p *Publisher) PublishTradeFill(t model.TradeFill) error {
	return p.publish("trade_fill", t)
}

func (p *Publisher) publish(kind string, payload any) error {
	body, err := json.Marshal(map[string]any{
		"kind":    kind,
		"at":      time.Now().UTC().Format(time.RFC3339),
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		"", // default exchange
		p.queue,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s to %q: %w", kind, p.queue, err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

/**
 * @description
 * Confirmed RabbitMQ publisher. The channel runs in confirm mode, so Publish only
 * returns nil once the broker has taken responsibility for the message. Any other
 * outcome is reported to the caller, which decides how to surface the failed
 * delivery; nothing is dropped silently.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: AMQP client.
 * - github.com/google/uuid: message ids.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

var (
	// ErrPublisherUnavailable is returned when no broker connection could be made.
	ErrPublisherUnavailable = errors.New("rabbitmq: publisher unavailable")
	// ErrPublishNacked is returned when the broker refused the message.
	ErrPublishNacked = errors.New("rabbitmq: publish not confirmed by broker")
)

// Publisher is implemented by types that can publish JSON events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// EventProducer owns a connection and a confirm-mode channel.
type EventProducer struct {
	mu       sync.Mutex
	url      string
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	declared map[string]bool
	logger   *slog.Logger
}

// NewEventProducer dials the broker and opens a confirm-mode channel.
func NewEventProducer(amqpURL string, logger *slog.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := dial(cleanURL)
	if err != nil {
		return nil, err
	}

	p := &EventProducer{
		url:      cleanURL,
		conn:     conn,
		declared: make(map[string]bool),
		logger:   logger.With("component", "rabbitmq_producer"),
	}
	if err := p.reopenChannel(); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// Publish marshals body to JSON and waits for the broker confirm. A failed
// attempt reopens the channel and retries once.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishOnce(ctx, exchange, routingKey, payload)
	if err == nil || errors.Is(err, ErrPublishNacked) || ctx.Err() != nil {
		return err
	}

	p.logger.Warn("publish failed; reopening channel", "exchange", exchange, "routing_key", routingKey, "error", err)
	if reopenErr := p.reopenChannel(); reopenErr != nil {
		return fmt.Errorf("%w (reopen: %v)", err, reopenErr)
	}
	return p.publishOnce(ctx, exchange, routingKey, payload)
}

func (p *EventProducer) publishOnce(ctx context.Context, exchange, routingKey string, payload []byte) error {
	if p.channel == nil || p.channel.IsClosed() {
		return ErrPublisherUnavailable
	}
	if !p.declared[exchange] {
		if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
		p.declared[exchange] = true
	}

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		return err
	}
	if confirm == nil {
		return nil
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

// reopenChannel replaces the channel, redialing first if the connection was lost.
func (p *EventProducer) reopenChannel() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := dial(p.url)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPublisherUnavailable, err)
		}
		p.conn = conn
		p.channel = nil
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	p.channel = ch
	p.declared = make(map[string]bool)
	return nil
}

func dial(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.DialConfig(url, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", redactAMQPURL(url), err)
	}
	return conn, nil
}

// Close closes the channel and connection.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// FallbackPublisher stands in when the broker is unreachable at startup. Every
// publish fails with ErrPublisherUnavailable so callers record the pending delivery.
type FallbackPublisher struct {
	Logger *slog.Logger
}

func (p *FallbackPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if p.Logger != nil {
		p.Logger.Warn("publish skipped; broker unavailable", "component", "rabbitmq_producer", "mode", "fallback", "exchange", exchange, "routing_key", routingKey)
	}
	return ErrPublisherUnavailable
}

func (p *FallbackPublisher) Close() {}

/**
 * @description
 * Reusable RabbitMQ consumer with explicit acknowledgment.
 *
 * Key features:
 * - Declares a durable topic exchange, a durable queue, and binds them.
 * - Limits unacknowledged deliveries with Qos and fans them out to a fixed
 *   number of worker goroutines.
 * - The handler decides the fate of every delivery: Ack once its effects are
 *   committed, Requeue when they are not, Discard when the message can never succeed.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The official Go client for RabbitMQ.
 */
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed is returned by Consume when the broker closes the delivery stream.
var ErrDeliveriesClosed = errors.New("rabbitmq: delivery channel closed")

// Decision is a handler's verdict on one delivery.
type Decision int

const (
	// Ack acknowledges the delivery; its effects are durable.
	Ack Decision = iota
	// Requeue rejects the delivery and asks the broker to redeliver it.
	Requeue
	// Discard rejects the delivery without redelivery.
	Discard
)

func (d Decision) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Discard:
		return "discard"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Handler processes a single message body.
type Handler func(body []byte) Decision

// Binding describes where a consumer reads from.
type Binding struct {
	Exchange   string
	Queue      string
	RoutingKey string
	Prefetch   int
	Workers    int
}

// Consumer holds the connection and channel used for consumption.
type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *slog.Logger
}

// NewConsumer dials the broker and opens a channel.
func NewConsumer(amqpURL string, logger *slog.Logger) (*Consumer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := dial(cleanURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		logger:  logger.With("component", "rabbitmq_consumer"),
	}, nil
}

// Consume declares the topology and processes deliveries until ctx is cancelled
// or the broker closes the stream. Unsettled deliveries stay with the broker.
func (c *Consumer) Consume(ctx context.Context, b Binding, handler Handler) error {
	if err := c.channel.ExchangeDeclare(b.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", b.Exchange, err)
	}

	q, err := c.channel.QueueDeclare(b.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", b.Queue, err)
	}

	if err := c.channel.QueueBind(q.Name, b.RoutingKey, b.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}

	workers := b.Workers
	if workers < 1 {
		workers = 1
	}
	prefetch := b.Prefetch
	if prefetch < workers {
		prefetch = workers
	}
	if err := c.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs, err := c.channel.ConsumeWithContext(consumeCtx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	c.logger.Info("consumer started", "queue", q.Name, "routing_key", b.RoutingKey, "workers", workers, "prefetch", prefetch)

	var wg sync.WaitGroup
	closed := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-consumeCtx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						closed <- struct{}{}
						return
					}
					c.dispatch(d, handler)
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
		cancel()
		wg.Wait()
		return nil
	case <-closed:
		cancel()
		wg.Wait()
		return ErrDeliveriesClosed
	}
}

func (c *Consumer) dispatch(d amqp091.Delivery, handler Handler) {
	decision := handler(d.Body)
	if err := settle(d, decision); err != nil {
		c.logger.Error("failed to settle delivery", "delivery_tag", d.DeliveryTag, "decision", decision.String(), "error", err)
		return
	}
	c.logger.Debug("delivery settled", "routing_key", d.RoutingKey, "redelivered", d.Redelivered, "decision", decision.String())
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func settle(d acknowledger, decision Decision) error {
	switch decision {
	case Ack:
		return d.Ack(false)
	case Discard:
		return d.Nack(false, false)
	default:
		return d.Nack(false, true)
	}
}

// Close closes the channel and connection.
func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

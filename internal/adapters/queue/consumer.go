package queue

// AMQP signal consumer. Prefetch is pinned to 1 so only one signal is in
// flight per consumer: the trading service's guard-then-insert sequence is
// serialized by the queue, with the storage-level unique index as the
// backstop.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/alejandrodnm/spotbot/internal/domain"
	"github.com/alejandrodnm/spotbot/internal/ports"
)

// SignalQueue is the durable queue trading signals arrive on.
const SignalQueue = "trading_signals"

// SignalHandler processes one decoded signal. A returned error is treated as
// transient and the message is requeued.
type SignalHandler interface {
	ProcessSignal(ctx context.Context, signal domain.Signal) (*ports.OrderResponse, error)
}

// Consumer reads trading signals from RabbitMQ and feeds them to a handler.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	handler SignalHandler
}

// NewConsumer connects to the broker, declares the queue, and sets QoS to a
// single unacked message.
func NewConsumer(url string, handler SignalHandler) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue.NewConsumer: dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue.NewConsumer: channel: %w", err)
	}

	if _, err := channel.QueueDeclare(SignalQueue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("queue.NewConsumer: declare %s: %w", SignalQueue, err)
	}
	// One in-flight signal at a time; see package comment.
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("queue.NewConsumer: qos: %w", err)
	}

	return &Consumer{conn: conn, channel: channel, handler: handler}, nil
}

// Run consumes until the context is cancelled or the channel closes.
// Malformed messages are rejected without requeue; handler errors requeue the
// message for redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, SignalQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue.Run: consume: %w", err)
	}
	slog.Info("consuming trading signals", "queue", SignalQueue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("queue.Run: delivery channel closed")
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var signal domain.Signal
	if err := json.Unmarshal(delivery.Body, &signal); err != nil {
		slog.Error("dropping malformed signal", "err", err)
		_ = delivery.Nack(false, false)
		return
	}
	if err := signal.Validate(); err != nil {
		slog.Error("dropping invalid signal", "symbol", signal.Symbol, "err", err)
		_ = delivery.Nack(false, false)
		return
	}

	slog.Info("processing signal",
		"symbol", signal.Symbol,
		"action", signal.Action,
		"source", signal.Source,
	)
	if _, err := c.handler.ProcessSignal(ctx, signal); err != nil {
		if errors.Is(err, domain.ErrPositionExists) {
			// Lost the open-slot race to a concurrent buy; redelivery
			// cannot succeed, so drop the signal.
			slog.Info("dropping buy signal, position already open",
				"symbol", signal.Symbol,
				"source", signal.Source,
			)
			_ = delivery.Nack(false, false)
			return
		}
		slog.Error("signal processing failed, requeueing",
			"symbol", signal.Symbol,
			"source", signal.Source,
			"err", err,
		)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

// Close tears down the channel and connection.
func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}

// Package queue implements the durable work-queue protocol between the
// Scheduler, Scraper workers, and Processor: two durable queues with
// persistent delivery, fair dispatch (prefetch 1), and an auto-reconnect
// client that survives broker restarts without losing more than the one
// message that was in flight.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// WorkerQueue carries scrape tasks from the Scheduler to Scraper workers.
	WorkerQueue = "worker_q"
	// ProcessorQueue carries scrape results from Scraper workers to the Processor.
	ProcessorQueue = "processor_q"

	reconnectDelay = 10 * time.Second
	prefetchCount  = 1
)

// AckDisposition is the three-valued outcome a Handler returns for each
// delivered message. Every control path must resolve to one of these;
// there is no "leave unacked" outcome.
type AckDisposition int

const (
	// Ack acknowledges the message: it will not be redelivered.
	Ack AckDisposition = iota
	// Requeue negatively acknowledges the message and asks the broker to
	// redeliver it, used only for transient faults worth retrying.
	Requeue
	// Drop acknowledges the message after logging a warning — work is
	// deliberately lost because retrying it cannot help.
	Drop
)

func (d AckDisposition) String() string {
	switch d {
	case Ack:
		return "ACK"
	case Requeue:
		return "REQUEUE"
	case Drop:
		return "DROP"
	default:
		return "UNKNOWN"
	}
}

// Handler processes one message body and decides its fate.
type Handler func(ctx context.Context, body []byte) AckDisposition

// Client owns the AMQP connection/channel pair and presents a stable
// publish/consume surface across reconnects — the connection and channel
// fields are never exposed to callers, only rebuilt internally.
type Client struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
	closeCh chan struct{}
}

// New dials the broker, declares both durable queues, and returns a ready
// Client. A dial/declare failure on first start should be treated as
// fatal by the caller (exit 1), not retried in a loop.
func New(url string, logger *slog.Logger) (*Client, error) {
	c := &Client{url: url, logger: logger, closeCh: make(chan struct{})}
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}

	if err := declareQueues(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	return nil
}

func declareQueues(ch *amqp.Channel) error {
	for _, q := range []string{WorkerQueue, ProcessorQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring queue %s: %w", q, err)
		}
	}
	return nil
}

// Publish sends body to queue with persistent delivery mode, returning
// false (never an error) on any transport fault: callers decide whether
// a false return should break out of a send loop.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) bool {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return false
	}

	err := ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/octet-stream",
		Body:         body,
	})
	if err != nil {
		c.logger.Warn("publish failed", "queue", queue, "error", err)
		return false
	}
	return true
}

// PublishJSON marshals v and publishes it, a convenience wrapper for the
// processor_q JSON scrape results.
func (c *Client) PublishJSON(ctx context.Context, queue string, v any) bool {
	body, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("marshal for publish failed", "queue", queue, "error", err)
		return false
	}
	return c.Publish(ctx, queue, body)
}

// Consume runs handler against every message delivered on queue with
// prefetch 1 (fair dispatch: one un-acked message per consumer), blocking
// until ctx is cancelled or Close is called. On any I/O or protocol fault
// during qos/consume/delivery it sleeps reconnectDelay, reopens the
// connection/channel/declarations, and resumes — it never returns except
// on ctx cancellation or Close. Only a fault during the very first
// qos/consume setup (before the consumer has ever started) is returned as
// a fatal error; every fault after that, including one that surfaces hours
// into a healthy run, triggers the backoff-and-reconnect loop instead.
func (c *Client) Consume(ctx context.Context, queue string, handler Handler) error {
	started := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closeCh:
			return nil
		default:
		}

		deliveries, closeNotify, err := c.startConsuming(queue)
		if err != nil {
			if !started {
				return fmt.Errorf("initial consume setup failed: %w", err)
			}
			if done := c.backoffAndReconnect(ctx, queue, err); done {
				return nil
			}
			continue
		}

		started = true

		if err := c.deliverUntilFault(ctx, handler, deliveries, closeNotify); err != nil {
			if done := c.backoffAndReconnect(ctx, queue, err); done {
				return nil
			}
			continue
		}

		return nil
	}
}

// startConsuming declares QoS and opens the delivery stream on the current
// channel. It returns quickly on success or failure — no blocking delivery
// wait happens here, so Consume can mark the consumer as started the
// instant this succeeds, before any message has to arrive.
func (c *Client) startConsuming(queue string) (<-chan amqp.Delivery, chan *amqp.Error, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return nil, nil, fmt.Errorf("no open channel")
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return nil, nil, fmt.Errorf("setting qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("starting consume: %w", err)
	}

	closeNotify := ch.NotifyClose(make(chan *amqp.Error, 1))
	return deliveries, closeNotify, nil
}

func (c *Client) deliverUntilFault(ctx context.Context, handler Handler, deliveries <-chan amqp.Delivery, closeNotify chan *amqp.Error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closeCh:
			return nil
		case amqpErr, ok := <-closeNotify:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			return fmt.Errorf("channel closed: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, handler, d)
		}
	}
}

// backoffAndReconnect sleeps reconnectDelay and reopens the connection.
// It returns true when the caller should stop (ctx cancelled or Close
// called during the wait), false when Consume should loop and retry.
func (c *Client) backoffAndReconnect(ctx context.Context, queue string, cause error) bool {
	c.logger.Warn("consumer faulted, reconnecting", "queue", queue, "error", cause, "backoff", reconnectDelay)

	select {
	case <-ctx.Done():
		return true
	case <-c.closeCh:
		return true
	case <-time.After(reconnectDelay):
	}

	if err := c.connect(); err != nil {
		c.logger.Warn("reconnect failed, will retry", "error", err)
	}
	return false
}

func (c *Client) handleDelivery(ctx context.Context, handler Handler, d amqp.Delivery) {
	switch handler(ctx, d.Body) {
	case Ack:
		if err := d.Ack(false); err != nil {
			c.logger.Warn("ack failed", "error", err)
		}
	case Requeue:
		if err := d.Nack(false, true); err != nil {
			c.logger.Warn("nack(requeue) failed", "error", err)
		}
	case Drop:
		c.logger.Warn("dropping message after handling", "body_len", len(d.Body))
		if err := d.Ack(false); err != nil {
			c.logger.Warn("ack(drop) failed", "error", err)
		}
	}
}

// Close closes the channel and connection. It is idempotent and safe to
// call from a signal handler; no method may be called after Close returns.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.closeCh)

	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

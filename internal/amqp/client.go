// Package amqp publishes and consumes the JSON work queues shared by the API
// and the worker.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"budgetly/internal/log"
	"budgetly/internal/ports"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrPermanent marks a handler failure that must not be redelivered.
	ErrPermanent = errors.New("permanent failure")
)

// Permanent wraps err so the consumer drops the message instead of requeueing it.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

type Config struct {
	URL           string
	Exchange      string
	MailQueue     string
	ActivityQueue string
}

// Client owns one connection and channel, redialled on demand after a
// connection failure. Publishes go through a simple circuit breaker.
type Client struct {
	url           string
	exchangeName  string
	mailQueue     string
	activityQueue string
	logger        *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failureMu    sync.Mutex
	lastFailure  time.Time
}

var _ ports.ActivityPublisher = (*Client)(nil)

// NewClient dials, declares the exchange and both queues.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		url:           cfg.URL,
		exchangeName:  cfg.Exchange,
		mailQueue:     cfg.MailQueue,
		activityQueue: cfg.ActivityQueue,
		logger:        logger.WithComponent(log.ComponentAMQP),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) queues() []string {
	var qs []string
	for _, q := range []string{c.mailQueue, c.activityQueue} {
		if q != "" {
			qs = append(qs, q)
		}
	}
	return qs
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queues()); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}
	c.conn, c.channel = conn, channel
	return nil
}

func setup(ch *amqp091.Channel, exchange string, queues []string) error {
	if err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(
			q,     // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		// Routing key equals the queue name on the direct exchange.
		if err := ch.QueueBind(q, q, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// channelFor returns a live channel, reconnecting when the previous one died.
func (c *Client) channelFor() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	c.logger.Info("AMQP connection re-established")
	return c.channel, nil
}

// PublishResetMail queues a reset e-mail for the worker.
func (c *Client) PublishResetMail(ctx context.Context, msg *ResetMailMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, c.mailQueue, body)
}

// PublishExpenseActivity queues a snapshot of an expense mutation.
func (c *Client) PublishExpenseActivity(ctx context.Context, a ports.Activity) error {
	msg := NewExpenseActivityMessage(a)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.activityQueue, body); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "Published expense activity",
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldOperation, string(msg.Kind))
	return nil
}

func (c *Client) publish(ctx context.Context, queue string, body []byte) error {
	if queue == "" {
		return fmt.Errorf("no queue configured")
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", queue, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := c.channelFor()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		queue,          // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.recordFailure()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// ConsumeResetMail consumes the mail queue until ctx is done.
func (c *Client) ConsumeResetMail(ctx context.Context, fn func(context.Context, *ResetMailMessage) error) error {
	return c.consume(ctx, c.mailQueue, func(ctx context.Context, body []byte) error {
		msg, err := ResetMailMessageFromJSON(body)
		if err != nil {
			return Permanent(err)
		}
		return fn(ctx, msg)
	})
}

// ConsumeExpenseActivity consumes the activity queue until ctx is done.
func (c *Client) ConsumeExpenseActivity(ctx context.Context, fn func(context.Context, *ExpenseActivityMessage) error) error {
	return c.consume(ctx, c.activityQueue, func(ctx context.Context, body []byte) error {
		msg, err := ExpenseActivityMessageFromJSON(body)
		if err != nil {
			return Permanent(err)
		}
		return fn(ctx, msg)
	})
}

func (c *Client) consume(ctx context.Context, queue string, h Handler) error {
	ch, err := c.channelFor()
	if err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming", log.FieldQueue, queue)
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", log.FieldQueue, queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			handleDelivery(ctx, c.logger, queue, delivery, h)
		}
	}
}

// handleDelivery acks on success, drops permanent failures and requeues the rest.
func handleDelivery(ctx context.Context, logger *log.Logger, queue string, d amqp091.Delivery, h Handler) {
	err := h(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			logger.ErrorContext(ctx, "Failed to ack message", log.FieldQueue, queue, log.FieldError, ackErr)
		}
	case errors.Is(err, ErrPermanent):
		logger.ErrorContext(ctx, "Dropping message", log.FieldQueue, queue, log.FieldError, err)
		_ = d.Nack(false, false)
	default:
		logger.WarnContext(ctx, "Requeueing message", log.FieldQueue, queue, log.FieldError, err)
		_ = d.Nack(false, true)
	}
}

// Ready reports whether the connection is currently usable.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		if !c.conn.IsClosed() {
			err = c.conn.Close()
		}
		c.conn = nil
	}
	return err
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.failureMu.Lock()
	last := c.lastFailure
	c.failureMu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.failureMu.Lock()
	c.lastFailure = time.Now()
	c.failureMu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Backoff exposes the reconnect delay schedule to consumers.
func Backoff(attempt int) time.Duration {
	return exponentialBackoff(attempt)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

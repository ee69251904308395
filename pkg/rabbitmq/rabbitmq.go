package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	amqp "github.com/streadway/amqp"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     zerolog.Logger

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
	// DialRetries bounds the reconnect attempts made at startup.
	DialRetries uint64
}

// NewClient connects to RabbitMQ, retrying with exponential backoff, and
// declares the durable work queue.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Queue == "" {
		return nil, fmt.Errorf("rabbitmq queue name is required")
	}
	retries := cfg.DialRetries
	if retries == 0 {
		retries = 5
	}

	var conn *amqp.Connection
	dial := func() error {
		var err error
		conn, err = amqp.Dial(cfg.URL)
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq dial failed, retrying")
		}
		return err
	}
	if err := backoff.Retry(dial, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries)); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", cfg.Queue, err)
	}

	log.Info().Str("queue", cfg.Queue).Msg("rabbitmq client connected")

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
		log:     log,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during RabbitMQ client close: %v", errs)
	}
	return nil
}

// Publish sends a persistent JSON message to the work queue.
func (c *Client) Publish(body []byte) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Consume delivers queued messages to handler until ctx is cancelled or the
// channel closes. Messages whose handler fails are dropped, not requeued.
func (c *Client) Consume(ctx context.Context, handler func(body []byte) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.log.Warn().Msg("rabbitmq delivery channel closed")
					return
				}
				if err := handler(msg.Body); err != nil {
					c.log.Error().Err(err).Uint64("tag", msg.DeliveryTag).Msg("message handling failed")
					if nackErr := msg.Nack(false, false); nackErr != nil {
						c.log.Error().Err(nackErr).Uint64("tag", msg.DeliveryTag).Msg("nack failed")
					}
					continue
				}
				if ackErr := msg.Ack(false); ackErr != nil {
					c.log.Error().Err(ackErr).Uint64("tag", msg.DeliveryTag).Msg("ack failed")
				}
			}
		}
	}()
	return nil
}

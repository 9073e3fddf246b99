// Package redis ships item events over Redis pub/sub, as a lighter
// alternative to the AMQP broker.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"corredo/internal/events"
	"corredo/internal/log"
)

// Options configures the connection and its startup retry policy.
type Options struct {
	Addr           string
	Password       string
	DB             int
	Channel        string
	ConnectTimeout time.Duration // total time allowed for connection attempts
	RetryInterval  time.Duration // first wait between attempts, doubled each time
	MaxWait        time.Duration // cap on the wait between attempts
	PingTimeout    time.Duration
	HandlerRetries int // attempts per event before it is dropped
}

// DefaultOptions fills the retry policy for addr and channel.
func DefaultOptions(addr, password string, db int, channel string) Options {
	return Options{
		Addr:           addr,
		Password:       password,
		DB:             db,
		Channel:        channel,
		ConnectTimeout: 30 * time.Second,
		RetryInterval:  time.Second,
		MaxWait:        10 * time.Second,
		PingTimeout:    2 * time.Second,
		HandlerRetries: 3,
	}
}

func (o Options) validate() error {
	switch {
	case o.Addr == "":
		return fmt.Errorf("redis address is required")
	case o.Channel == "":
		return fmt.Errorf("redis channel is required")
	case o.ConnectTimeout <= 0:
		return fmt.Errorf("ConnectTimeout must be > 0, got %v", o.ConnectTimeout)
	case o.RetryInterval <= 0:
		return fmt.Errorf("RetryInterval must be > 0, got %v", o.RetryInterval)
	case o.MaxWait <= 0:
		return fmt.Errorf("MaxWait must be > 0, got %v", o.MaxWait)
	case o.PingTimeout <= 0:
		return fmt.Errorf("PingTimeout must be > 0, got %v", o.PingTimeout)
	case o.HandlerRetries < 1:
		return fmt.Errorf("HandlerRetries must be >= 1, got %d", o.HandlerRetries)
	}
	return nil
}

type Client struct {
	rdb    *goredis.Client
	opts   Options
	logger *log.Logger
}

var (
	_ events.Publisher = (*Client)(nil)
	_ events.Consumer  = (*Client)(nil)
)

// NewClient connects to Redis, retrying with exponential backoff until
// ConnectTimeout elapses.
func NewClient(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		rdb: goredis.NewClient(&goredis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		opts:   opts,
		logger: logger.WithComponent(log.ComponentRedis),
	}
	if err := c.connectWithRetry(ctx); err != nil {
		c.rdb.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) connectWithRetry(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	c.logger.Info("Connecting to redis", "addr", c.opts.Addr)
	wait := c.opts.RetryInterval
	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, c.opts.PingTimeout)
		err := c.rdb.Ping(pingCtx).Err()
		pingCancel()
		if err == nil {
			c.logger.Info("Connected to redis", "addr", c.opts.Addr, "attempts", attempt)
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis unavailable at %s after %d attempts: %w", c.opts.Addr, attempt, err)
		case <-timer.C:
			c.logger.Warn("Redis connection failed, retrying",
				"addr", c.opts.Addr, "attempt", attempt, log.FieldError, err)
			wait = nextWait(wait, c.opts.MaxWait)
		}
	}
}

func nextWait(wait, limit time.Duration) time.Duration {
	wait *= 2
	if wait > limit {
		return limit
	}
	return wait
}

// Publish sends e on the configured channel.
func (c *Client) Publish(ctx context.Context, e events.ItemEvent) error {
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.rdb.Publish(ctx, c.opts.Channel, body).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", c.opts.Channel, err)
	}
	c.logger.DebugContext(ctx, "Published item event",
		log.FieldEventID, e.ID, log.FieldEventType, e.Type, log.FieldItemID, e.ItemID)
	return nil
}

// Consume subscribes to the channel and hands every event to h until ctx is
// done. Pub/sub has no redelivery, so a failing event is retried in place
// HandlerRetries times and then dropped.
func (c *Client) Consume(ctx context.Context, h events.Handler) error {
	sub := c.rdb.Subscribe(ctx, c.opts.Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.opts.Channel, err)
	}
	c.logger.InfoContext(ctx, "Started consuming item events", "channel", c.opts.Channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return fmt.Errorf("subscription to %s closed", c.opts.Channel)
			}
			c.dispatch(ctx, []byte(m.Payload), h)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, payload []byte, h events.Handler) {
	e, err := events.FromJSON(payload)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode item event", log.FieldError, err)
		return
	}
	wait := c.opts.RetryInterval
	for attempt := 1; attempt <= c.opts.HandlerRetries; attempt++ {
		err = h(ctx, e)
		if err == nil {
			return
		}
		if attempt == c.opts.HandlerRetries {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = nextWait(wait, c.opts.MaxWait)
	}
	c.logger.ErrorContext(ctx, "Dropping item event after retries",
		log.FieldError, err, log.FieldEventID, e.ID, log.FieldItemID, e.ItemID)
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

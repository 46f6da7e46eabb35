// Package intake consumes fan-out requests published to a RabbitMQ queue and
// hands them to the coordinator, so backend services can notify without
// calling the HTTP API.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/notifykit/pkg/fanout"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/recipients"
)

var ErrNotConfigured = errors.New("intake.not_configured")

type Config struct {
	URL        string        `env:"INTAKE_AMQP_URL"`
	Exchange   string        `env:"INTAKE_EXCHANGE" envDefault:"notifykit"`
	Queue      string        `env:"INTAKE_QUEUE" envDefault:"notifykit.requests"`
	RoutingKey string        `env:"INTAKE_ROUTING_KEY" envDefault:"notify"`
	Prefetch   int           `env:"INTAKE_PREFETCH" envDefault:"16"`
	RetryDelay time.Duration `env:"INTAKE_RETRY_DELAY" envDefault:"5s"`
}

func (c Config) Enabled() bool { return c.URL != "" }

// Result is the fate of one delivery.
type Result string

const (
	Accepted Result = "accepted"
	Rejected Result = "rejected"
	Requeued Result = "requeued"
)

// Notifier is satisfied by *fanout.Coordinator.
type Notifier interface {
	Notify(ctx context.Context, req fanout.Request) (*fanout.Summary, error)
}

type Consumer struct {
	cfg      Config
	notifier Notifier
	logger   *slog.Logger
	onResult func(Result)
}

type Option func(*Consumer)

func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithResultHook is called after every delivery is settled.
func WithResultHook(fn func(Result)) Option {
	return func(c *Consumer) { c.onResult = fn }
}

func New(cfg Config, n Notifier, opts ...Option) *Consumer {
	c := &Consumer{cfg: cfg, notifier: n, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.RetryDelay <= 0 {
		c.cfg.RetryDelay = 5 * time.Second
	}
	return c
}

// Run consumes until ctx ends, reconnecting after connection loss.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.cfg.Enabled() {
		return ErrNotConfigured
	}
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.LogAttrs(ctx, slog.LevelWarn, "intake session ended, reconnecting",
			logger.Component("intake"),
			logger.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

func (c *Consumer) session(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := c.declare(ch); err != nil {
		return err
	}
	deliveries, err := ch.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.LogAttrs(ctx, slog.LevelInfo, "intake consuming",
		logger.Component("intake"),
		slog.String("queue", c.cfg.Queue),
	)
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.Handle(ctx, d)
		}
	}
}

func (c *Consumer) declare(ch *amqp.Channel) error {
	if c.cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(c.cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange: %w", err)
		}
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", c.cfg.Queue, err)
	}
	if c.cfg.Exchange != "" {
		if err := ch.QueueBind(c.cfg.Queue, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue: %w", err)
		}
	}
	if c.cfg.Prefetch > 0 {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
	}
	return nil
}

// Handle settles one delivery. Malformed or invalid requests are dropped.
// Transient failures are requeued once; a redelivered message that fails
// again is dropped. A persistence failure is acknowledged because channel
// dispatch has already started and a retry would deliver twice.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) Result {
	res, err := c.process(ctx, d)
	switch res {
	case Accepted:
		_ = d.Ack(false)
	case Requeued:
		_ = d.Nack(false, true)
	default:
		_ = d.Nack(false, false)
	}

	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	c.logger.LogAttrs(ctx, level, "intake delivery settled",
		logger.Component("intake"),
		logger.Status(string(res)),
		logger.Error(err),
	)
	if c.onResult != nil {
		c.onResult(res)
	}
	return res
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) (Result, error) {
	var req fanout.Request
	if err := json.Unmarshal(d.Body, &req); err != nil {
		return Rejected, fmt.Errorf("decode request: %w", err)
	}
	if req.CreatedBy == "" && d.AppId != "" {
		req.CreatedBy = d.AppId
	}

	_, err := c.notifier.Notify(ctx, req)
	switch {
	case err == nil:
		return Accepted, nil
	case errors.Is(err, fanout.ErrPersist):
		return Accepted, err
	case errors.Is(err, fanout.ErrInvalidRequest), errors.Is(err, recipients.ErrUnknownTargeting):
		return Rejected, err
	case d.Redelivered:
		return Rejected, err
	default:
		return Requeued, err
	}
}

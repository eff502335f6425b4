package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/vidkit/pkg/logger"
)

// ConsumerConfig configures the completion consumer.
type ConsumerConfig struct {
	URL        string `env:"AMQP_URL"`
	Exchange   string `env:"PROCESSING_EXCHANGE" envDefault:"vidkit.processing"`
	Queue      string `env:"PROCESSING_QUEUE" envDefault:"vidkit.processing.completions"`
	RoutingKey string `env:"PROCESSING_ROUTING_KEY" envDefault:"completion.#"`
	Prefetch   int    `env:"PROCESSING_PREFETCH" envDefault:"16"`
	// Rejected completions are routed to DeadLetterQueue through DeadLetterExchange.
	DeadLetterExchange string `env:"PROCESSING_DEAD_LETTER_EXCHANGE" envDefault:"vidkit.processing.dlx"`
	DeadLetterQueue    string `env:"PROCESSING_DEAD_LETTER_QUEUE" envDefault:"vidkit.processing.completions.dead"`
}

// CompletionHandler applies one completion. A terminal error dead-letters the
// message; any other error requeues it once, then dead-letters it.
type CompletionHandler func(ctx context.Context, c Completion) error

// Consumer receives provider completions from an AMQP queue and reconnects
// with backoff until its context is cancelled.
type Consumer struct {
	cfg     ConsumerConfig
	handle  CompletionHandler
	log     *slog.Logger
	backoff ExponentialBackoff
}

func NewConsumer(cfg ConsumerConfig, handle CompletionHandler, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		cfg:     cfg,
		handle:  handle,
		log:     log.With(logger.Component("processing_consumer")),
		backoff: ExponentialBackoff{InitialInterval: time.Second, MaxInterval: 30 * time.Second, JitterFactor: 0.2},
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.cfg.URL == "" {
		return fmt.Errorf("%w: AMQP_URL is required", ErrInvalidConfig)
	}
	for attempt := 0; ; attempt++ {
		started, err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if started {
			attempt = 0
		}
		wait := c.backoff.NextInterval(attempt + 1)
		c.log.WarnContext(ctx, "completion consumer disconnected",
			logger.Error(err), logger.Duration(wait))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// consume reports whether deliveries started flowing before it returned.
func (c *Consumer) consume(ctx context.Context) (bool, error) {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return false, err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return false, err
	}
	defer func() { _ = ch.Close() }()

	q, err := declareTopology(ch, c.cfg)
	if err != nil {
		return false, err
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return false, err
	}
	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return false, err
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	c.log.InfoContext(ctx, "completion consumer started", slog.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return true, errors.New("amqp connection closed")
			}
			return true, amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return true, errors.New("amqp delivery channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// topology is the part of *amqp.Channel that declares exchanges and queues.
type topology interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// declareTopology declares the completion queue bound to the exchange and,
// when configured, a fanout dead-letter exchange with its parking queue.
func declareTopology(ch topology, cfg ConsumerConfig) (amqp.Queue, error) {
	var args amqp.Table
	if cfg.DeadLetterExchange != "" {
		if err := ch.ExchangeDeclare(cfg.DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
			return amqp.Queue{}, err
		}
		if cfg.DeadLetterQueue != "" {
			dq, err := ch.QueueDeclare(cfg.DeadLetterQueue, true, false, false, false, nil)
			if err != nil {
				return amqp.Queue{}, err
			}
			if err := ch.QueueBind(dq.Name, "", cfg.DeadLetterExchange, false, nil); err != nil {
				return amqp.Queue{}, err
			}
		}
		args = amqp.Table{"x-dead-letter-exchange": cfg.DeadLetterExchange}
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return amqp.Queue{}, err
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args)
	if err != nil {
		return amqp.Queue{}, err
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return amqp.Queue{}, err
	}
	return q, nil
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	comp, err := DecodeCompletion(d.Body)
	if err != nil {
		c.log.WarnContext(ctx, "dead-lettering malformed completion", logger.Error(err))
		_ = d.Reject(false)
		return
	}

	if err := c.handle(ctx, comp); err != nil {
		requeue := !IsTerminal(err) && !d.Redelivered
		c.log.ErrorContext(ctx, "completion handling failed",
			logger.TenantID(comp.TenantID),
			logger.ResourceID(comp.ResourceID),
			slog.Bool("requeue", requeue),
			logger.Error(err),
		)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

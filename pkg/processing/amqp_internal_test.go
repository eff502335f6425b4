package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/logger"
)

type ackRecorder struct {
	acked, requeued, dropped int
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.requeued++
	} else {
		a.dropped++
	}
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func completionBody() []byte {
	return []byte(`{"tenant_id":"` + uuid.NewString() + `","resource_id":"` + uuid.NewString() + `","outcome":"failed","reason":"codec"}`)
}

func TestConsumer_HandleDelivery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		handlerErr  error
		want        ackRecorder
	}{
		{name: "applied", body: completionBody(), want: ackRecorder{acked: 1}},
		{name: "malformed", body: []byte("{"), want: ackRecorder{dropped: 1}},
		{name: "transient", body: completionBody(), handlerErr: errors.New("db down"), want: ackRecorder{requeued: 1}},
		{name: "transient redelivered", body: completionBody(), redelivered: true, handlerErr: errors.New("db down"), want: ackRecorder{dropped: 1}},
		{name: "terminal", body: completionBody(), handlerErr: &Error{Kind: Terminal, Op: "apply", Err: errors.New("unknown tenant")}, want: ackRecorder{dropped: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls int
			c := NewConsumer(ConsumerConfig{}, func(context.Context, Completion) error {
				calls++
				return tt.handlerErr
			}, logger.Discard())

			rec := &ackRecorder{}
			c.handleDelivery(context.Background(), amqp.Delivery{
				Acknowledger: rec,
				DeliveryTag:  1,
				Body:         tt.body,
				Redelivered:  tt.redelivered,
			})
			assert.Equal(t, tt.want, *rec)
			if tt.name == "malformed" {
				assert.Zero(t, calls)
			}
		})
	}
}

type declared struct {
	exchanges map[string]string
	queues    map[string]amqp.Table
	bindings  []string
}

func (d *declared) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	d.exchanges[name] = kind
	return nil
}

func (d *declared) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	d.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (d *declared) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	d.bindings = append(d.bindings, exchange+" -> "+name+" ("+key+")")
	return nil
}

func TestDeclareTopology(t *testing.T) {
	t.Parallel()

	cfg := ConsumerConfig{
		Exchange:           "vidkit.processing",
		Queue:              "vidkit.processing.completions",
		RoutingKey:         "completion.#",
		DeadLetterExchange: "vidkit.processing.dlx",
		DeadLetterQueue:    "vidkit.processing.completions.dead",
	}

	t.Run("rejected completions are dead-lettered", func(t *testing.T) {
		t.Parallel()
		d := &declared{exchanges: map[string]string{}, queues: map[string]amqp.Table{}}

		q, err := declareTopology(d, cfg)
		require.NoError(t, err)
		assert.Equal(t, cfg.Queue, q.Name)
		assert.Equal(t, map[string]string{cfg.Exchange: "topic", cfg.DeadLetterExchange: "fanout"}, d.exchanges)
		assert.Equal(t, cfg.DeadLetterExchange, d.queues[cfg.Queue]["x-dead-letter-exchange"])
		assert.Contains(t, d.queues, cfg.DeadLetterQueue)
		assert.ElementsMatch(t, []string{
			"vidkit.processing.dlx -> vidkit.processing.completions.dead ()",
			"vidkit.processing -> vidkit.processing.completions (completion.#)",
		}, d.bindings)
	})

	t.Run("without a dead-letter exchange", func(t *testing.T) {
		t.Parallel()
		d := &declared{exchanges: map[string]string{}, queues: map[string]amqp.Table{}}

		plain := cfg
		plain.DeadLetterExchange = ""
		_, err := declareTopology(d, plain)
		require.NoError(t, err)
		assert.Nil(t, d.queues[cfg.Queue])
		assert.Len(t, d.queues, 1)
	})
}

func TestConsumer_RunRequiresURL(t *testing.T) {
	t.Parallel()
	c := NewConsumer(ConsumerConfig{}, nil, logger.Discard())
	assert.ErrorIs(t, c.Run(context.Background()), ErrInvalidConfig)
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	b := ExponentialBackoff{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second}
	assert.Zero(t, b.NextInterval(0))
	assert.Equal(t, 100*time.Millisecond, b.NextInterval(1))
	assert.Equal(t, 400*time.Millisecond, b.NextInterval(3))
	assert.Equal(t, time.Second, b.NextInterval(10))

	jittered := ExponentialBackoff{InitialInterval: time.Second, JitterFactor: 0.5}
	for range 20 {
		d := jittered.NextInterval(1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

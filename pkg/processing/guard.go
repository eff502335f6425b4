package processing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/vidkit/pkg/logger"
)

// Guard bounds every provider call by a timeout and trips a circuit breaker
// on repeated transient failures. Calls return even when the wrapped provider
// ignores its context.
type Guard struct {
	next    Provider
	timeout time.Duration
	breaker *CircuitBreaker
	log     *slog.Logger
	observe func(op string, kind Kind, d time.Duration)
}

type GuardOption func(*Guard)

func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithCircuitBreaker(cb *CircuitBreaker) GuardOption {
	return func(g *Guard) { g.breaker = cb }
}

func WithGuardLogger(log *slog.Logger) GuardOption {
	return func(g *Guard) {
		if log != nil {
			g.log = log
		}
	}
}

// WithObserver is called after every call. kind is empty on success.
func WithObserver(fn func(op string, kind Kind, d time.Duration)) GuardOption {
	return func(g *Guard) { g.observe = fn }
}

func NewGuard(next Provider, opts ...GuardOption) *Guard {
	g := &Guard{
		next:    next,
		timeout: 2 * time.Minute,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) Submit(ctx context.Context, a Asset) (Handoff, error) {
	if err := a.Validate(); err != nil {
		return Handoff{}, Classify("submit", err)
	}
	return call(ctx, g, "submit", func(ctx context.Context) (Handoff, error) {
		return g.next.Submit(ctx, a)
	})
}

func (g *Guard) Confirm(ctx context.Context, h Handoff) (bool, error) {
	return call(ctx, g, "confirm", func(ctx context.Context) (bool, error) {
		return g.next.Confirm(ctx, h)
	})
}

type result[T any] struct {
	val T
	err error
}

func call[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if g.breaker != nil && !g.breaker.Allow() {
		return zero, &Error{Kind: Transient, Op: op, Err: ErrCircuitOpen}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	var res result[T]
	select {
	case res = <-done:
		res.err = Classify(op, res.err)
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		res.err = &Error{Kind: Transient, Op: op, Err: err}
	}

	var kind Kind
	if res.err != nil {
		kind = KindOf(res.err)
		g.log.WarnContext(ctx, "processing provider call failed",
			slog.String("op", op),
			slog.String("kind", string(kind)),
			logger.Duration(time.Since(start)),
			logger.Error(res.err),
		)
	}
	if g.breaker != nil {
		switch kind {
		case Transient:
			g.breaker.RecordFailure()
		default:
			g.breaker.RecordSuccess()
		}
	}
	if g.observe != nil {
		g.observe(op, kind, time.Since(start))
	}
	if res.err != nil {
		return zero, res.err
	}
	return res.val, nil
}

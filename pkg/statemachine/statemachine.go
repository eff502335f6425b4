// Package statemachine provides an immutable, table-driven transition
// function over comparable state and event types.
//
// A Machine holds no current state. Callers keep the state in their own
// records and ask the machine what the next state is, which lets persistence
// layers apply the result with compare-and-swap.
package statemachine

import (
	"context"
	"fmt"
)

// Guard decides at runtime whether a transition may be taken.
type Guard[S, E comparable] func(ctx context.Context, from S, event E, data any) bool

// Transition moves From to To when Event fires and every guard passes.
type Transition[S, E comparable] struct {
	From   S
	To     S
	Event  E
	Guards []Guard[S, E]
}

// Machine is safe for concurrent use once built.
type Machine[S, E comparable] struct {
	table map[S]map[E][]Transition[S, E]
}

// Option registers transitions while building a Machine.
type Option[S, E comparable] func(*Machine[S, E]) error

// WithTransition adds a transition. Several transitions for the same
// from/event pair are tried in registration order, first passing guard wins.
func WithTransition[S, E comparable](from, to S, event E, guards ...Guard[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		for _, g := range guards {
			if g == nil {
				return fmt.Errorf("%w: nil guard on %v -[%v]-> %v", ErrInvalidTransition, from, event, to)
			}
		}
		if m.table[from] == nil {
			m.table[from] = make(map[E][]Transition[S, E])
		}
		m.table[from][event] = append(m.table[from][event], Transition[S, E]{
			From: from, To: to, Event: event, Guards: guards,
		})
		return nil
	}
}

// WithFanIn adds the same event from every listed state to one target.
func WithFanIn[S, E comparable](to S, event E, from ...S) Option[S, E] {
	return func(m *Machine[S, E]) error {
		for _, f := range from {
			if err := WithTransition[S, E](f, to, event)(m); err != nil {
				return err
			}
		}
		return nil
	}
}

func New[S, E comparable](opts ...Option[S, E]) (*Machine[S, E], error) {
	m := &Machine[S, E]{table: make(map[S]map[E][]Transition[S, E])}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if len(m.table) == 0 {
		return nil, ErrNoTransitions
	}
	return m, nil
}

func MustNew[S, E comparable](opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Next returns the state reached by firing event in from.
func (m *Machine[S, E]) Next(ctx context.Context, from S, event E, data any) (S, error) {
	candidates, ok := m.table[from][event]
	if !ok {
		return from, &NoTransitionError{State: fmt.Sprint(from), Event: fmt.Sprint(event)}
	}
	for _, t := range candidates {
		if passes(ctx, t, data) {
			return t.To, nil
		}
	}
	return from, &RejectedError{State: fmt.Sprint(from), Event: fmt.Sprint(event)}
}

// Can reports whether event has any transition registered for from,
// ignoring guards.
func (m *Machine[S, E]) Can(from S, event E) bool {
	_, ok := m.table[from][event]
	return ok
}

// Events lists the events registered for from.
func (m *Machine[S, E]) Events(from S) []E {
	out := make([]E, 0, len(m.table[from]))
	for e := range m.table[from] {
		out = append(out, e)
	}
	return out
}

// Reachable reports whether to can be reached from from in any number of steps.
func (m *Machine[S, E]) Reachable(from, to S) bool {
	seen := map[S]bool{from: true}
	queue := []S{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ts := range m.table[cur] {
			for _, t := range ts {
				if t.To == to {
					return true
				}
				if !seen[t.To] {
					seen[t.To] = true
					queue = append(queue, t.To)
				}
			}
		}
	}
	return false
}

func passes[S, E comparable](ctx context.Context, t Transition[S, E], data any) bool {
	for _, g := range t.Guards {
		if !g(ctx, t.From, t.Event, data) {
			return false
		}
	}
	return true
}

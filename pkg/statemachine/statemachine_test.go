package statemachine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/statemachine"
)

type light string
type signal string

const (
	red    light = "red"
	green  light = "green"
	yellow light = "yellow"
	off    light = "off"

	next     signal = "next"
	shutdown signal = "shutdown"
)

func newLight(t *testing.T, guards ...statemachine.Guard[light, signal]) *statemachine.Machine[light, signal] {
	t.Helper()
	m, err := statemachine.New(
		statemachine.WithTransition[light, signal](red, green, next),
		statemachine.WithTransition[light, signal](green, yellow, next, guards...),
		statemachine.WithTransition[light, signal](yellow, red, next),
		statemachine.WithFanIn[light, signal](off, shutdown, red, green, yellow),
	)
	require.NoError(t, err)
	return m
}

func TestMachine_Next(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newLight(t)

	to, err := m.Next(ctx, red, next, nil)
	require.NoError(t, err)
	assert.Equal(t, green, to)

	to, err = m.Next(ctx, yellow, shutdown, nil)
	require.NoError(t, err)
	assert.Equal(t, off, to)

	to, err = m.Next(ctx, off, next, nil)
	assert.True(t, statemachine.IsNoTransition(err))
	assert.Equal(t, off, to)
}

func TestMachine_Guards(t *testing.T) {
	t.Parallel()

	allowed := func(_ context.Context, _ light, _ signal, data any) bool {
		ok, _ := data.(bool)
		return ok
	}
	m := newLight(t, allowed)

	_, err := m.Next(context.Background(), green, next, false)
	assert.True(t, statemachine.IsRejected(err))

	to, err := m.Next(context.Background(), green, next, true)
	require.NoError(t, err)
	assert.Equal(t, yellow, to)
}

func TestMachine_Introspection(t *testing.T) {
	t.Parallel()
	m := newLight(t)

	assert.True(t, m.Can(red, shutdown))
	assert.False(t, m.Can(off, shutdown))
	assert.ElementsMatch(t, []signal{next, shutdown}, m.Events(green))
	assert.True(t, m.Reachable(red, off))
	assert.False(t, m.Reachable(off, red))
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New[light, signal]()
	assert.ErrorIs(t, err, statemachine.ErrNoTransitions)

	_, err = statemachine.New(statemachine.WithTransition[light, signal](red, green, next, nil))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() { statemachine.MustNew[light, signal]() })
}

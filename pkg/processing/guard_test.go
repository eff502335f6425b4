package processing_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/processing"
)

// stubProvider answers every call with a fixed error, or blocks forever
// ignoring its context when stuck is set.
type stubProvider struct {
	mu    sync.Mutex
	err   error
	stuck bool
	calls int
}

func (p *stubProvider) Submit(context.Context, processing.Asset) (processing.Handoff, error) {
	p.mu.Lock()
	p.calls++
	stuck, err := p.stuck, p.err
	p.mu.Unlock()
	if stuck {
		select {}
	}
	if err != nil {
		return processing.Handoff{}, err
	}
	return processing.Handoff{StoragePointer: "mem://media/x"}, nil
}

func (p *stubProvider) Confirm(context.Context, processing.Handoff) (bool, error) {
	return true, p.err
}

func (p *stubProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testAsset() processing.Asset {
	return processing.Asset{
		TenantID:    uuid.New(),
		ResourceID:  uuid.New(),
		Filename:    "clip.MP4",
		ContentType: "video/mp4",
		Size:        3,
		Body:        bytes.NewReader([]byte("abc")),
	}
}

func TestGuard_Timeout(t *testing.T) {
	t.Parallel()

	g := processing.NewGuard(&stubProvider{stuck: true},
		processing.WithTimeout(50*time.Millisecond),
		processing.WithGuardLogger(logger.Discard()),
	)

	start := time.Now()
	_, err := g.Submit(context.Background(), testAsset())
	require.Error(t, err)
	assert.ErrorIs(t, err, processing.ErrTimeout)
	assert.Equal(t, processing.Transient, processing.KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGuard_InvalidAssetNeverReachesProvider(t *testing.T) {
	t.Parallel()

	p := &stubProvider{}
	g := processing.NewGuard(p, processing.WithGuardLogger(logger.Discard()))

	a := testAsset()
	a.Body = nil
	_, err := g.Submit(context.Background(), a)
	assert.ErrorIs(t, err, processing.ErrInvalidAsset)
	assert.True(t, processing.IsTerminal(err))
	assert.Zero(t, p.Calls())
}

func TestGuard_CircuitBreaker(t *testing.T) {
	t.Parallel()

	t.Run("opens after transient failures", func(t *testing.T) {
		t.Parallel()
		p := &stubProvider{err: errors.New("connection refused")}
		g := processing.NewGuard(p,
			processing.WithCircuitBreaker(processing.NewCircuitBreaker(3, 1, time.Hour)),
			processing.WithGuardLogger(logger.Discard()),
		)

		for range 3 {
			_, err := g.Submit(context.Background(), testAsset())
			require.Error(t, err)
		}
		_, err := g.Submit(context.Background(), testAsset())
		assert.ErrorIs(t, err, processing.ErrCircuitOpen)
		assert.Equal(t, 3, p.Calls())
	})

	t.Run("terminal failures keep it closed", func(t *testing.T) {
		t.Parallel()
		p := &stubProvider{err: &smithy.GenericAPIError{Code: "AccessDenied"}}
		cb := processing.NewCircuitBreaker(2, 1, time.Hour)
		g := processing.NewGuard(p, processing.WithCircuitBreaker(cb), processing.WithGuardLogger(logger.Discard()))

		for range 5 {
			_, err := g.Submit(context.Background(), testAsset())
			assert.True(t, processing.IsTerminal(err))
		}
		assert.Equal(t, processing.CircuitClosed, cb.State())
		assert.Equal(t, 5, p.Calls())
	})
}

func TestGuard_Observer(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		kinds []processing.Kind
	)
	p := &stubProvider{}
	g := processing.NewGuard(p,
		processing.WithGuardLogger(logger.Discard()),
		processing.WithObserver(func(op string, kind processing.Kind, _ time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, "submit", op)
			kinds = append(kinds, kind)
		}),
	)

	h, err := g.Submit(context.Background(), testAsset())
	require.NoError(t, err)
	assert.Equal(t, "mem://media/x", h.StoragePointer)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []processing.Kind{""}, kinds)
}

package processing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/processing"
)

func TestMemoryProvider(t *testing.T) {
	t.Parallel()

	t.Run("stores submitted bytes", func(t *testing.T) {
		t.Parallel()
		p := processing.NewMemoryProvider(false)
		a := testAsset()

		h, err := p.Submit(context.Background(), a)
		require.NoError(t, err)
		data, ok := p.Object(h.StoragePointer)
		require.True(t, ok)
		assert.Equal(t, []byte("abc"), data)
		assert.Equal(t, 1, p.Submits(a.ResourceID))

		confirmed, err := p.Confirm(context.Background(), h)
		require.NoError(t, err)
		assert.False(t, confirmed)

		p.MarkDerived(h.PreviewPointer)
		confirmed, err = p.Confirm(context.Background(), h)
		require.NoError(t, err)
		assert.True(t, confirmed)
	})

	t.Run("scripted failure", func(t *testing.T) {
		t.Parallel()
		p := processing.NewMemoryProvider(true)
		a := testAsset()
		p.Fail(a.ResourceID, &processing.Error{Kind: processing.Terminal, Op: "submit", Err: errors.New("unsupported codec")})

		_, err := p.Submit(context.Background(), a)
		assert.True(t, processing.IsTerminal(err))
	})

	t.Run("hold respects context", func(t *testing.T) {
		t.Parallel()
		p := processing.NewMemoryProvider(true)
		release := p.Hold()
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := p.Submit(ctx, testAsset())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

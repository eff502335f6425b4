package video_test

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
	"github.com/dmitrymomot/vidkit/pkg/video"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T, opts ...video.Option) (*video.Lifecycle, context.Context, *tenant.Scope, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	g := isolation.New(isolation.WithLogger(logger.Discard()))
	table := video.NewTable(g, video.NewMemoryStore())
	opts = append([]video.Option{video.WithLogger(logger.Discard()), video.WithClock(clk.Now)}, opts...)
	lc := video.NewLifecycle(table, opts...)

	ctx, scope, err := tenant.Begin(context.Background(), &tenant.Tenant{ID: uuid.New(), Slug: "acme", Status: tenant.StatusActive})
	require.NoError(t, err)
	t.Cleanup(scope.End)
	return lc, ctx, scope, clk
}

func TestLifecycle_HappyPath(t *testing.T) {
	t.Parallel()
	lc, ctx, s, _ := setup(t)

	r, err := lc.Create(ctx, s, "Launch keynote")
	require.NoError(t, err)
	assert.Equal(t, video.StatusDraft, r.Status)
	assert.Equal(t, s.TenantID(), r.TenantID)

	out, err := lc.MarkUploading(ctx, s, r.ID, 1024)
	require.NoError(t, err)
	assert.Equal(t, video.StatusUploading, out.To)

	out, err = lc.BeginProcessing(ctx, s, r.ID)
	require.NoError(t, err)
	assert.Equal(t, video.StatusProcessing, out.To)
	require.NotNil(t, out.Resource.ProcessingStartedAt)

	out, err = lc.CompleteProcessing(ctx, s, r.ID, video.Handoff{StoragePointer: "s3://bucket/key"})
	require.NoError(t, err)
	assert.Equal(t, video.StatusUploaded, out.To)
	assert.Equal(t, "s3://bucket/key", out.Resource.StoragePointer)

	out, err = lc.ConfirmAssets(ctx, s, r.ID)
	require.NoError(t, err)
	assert.Equal(t, video.StatusReady, out.To)
	assert.False(t, out.Ignored)
}

func TestLifecycle_CompleteWithAllAssets(t *testing.T) {
	t.Parallel()
	var moves []string
	lc, ctx, s, _ := setup(t, video.WithTransitionHook(func(from, to video.Status) {
		moves = append(moves, string(from)+">"+string(to))
	}))

	r, err := lc.Create(ctx, s, "clip")
	require.NoError(t, err)
	_, err = lc.MarkUploading(ctx, s, r.ID, 10)
	require.NoError(t, err)
	_, err = lc.BeginProcessing(ctx, s, r.ID)
	require.NoError(t, err)

	out, err := lc.CompleteProcessing(ctx, s, r.ID, video.Handoff{
		StoragePointer: "s3://b/k",
		PreviewPointer: "s3://b/k.jpg",
		AssetsComplete: true,
	})
	require.NoError(t, err)
	assert.Equal(t, video.StatusProcessing, out.From)
	assert.Equal(t, video.StatusReady, out.To)
	assert.Equal(t, "s3://b/k.jpg", out.Resource.PreviewPointer)
	assert.Equal(t, []string{
		"draft>uploading", "uploading>processing", "processing>uploaded", "uploaded>ready",
	}, moves)
}

func TestLifecycle_DuplicateSignalsIgnored(t *testing.T) {
	t.Parallel()
	lc, ctx, s, _ := setup(t)

	r, _ := lc.Create(ctx, s, "clip")
	_, _ = lc.MarkUploading(ctx, s, r.ID, 10)
	_, _ = lc.BeginProcessing(ctx, s, r.ID)
	_, err := lc.CompleteProcessing(ctx, s, r.ID, video.Handoff{StoragePointer: "p1", AssetsComplete: true})
	require.NoError(t, err)

	out, err := lc.CompleteProcessing(ctx, s, r.ID, video.Handoff{StoragePointer: "p2"})
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Equal(t, "p1", out.Resource.StoragePointer)

	out, err = lc.FailProcessing(ctx, s, r.ID, "late failure")
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Equal(t, video.StatusReady, out.Resource.Status)

	out, err = lc.ConfirmAssets(ctx, s, r.ID)
	require.NoError(t, err)
	assert.True(t, out.Ignored)
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	t.Parallel()
	lc, ctx, s, _ := setup(t)

	r, _ := lc.Create(ctx, s, "clip")

	_, err := lc.FailProcessing(ctx, s, r.ID, "x")
	assert.ErrorIs(t, err, video.ErrInvalidTransition, "failed is only reachable from processing")

	_, err = lc.BeginProcessing(ctx, s, r.ID)
	assert.ErrorIs(t, err, video.ErrInvalidTransition)

	_, err = lc.CompleteProcessing(ctx, s, r.ID, video.Handoff{})
	assert.ErrorIs(t, err, video.ErrInvalidHandoff)

	_, err = lc.MarkUploading(ctx, s, uuid.New(), 1)
	assert.ErrorIs(t, err, video.ErrNotFound)

	got, err := lc.Get(ctx, s, r.ID)
	require.NoError(t, err)
	assert.Equal(t, video.StatusDraft, got.Status)
}

func TestLifecycle_DeleteAndRetry(t *testing.T) {
	t.Parallel()
	lc, ctx, s, _ := setup(t)

	r, _ := lc.Create(ctx, s, "clip")
	_, _ = lc.MarkUploading(ctx, s, r.ID, 10)
	_, _ = lc.BeginProcessing(ctx, s, r.ID)
	_, err := lc.FailProcessing(ctx, s, r.ID, "codec rejected")
	require.NoError(t, err)

	_, err = lc.Retry(ctx, s, uuid.New())
	assert.ErrorIs(t, err, video.ErrNotFound)

	retry, err := lc.Retry(ctx, s, r.ID)
	require.NoError(t, err)
	assert.Equal(t, video.StatusDraft, retry.Status)
	require.NotNil(t, retry.RetryOf)
	assert.Equal(t, r.ID, *retry.RetryOf)

	_, err = lc.Retry(ctx, s, retry.ID)
	assert.ErrorIs(t, err, video.ErrNotRetryable)

	failed, err := lc.Get(ctx, s, r.ID)
	require.NoError(t, err)
	assert.Equal(t, video.StatusFailed, failed.Status)
	assert.Equal(t, "codec rejected", failed.FailureReason)

	out, err := lc.Delete(ctx, s, r.ID)
	require.NoError(t, err)
	assert.Equal(t, video.StatusDeleted, out.To)
	assert.True(t, out.Resource.IsDeleted)

	out, err = lc.Delete(ctx, s, r.ID)
	require.NoError(t, err)
	assert.True(t, out.Ignored)

	listed, err := lc.List(ctx, s, video.Filter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, retry.ID, listed[0].ID)

	all, err := lc.List(ctx, s, video.Filter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLifecycle_ExpireProcessing(t *testing.T) {
	t.Parallel()
	lc, ctx, s, clk := setup(t)

	stale, _ := lc.Create(ctx, s, "stale")
	_, _ = lc.MarkUploading(ctx, s, stale.ID, 1)
	_, _ = lc.BeginProcessing(ctx, s, stale.ID)

	clk.Advance(20 * time.Minute)

	fresh, _ := lc.Create(ctx, s, "fresh")
	_, _ = lc.MarkUploading(ctx, s, fresh.ID, 1)
	_, _ = lc.BeginProcessing(ctx, s, fresh.ID)

	n, err := lc.ExpireProcessing(ctx, s, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := lc.Get(ctx, s, stale.ID)
	assert.Equal(t, video.StatusFailed, got.Status)
	assert.Equal(t, "processing timed out", got.FailureReason)

	got, _ = lc.Get(ctx, s, fresh.ID)
	assert.Equal(t, video.StatusProcessing, got.Status)
}

func TestLifecycle_ConcurrentCompletionAppliesOnce(t *testing.T) {
	t.Parallel()
	lc, ctx, s, _ := setup(t)

	r, _ := lc.Create(ctx, s, "clip")
	_, _ = lc.MarkUploading(ctx, s, r.ID, 1)
	_, _ = lc.BeginProcessing(ctx, s, r.ID)

	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out video.Outcome
			var err error
			if i%2 == 0 {
				out, err = lc.CompleteProcessing(ctx, s, r.ID, video.Handoff{StoragePointer: "p"})
			} else {
				out, err = lc.FailProcessing(ctx, s, r.ID, "boom")
			}
			if assert.NoError(t, err) && !out.Ignored {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), applied.Load())
}

// Random event sequences must respect the lifecycle ordering.
func TestMachine_Monotonicity(t *testing.T) {
	t.Parallel()

	events := []video.Event{
		video.EventUploadStarted, video.EventHandoffStarted, video.EventProcessingSucceeded,
		video.EventAssetsConfirmed, video.EventProcessingFailed, video.EventDeleted,
	}
	rng := rand.New(rand.NewPCG(7, 11))
	ctx := context.Background()

	for range 2000 {
		state := video.StatusDraft
		seen := map[video.Status]bool{state: true}
		for range 12 {
			e := events[rng.IntN(len(events))]
			next, err := video.Machine.Next(ctx, state, e, nil)
			if err != nil {
				continue
			}
			switch next {
			case video.StatusReady:
				require.True(t, seen[video.StatusProcessing] && seen[video.StatusUploaded])
			case video.StatusFailed:
				require.Equal(t, video.StatusProcessing, state)
			}
			if state == video.StatusReady || state == video.StatusFailed {
				require.Equal(t, video.StatusDeleted, next)
			}
			state = next
			seen[state] = true
		}
	}

	assert.False(t, video.Machine.Reachable(video.StatusReady, video.StatusUploading))
	assert.False(t, video.Machine.Reachable(video.StatusFailed, video.StatusProcessing))
	assert.False(t, video.Machine.Reachable(video.StatusDeleted, video.StatusDraft))
}

package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

func TestMemoryCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("get and set", func(t *testing.T) {
		t.Parallel()
		c := tenant.NewMemoryCache(10)
		acme := newTenant("acme", tenant.StatusActive)
		c.Set(ctx, "slug:acme", []*tenant.Tenant{acme}, time.Minute)

		got, ok := c.Get(ctx, "slug:acme")
		require.True(t, ok)
		require.Len(t, got, 1)
		assert.Equal(t, acme.ID, got[0].ID)

		got[0].Slug = "mutated"
		again, _ := c.Get(ctx, "slug:acme")
		assert.Equal(t, "acme", again[0].Slug)
	})

	t.Run("expires", func(t *testing.T) {
		t.Parallel()
		c := tenant.NewMemoryCache(10)
		c.Set(ctx, "k", []*tenant.Tenant{newTenant("acme", tenant.StatusActive)}, -time.Second)
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		t.Parallel()
		c := tenant.NewMemoryCache(2)
		c.Set(ctx, "a", []*tenant.Tenant{newTenant("a", tenant.StatusActive)}, time.Minute)
		c.Set(ctx, "b", []*tenant.Tenant{newTenant("b", tenant.StatusActive)}, time.Minute)
		_, _ = c.Get(ctx, "a")
		c.Set(ctx, "c", []*tenant.Tenant{newTenant("c", tenant.StatusActive)}, time.Minute)

		_, okA := c.Get(ctx, "a")
		_, okB := c.Get(ctx, "b")
		_, okC := c.Get(ctx, "c")
		assert.True(t, okA)
		assert.False(t, okB)
		assert.True(t, okC)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		c := tenant.NewMemoryCache(10)
		c.Set(ctx, "k", []*tenant.Tenant{newTenant("acme", tenant.StatusActive)}, time.Minute)
		c.Delete(ctx, "k", "missing")
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)
	})
}

func TestCachedDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	acme := newTenant("acme", tenant.StatusActive, "video.acme.com")
	dir := newDirectory(t, acme)
	counting := &countingDirectory{Directory: dir}
	cached := tenant.NewCachedDirectory(counting, tenant.NewMemoryCache(10), time.Minute)

	for range 3 {
		got, err := cached.BySlug(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, acme.ID, got.ID)
	}
	assert.Equal(t, 1, counting.calls)

	_, err := cached.BySlug(ctx, "ghost")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	_, err = cached.BySlug(ctx, "ghost")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	assert.Equal(t, 3, counting.calls)

	require.NoError(t, dir.SetStatus(acme.ID, tenant.StatusSuspended, "abuse"))
	stale, err := cached.BySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusActive, stale.Status)

	cached.Invalidate(ctx, acme)
	fresh, err := cached.BySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusSuspended, fresh.Status)
	assert.Equal(t, "abuse", fresh.SuspensionReason)
}

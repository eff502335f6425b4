package tenant_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

func TestLoadSeed(t *testing.T) {
	t.Parallel()

	t.Run("valid seed", func(t *testing.T) {
		t.Parallel()
		src := `
tenants:
  - id: 3f1c2a1e-8a8b-4a4e-9d3f-0c6f7c1d2e01
    name: Acme
    slug: acme
    domains: [Video.Acme.com]
  - id: 3f1c2a1e-8a8b-4a4e-9d3f-0c6f7c1d2e02
    name: Beta
    slug: beta
    status: suspended
    suspension_reason: unpaid
`
		tenants, err := tenant.LoadSeed(strings.NewReader(src))
		require.NoError(t, err)
		require.Len(t, tenants, 2)
		assert.Equal(t, tenant.StatusActive, tenants[0].Status)
		assert.Equal(t, "unpaid", tenants[1].SuspensionReason)

		dir, err := tenant.NewMemoryDirectory(tenants...)
		require.NoError(t, err)
		bound, err := dir.ByDomain(context.Background(), "video.acme.com")
		require.NoError(t, err)
		require.Len(t, bound, 1)
		assert.Equal(t, "acme", bound[0].Slug)
	})

	t.Run("invalid slug", func(t *testing.T) {
		t.Parallel()
		src := `
tenants:
  - id: 3f1c2a1e-8a8b-4a4e-9d3f-0c6f7c1d2e01
    slug: "Not A Slug"
`
		_, err := tenant.LoadSeed(strings.NewReader(src))
		assert.ErrorIs(t, err, tenant.ErrInvalidSlug)
	})

	t.Run("empty document", func(t *testing.T) {
		t.Parallel()
		tenants, err := tenant.LoadSeed(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, tenants)
	})
}

func TestMemoryDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	acme := newTenant("acme", tenant.StatusActive)
	dir := newDirectory(t, acme, newTenant("beta", tenant.StatusSuspended))

	dup := newTenant("acme", tenant.StatusActive)
	assert.ErrorIs(t, dir.Add(dup), tenant.ErrDuplicateSlug)

	active, err := dir.List(ctx, tenant.ListFilter{Statuses: []tenant.Status{tenant.StatusActive, tenant.StatusTrial}})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, acme.ID, active[0].ID)

	all, err := dir.List(ctx, tenant.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = dir.ByID(ctx, dup.ID)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

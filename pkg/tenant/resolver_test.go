package tenant_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

type failingDirectory struct{ tenant.Directory }

func (failingDirectory) ByDomain(context.Context, string) ([]*tenant.Tenant, error) {
	return nil, errors.New("connection refused")
}

type countingDirectory struct {
	tenant.Directory
	calls int
}

func (d *countingDirectory) BySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	d.calls++
	return d.Directory.BySlug(ctx, slug)
}

func (d *countingDirectory) ByDomain(ctx context.Context, host string) ([]*tenant.Tenant, error) {
	d.calls++
	return d.Directory.ByDomain(ctx, host)
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	acme := newTenant("acme", tenant.StatusActive, "video.acme.com")
	trial := newTenant("trialco", tenant.StatusTrial)
	beta := newTenant("beta", tenant.StatusSuspended)
	beta.SuspensionReason = "payment overdue"
	dir := newDirectory(t, acme, trial, beta)

	r := tenant.NewResolver(dir,
		tenant.WithBaseDomain("vidkit.io"),
		tenant.WithExemptPrefixes("/health", "/webhooks/"),
		tenant.WithResolverLogger(logger.Discard()),
	)

	tests := []struct {
		name     string
		req      tenant.Request
		kind     tenant.Kind
		tenantID uuid.UUID
	}{
		{"custom domain", tenant.Request{Host: "video.acme.com"}, tenant.Resolved, acme.ID},
		{"custom domain with port and case", tenant.Request{Host: "Video.Acme.com:443"}, tenant.Resolved, acme.ID},
		{"subdomain", tenant.Request{Host: "acme.vidkit.io"}, tenant.Resolved, acme.ID},
		{"trial tenant resolves", tenant.Request{Host: "trialco.vidkit.io"}, tenant.Resolved, trial.ID},
		{"override wins over host", tenant.Request{Host: "acme.vidkit.io", OverrideSlug: "trialco"}, tenant.Resolved, trial.ID},
		{"unknown override does not fall through", tenant.Request{Host: "acme.vidkit.io", OverrideSlug: "ghost"}, tenant.NotFound, uuid.Nil},
		{"invalid override", tenant.Request{Host: "acme.vidkit.io", OverrideSlug: "../x"}, tenant.NotFound, uuid.Nil},
		{"unknown subdomain", tenant.Request{Host: "ghost.vidkit.io"}, tenant.NotFound, uuid.Nil},
		{"nested subdomain", tenant.Request{Host: "a.acme.vidkit.io"}, tenant.NotFound, uuid.Nil},
		{"www is not a tenant", tenant.Request{Host: "www.vidkit.io"}, tenant.NotFound, uuid.Nil},
		{"base domain itself", tenant.Request{Host: "vidkit.io"}, tenant.NotFound, uuid.Nil},
		{"foreign host", tenant.Request{Host: "example.com"}, tenant.NotFound, uuid.Nil},
		{"empty host", tenant.Request{}, tenant.NotFound, uuid.Nil},
		{"suspended", tenant.Request{Host: "beta.vidkit.io"}, tenant.Suspended, beta.ID},
		{"exempt path", tenant.Request{Host: "ghost.vidkit.io", Path: "/health/live"}, tenant.Exempt, uuid.Nil},
		{"webhook path", tenant.Request{Path: "/webhooks/processing"}, tenant.Exempt, uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := r.Resolve(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, res.Kind)
			if tt.tenantID != uuid.Nil {
				require.NotNil(t, res.Tenant)
				assert.Equal(t, tt.tenantID, res.Tenant.ID)
			} else {
				assert.Nil(t, res.Tenant)
			}
		})
	}
}

func TestResolver_SuspendedCarriesReason(t *testing.T) {
	t.Parallel()

	beta := newTenant("beta", tenant.StatusSuspended)
	beta.SuspensionReason = "payment overdue"
	r := tenant.NewResolver(newDirectory(t, beta), tenant.WithResolverLogger(logger.Discard()))

	res, err := r.Resolve(context.Background(), tenant.Request{OverrideSlug: "beta"})
	require.NoError(t, err)
	assert.Equal(t, tenant.Suspended, res.Kind)
	assert.Equal(t, "payment overdue", res.Reason)
}

func TestResolver_Ambiguous(t *testing.T) {
	t.Parallel()

	t.Run("two tenants bound to one domain", func(t *testing.T) {
		t.Parallel()
		a := newTenant("one", tenant.StatusActive, "shared.example.com")
		b := newTenant("two", tenant.StatusActive, "shared.example.com")
		r := tenant.NewResolver(newDirectory(t, a, b), tenant.WithResolverLogger(logger.Discard()))

		res, err := r.Resolve(context.Background(), tenant.Request{Host: "shared.example.com"})
		require.NoError(t, err)
		assert.Equal(t, tenant.Ambiguous, res.Kind)
		assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, res.Candidates)
		assert.Nil(t, res.Tenant)
	})

	t.Run("domain binding collides with another tenant's subdomain", func(t *testing.T) {
		t.Parallel()
		a := newTenant("acme", tenant.StatusActive)
		b := newTenant("other", tenant.StatusActive, "acme.vidkit.io")
		r := tenant.NewResolver(newDirectory(t, a, b),
			tenant.WithBaseDomain("vidkit.io"),
			tenant.WithResolverLogger(logger.Discard()),
		)

		res, err := r.Resolve(context.Background(), tenant.Request{Host: "acme.vidkit.io"})
		require.NoError(t, err)
		assert.Equal(t, tenant.Ambiguous, res.Kind)
	})

	t.Run("domain binding and subdomain of the same tenant", func(t *testing.T) {
		t.Parallel()
		a := newTenant("acme", tenant.StatusActive, "acme.vidkit.io")
		r := tenant.NewResolver(newDirectory(t, a),
			tenant.WithBaseDomain("vidkit.io"),
			tenant.WithResolverLogger(logger.Discard()),
		)

		res, err := r.Resolve(context.Background(), tenant.Request{Host: "acme.vidkit.io"})
		require.NoError(t, err)
		assert.Equal(t, tenant.Resolved, res.Kind)
	})
}

func TestResolver_ExemptSkipsDirectory(t *testing.T) {
	t.Parallel()

	dir := &countingDirectory{Directory: newDirectory(t)}
	r := tenant.NewResolver(dir, tenant.WithExemptPrefixes("/docs"))

	res, err := r.Resolve(context.Background(), tenant.Request{Host: "x.example.com", Path: "/docs/api"})
	require.NoError(t, err)
	assert.Equal(t, tenant.Exempt, res.Kind)
	assert.Zero(t, dir.calls)
}

func TestResolver_DirectoryFailure(t *testing.T) {
	t.Parallel()

	r := tenant.NewResolver(failingDirectory{Directory: newDirectory(t)})
	res, err := r.Resolve(context.Background(), tenant.Request{Host: "acme.example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, tenant.ErrDirectoryFailure)
	assert.Equal(t, tenant.NotFound, res.Kind)
}

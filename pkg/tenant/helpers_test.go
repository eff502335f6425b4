package tenant_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

func newTenant(slug string, status tenant.Status, domains ...string) *tenant.Tenant {
	return &tenant.Tenant{
		ID:        uuid.New(),
		Name:      slug,
		Slug:      slug,
		Domains:   domains,
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func newDirectory(t *testing.T, tenants ...*tenant.Tenant) *tenant.MemoryDirectory {
	t.Helper()
	dir, err := tenant.NewMemoryDirectory(tenants...)
	require.NoError(t, err)
	return dir
}

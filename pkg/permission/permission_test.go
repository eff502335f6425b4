package permission_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/permission"
)

func gateway() *isolation.Gateway {
	return isolation.New(isolation.WithLogger(logger.Discard()), isolation.WithGlobal(permission.TableName))
}

func TestCatalog_RequiresWhitelist(t *testing.T) {
	t.Parallel()

	_, err := permission.NewMemoryCatalog(isolation.New(isolation.WithLogger(logger.Discard())))
	require.ErrorIs(t, err, isolation.ErrNotWhitelisted)

	catalog, err := permission.NewMemoryCatalog(gateway())
	require.NoError(t, err)
	perms, err := catalog.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, permission.DefaultCatalog(), perms)
}

func TestAuthorizer_DefaultRoles(t *testing.T) {
	t.Parallel()
	catalog, err := permission.NewMemoryCatalog(gateway())
	require.NoError(t, err)
	a, err := permission.NewAuthorizer(context.Background(), permission.DefaultRoles(), catalog)
	require.NoError(t, err)

	tests := []struct {
		role, perm string
		err        error
	}{
		{permission.RoleViewer, permission.VideosRead, nil},
		{permission.RoleViewer, permission.VideosWrite, permission.ErrInsufficientPermissions},
		{permission.RoleViewer, permission.UploadsWrite, permission.ErrInsufficientPermissions},
		{permission.RoleEditor, permission.VideosDelete, nil},
		{permission.RoleEditor, permission.UploadsWrite, nil},
		{permission.RoleEditor, permission.VideosRead, nil},
		{permission.RoleEditor, permission.BillingRead, permission.ErrInsufficientPermissions},
		{permission.RoleOwner, permission.BillingRead, nil},
		{"intern", permission.VideosRead, permission.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.perm, func(t *testing.T) {
			t.Parallel()
			err := a.Can(tt.role, tt.perm)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.Equal(t, []string{"editor", "owner", "viewer"}, a.Roles())
}

func TestAuthorizer_Validation(t *testing.T) {
	t.Parallel()
	catalog, err := permission.NewMemoryCatalog(gateway())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = permission.NewAuthorizer(ctx, map[string]permission.Role{
		"a": {Inherits: []string{"b"}},
		"b": {Inherits: []string{"a"}},
	}, nil)
	assert.ErrorIs(t, err, permission.ErrCircularInheritance)

	_, err = permission.NewAuthorizer(ctx, map[string]permission.Role{
		"a": {Inherits: []string{"missing"}},
	}, nil)
	assert.ErrorIs(t, err, permission.ErrInvalidRole)

	_, err = permission.NewAuthorizer(ctx, map[string]permission.Role{
		"a": {Permissions: []string{"videos.publish"}},
	}, catalog)
	assert.ErrorIs(t, err, permission.ErrUnknownPermission)

	// a prefix wildcard must stop at a segment boundary
	a, err := permission.NewAuthorizer(ctx, map[string]permission.Role{
		"a": {Permissions: []string{"video*"}},
	}, catalog)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Can("a", permission.VideosRead), permission.ErrInsufficientPermissions)
}

package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/vidkit/pkg/permission"
)

// PermissionStore reads the global permission catalog.
type PermissionStore struct {
	pool *pgxpool.Pool
}

func NewPermissionStore(pool *pgxpool.Pool) *PermissionStore {
	return &PermissionStore{pool: pool}
}

func (s *PermissionStore) List(ctx context.Context) ([]permission.Permission, error) {
	return getMany(ctx, s.pool, func(row pgx.Row) (permission.Permission, error) {
		var p permission.Permission
		err := row.Scan(&p.Key, &p.Description)
		return p, err
	}, `SELECT key, description FROM permissions ORDER BY key`)
}

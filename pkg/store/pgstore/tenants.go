package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/pg"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

const tenantColumns = `id, name, slug, domains, status, suspension_reason, plan_quota_bytes, created_at`

// TenantDirectory is the tenant.Directory backed by the tenants table.
type TenantDirectory struct {
	pool *pgxpool.Pool
}

func NewTenantDirectory(pool *pgxpool.Pool) *TenantDirectory {
	return &TenantDirectory{pool: pool}
}

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var (
		t      tenant.Tenant
		status string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Domains, &status, &t.SuspensionReason, &t.PlanQuotaBytes, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = tenant.Status(status)
	return &t, nil
}

func (d *TenantDirectory) ByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return d.one(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
}

func (d *TenantDirectory) BySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return d.one(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
}

func (d *TenantDirectory) ByDomain(ctx context.Context, host string) ([]*tenant.Tenant, error) {
	host = tenant.NormalizeHost(host)
	if host == "" {
		return nil, nil
	}
	return getMany(ctx, d.pool, scanTenant,
		`SELECT `+tenantColumns+` FROM tenants WHERE $1 = ANY(domains) ORDER BY created_at, id`, host)
}

func (d *TenantDirectory) List(ctx context.Context, filter tenant.ListFilter) ([]*tenant.Tenant, error) {
	var w where
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		w.add("status = ANY($%d)", statuses)
	}
	return getMany(ctx, d.pool, scanTenant,
		`SELECT `+tenantColumns+` FROM tenants`+w.String()+` ORDER BY created_at, id`, w.args...)
}

// Save inserts t or updates the existing row with its id.
func (d *TenantDirectory) Save(ctx context.Context, t *tenant.Tenant) error {
	if err := t.Validate(); err != nil {
		return err
	}
	domains := make([]string, len(t.Domains))
	for i, dom := range t.Domains {
		domains[i] = tenant.NormalizeHost(dom)
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			domains = EXCLUDED.domains,
			status = EXCLUDED.status,
			suspension_reason = EXCLUDED.suspension_reason,
			plan_quota_bytes = EXCLUDED.plan_quota_bytes`,
		t.ID, t.Name, t.Slug, domains, string(t.Status), t.SuspensionReason, t.PlanQuotaBytes, created,
	)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(tenant.ErrDuplicateSlug, err)
	}
	return err
}

// SetStatus changes the status of a tenant, recording reason for suspensions.
func (d *TenantDirectory) SetStatus(ctx context.Context, id uuid.UUID, status tenant.Status, reason string) error {
	if !status.Valid() {
		return tenant.ErrInvalidTenant
	}
	if status != tenant.StatusSuspended {
		reason = ""
	}
	tag, err := d.pool.Exec(ctx, `UPDATE tenants SET status = $2, suspension_reason = $3 WHERE id = $1`, id, string(status), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

func (d *TenantDirectory) one(ctx context.Context, sql string, arg any) (*tenant.Tenant, error) {
	t, err := getOne(ctx, d.pool, scanTenant, sql, arg)
	if errors.Is(err, isolation.ErrNotFound) {
		return nil, tenant.ErrTenantNotFound
	}
	return t, err
}

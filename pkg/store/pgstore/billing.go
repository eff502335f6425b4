package pgstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/vidkit/svc/billing"
)

// UsageStore implements billing.UsageStore.
type UsageStore struct {
	pool *pgxpool.Pool
}

func NewUsageStore(pool *pgxpool.Pool) *UsageStore {
	return &UsageStore{pool: pool}
}

const usageColumns = `id, tenant_id, period_key, videos, bytes, updated_at`

func scanUsage(row pgx.Row) (*billing.Usage, error) {
	var u billing.Usage
	if err := row.Scan(&u.ID, &u.TenantID, &u.PeriodKey, &u.Videos, &u.Bytes, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UsageStore) Get(ctx context.Context, tenantID, id uuid.UUID) (*billing.Usage, error) {
	return getOne(ctx, s.pool, scanUsage,
		`SELECT `+usageColumns+` FROM usage WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (s *UsageStore) List(ctx context.Context, tenantID uuid.UUID, f billing.UsageFilter) ([]*billing.Usage, error) {
	return getMany(ctx, s.pool, scanUsage,
		`SELECT `+usageColumns+` FROM usage WHERE tenant_id = $1 AND period_key LIKE $2 || '%' ORDER BY period_key`,
		tenantID, f.PeriodPrefix)
}

func (s *UsageStore) Insert(ctx context.Context, u *billing.Usage) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO usage (`+usageColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.TenantID, u.PeriodKey, u.Videos, u.Bytes, u.UpdatedAt)
	return insertErr(err)
}

func (s *UsageStore) Update(ctx context.Context, tenantID, id uuid.UUID, fn func(*billing.Usage) (*billing.Usage, error)) (*billing.Usage, error) {
	return updateLocked(ctx, s.pool, scanUsage,
		`SELECT `+usageColumns+` FROM usage WHERE tenant_id = $1 AND id = $2`,
		[]any{tenantID, id}, fn,
		func(ctx context.Context, tx pgx.Tx, u *billing.Usage) error {
			_, err := tx.Exec(ctx, `UPDATE usage SET videos = $3, bytes = $4, updated_at = $5
				WHERE tenant_id = $1 AND id = $2`, tenantID, id, u.Videos, u.Bytes, u.UpdatedAt)
			return err
		})
}

// InvoiceStore implements billing.InvoiceStore.
type InvoiceStore struct {
	pool *pgxpool.Pool
}

func NewInvoiceStore(pool *pgxpool.Pool) *InvoiceStore {
	return &InvoiceStore{pool: pool}
}

const invoiceColumns = `id, tenant_id, period_key, quota_bytes, peak_bytes, overage_bytes, amount_cents, created_at, updated_at`

func scanInvoice(row pgx.Row) (*billing.Invoice, error) {
	var i billing.Invoice
	err := row.Scan(&i.ID, &i.TenantID, &i.PeriodKey, &i.QuotaBytes, &i.PeakBytes, &i.OverageBytes,
		&i.AmountCents, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *InvoiceStore) Get(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	return getOne(ctx, s.pool, scanInvoice,
		`SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (s *InvoiceStore) List(ctx context.Context, tenantID uuid.UUID, f billing.InvoiceFilter) ([]*billing.Invoice, error) {
	var w where
	w.add("tenant_id = $%d", tenantID)
	if f.PeriodKey != "" {
		w.add("period_key = $%d", f.PeriodKey)
	}
	return getMany(ctx, s.pool, scanInvoice,
		`SELECT `+invoiceColumns+` FROM invoices`+w.String()+` ORDER BY period_key`, w.args...)
}

func (s *InvoiceStore) Insert(ctx context.Context, i *billing.Invoice) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO invoices (`+invoiceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		i.ID, i.TenantID, i.PeriodKey, i.QuotaBytes, i.PeakBytes, i.OverageBytes, i.AmountCents, i.CreatedAt, i.UpdatedAt)
	return insertErr(err)
}

func (s *InvoiceStore) Update(ctx context.Context, tenantID, id uuid.UUID, fn func(*billing.Invoice) (*billing.Invoice, error)) (*billing.Invoice, error) {
	return updateLocked(ctx, s.pool, scanInvoice,
		`SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 AND id = $2`,
		[]any{tenantID, id}, fn,
		func(ctx context.Context, tx pgx.Tx, i *billing.Invoice) error {
			_, err := tx.Exec(ctx, `UPDATE invoices SET quota_bytes = $3, peak_bytes = $4, overage_bytes = $5,
				amount_cents = $6, updated_at = $7 WHERE tenant_id = $1 AND id = $2`,
				tenantID, id, i.QuotaBytes, i.PeakBytes, i.OverageBytes, i.AmountCents, i.UpdatedAt)
			return err
		})
}

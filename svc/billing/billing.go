package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

// namespace seeds the deterministic ids that make upserts idempotent.
var namespace = uuid.MustParse("7f3c1a52-5d0e-4b59-9a51-3c0f6f1d2e84")

const (
	hourLayout = "2006-01-02T15"
	dayLayout  = "2006-01-02"
)

// HourKey is the usage period containing t.
func HourKey(t time.Time) string { return t.UTC().Format(hourLayout) }

// DayKey is the invoice period containing t.
func DayKey(t time.Time) string { return t.UTC().Format(dayLayout) }

// Usage is the storage footprint of a tenant in one hour.
type Usage struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	PeriodKey string    `json:"period_key"`
	Videos    int       `json:"videos"`
	Bytes     int64     `json:"bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UsageID is the row id of tenantID's usage in period.
func UsageID(tenantID uuid.UUID, period string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("usage:"+tenantID.String()+":"+period))
}

func (u *Usage) GetID() uuid.UUID         { return u.ID }
func (u *Usage) GetTenantID() uuid.UUID   { return u.TenantID }
func (u *Usage) SetTenantID(id uuid.UUID) { u.TenantID = id }

func (u *Usage) Clone() *Usage {
	c := *u
	return &c
}

// UsageFilter selects usage rows whose period starts with PeriodPrefix.
type UsageFilter struct {
	PeriodPrefix string
}

func (f UsageFilter) Match(u *Usage) bool {
	return strings.HasPrefix(u.PeriodKey, f.PeriodPrefix)
}

// Invoice records storage overage of a tenant for one day.
type Invoice struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	PeriodKey    string    `json:"period_key"`
	QuotaBytes   int64     `json:"quota_bytes"`
	PeakBytes    int64     `json:"peak_bytes"`
	OverageBytes int64     `json:"overage_bytes"`
	AmountCents  int64     `json:"amount_cents"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func InvoiceID(tenantID uuid.UUID, period string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("invoice:"+tenantID.String()+":"+period))
}

func (i *Invoice) GetID() uuid.UUID         { return i.ID }
func (i *Invoice) GetTenantID() uuid.UUID   { return i.TenantID }
func (i *Invoice) SetTenantID(id uuid.UUID) { i.TenantID = id }

func (i *Invoice) Clone() *Invoice {
	c := *i
	return &c
}

type InvoiceFilter struct {
	PeriodKey string
}

func (f InvoiceFilter) Match(i *Invoice) bool {
	return f.PeriodKey == "" || i.PeriodKey == f.PeriodKey
}

type (
	UsageTable   = isolation.Table[*Usage, UsageFilter]
	UsageStore   = isolation.Store[*Usage, UsageFilter]
	InvoiceTable = isolation.Table[*Invoice, InvoiceFilter]
	InvoiceStore = isolation.Store[*Invoice, InvoiceFilter]
)

func NewUsageTable(g *isolation.Gateway, store UsageStore) *UsageTable {
	return isolation.NewTable[*Usage, UsageFilter](g, "usage", store)
}

func NewInvoiceTable(g *isolation.Gateway, store InvoiceStore) *InvoiceTable {
	return isolation.NewTable[*Invoice, InvoiceFilter](g, "invoices", store)
}

func NewMemoryUsageStore() *isolation.MemoryStore[*Usage, UsageFilter] {
	return isolation.NewMemoryStore((*Usage).Clone, func(u *Usage, f UsageFilter) bool { return f.Match(u) })
}

func NewMemoryInvoiceStore() *isolation.MemoryStore[*Invoice, InvoiceFilter] {
	return isolation.NewMemoryStore((*Invoice).Clone, func(i *Invoice, f InvoiceFilter) bool { return f.Match(i) })
}

// upsert inserts row or, when a row with its id exists, applies update to it.
func upsert[T isolation.Row, F any](ctx context.Context, table *isolation.Table[T, F], scope *tenant.Scope, row T, update func(cur T) T) (T, error) {
	out, err := table.Update(ctx, scope, row.GetID(), func(cur T) (T, error) { return update(cur), nil })
	if !errors.Is(err, isolation.ErrNotFound) {
		return out, err
	}
	out, err = table.Insert(ctx, scope, row)
	if errors.Is(err, isolation.ErrDuplicate) {
		return table.Update(ctx, scope, row.GetID(), func(cur T) (T, error) { return update(cur), nil })
	}
	return out, err
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

const gib = 1 << 30

// Overage returns the bytes above quota and their price. Every started GiB is billed.
func Overage(peak, quota, centsPerGiB int64) (bytes, cents int64) {
	if peak <= quota {
		return 0, 0
	}
	bytes = peak - quota
	return bytes, (bytes + gib - 1) / gib * centsPerGiB
}

// Invoicer turns yesterday's peak usage into an overage invoice.
type Invoicer struct {
	usage    *UsageTable
	invoices *InvoiceTable
	cfg      Config
	now      func() time.Time
	log      *slog.Logger
}

type InvoicerOption func(*Invoicer)

func WithInvoicerClock(now func() time.Time) InvoicerOption {
	return func(i *Invoicer) { i.now = now }
}

func WithInvoicerLogger(log *slog.Logger) InvoicerOption {
	return func(i *Invoicer) {
		if log != nil {
			i.log = log
		}
	}
}

func NewInvoicer(usage *UsageTable, invoices *InvoiceTable, cfg Config, opts ...InvoicerOption) *Invoicer {
	i := &Invoicer{usage: usage, invoices: invoices, cfg: cfg, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run invoices the previous UTC day for the scoped tenant.
func (i *Invoicer) Run(ctx context.Context, scope *tenant.Scope) error {
	_, err := i.InvoiceDay(ctx, scope, DayKey(i.now().UTC().AddDate(0, 0, -1)))
	return err
}

// InvoiceDay upserts the invoice for day. Days without overage produce no
// invoice unless one already exists, in which case it is zeroed.
func (i *Invoicer) InvoiceDay(ctx context.Context, scope *tenant.Scope, day string) (*Invoice, error) {
	t, ok := scope.Tenant()
	if !ok {
		return nil, tenant.ErrNoScope
	}

	rows, err := i.usage.List(ctx, scope, UsageFilter{PeriodPrefix: day})
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	var peak int64
	for _, r := range rows {
		peak = max(peak, r.Bytes)
	}

	quota := t.PlanQuotaBytes
	if quota <= 0 {
		quota = i.cfg.DefaultQuotaBytes
	}
	overage, amount := Overage(peak, quota, i.cfg.OverageCentsPerGiB)

	now := i.now().UTC()
	id := InvoiceID(t.ID, day)
	if overage == 0 {
		if _, err := i.invoices.Get(ctx, scope, id); errors.Is(err, isolation.ErrNotFound) {
			return nil, nil
		} else if err != nil {
			return nil, fmt.Errorf("load invoice: %w", err)
		}
	}

	inv, err := upsert(ctx, i.invoices, scope, &Invoice{
		ID:           id,
		PeriodKey:    day,
		QuotaBytes:   quota,
		PeakBytes:    peak,
		OverageBytes: overage,
		AmountCents:  amount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, func(cur *Invoice) *Invoice {
		cur.QuotaBytes, cur.PeakBytes = quota, peak
		cur.OverageBytes, cur.AmountCents = overage, amount
		cur.UpdatedAt = now
		return cur
	})
	if err != nil {
		return nil, fmt.Errorf("save invoice: %w", err)
	}

	i.log.InfoContext(ctx, "overage invoiced",
		logger.Component("billing"),
		slog.String("period", day),
		slog.Int64("overage_bytes", overage),
		slog.Int64("amount_cents", amount),
	)
	return inv, nil
}

// Invoices lists the scoped tenant's invoices.
func (i *Invoicer) Invoices(ctx context.Context, scope *tenant.Scope) ([]*Invoice, error) {
	return i.invoices.List(ctx, scope, InvoiceFilter{})
}

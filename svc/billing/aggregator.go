package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
	"github.com/dmitrymomot/vidkit/pkg/video"
)

// billable are the statuses whose bytes count towards storage usage.
var billable = []video.Status{video.StatusUploaded, video.StatusReady}

// UsageAggregator snapshots per-tenant storage usage into hourly rows.
type UsageAggregator struct {
	videos *video.Lifecycle
	usage  *UsageTable
	now    func() time.Time
	log    *slog.Logger
}

type AggregatorOption func(*UsageAggregator)

func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *UsageAggregator) { a.now = now }
}

func WithAggregatorLogger(log *slog.Logger) AggregatorOption {
	return func(a *UsageAggregator) {
		if log != nil {
			a.log = log
		}
	}
}

func NewUsageAggregator(videos *video.Lifecycle, usage *UsageTable, opts ...AggregatorOption) *UsageAggregator {
	a := &UsageAggregator{videos: videos, usage: usage, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sync recomputes the current hour's usage of the scoped tenant. Running it
// again in the same hour overwrites the row rather than adding a new one.
func (a *UsageAggregator) Sync(ctx context.Context, scope *tenant.Scope) error {
	resources, err := a.videos.List(ctx, scope, video.Filter{Statuses: billable})
	if err != nil {
		return fmt.Errorf("list billable videos: %w", err)
	}

	var total int64
	for _, r := range resources {
		total += r.SizeBytes
	}

	now := a.now().UTC()
	period := HourKey(now)
	row := &Usage{
		ID:        UsageID(scope.TenantID(), period),
		PeriodKey: period,
		Videos:    len(resources),
		Bytes:     total,
		UpdatedAt: now,
	}
	if _, err := upsert(ctx, a.usage, scope, row, func(cur *Usage) *Usage {
		cur.Videos, cur.Bytes, cur.UpdatedAt = row.Videos, row.Bytes, now
		return cur
	}); err != nil {
		return fmt.Errorf("save usage: %w", err)
	}

	a.log.DebugContext(ctx, "usage synced",
		logger.Component("billing"),
		slog.String("period", period),
		slog.Int("videos", row.Videos),
		slog.Int64("bytes", row.Bytes),
	)
	return nil
}

// Usage returns the scoped tenant's usage rows whose period starts with prefix.
func (a *UsageAggregator) Usage(ctx context.Context, scope *tenant.Scope, prefix string) ([]*Usage, error) {
	return a.usage.List(ctx, scope, UsageFilter{PeriodPrefix: prefix})
}

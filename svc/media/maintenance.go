package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/processing"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
	"github.com/dmitrymomot/vidkit/pkg/upload"
	"github.com/dmitrymomot/vidkit/pkg/video"
)

// Maintenance is the per-tenant work of the upload and processing jobs.
// Every method is safe to run repeatedly.
type Maintenance struct {
	uploads    *upload.Manager
	videos     *video.Lifecycle
	provider   processing.Provider
	staleAfter time.Duration
	log        *slog.Logger
}

func NewMaintenance(uploads *upload.Manager, videos *video.Lifecycle, provider processing.Provider, staleAfter time.Duration, log *slog.Logger) *Maintenance {
	if log == nil {
		log = slog.Default()
	}
	return &Maintenance{uploads: uploads, videos: videos, provider: provider, staleAfter: staleAfter, log: log}
}

// ExpireSessions expires the scoped tenant's idle upload sessions.
func (m *Maintenance) ExpireSessions(ctx context.Context, scope *tenant.Scope) error {
	n, err := m.uploads.ExpireIdle(ctx, scope)
	if n > 0 {
		m.log.InfoContext(ctx, "upload sessions expired", slog.Int("count", n))
	}
	return err
}

// ExpireProcessing fails resources stuck in processing for longer than the
// configured window.
func (m *Maintenance) ExpireProcessing(ctx context.Context, scope *tenant.Scope) error {
	n, err := m.videos.ExpireProcessing(ctx, scope, m.staleAfter)
	if n > 0 {
		m.log.WarnContext(ctx, "stale processing failed", slog.Int("count", n))
	}
	return err
}

// ConfirmAssets asks the provider whether the derived assets of every
// uploaded resource exist and moves confirmed ones to ready.
func (m *Maintenance) ConfirmAssets(ctx context.Context, scope *tenant.Scope) error {
	pending, err := m.videos.List(ctx, scope, video.Filter{Statuses: []video.Status{video.StatusUploaded}})
	if err != nil {
		return fmt.Errorf("list uploaded videos: %w", err)
	}

	var errs []error
	for _, r := range pending {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		ok, err := m.provider.Confirm(ctx, processing.Handoff{
			StoragePointer: r.StoragePointer,
			PreviewPointer: r.PreviewPointer,
		})
		if err != nil {
			m.log.WarnContext(ctx, "asset confirmation failed", logger.ResourceID(r.ID), logger.Error(err))
			errs = append(errs, fmt.Errorf("confirm %s: %w", r.ID, err))
			continue
		}
		if !ok {
			continue
		}
		if _, err := m.videos.ConfirmAssets(ctx, scope, r.ID); err != nil {
			errs = append(errs, fmt.Errorf("mark %s ready: %w", r.ID, err))
		}
	}
	return errors.Join(errs...)
}

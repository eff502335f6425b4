package media

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/processing"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
	"github.com/dmitrymomot/vidkit/pkg/video"
)

// TenantLookup finds the tenant a completion belongs to.
type TenantLookup interface {
	ByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// Applier applies provider completions to resources.
type Applier struct {
	tenants TenantLookup
	videos  *video.Lifecycle
	log     *slog.Logger
}

func NewApplier(tenants TenantLookup, videos *video.Lifecycle, log *slog.Logger) *Applier {
	if log == nil {
		log = slog.Default()
	}
	return &Applier{tenants: tenants, videos: videos, log: log}
}

// Apply fires the lifecycle event matching c inside a scope for c.TenantID.
// Repeated completions are ignored. Errors that redelivery cannot fix are
// classified terminal so callers stop retrying them.
func (a *Applier) Apply(ctx context.Context, c processing.Completion) (video.Outcome, error) {
	if err := c.Validate(); err != nil {
		return video.Outcome{}, terminal("apply", err)
	}

	t, err := a.tenants.ByID(ctx, c.TenantID)
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		a.log.WarnContext(ctx, "completion for unknown tenant",
			logger.TenantID(c.TenantID), logger.ResourceID(c.ResourceID))
		return video.Outcome{}, terminal("apply", err)
	case err != nil:
		return video.Outcome{}, &processing.Error{Kind: processing.Transient, Op: "apply", Err: err}
	}

	var out video.Outcome
	err = tenant.Run(ctx, t, func(ctx context.Context, scope *tenant.Scope) error {
		var err error
		switch c.Outcome {
		case processing.OutcomeSucceeded:
			out, err = a.videos.CompleteProcessing(ctx, scope, c.ResourceID, video.Handoff{
				StoragePointer: c.StoragePointer,
				PreviewPointer: c.PreviewPointer,
				AssetsComplete: c.AssetsComplete,
			})
		case processing.OutcomeAssetsReady:
			out, err = a.videos.ConfirmAssets(ctx, scope, c.ResourceID)
		case processing.OutcomeFailed:
			out, err = a.videos.FailProcessing(ctx, scope, c.ResourceID, c.Reason)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, video.ErrNotFound) || errors.Is(err, video.ErrInvalidTransition) || errors.Is(err, video.ErrInvalidHandoff) {
			a.log.WarnContext(ctx, "completion rejected",
				logger.TenantID(c.TenantID),
				logger.ResourceID(c.ResourceID),
				slog.String("outcome", string(c.Outcome)),
				logger.Error(err),
			)
			return out, terminal("apply", err)
		}
		return out, &processing.Error{Kind: processing.Transient, Op: "apply", Err: err}
	}

	a.log.InfoContext(ctx, "completion applied",
		logger.TenantID(c.TenantID),
		logger.ResourceID(c.ResourceID),
		logger.Status(string(out.To)),
		slog.Bool("ignored", out.Ignored),
	)
	return out, nil
}

// Handle adapts Apply to processing.CompletionHandler.
func (a *Applier) Handle(ctx context.Context, c processing.Completion) error {
	_, err := a.Apply(ctx, c)
	return err
}

func terminal(op string, err error) error {
	return &processing.Error{Kind: processing.Terminal, Op: op, Err: err}
}

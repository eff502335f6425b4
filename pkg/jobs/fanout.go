package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

// FanOut runs job.Work once per tenant listed by source, each inside its own
// tenant scope. A failing or panicking tenant is recorded and the next tenant
// still runs; only a failed enumeration or a cancelled context fails the run.
func FanOut(ctx context.Context, job Job, source TenantSource, log *slog.Logger) Report {
	if log == nil {
		log = slog.Default()
	}
	report := Report{Job: job.Name, RunID: uuid.New(), StartedAt: time.Now().UTC()}
	finish := func(o Outcome) Report {
		report.Outcome = o
		report.FinishedAt = time.Now().UTC()
		return report
	}

	tenants, err := source.List(ctx, tenant.ListFilter{Statuses: job.Statuses})
	if err != nil {
		report.Error = err.Error()
		log.ErrorContext(ctx, "job tenant enumeration failed", logger.Job(job.Name), logger.Error(err))
		return finish(OutcomeFailed)
	}
	report.Tenants = len(tenants)

	for _, t := range tenants {
		if err := ctx.Err(); err != nil {
			report.Error = err.Error()
			return finish(OutcomeFailed)
		}
		if err := runTenant(ctx, job, t); err != nil {
			report.Failures = append(report.Failures, TenantFailure{TenantID: t.ID, Slug: t.Slug, Error: err.Error()})
			log.ErrorContext(ctx, "job tenant work failed",
				logger.Job(job.Name),
				logger.TenantID(t.ID),
				logger.TenantSlug(t.Slug),
				logger.Error(err),
			)
			continue
		}
		report.Succeeded++
	}

	if len(report.Failures) > 0 {
		return finish(OutcomeSucceededWithFailures)
	}
	return finish(OutcomeSucceeded)
}

func runTenant(ctx context.Context, job Job, t *tenant.Tenant) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrTenantPanic, p)
		}
	}()

	if job.TenantTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.TenantTimeout)
		defer cancel()
	}
	return tenant.Run(ctx, t, func(ctx context.Context, scope *tenant.Scope) error {
		return job.Work(ctx, scope)
	})
}

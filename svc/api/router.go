package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/vidkit/handler"
	"github.com/dmitrymomot/vidkit/pkg/auth"
	"github.com/dmitrymomot/vidkit/pkg/binder"
	"github.com/dmitrymomot/vidkit/pkg/httpserver"
	"github.com/dmitrymomot/vidkit/pkg/jobs"
	"github.com/dmitrymomot/vidkit/pkg/metrics"
	"github.com/dmitrymomot/vidkit/pkg/permission"
	"github.com/dmitrymomot/vidkit/pkg/processing"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
	"github.com/dmitrymomot/vidkit/pkg/upload"
	"github.com/dmitrymomot/vidkit/pkg/video"
	"github.com/dmitrymomot/vidkit/svc/billing"
	"github.com/dmitrymomot/vidkit/svc/media"
)

// Deps are the services behind the routes. Metrics, Signer, Scheduler and
// the billing services are optional; their routes are skipped when nil.
type Deps struct {
	Resolver       *tenant.Resolver
	OverrideHeader string
	Auth           *auth.Service
	Authz          auth.Authorizer
	Videos         *video.Lifecycle
	Uploads        *upload.Manager
	Catalog        *permission.Catalog
	Signer         *processing.Signer
	Applier        *media.Applier
	Scheduler      *jobs.Scheduler
	Usage          *billing.UsageAggregator
	Invoicer       *billing.Invoicer
	Metrics        *metrics.Metrics
	Ready          []httpserver.Check
}

// NewRouter builds the HTTP handler of the service.
func NewRouter(cfg Config, d Deps, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	eh := handler.NewErrorHandler[Context](log, handler.WithErrorMapper(mapError))
	path := binder.Path(chi.URLParam)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, d.Ready...))

	if d.Signer != nil && d.Applier != nil {
		maxBody := cfg.WebhookMaxBody
		if maxBody <= 0 {
			maxBody = 64 << 10
		}
		wh := &webhookHandlers{signer: d.Signer, applier: d.Applier, maxBody: maxBody, log: log}
		r.Post("/webhooks/processing", wrap(eh, wh.processing))
	}

	if cfg.InternalToken != "" && d.Scheduler != nil {
		jh := &jobHandlers{scheduler: d.Scheduler}
		r.Route("/internal", func(r chi.Router) {
			r.Use(requireToken(cfg.InternalToken))
			r.Get("/jobs", wrap(eh, jh.list))
			r.Post("/jobs/{name}/run", wrap(eh, jh.run, path))
		})
	}

	vh := &videoHandlers{videos: d.Videos}
	uh := &uploadHandlers{uploads: d.Uploads}
	can := func(perm string) func(http.Handler) http.Handler {
		return auth.RequirePermission(d.Authz, perm, auth.WithLogger(log))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(tenant.Middleware(d.Resolver,
			tenant.WithOverrideHeader(d.OverrideHeader),
			tenant.WithMiddlewareLogger(log),
		))
		r.Use(auth.Middleware(d.Auth, auth.WithLogger(log)))

		r.With(can(permission.VideosRead)).Get("/videos", wrap(eh, vh.list, binder.Query()))
		r.With(can(permission.VideosWrite)).Post("/videos", wrap(eh, vh.create, binder.JSON()))
		r.With(can(permission.VideosRead)).Get("/videos/{id}", wrap(eh, vh.get, path))
		r.With(can(permission.VideosDelete)).Delete("/videos/{id}", wrap(eh, vh.delete, path))
		r.With(can(permission.VideosWrite)).Post("/videos/{id}/retry", wrap(eh, vh.retry, path))

		r.Group(func(r chi.Router) {
			r.Use(can(permission.UploadsWrite))
			r.Post("/videos/{id}/uploads", wrap(eh, uh.open, path, binder.JSON()))
			r.Patch("/uploads/{id}", wrap(eh, uh.append, path))
			r.Head("/uploads/{id}", wrap(eh, uh.status, path))
			r.Get("/uploads/{id}", wrap(eh, uh.status, path))
			r.Post("/uploads/{id}/complete", wrap(eh, uh.complete, path))
			r.Delete("/uploads/{id}", wrap(eh, uh.cancel, path))
		})

		if d.Catalog != nil {
			r.Get("/permissions", wrap(eh, func(ctx Context, _ struct{}) handler.Response {
				perms, err := d.Catalog.List(ctx)
				if err != nil {
					return handler.Fail(err)
				}
				return handler.JSON(perms)
			}))
		}

		if d.Usage != nil && d.Invoicer != nil {
			bh := &billingHandlers{usage: d.Usage, invoicer: d.Invoicer}
			r.With(can(permission.BillingRead)).Get("/usage", wrap(eh, bh.listUsage, binder.Query()))
			r.With(can(permission.BillingRead)).Get("/invoices", wrap(eh, bh.listInvoices))
		}
	})

	return r
}

package tenant

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/vidkit/pkg/logger"
)

// RejectHandler writes the response for a request that did not resolve to an
// active tenant. err is non-nil only for directory failures.
type RejectHandler func(w http.ResponseWriter, r *http.Request, res Resolution, err error)

type middlewareConfig struct {
	header string
	reject RejectHandler
	log    *slog.Logger
}

type MiddlewareOption func(*middlewareConfig)

// WithOverrideHeader sets the header carrying an explicit tenant slug.
func WithOverrideHeader(name string) MiddlewareOption {
	return func(c *middlewareConfig) { c.header = name }
}

func WithRejectHandler(h RejectHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.reject = h
		}
	}
}

func WithMiddlewareLogger(log *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// Middleware resolves the tenant of every request. Resolved requests run with
// a scope that is ended when the handler returns; exempt requests run without
// one; everything else is rejected before the handler runs.
func Middleware(resolver *Resolver, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		header: "X-Tenant-Slug",
		log:    slog.Default(),
	}
	cfg.reject = defaultRejectHandler
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := resolver.Resolve(r.Context(), RequestFromHTTP(r, cfg.header))
			if err != nil {
				cfg.log.ErrorContext(r.Context(), "tenant resolution failed",
					logger.Host(r.Host), logger.Error(err))
				cfg.reject(w, r, res, err)
				return
			}

			switch res.Kind {
			case Exempt:
				next.ServeHTTP(w, r)
			case Resolved:
				ctx, scope, err := Begin(r.Context(), res.Tenant)
				if err != nil {
					cfg.reject(w, r, res, err)
					return
				}
				defer scope.End()
				next.ServeHTTP(w, r.WithContext(ctx))
			default:
				cfg.reject(w, r, res, nil)
			}
		})
	}
}

type rejectBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Reason  string `json:"reason,omitempty"`
	} `json:"error"`
}

func defaultRejectHandler(w http.ResponseWriter, _ *http.Request, res Resolution, err error) {
	var body rejectBody
	status := http.StatusInternalServerError

	switch {
	case err != nil:
		status = http.StatusServiceUnavailable
		body.Error.Code, body.Error.Message = "tenant_lookup_failed", "tenant directory unavailable"
	case res.Kind == NotFound:
		status = http.StatusNotFound
		body.Error.Code, body.Error.Message = "tenant_not_found", "tenant not found"
	case res.Kind == Suspended:
		status = http.StatusForbidden
		body.Error.Code, body.Error.Message = "tenant_suspended", "tenant is suspended"
		body.Error.Reason = res.Reason
	case res.Kind == Ambiguous:
		body.Error.Code, body.Error.Message = "tenant_misconfigured", "tenant binding is ambiguous"
	default:
		body.Error.Code, body.Error.Message = "internal_error", "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

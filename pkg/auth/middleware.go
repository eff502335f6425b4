package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

// TokenExtractor reads the raw token from a request.
type TokenExtractor func(r *http.Request) (string, error)

// BearerToken reads "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, status int, err error)

type middlewareConfig struct {
	extract TokenExtractor
	onError ErrorHandler
	log     *slog.Logger
}

type MiddlewareOption func(*middlewareConfig)

func WithExtractor(fn TokenExtractor) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.extract = fn
		}
	}
}

func WithErrorHandler(fn ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.onError = fn
		}
	}
}

func WithLogger(log *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if log != nil {
			c.log = log
		}
	}
}

func newMiddlewareConfig(opts []MiddlewareOption) *middlewareConfig {
	cfg := &middlewareConfig{extract: BearerToken, onError: writeError, log: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Middleware verifies the bearer token of every request. It must run inside
// tenant.Middleware: the token's tenant has to match the request scope.
func Middleware(svc *Service, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := newMiddlewareConfig(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope, ok := tenant.FromContext(ctx)
			if !ok {
				cfg.onError(w, r, http.StatusInternalServerError, ErrNoTenantScope)
				return
			}

			raw, err := cfg.extract(r)
			if err != nil {
				cfg.onError(w, r, http.StatusUnauthorized, err)
				return
			}
			claims, err := svc.Verify(raw)
			if err != nil {
				cfg.onError(w, r, http.StatusUnauthorized, err)
				return
			}
			if claims.TenantID != scope.TenantID() {
				cfg.log.WarnContext(ctx, "token presented to another tenant",
					logger.UserID(claims.UserID),
					slog.String("token_tenant_id", claims.TenantID.String()),
				)
				cfg.onError(w, r, http.StatusForbidden, ErrTenantMismatch)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

// Authorizer decides whether a role holds a permission.
type Authorizer interface {
	Can(role, permission string) error
}

// RequirePermission rejects requests whose role lacks permission.
func RequirePermission(authz Authorizer, permission string, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := newMiddlewareConfig(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				cfg.onError(w, r, http.StatusUnauthorized, ErrUnauthenticated)
				return
			}
			if err := authz.Can(claims.Role, permission); err != nil {
				cfg.onError(w, r, http.StatusForbidden, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, _ *http.Request, status int, err error) {
	code := "unauthorized"
	switch {
	case errors.Is(err, ErrTenantMismatch):
		code = "tenant_mismatch"
	case status == http.StatusForbidden:
		code = "forbidden"
	case status == http.StatusInternalServerError:
		code = "internal_error"
	}
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="vidkit"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": http.StatusText(status)},
	})
}

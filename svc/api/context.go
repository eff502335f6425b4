package api

import (
	"net/http"

	"github.com/dmitrymomot/vidkit/handler"
	"github.com/dmitrymomot/vidkit/pkg/auth"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

// Context is the handler context of tenant routes.
type Context interface {
	handler.Context
	// Scope is nil outside a resolved tenant; the data layer refuses a nil scope.
	Scope() *tenant.Scope
	Claims() *auth.Claims
}

type requestContext struct {
	handler.Context
}

func newContext(w http.ResponseWriter, r *http.Request) Context {
	return requestContext{Context: handler.NewContext(w, r)}
}

func (c requestContext) Scope() *tenant.Scope {
	s, _ := tenant.FromContext(c)
	return s
}

func (c requestContext) Claims() *auth.Claims {
	claims, _ := auth.ClaimsFromContext(c)
	return claims
}

func wrap[R any](eh handler.ErrorHandler[Context], h handler.HandlerFunc[Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithContextFactory[Context, R](newContext),
		handler.WithErrorHandler[Context, R](eh),
		handler.WithBinders[Context, R](binders...),
	)
}

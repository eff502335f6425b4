package tenant

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// Scope is the tenant bound to one unit of work: a request, or one tenant step
// of a background job. It is created by Begin and must be ended by the same
// code path, normally with defer. An ended scope stays ended, so any copy of
// the pointer that outlives the unit of work is refused by the data layer.
type Scope struct {
	tenant Tenant
	ended  atomic.Bool
}

// Active reports whether s is non-nil and not ended.
func (s *Scope) Active() bool {
	return s != nil && !s.ended.Load()
}

// TenantID returns the scoped tenant id, or uuid.Nil when the scope is not active.
func (s *Scope) TenantID() uuid.UUID {
	if !s.Active() {
		return uuid.Nil
	}
	return s.tenant.ID
}

// Tenant returns a copy of the scoped tenant.
func (s *Scope) Tenant() (Tenant, bool) {
	if !s.Active() {
		return Tenant{}, false
	}
	return s.tenant, true
}

// End invalidates the scope. Idempotent.
func (s *Scope) End() {
	if s != nil {
		s.ended.Store(true)
	}
}

type scopeKey struct{}

// Begin attaches a new scope for t to ctx.
// A context may carry at most one active scope; a second Begin on the same
// chain returns ErrScopeAlreadySet.
func Begin(ctx context.Context, t *Tenant) (context.Context, *Scope, error) {
	if t == nil || t.ID == uuid.Nil {
		return ctx, nil, ErrNilTenant
	}
	if existing, ok := ctx.Value(scopeKey{}).(*Scope); ok && existing.Active() {
		return ctx, nil, ErrScopeAlreadySet
	}

	s := &Scope{tenant: *t}
	s.tenant.Domains = append([]string(nil), t.Domains...)
	return context.WithValue(ctx, scopeKey{}, s), s, nil
}

// Run executes fn inside a scope for t. The scope is ended when fn returns or panics.
func Run(ctx context.Context, t *Tenant, fn func(ctx context.Context, s *Scope) error) error {
	ctx, s, err := Begin(ctx, t)
	if err != nil {
		return err
	}
	defer s.End()
	return fn(ctx, s)
}

// FromContext returns the active scope carried by ctx.
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	if !ok || !s.Active() {
		return nil, false
	}
	return s, true
}

// IDFromContext returns the tenant id of the active scope carried by ctx.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return s.TenantID(), true
}

// LoggerExtractor adds tenant_id to log records written inside a scope.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return slog.String("tenant_id", id.String()), true
		}
		return slog.Attr{}, false
	}
}

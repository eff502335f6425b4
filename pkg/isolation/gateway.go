// Package isolation is the only path to tenant-scoped rows.
//
// Every Table method takes the caller's *tenant.Scope explicitly. A nil or
// ended scope is refused with a *Violation before the store is touched; reads
// are filtered by the scoped tenant inside the store and re-checked on the way
// out; inserts are stamped with the scoped tenant; updates run inside the
// store's atomic read-modify-write and are aborted if the row's tenant would
// differ from the scope.
//
// Tenant-agnostic data such as the permission catalog is read through a
// GlobalTable, which can only be built for names registered with WithGlobal.
package isolation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

// Row is a tenant-scoped entity. Implementations are pointer types.
type Row interface {
	GetID() uuid.UUID
	GetTenantID() uuid.UUID
	SetTenantID(uuid.UUID)
}

// Store persists rows of one table. Every method except Insert receives the
// tenant id to filter by and must never return or touch rows of other tenants.
//
// Update loads the row, passes it to fn and writes fn's result, all as one
// atomic step. If fn returns an error nothing is written.
type Store[T Row, F any] interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (T, error)
	List(ctx context.Context, tenantID uuid.UUID, filter F) ([]T, error)
	Insert(ctx context.Context, row T) error
	Update(ctx context.Context, tenantID, id uuid.UUID, fn func(T) (T, error)) (T, error)
}

// Gateway holds the enforcement policy shared by every table.
type Gateway struct {
	log         *slog.Logger
	globals     map[string]struct{}
	onViolation func(*Violation)
}

type Option func(*Gateway)

func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithGlobal whitelists tenant-agnostic tables.
func WithGlobal(names ...string) Option {
	return func(g *Gateway) {
		for _, n := range names {
			g.globals[n] = struct{}{}
		}
	}
}

// WithViolationHook is called for every refused access, after logging.
func WithViolationHook(fn func(*Violation)) Option {
	return func(g *Gateway) { g.onViolation = fn }
}

func New(opts ...Option) *Gateway {
	g := &Gateway{log: slog.Default(), globals: make(map[string]struct{})}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) violation(ctx context.Context, v *Violation) error {
	logger.Critical(ctx, g.log, "tenant isolation violation",
		slog.String("op", v.Op),
		slog.String("table", v.Table),
		slog.String("reason", v.Reason),
		logger.TenantID(v.ScopeTenant),
		slog.String("row_tenant_id", v.RowTenant.String()),
	)
	if g.onViolation != nil {
		g.onViolation(v)
	}
	return v
}

// Table enforces tenant isolation for one store.
type Table[T Row, F any] struct {
	g     *Gateway
	name  string
	store Store[T, F]
}

func NewTable[T Row, F any](g *Gateway, name string, store Store[T, F]) *Table[T, F] {
	return &Table[T, F]{g: g, name: name, store: store}
}

func (t *Table[T, F]) Name() string { return t.name }

// require returns the scoped tenant id or a violation for an unusable scope.
func (t *Table[T, F]) require(ctx context.Context, op string, scope *tenant.Scope) (uuid.UUID, error) {
	if !scope.Active() {
		return uuid.Nil, t.g.violation(ctx, &Violation{Op: op, Table: t.name, Reason: "no active tenant scope"})
	}
	return scope.TenantID(), nil
}

func (t *Table[T, F]) mismatch(ctx context.Context, op string, scopeID, rowID uuid.UUID, reason string) error {
	return t.g.violation(ctx, &Violation{
		Op: op, Table: t.name, Reason: reason,
		ScopeTenant: scopeID, RowTenant: rowID,
	})
}

func (t *Table[T, F]) Get(ctx context.Context, scope *tenant.Scope, id uuid.UUID) (T, error) {
	var zero T
	tid, err := t.require(ctx, "get", scope)
	if err != nil {
		return zero, err
	}
	row, err := t.store.Get(ctx, tid, id)
	if err != nil {
		return zero, err
	}
	if row.GetTenantID() != tid {
		return zero, t.mismatch(ctx, "get", tid, row.GetTenantID(), "store returned a row of another tenant")
	}
	return row, nil
}

func (t *Table[T, F]) List(ctx context.Context, scope *tenant.Scope, filter F) ([]T, error) {
	tid, err := t.require(ctx, "list", scope)
	if err != nil {
		return nil, err
	}
	rows, err := t.store.List(ctx, tid, filter)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.GetTenantID() != tid {
			return nil, t.mismatch(ctx, "list", tid, row.GetTenantID(), "store returned a row of another tenant")
		}
	}
	return rows, nil
}

// Insert stamps row with the scoped tenant and stores it. A row that already
// names a different tenant is refused.
func (t *Table[T, F]) Insert(ctx context.Context, scope *tenant.Scope, row T) (T, error) {
	tid, err := t.require(ctx, "insert", scope)
	if err != nil {
		return row, err
	}
	if cur := row.GetTenantID(); cur != uuid.Nil && cur != tid {
		return row, t.mismatch(ctx, "insert", tid, cur, "row is stamped with another tenant")
	}
	row.SetTenantID(tid)
	if err := t.store.Insert(ctx, row); err != nil {
		return row, err
	}
	return row, nil
}

// Update applies fn to the scoped tenant's row atomically. fn receives a copy
// owned by the caller; returning a row whose tenant changed aborts the write.
func (t *Table[T, F]) Update(ctx context.Context, scope *tenant.Scope, id uuid.UUID, fn func(T) (T, error)) (T, error) {
	var zero T
	tid, err := t.require(ctx, "update", scope)
	if err != nil {
		return zero, err
	}
	return t.store.Update(ctx, tid, id, func(current T) (T, error) {
		if current.GetTenantID() != tid {
			return current, t.mismatch(ctx, "update", tid, current.GetTenantID(), "store loaded a row of another tenant")
		}
		next, err := fn(current)
		if err != nil {
			return current, err
		}
		if next.GetTenantID() != tid {
			return current, t.mismatch(ctx, "update", tid, next.GetTenantID(), "update would change the row tenant")
		}
		return next, nil
	})
}

// GlobalStore reads tenant-agnostic rows.
type GlobalStore[T any] interface {
	List(ctx context.Context) ([]T, error)
}

// GlobalTable reads a whitelisted tenant-agnostic table without a scope.
type GlobalTable[T any] struct {
	name  string
	store GlobalStore[T]
}

func NewGlobalTable[T any](g *Gateway, name string, store GlobalStore[T]) (*GlobalTable[T], error) {
	if _, ok := g.globals[name]; !ok {
		return nil, ErrNotWhitelisted
	}
	return &GlobalTable[T]{name: name, store: store}, nil
}

func (t *GlobalTable[T]) List(ctx context.Context) ([]T, error) {
	return t.store.List(ctx)
}

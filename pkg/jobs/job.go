package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

// TenantSource enumerates the tenants a job processes. tenant.Directory
// implements it.
type TenantSource interface {
	List(ctx context.Context, filter tenant.ListFilter) ([]*tenant.Tenant, error)
}

// TenantFunc is the tenant-scoped unit of work of a job. It runs once per
// tenant with a scope that ends when it returns. It must be idempotent.
type TenantFunc func(ctx context.Context, scope *tenant.Scope) error

// Job is a named periodic task fanned out over tenants.
type Job struct {
	Name     string
	Schedule Schedule
	Work     TenantFunc
	// Statuses limits the tenants processed; empty means every tenant.
	Statuses []tenant.Status
	// TenantTimeout bounds the work of one tenant; zero means no bound.
	TenantTimeout time.Duration
}

// Outcome summarizes a run.
type Outcome string

const (
	OutcomeSucceeded             Outcome = "succeeded"
	OutcomeSucceededWithFailures Outcome = "succeeded_with_failures"
	OutcomeFailed                Outcome = "failed"
)

// TenantFailure records the error of one tenant's work.
type TenantFailure struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Slug     string    `json:"slug"`
	Error    string    `json:"error"`
}

// Report is the result of one job run.
type Report struct {
	Job        string          `json:"job"`
	RunID      uuid.UUID       `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Tenants    int             `json:"tenants"`
	Succeeded  int             `json:"succeeded"`
	Failures   []TenantFailure `json:"failures,omitempty"`
	Outcome    Outcome         `json:"outcome"`
	Error      string          `json:"error,omitempty"`
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

package tenant

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the administrative state of a tenant.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusTrial, StatusSuspended:
		return true
	}
	return false
}

// Tenant is an isolated customer organization.
// Tenants are never hard-deleted, only suspended.
type Tenant struct {
	ID               uuid.UUID `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	Slug             string    `json:"slug" yaml:"slug"`
	Domains          []string  `json:"domains,omitempty" yaml:"domains"`
	Status           Status    `json:"status" yaml:"status"`
	SuspensionReason string    `json:"suspension_reason,omitempty" yaml:"suspension_reason"`
	PlanQuotaBytes   int64     `json:"plan_quota_bytes" yaml:"plan_quota_bytes"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
}

func (t *Tenant) Suspended() bool {
	return t.Status == StatusSuspended
}

// Validate checks the fields a directory relies on for resolution.
func (t *Tenant) Validate() error {
	if t.ID == uuid.Nil {
		return ErrInvalidTenant
	}
	if !IsValidSlug(t.Slug) {
		return ErrInvalidSlug
	}
	if !t.Status.Valid() {
		return ErrInvalidTenant
	}
	for _, d := range t.Domains {
		if NormalizeHost(d) == "" {
			return ErrInvalidDomain
		}
	}
	return nil
}

// ListFilter narrows Directory.List. Empty Statuses means every status.
type ListFilter struct {
	Statuses []Status
}

func (f ListFilter) Match(t *Tenant) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

// Directory maps slugs and domains to tenant records.
//
// ByDomain returns every tenant bound to host. More than one result is a
// configuration fault that the resolver reports as ambiguous.
type Directory interface {
	ByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	BySlug(ctx context.Context, slug string) (*Tenant, error)
	ByDomain(ctx context.Context, host string) ([]*Tenant, error)
	List(ctx context.Context, filter ListFilter) ([]*Tenant, error)
}

const maxLabelLength = 63

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// IsValidSlug reports whether s can be used as a DNS label and tenant slug.
func IsValidSlug(s string) bool {
	return len(s) > 0 && len(s) <= maxLabelLength && slugPattern.MatchString(s)
}

// NormalizeHost lowercases host, strips the port and the trailing dot.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || strings.ContainsAny(host, "/ \\@") {
		return ""
	}
	return host
}

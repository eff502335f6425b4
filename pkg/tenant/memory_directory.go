package tenant

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process Directory for development and tests.
// It deliberately allows one domain to be bound to several tenants so that
// misconfiguration can be reproduced.
type MemoryDirectory struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Tenant
	bySlug map[string]uuid.UUID
	order  []uuid.UUID
}

func NewMemoryDirectory(tenants ...*Tenant) (*MemoryDirectory, error) {
	d := &MemoryDirectory{
		byID:   make(map[uuid.UUID]*Tenant),
		bySlug: make(map[string]uuid.UUID),
	}
	for _, t := range tenants {
		if err := d.Add(t); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add registers t. Slugs must be unique.
func (d *MemoryDirectory) Add(t *Tenant) error {
	if t == nil {
		return ErrNilTenant
	}
	if err := t.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.bySlug[t.Slug]; ok && id != t.ID {
		return ErrDuplicateSlug
	}
	c := clone(t)
	for i, dom := range c.Domains {
		c.Domains[i] = NormalizeHost(dom)
	}
	if _, ok := d.byID[c.ID]; !ok {
		d.order = append(d.order, c.ID)
	}
	d.byID[c.ID] = c
	d.bySlug[c.Slug] = c.ID
	return nil
}

// SetStatus changes the status of a tenant, recording reason for suspensions.
func (d *MemoryDirectory) SetStatus(id uuid.UUID, status Status, reason string) error {
	if !status.Valid() {
		return ErrInvalidTenant
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.byID[id]
	if !ok {
		return ErrTenantNotFound
	}
	t.Status = status
	t.SuspensionReason = ""
	if status == StatusSuspended {
		t.SuspensionReason = reason
	}
	return nil
}

func (d *MemoryDirectory) ByID(_ context.Context, id uuid.UUID) (*Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if t, ok := d.byID[id]; ok {
		return clone(t), nil
	}
	return nil, ErrTenantNotFound
}

func (d *MemoryDirectory) BySlug(_ context.Context, slug string) (*Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id, ok := d.bySlug[slug]; ok {
		return clone(d.byID[id]), nil
	}
	return nil, ErrTenantNotFound
}

func (d *MemoryDirectory) ByDomain(_ context.Context, host string) ([]*Tenant, error) {
	host = NormalizeHost(host)
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Tenant
	for _, id := range d.order {
		t := d.byID[id]
		if slices.Contains(t.Domains, host) {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func (d *MemoryDirectory) List(_ context.Context, filter ListFilter) ([]*Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Tenant, 0, len(d.order))
	for _, id := range d.order {
		if t := d.byID[id]; filter.Match(t) {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func clone(t *Tenant) *Tenant {
	c := *t
	c.Domains = slices.Clone(t.Domains)
	return &c
}

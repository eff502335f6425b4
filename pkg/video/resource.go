package video

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a video resource.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusUploaded   Status = "uploaded"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
	StatusDeleted    Status = "deleted"
)

// Terminal reports whether s ends an attempt. Only deletion leaves a terminal state.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed || s == StatusDeleted
}

// Resource is a tenant-owned video. TenantID is stamped on insert and never changes.
type Resource struct {
	ID                  uuid.UUID  `json:"id"`
	TenantID            uuid.UUID  `json:"tenant_id"`
	Title               string     `json:"title"`
	Status              Status     `json:"status"`
	SizeBytes           int64      `json:"size_bytes"`
	StoragePointer      string     `json:"storage_pointer,omitempty"`
	PreviewPointer      string     `json:"preview_pointer,omitempty"`
	FailureReason       string     `json:"failure_reason,omitempty"`
	RetryOf             *uuid.UUID `json:"retry_of,omitempty"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	IsDeleted           bool       `json:"is_deleted"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (r *Resource) GetID() uuid.UUID         { return r.ID }
func (r *Resource) GetTenantID() uuid.UUID   { return r.TenantID }
func (r *Resource) SetTenantID(id uuid.UUID) { r.TenantID = id }

// Clone returns a deep copy.
func (r *Resource) Clone() *Resource {
	c := *r
	if r.RetryOf != nil {
		id := *r.RetryOf
		c.RetryOf = &id
	}
	if r.ProcessingStartedAt != nil {
		ts := *r.ProcessingStartedAt
		c.ProcessingStartedAt = &ts
	}
	return &c
}

// Filter narrows List queries. Soft-deleted rows are excluded unless IncludeDeleted is set.
type Filter struct {
	Statuses         []Status
	IncludeDeleted   bool
	ProcessingBefore time.Time
}

// Match applies f to r the way the SQL store does.
func (f Filter) Match(r *Resource) bool {
	if r.IsDeleted && !f.IncludeDeleted {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if !f.ProcessingBefore.IsZero() {
		if r.ProcessingStartedAt == nil || !r.ProcessingStartedAt.Before(f.ProcessingBefore) {
			return false
		}
	}
	return true
}

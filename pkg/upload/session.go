package upload

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/video"
)

// State is the state of an upload session.
type State string

const (
	StateOpen      State = "open"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// Result is the outcome of completing a session. It is stored on the session
// so repeated completions return it unchanged.
type Result struct {
	ResourceID     uuid.UUID    `json:"resource_id"`
	Status         video.Status `json:"status"`
	StoragePointer string       `json:"storage_pointer,omitempty"`
	PreviewPointer string       `json:"preview_pointer,omitempty"`
	FailureReason  string       `json:"failure_reason,omitempty"`
	ErrorKind      string       `json:"error_kind,omitempty"`
	CompletedAt    time.Time    `json:"completed_at"`
}

// Session tracks one resumable upload of a resource.
type Session struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	ResourceID  uuid.UUID `json:"resource_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	TotalSize   int64     `json:"total_size"`
	Offset      int64     `json:"offset"`
	State       State     `json:"state"`
	TempKey     string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
	Result      *Result   `json:"result,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Session) GetID() uuid.UUID         { return s.ID }
func (s *Session) GetTenantID() uuid.UUID   { return s.TenantID }
func (s *Session) SetTenantID(id uuid.UUID) { s.TenantID = id }

// Remaining is the number of bytes still expected.
func (s *Session) Remaining() int64 { return s.TotalSize - s.Offset }

// Idle reports whether an open session has passed its deadline at now.
func (s *Session) Idle(now time.Time) bool {
	return s.State == StateOpen && now.After(s.ExpiresAt)
}

func (s *Session) Clone() *Session {
	c := *s
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	return &c
}

// Filter narrows session listings.
type Filter struct {
	ResourceID    uuid.UUID
	States        []State
	ExpiresBefore time.Time
}

func (f Filter) Match(s *Session) bool {
	if f.ResourceID != uuid.Nil && s.ResourceID != f.ResourceID {
		return false
	}
	if len(f.States) > 0 && !slices.Contains(f.States, s.State) {
		return false
	}
	if !f.ExpiresBefore.IsZero() && !s.ExpiresAt.Before(f.ExpiresBefore) {
		return false
	}
	return true
}

// Table is the isolation-guarded session table.
type Table = isolation.Table[*Session, Filter]

// Store is implemented by the session persistence layers.
type Store = isolation.Store[*Session, Filter]

func NewMemoryStore() *isolation.MemoryStore[*Session, Filter] {
	return isolation.NewMemoryStore((*Session).Clone, func(s *Session, f Filter) bool { return f.Match(s) })
}

// NewTable guards store with g under the "upload_sessions" table name.
func NewTable(g *isolation.Gateway, store Store) *Table {
	return isolation.NewTable[*Session, Filter](g, "upload_sessions", store)
}

package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

// Table is the isolation-guarded resource table.
type Table = isolation.Table[*Resource, Filter]

// Store is implemented by the resource persistence layers.
type Store = isolation.Store[*Resource, Filter]

// NewMemoryStore returns an in-memory resource store.
func NewMemoryStore() *isolation.MemoryStore[*Resource, Filter] {
	return isolation.NewMemoryStore((*Resource).Clone, func(r *Resource, f Filter) bool { return f.Match(r) })
}

// NewTable guards store with g under the "videos" table name.
func NewTable(g *isolation.Gateway, store Store) *Table {
	return isolation.NewTable[*Resource, Filter](g, "videos", store)
}

// Handoff is what the processing provider reported for a resource.
type Handoff struct {
	StoragePointer string
	PreviewPointer string
	AssetsComplete bool
}

// Outcome describes the effect of a lifecycle call.
// Ignored is set when the signal had already been applied.
type Outcome struct {
	Resource *Resource
	From     Status
	To       Status
	Ignored  bool
}

// Lifecycle owns every status change of a resource. Each change is evaluated
// against Machine inside the store's atomic update, so concurrent signals for
// one resource are applied at most once.
type Lifecycle struct {
	table  *Table
	log    *slog.Logger
	now    func() time.Time
	onMove func(from, to Status)
}

type Option func(*Lifecycle)

func WithLogger(log *slog.Logger) Option {
	return func(l *Lifecycle) {
		if log != nil {
			l.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// WithTransitionHook is called after every persisted transition.
func WithTransitionHook(fn func(from, to Status)) Option {
	return func(l *Lifecycle) { l.onMove = fn }
}

func NewLifecycle(table *Table, opts ...Option) *Lifecycle {
	l := &Lifecycle{table: table, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create stores a new draft for the scoped tenant.
func (l *Lifecycle) Create(ctx context.Context, scope *tenant.Scope, title string) (*Resource, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > 200 {
		return nil, ErrInvalidTitle
	}
	now := l.now().UTC()
	r, err := l.table.Insert(ctx, scope, &Resource{
		ID:        uuid.New(),
		Title:     title,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	l.log.InfoContext(ctx, "video created", logger.ResourceID(r.ID))
	return r, nil
}

func (l *Lifecycle) Get(ctx context.Context, scope *tenant.Scope, id uuid.UUID) (*Resource, error) {
	r, err := l.table.Get(ctx, scope, id)
	if errors.Is(err, isolation.ErrNotFound) {
		return nil, ErrNotFound
	}
	return r, err
}

func (l *Lifecycle) List(ctx context.Context, scope *tenant.Scope, f Filter) ([]*Resource, error) {
	return l.table.List(ctx, scope, f)
}

// Fire applies event to the resource. mutate, when set, edits the row as part
// of the same atomic write.
func (l *Lifecycle) Fire(ctx context.Context, scope *tenant.Scope, id uuid.UUID, event Event, mutate func(*Resource)) (Outcome, error) {
	var out Outcome
	r, err := l.table.Update(ctx, scope, id, func(cur *Resource) (*Resource, error) {
		out.From = cur.Status
		if IsDuplicate(cur.Status, event) {
			out.Ignored = true
			return nil, errIgnored
		}
		to, err := Machine.Next(ctx, cur.Status, event, cur)
		if err != nil {
			return nil, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, cur.Status)
		}
		cur.Status = to
		cur.UpdatedAt = l.now().UTC()
		if mutate != nil {
			mutate(cur)
		}
		out.To = to
		return cur, nil
	})

	switch {
	case errors.Is(err, errIgnored):
		cur, gerr := l.Get(ctx, scope, id)
		if gerr != nil {
			return out, gerr
		}
		out.Resource, out.To = cur, cur.Status
		l.log.DebugContext(ctx, "duplicate lifecycle signal ignored",
			logger.ResourceID(id), slog.String("event", string(event)), logger.Status(cur.Status))
		return out, nil
	case errors.Is(err, isolation.ErrNotFound):
		return out, ErrNotFound
	case err != nil:
		return out, err
	}

	out.Resource = r
	l.log.InfoContext(ctx, "video status changed",
		logger.ResourceID(id),
		slog.String("from", string(out.From)),
		slog.String("to", string(out.To)),
	)
	if l.onMove != nil {
		l.onMove(out.From, out.To)
	}
	return out, nil
}

// errIgnored aborts an update for a repeated signal without writing.
var errIgnored = errors.New("video: signal already applied")

// MarkUploading records the first accepted chunk.
func (l *Lifecycle) MarkUploading(ctx context.Context, scope *tenant.Scope, id uuid.UUID, size int64) (Outcome, error) {
	return l.Fire(ctx, scope, id, EventUploadStarted, func(r *Resource) { r.SizeBytes = size })
}

// BeginProcessing moves an upload into processing before the provider is called.
func (l *Lifecycle) BeginProcessing(ctx context.Context, scope *tenant.Scope, id uuid.UUID) (Outcome, error) {
	return l.Fire(ctx, scope, id, EventHandoffStarted, func(r *Resource) {
		ts := l.now().UTC()
		r.ProcessingStartedAt = &ts
	})
}

// CompleteProcessing records a successful handoff and, when the provider
// reported every derived asset, continues straight to ready.
func (l *Lifecycle) CompleteProcessing(ctx context.Context, scope *tenant.Scope, id uuid.UUID, h Handoff) (Outcome, error) {
	if h.StoragePointer == "" {
		return Outcome{}, ErrInvalidHandoff
	}
	out, err := l.Fire(ctx, scope, id, EventProcessingSucceeded, func(r *Resource) {
		r.StoragePointer = h.StoragePointer
		r.PreviewPointer = h.PreviewPointer
		r.FailureReason = ""
	})
	if err != nil || out.Ignored || !h.AssetsComplete {
		return out, err
	}
	ready, err := l.ConfirmAssets(ctx, scope, id)
	if err != nil {
		return out, err
	}
	ready.From = out.From
	return ready, nil
}

// FailProcessing records a failed handoff.
func (l *Lifecycle) FailProcessing(ctx context.Context, scope *tenant.Scope, id uuid.UUID, reason string) (Outcome, error) {
	if reason == "" {
		reason = "processing failed"
	}
	return l.Fire(ctx, scope, id, EventProcessingFailed, func(r *Resource) { r.FailureReason = reason })
}

// ConfirmAssets moves an uploaded resource to ready.
func (l *Lifecycle) ConfirmAssets(ctx context.Context, scope *tenant.Scope, id uuid.UUID) (Outcome, error) {
	return l.Fire(ctx, scope, id, EventAssetsConfirmed, nil)
}

// Delete soft-deletes the resource. Its tenant and history are kept.
func (l *Lifecycle) Delete(ctx context.Context, scope *tenant.Scope, id uuid.UUID) (Outcome, error) {
	return l.Fire(ctx, scope, id, EventDeleted, func(r *Resource) { r.IsDeleted = true })
}

// Retry creates a new draft linked to a failed resource. The failed record is left untouched.
func (l *Lifecycle) Retry(ctx context.Context, scope *tenant.Scope, id uuid.UUID) (*Resource, error) {
	failed, err := l.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if failed.Status != StatusFailed {
		return nil, ErrNotRetryable
	}
	now := l.now().UTC()
	origin := failed.ID
	r, err := l.table.Insert(ctx, scope, &Resource{
		ID:        uuid.New(),
		Title:     failed.Title,
		Status:    StatusDraft,
		RetryOf:   &origin,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	l.log.InfoContext(ctx, "video retry created", logger.ResourceID(r.ID), slog.String("retry_of", origin.String()))
	return r, nil
}

// ExpireProcessing fails every resource of the scoped tenant that has been
// processing for longer than window. It returns the number of resources failed.
func (l *Lifecycle) ExpireProcessing(ctx context.Context, scope *tenant.Scope, window time.Duration) (int, error) {
	stale, err := l.table.List(ctx, scope, Filter{
		Statuses:         []Status{StatusProcessing},
		ProcessingBefore: l.now().Add(-window),
	})
	if err != nil {
		return 0, err
	}
	var (
		n    int
		errs []error
	)
	for _, r := range stale {
		out, err := l.FailProcessing(ctx, scope, r.ID, "processing timed out")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !out.Ignored {
			n++
		}
	}
	return n, errors.Join(errs...)
}

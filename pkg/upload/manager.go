package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/processing"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
	"github.com/dmitrymomot/vidkit/pkg/video"
)

// OpenRequest describes the file a client is about to upload.
type OpenRequest struct {
	Filename    string
	ContentType string
	TotalSize   int64
}

// Manager runs resumable uploads: chunks are appended at exact offsets, and a
// complete upload is handed to the processing provider exactly once.
type Manager struct {
	sessions *Table
	videos   *video.Lifecycle
	temp     TempStorage
	provider processing.Provider
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
	onAppend func(n int64)
	locks    keyedMutex
}

type Option func(*Manager)

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAppendHook is called with the size of every accepted chunk.
func WithAppendHook(fn func(n int64)) Option {
	return func(m *Manager) { m.onAppend = fn }
}

// NewManager wires a manager. provider should already bound its calls with a
// timeout, see processing.Guard.
func NewManager(sessions *Table, videos *video.Lifecycle, temp TempStorage, provider processing.Provider, cfg Config, opts ...Option) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig().IdleTimeout
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = DefaultConfig().MaxChunkSize
	}
	m := &Manager{
		sessions: sessions,
		videos:   videos,
		temp:     temp,
		provider: provider,
		cfg:      cfg,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a session for a draft or abandoned upload of resourceID.
// A resource has at most one open session; an idle one is expired first.
func (m *Manager) Open(ctx context.Context, scope *tenant.Scope, resourceID uuid.UUID, req OpenRequest) (*Session, error) {
	switch {
	case req.TotalSize <= 0:
		return nil, ErrInvalidSize
	case req.TotalSize > m.cfg.MaxSize:
		return nil, ErrTooLarge
	}
	contentType, err := NormalizeContentType(req.ContentType)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(resourceID)
	defer unlock()

	res, err := m.videos.Get(ctx, scope, resourceID)
	if err != nil {
		return nil, err
	}
	if res.Status != video.StatusDraft && res.Status != video.StatusUploading {
		return nil, fmt.Errorf("%w: status %s", ErrResourceNotUploadable, res.Status)
	}

	open, err := m.sessions.List(ctx, scope, Filter{ResourceID: resourceID, States: []State{StateOpen}})
	if err != nil {
		return nil, err
	}
	for _, s := range open {
		expired, err := m.expireByID(ctx, scope, s.ID)
		if err != nil {
			return nil, err
		}
		if !expired {
			return nil, ErrSessionActive
		}
	}

	now := m.now().UTC()

	id := uuid.New()
	key := path.Join(scope.TenantID().String(), id.String()+".part")
	sess := &Session{
		ID:          id,
		ResourceID:  resourceID,
		Filename:    SanitizeFilename(req.Filename),
		ContentType: contentType,
		TotalSize:   req.TotalSize,
		State:       StateOpen,
		TempKey:     key,
		ExpiresAt:   now.Add(m.cfg.IdleTimeout),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.temp.Create(ctx, key); err != nil {
		return nil, err
	}
	sess, err = m.sessions.Insert(ctx, scope, sess)
	if err != nil {
		_ = m.temp.Remove(context.WithoutCancel(ctx), key)
		return nil, err
	}

	m.log.InfoContext(ctx, "upload session opened",
		logger.SessionID(sess.ID),
		logger.ResourceID(resourceID),
		slog.Int64("total_size", sess.TotalSize),
	)
	return sess, nil
}

// Append writes one chunk starting at offset. The chunk is accepted whole or
// not at all, and only when offset equals the bytes already received.
// A chunk may not pass the declared size nor exceed Config.MaxChunkSize.
func (m *Manager) Append(ctx context.Context, scope *tenant.Scope, id uuid.UUID, offset int64, r io.Reader) (*Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, err := m.get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if sess.State == StateCompleted {
		return nil, &OffsetError{Expected: sess.Offset, Got: offset}
	}
	if sess, err = m.usableSession(ctx, scope, sess); err != nil {
		return nil, err
	}
	if offset != sess.Offset {
		return nil, &OffsetError{Expected: sess.Offset, Got: offset}
	}

	limit, capped := sess.Remaining(), false
	if m.cfg.MaxChunkSize < limit {
		limit, capped = m.cfg.MaxChunkSize, true
	}

	n, err := m.temp.Append(ctx, sess.TempKey, offset, r, limit)
	switch {
	case errors.Is(err, ErrChunkTooLarge) && capped:
		return nil, fmt.Errorf("%w: max %d bytes per chunk", ErrChunkTooLarge, limit)
	case errors.Is(err, ErrChunkTooLarge):
		return nil, ErrChunkExceedsDeclaredSize
	case err != nil:
		return nil, err
	case n == 0:
		return sess, nil
	}

	// Persisting runs detached from the request so an accepted chunk is
	// never half-recorded.
	pctx := context.WithoutCancel(ctx)
	rollback := func(cause error) (*Session, error) {
		if terr := m.temp.Truncate(pctx, sess.TempKey, offset); terr != nil {
			return nil, errors.Join(cause, terr)
		}
		return nil, cause
	}

	if offset == 0 {
		if _, err := m.videos.MarkUploading(pctx, scope, sess.ResourceID, sess.TotalSize); err != nil {
			return rollback(err)
		}
	}

	now := m.now().UTC()
	updated, err := m.sessions.Update(pctx, scope, id, func(cur *Session) (*Session, error) {
		if cur.State != StateOpen || cur.Offset != offset {
			return nil, &OffsetError{Expected: cur.Offset, Got: offset}
		}
		cur.Offset += n
		cur.ExpiresAt = now.Add(m.cfg.IdleTimeout)
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		return rollback(err)
	}

	if m.onAppend != nil {
		m.onAppend(n)
	}
	m.log.DebugContext(ctx, "upload chunk accepted",
		logger.SessionID(id),
		slog.Int64("offset", offset),
		slog.Int64("bytes", n),
	)
	return updated, nil
}

// Complete hands a fully received upload to the provider and records the
// resulting resource status. A provider failure is recorded on the resource
// and returned as part of the Result. Completing a completed session returns
// the stored Result without calling the provider again.
func (m *Manager) Complete(ctx context.Context, scope *tenant.Scope, id uuid.UUID) (*Result, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, err := m.get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if sess.State == StateCompleted && sess.Result != nil {
		return sess.Result, nil
	}
	if sess, err = m.usableSession(ctx, scope, sess); err != nil {
		return nil, err
	}
	if sess.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrUploadIncomplete, sess.Offset, sess.TotalSize)
	}

	if _, err := m.videos.BeginProcessing(ctx, scope, sess.ResourceID); err != nil {
		return nil, err
	}

	// From here on the resource is processing; the handoff and its outcome
	// must not depend on the client staying connected.
	pctx := context.WithoutCancel(ctx)
	h, perr := m.handoff(pctx, scope, sess)

	result := &Result{ResourceID: sess.ResourceID, CompletedAt: m.now().UTC()}
	if perr != nil {
		out, err := m.videos.FailProcessing(pctx, scope, sess.ResourceID, perr.Error())
		if err != nil {
			return nil, err
		}
		result.Status = out.To
		result.FailureReason = out.Resource.FailureReason
		result.ErrorKind = string(processing.KindOf(perr))
		m.log.WarnContext(ctx, "upload handoff failed",
			logger.SessionID(id), logger.ResourceID(sess.ResourceID), logger.Error(perr))
	} else {
		out, err := m.videos.CompleteProcessing(pctx, scope, sess.ResourceID, video.Handoff{
			StoragePointer: h.StoragePointer,
			PreviewPointer: h.PreviewPointer,
			AssetsComplete: h.AssetsComplete,
		})
		if err != nil {
			return nil, err
		}
		result.Status = out.To
		result.StoragePointer = out.Resource.StoragePointer
		result.PreviewPointer = out.Resource.PreviewPointer
	}

	if _, err := m.sessions.Update(pctx, scope, id, func(cur *Session) (*Session, error) {
		cur.State = StateCompleted
		cur.Result = result
		cur.UpdatedAt = result.CompletedAt
		return cur, nil
	}); err != nil {
		return nil, err
	}
	m.releaseTemp(pctx, sess)

	m.log.InfoContext(ctx, "upload completed",
		logger.SessionID(id),
		logger.ResourceID(sess.ResourceID),
		logger.Status(result.Status),
	)
	return result, nil
}

func (m *Manager) handoff(ctx context.Context, scope *tenant.Scope, sess *Session) (processing.Handoff, error) {
	body, err := m.temp.Open(ctx, sess.TempKey)
	if err != nil {
		return processing.Handoff{}, processing.Classify("submit", err)
	}
	defer func() { _ = body.Close() }()

	return m.provider.Submit(ctx, processing.Asset{
		TenantID:    scope.TenantID(),
		ResourceID:  sess.ResourceID,
		Filename:    sess.Filename,
		ContentType: sess.ContentType,
		Size:        sess.TotalSize,
		Body:        body,
	})
}

// Status returns the session, expiring it first when it has gone idle.
func (m *Manager) Status(ctx context.Context, scope *tenant.Scope, id uuid.UUID) (*Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, err := m.get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if sess.Idle(m.now()) {
		if err := m.expire(ctx, scope, sess); err != nil {
			return nil, err
		}
		return m.get(ctx, scope, id)
	}
	return sess, nil
}

// Cancel abandons an open session and releases its partial data.
func (m *Manager) Cancel(ctx context.Context, scope *tenant.Scope, id uuid.UUID) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, err := m.get(ctx, scope, id)
	if err != nil {
		return err
	}
	if sess.State != StateOpen {
		return ErrSessionClosed
	}
	now := m.now().UTC()
	if _, err := m.sessions.Update(ctx, scope, id, func(cur *Session) (*Session, error) {
		if cur.State != StateOpen {
			return nil, ErrSessionClosed
		}
		cur.State = StateCancelled
		cur.UpdatedAt = now
		return cur, nil
	}); err != nil {
		return err
	}
	m.releaseTemp(context.WithoutCancel(ctx), sess)
	m.log.InfoContext(ctx, "upload session cancelled", logger.SessionID(id))
	return nil
}

// ExpireIdle expires every idle session of the scoped tenant and returns how
// many were expired.
func (m *Manager) ExpireIdle(ctx context.Context, scope *tenant.Scope) (int, error) {
	idle, err := m.sessions.List(ctx, scope, Filter{States: []State{StateOpen}, ExpiresBefore: m.now()})
	if err != nil {
		return 0, err
	}
	var (
		n    int
		errs []error
	)
	for _, s := range idle {
		expired, err := m.expireByID(ctx, scope, s.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if expired {
			n++
		}
	}
	return n, errors.Join(errs...)
}

func (m *Manager) expireByID(ctx context.Context, scope *tenant.Scope, id uuid.UUID) (bool, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, err := m.get(ctx, scope, id)
	if err != nil || !sess.Idle(m.now()) {
		return false, err
	}
	return true, m.expire(ctx, scope, sess)
}

func (m *Manager) get(ctx context.Context, scope *tenant.Scope, id uuid.UUID) (*Session, error) {
	sess, err := m.sessions.Get(ctx, scope, id)
	if errors.Is(err, isolation.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// usableSession checks that sess may still receive data.
func (m *Manager) usableSession(ctx context.Context, scope *tenant.Scope, sess *Session) (*Session, error) {
	switch sess.State {
	case StateExpired:
		return nil, ErrSessionExpired
	case StateOpen:
	default:
		return nil, ErrSessionClosed
	}
	if sess.Idle(m.now()) {
		if err := m.expire(ctx, scope, sess); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// expire marks an open session expired and drops its partial data. The
// resource keeps its status so a new session can be opened for it.
func (m *Manager) expire(ctx context.Context, scope *tenant.Scope, sess *Session) error {
	now := m.now().UTC()
	_, err := m.sessions.Update(ctx, scope, sess.ID, func(cur *Session) (*Session, error) {
		if cur.State != StateOpen {
			return nil, errNotOpen
		}
		cur.State = StateExpired
		cur.UpdatedAt = now
		return cur, nil
	})
	if errors.Is(err, errNotOpen) {
		return nil
	}
	if err != nil {
		return err
	}
	m.releaseTemp(context.WithoutCancel(ctx), sess)
	m.log.InfoContext(ctx, "upload session expired",
		logger.SessionID(sess.ID), logger.ResourceID(sess.ResourceID))
	return nil
}

var errNotOpen = errors.New("upload: session not open")

func (m *Manager) releaseTemp(ctx context.Context, sess *Session) {
	if err := m.temp.Remove(ctx, sess.TempKey); err != nil {
		m.log.WarnContext(ctx, "failed to release upload data",
			logger.SessionID(sess.ID), logger.Error(err))
	}
}

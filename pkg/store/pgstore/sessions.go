package pgstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/vidkit/pkg/upload"
)

const sessionColumns = `id, tenant_id, resource_id, filename, content_type, total_size, received_bytes,
	state, temp_key, expires_at, result, created_at, updated_at`

// oneOpenIndex enforces a single open session per resource across instances.
const oneOpenIndex = "upload_sessions_one_open_idx"

// SessionStore implements upload.Store.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func scanSession(row pgx.Row) (*upload.Session, error) {
	var (
		s      upload.Session
		state  string
		result []byte
	)
	err := row.Scan(&s.ID, &s.TenantID, &s.ResourceID, &s.Filename, &s.ContentType, &s.TotalSize, &s.Offset,
		&state, &s.TempKey, &s.ExpiresAt, &result, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.State = upload.State(state)
	if len(result) > 0 {
		s.Result = &upload.Result{}
		if err := json.Unmarshal(result, s.Result); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func encodeResult(r *upload.Result) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (s *SessionStore) Get(ctx context.Context, tenantID, id uuid.UUID) (*upload.Session, error) {
	return getOne(ctx, s.pool, scanSession,
		`SELECT `+sessionColumns+` FROM upload_sessions WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (s *SessionStore) List(ctx context.Context, tenantID uuid.UUID, f upload.Filter) ([]*upload.Session, error) {
	var w where
	w.add("tenant_id = $%d", tenantID)
	if f.ResourceID != uuid.Nil {
		w.add("resource_id = $%d", f.ResourceID)
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, st := range f.States {
			states[i] = string(st)
		}
		w.add("state = ANY($%d)", states)
	}
	if !f.ExpiresBefore.IsZero() {
		w.add("expires_at < $%d", f.ExpiresBefore)
	}
	return getMany(ctx, s.pool, scanSession,
		`SELECT `+sessionColumns+` FROM upload_sessions`+w.String()+` ORDER BY created_at, id`, w.args...)
}

func (s *SessionStore) Insert(ctx context.Context, sess *upload.Session) error {
	result, err := encodeResult(sess.Result)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO upload_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sess.ID, sess.TenantID, sess.ResourceID, sess.Filename, sess.ContentType, sess.TotalSize, sess.Offset,
		string(sess.State), sess.TempKey, sess.ExpiresAt, result, sess.CreatedAt, sess.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == oneOpenIndex {
		return upload.ErrSessionActive
	}
	return insertErr(err)
}

func (s *SessionStore) Update(ctx context.Context, tenantID, id uuid.UUID, fn func(*upload.Session) (*upload.Session, error)) (*upload.Session, error) {
	return updateLocked(ctx, s.pool, scanSession,
		`SELECT `+sessionColumns+` FROM upload_sessions WHERE tenant_id = $1 AND id = $2`,
		[]any{tenantID, id}, fn,
		func(ctx context.Context, tx pgx.Tx, sess *upload.Session) error {
			result, err := encodeResult(sess.Result)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `UPDATE upload_sessions SET
				received_bytes = $3, state = $4, expires_at = $5, result = $6, updated_at = $7
				WHERE tenant_id = $1 AND id = $2`,
				tenantID, id, sess.Offset, string(sess.State), sess.ExpiresAt, result, sess.UpdatedAt)
			return err
		})
}

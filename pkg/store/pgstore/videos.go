package pgstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/vidkit/pkg/video"
)

const videoColumns = `id, tenant_id, title, status, size_bytes, storage_pointer, preview_pointer,
	failure_reason, retry_of, processing_started_at, is_deleted, created_at, updated_at`

// VideoStore implements video.Store.
type VideoStore struct {
	pool *pgxpool.Pool
}

func NewVideoStore(pool *pgxpool.Pool) *VideoStore {
	return &VideoStore{pool: pool}
}

func scanVideo(row pgx.Row) (*video.Resource, error) {
	var (
		r      video.Resource
		status string
	)
	err := row.Scan(&r.ID, &r.TenantID, &r.Title, &status, &r.SizeBytes, &r.StoragePointer, &r.PreviewPointer,
		&r.FailureReason, &r.RetryOf, &r.ProcessingStartedAt, &r.IsDeleted, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = video.Status(status)
	return &r, nil
}

func (s *VideoStore) Get(ctx context.Context, tenantID, id uuid.UUID) (*video.Resource, error) {
	return getOne(ctx, s.pool, scanVideo,
		`SELECT `+videoColumns+` FROM videos WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (s *VideoStore) List(ctx context.Context, tenantID uuid.UUID, f video.Filter) ([]*video.Resource, error) {
	var w where
	w.add("tenant_id = $%d", tenantID)
	if !f.IncludeDeleted {
		w.addRaw("NOT is_deleted")
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		w.add("status = ANY($%d)", statuses)
	}
	if !f.ProcessingBefore.IsZero() {
		w.add("processing_started_at < $%d", f.ProcessingBefore)
	}
	return getMany(ctx, s.pool, scanVideo,
		`SELECT `+videoColumns+` FROM videos`+w.String()+` ORDER BY created_at, id`, w.args...)
}

func (s *VideoStore) Insert(ctx context.Context, r *video.Resource) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO videos (`+videoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.TenantID, r.Title, string(r.Status), r.SizeBytes, r.StoragePointer, r.PreviewPointer,
		r.FailureReason, r.RetryOf, r.ProcessingStartedAt, r.IsDeleted, r.CreatedAt, r.UpdatedAt)
	return insertErr(err)
}

func (s *VideoStore) Update(ctx context.Context, tenantID, id uuid.UUID, fn func(*video.Resource) (*video.Resource, error)) (*video.Resource, error) {
	return updateLocked(ctx, s.pool, scanVideo,
		`SELECT `+videoColumns+` FROM videos WHERE tenant_id = $1 AND id = $2`,
		[]any{tenantID, id}, fn,
		func(ctx context.Context, tx pgx.Tx, r *video.Resource) error {
			_, err := tx.Exec(ctx, `UPDATE videos SET
				title = $3, status = $4, size_bytes = $5, storage_pointer = $6, preview_pointer = $7,
				failure_reason = $8, retry_of = $9, processing_started_at = $10, is_deleted = $11, updated_at = $12
				WHERE tenant_id = $1 AND id = $2`,
				tenantID, id, r.Title, string(r.Status), r.SizeBytes, r.StoragePointer, r.PreviewPointer,
				r.FailureReason, r.RetryOf, r.ProcessingStartedAt, r.IsDeleted, r.UpdatedAt)
			return err
		})
}

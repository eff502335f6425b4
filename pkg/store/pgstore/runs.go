package pgstore

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/vidkit/pkg/jobs"
	"github.com/dmitrymomot/vidkit/pkg/pg"
)

// RunStore implements jobs.RunStore. Only the last report per job is kept.
type RunStore struct {
	pool *pgxpool.Pool
}

func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

func (s *RunStore) Save(ctx context.Context, r jobs.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO job_runs (job, report, finished_at) VALUES ($1, $2, $3)
		ON CONFLICT (job) DO UPDATE SET report = EXCLUDED.report, finished_at = EXCLUDED.finished_at`,
		r.Job, raw, r.FinishedAt)
	return err
}

func (s *RunStore) Last(ctx context.Context, job string) (jobs.Report, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT report FROM job_runs WHERE job = $1`, job).Scan(&raw)
	switch {
	case pg.IsNotFoundError(err):
		return jobs.Report{}, false, nil
	case err != nil:
		return jobs.Report{}, false, err
	}
	var r jobs.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return jobs.Report{}, false, err
	}
	return r, true, nil
}

package jobs_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/jobs"
	"github.com/dmitrymomot/vidkit/pkg/logger"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
)

// soon is always due on the next check.
type soon struct{}

func (soon) Next(from time.Time) time.Time { return from.Add(time.Nanosecond) }
func (soon) String() string                { return "continuously" }

type denyLocker struct{ calls atomic.Int32 }

func (l *denyLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	l.calls.Add(1)
	return nil, false, nil
}

func noop(context.Context, *tenant.Scope) error { return nil }

func TestScheduler_Register(t *testing.T) {
	t.Parallel()

	dir, _ := directory(t, 1)
	s := jobs.NewScheduler(dir, jobs.WithSchedulerLogger(logger.Discard()))

	require.NoError(t, s.Register(jobs.Job{Name: "usage_sync", Schedule: jobs.Hourly(), Work: noop}))
	assert.ErrorIs(t, s.Register(jobs.Job{Name: "usage_sync", Schedule: jobs.Hourly(), Work: noop}), jobs.ErrJobAlreadyRegistered)
	assert.ErrorIs(t, s.Register(jobs.Job{Name: "", Schedule: jobs.Hourly(), Work: noop}), jobs.ErrInvalidJob)
	assert.ErrorIs(t, s.Register(jobs.Job{Name: "x", Work: noop}), jobs.ErrInvalidJob)
	assert.ErrorIs(t, s.Register(jobs.Job{Name: "y", Schedule: jobs.Every(0), Work: noop}), jobs.ErrInvalidJob)

	require.NoError(t, s.Register(jobs.Job{Name: "overage_invoicing", Schedule: jobs.DailyAt(1, 0), Work: noop}))

	infos := s.Jobs(context.Background())
	require.Len(t, infos, 2)
	assert.Equal(t, "usage_sync", infos[0].Name)
	assert.Equal(t, "hourly at :00", infos[0].Schedule)
	assert.Equal(t, "overage_invoicing", infos[1].Name)
	assert.Equal(t, "daily at 01:00", infos[1].Schedule)
	assert.Nil(t, infos[0].LastRun)
}

func TestScheduler_TriggerRecordsReport(t *testing.T) {
	t.Parallel()

	dir, _ := directory(t, 3)
	var reports []jobs.Report
	s := jobs.NewScheduler(dir,
		jobs.WithSchedulerLogger(logger.Discard()),
		jobs.WithReportHook(func(r jobs.Report) { reports = append(reports, r) }),
	)
	require.NoError(t, s.Register(jobs.Job{Name: "usage_sync", Schedule: jobs.Hourly(), Work: noop}))

	_, err := s.Trigger(context.Background(), "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	report, err := s.Trigger(context.Background(), "usage_sync")
	require.NoError(t, err)
	assert.Equal(t, jobs.OutcomeSucceeded, report.Outcome)
	assert.Equal(t, 3, report.Succeeded)
	require.Len(t, reports, 1)

	infos := s.Jobs(context.Background())
	require.NotNil(t, infos[0].LastRun)
	assert.Equal(t, report.RunID, infos[0].LastRun.RunID)
}

func TestScheduler_SingleFlight(t *testing.T) {
	t.Parallel()

	dir, _ := directory(t, 1)
	var skipped atomic.Int32
	s := jobs.NewScheduler(dir,
		jobs.WithSchedulerLogger(logger.Discard()),
		jobs.WithSkipHook(func(string) { skipped.Add(1) }),
	)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.Register(jobs.Job{
		Name:     "usage_sync",
		Schedule: jobs.Hourly(),
		Work: func(context.Context, *tenant.Scope) error {
			close(started)
			<-release
			return nil
		},
	}))

	done := make(chan jobs.Report, 1)
	go func() {
		r, err := s.Trigger(context.Background(), "usage_sync")
		assert.NoError(t, err)
		done <- r
	}()
	<-started

	_, err := s.Trigger(context.Background(), "usage_sync")
	assert.ErrorIs(t, err, jobs.ErrJobAlreadyRunning)
	assert.Equal(t, int32(1), skipped.Load())
	assert.True(t, s.Jobs(context.Background())[0].Running)

	close(release)
	r := <-done
	assert.Equal(t, jobs.OutcomeSucceeded, r.Outcome)
	assert.False(t, s.Jobs(context.Background())[0].Running)
}

func TestScheduler_DistributedLockHeldElsewhere(t *testing.T) {
	t.Parallel()

	dir, _ := directory(t, 1)
	locker := &denyLocker{}
	s := jobs.NewScheduler(dir,
		jobs.WithSchedulerLogger(logger.Discard()),
		jobs.WithLocker(locker, time.Minute),
	)
	var ran atomic.Bool
	require.NoError(t, s.Register(jobs.Job{
		Name:     "usage_sync",
		Schedule: jobs.Hourly(),
		Work:     func(context.Context, *tenant.Scope) error { ran.Store(true); return nil },
	}))

	_, err := s.Trigger(context.Background(), "usage_sync")
	assert.ErrorIs(t, err, jobs.ErrJobAlreadyRunning)
	assert.Equal(t, int32(1), locker.calls.Load())
	assert.False(t, ran.Load())
}

func TestScheduler_StartRunsDueJobsWithoutOverlap(t *testing.T) {
	t.Parallel()

	dir, _ := directory(t, 2)
	s := jobs.NewScheduler(dir,
		jobs.WithSchedulerLogger(logger.Discard()),
		jobs.WithCheckInterval(5*time.Millisecond),
	)

	var (
		mu        sync.Mutex
		inFlight  int
		maxFlight int
		runs      int
	)
	require.NoError(t, s.Register(jobs.Job{
		Name:     "upload_session_expiry",
		Schedule: soon{},
		Work: func(context.Context, *tenant.Scope) error {
			mu.Lock()
			inFlight++
			runs++
			maxFlight = max(maxFlight, inFlight)
			mu.Unlock()

			time.Sleep(15 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Start(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, runs)
	assert.Equal(t, 1, maxFlight, "a job never overlaps with itself")
	assert.Zero(t, inFlight, "Start waits for running jobs")
}

func TestScheduler_StartWithoutJobs(t *testing.T) {
	t.Parallel()
	dir, _ := directory(t, 1)
	s := jobs.NewScheduler(dir, jobs.WithSchedulerLogger(logger.Discard()))
	assert.ErrorIs(t, s.Start(context.Background()), jobs.ErrNoJobs)
}

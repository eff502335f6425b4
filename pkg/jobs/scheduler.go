package jobs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/vidkit/pkg/logger"
)

// Scheduler runs registered jobs on their schedules. A job never overlaps
// with itself: a trigger that finds the job running is skipped.
type Scheduler struct {
	source   TenantSource
	mu       sync.RWMutex
	jobs     map[string]*entry
	order    []string
	interval time.Duration
	locker   Locker
	lockTTL  time.Duration
	runs     RunStore
	log      *slog.Logger
	now      func() time.Time
	onReport func(Report)
	onSkip   func(job string)
	wg       sync.WaitGroup
}

type entry struct {
	job     Job
	next    time.Time
	running atomic.Bool
}

// Info is the operator view of a registered job.
type Info struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	Running  bool      `json:"running"`
	LastRun  *Report   `json:"last_run,omitempty"`
}

type SchedulerOption func(*Scheduler)

// WithCheckInterval sets how often the scheduler looks for due jobs.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSchedulerLogger(log *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithLocker adds a distributed single-flight lock held for at most ttl.
func WithLocker(l Locker, ttl time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithRunStore(rs RunStore) SchedulerOption {
	return func(s *Scheduler) {
		if rs != nil {
			s.runs = rs
		}
	}
}

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// WithReportHook is called after every completed run.
func WithReportHook(fn func(Report)) SchedulerOption {
	return func(s *Scheduler) { s.onReport = fn }
}

// WithSkipHook is called when a trigger is skipped because the job is running.
func WithSkipHook(fn func(job string)) SchedulerOption {
	return func(s *Scheduler) { s.onSkip = fn }
}

func NewScheduler(source TenantSource, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		source:   source,
		jobs:     make(map[string]*entry),
		interval: 15 * time.Second,
		lockTTL:  10 * time.Minute,
		runs:     NewMemoryRunStore(),
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. Names are unique.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Schedule == nil || job.Work == nil {
		return ErrInvalidJob
	}
	now := s.now()
	next := job.Schedule.Next(now)
	if !next.After(now) {
		return ErrInvalidJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return ErrJobAlreadyRegistered
	}
	s.jobs[job.Name] = &entry{job: job, next: next}
	s.order = append(s.order, job.Name)

	s.log.Info("registered job",
		logger.Job(job.Name),
		slog.String("schedule", job.Schedule.String()),
		slog.Time("next_run", next),
	)
	return nil
}

// Start runs due jobs until ctx is cancelled, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	count := len(s.jobs)
	s.mu.RUnlock()
	if count == 0 {
		return ErrNoJobs
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.InfoContext(ctx, "job scheduler started", slog.Int("jobs", count))
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.log.Info("job scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*entry
	for _, name := range s.order {
		e := s.jobs[name]
		if !now.Before(e.next) {
			e.next = e.job.Schedule.Next(now)
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_, _ = s.run(ctx, e)
		}()
	}
}

// Trigger runs a job now and returns its report.
func (s *Scheduler) Trigger(ctx context.Context, name string) (Report, error) {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return Report{}, ErrJobNotFound
	}
	return s.run(ctx, e)
}

func (s *Scheduler) run(ctx context.Context, e *entry) (Report, error) {
	name := e.job.Name
	if !e.running.CompareAndSwap(false, true) {
		s.skipped(ctx, name, "in process")
		return Report{}, ErrJobAlreadyRunning
	}
	defer e.running.Store(false)

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, name, s.lockTTL)
		if err != nil {
			s.log.ErrorContext(ctx, "failed to acquire job lock", logger.Job(name), logger.Error(err))
			return Report{}, err
		}
		if !ok {
			s.skipped(ctx, name, "other instance")
			return Report{}, ErrJobAlreadyRunning
		}
		defer release()
	}

	s.log.InfoContext(ctx, "job started", logger.Job(name))
	report := FanOut(ctx, e.job, s.source, s.log)

	if err := s.runs.Save(context.WithoutCancel(ctx), report); err != nil {
		s.log.ErrorContext(ctx, "failed to save job report", logger.Job(name), logger.Error(err))
	}
	if s.onReport != nil {
		s.onReport(report)
	}

	level := slog.LevelInfo
	if report.Outcome != OutcomeSucceeded {
		level = slog.LevelWarn
	}
	s.log.Log(ctx, level, "job finished",
		logger.Job(name),
		slog.String("run_id", report.RunID.String()),
		slog.String("outcome", string(report.Outcome)),
		slog.Int("tenants", report.Tenants),
		slog.Int("failed", len(report.Failures)),
		logger.Duration(report.Duration()),
	)
	return report, nil
}

func (s *Scheduler) skipped(ctx context.Context, name, holder string) {
	s.log.WarnContext(ctx, "job trigger skipped, previous run still active",
		logger.Job(name), slog.String("holder", holder))
	if s.onSkip != nil {
		s.onSkip(name)
	}
}

// Jobs lists registered jobs in registration order with their last run.
func (s *Scheduler) Jobs(ctx context.Context) []Info {
	s.mu.RLock()
	infos := make([]Info, 0, len(s.order))
	for _, name := range s.order {
		e := s.jobs[name]
		infos = append(infos, Info{
			Name:     name,
			Schedule: e.job.Schedule.String(),
			NextRun:  e.next,
			Running:  e.running.Load(),
		})
	}
	s.mu.RUnlock()

	for i := range infos {
		last, ok, err := s.runs.Last(ctx, infos[i].Name)
		if err != nil {
			s.log.WarnContext(ctx, "failed to load job report", logger.Job(infos[i].Name), logger.Error(err))
			continue
		}
		if ok {
			infos[i].LastRun = &last
		}
	}
	return infos
}

package jobs

import "errors"

var (
	ErrJobAlreadyRunning    = errors.New("jobs: job is already running")
	ErrJobNotFound          = errors.New("jobs: job not found")
	ErrJobAlreadyRegistered = errors.New("jobs: job already registered")
	ErrInvalidJob           = errors.New("jobs: job needs a name, a schedule and work")
	ErrNoJobs               = errors.New("jobs: no jobs registered")
	ErrTenantPanic          = errors.New("jobs: tenant work panicked")
)

package main

import (
	"github.com/dmitrymomot/vidkit/pkg/auth"
	"github.com/dmitrymomot/vidkit/pkg/httpserver"
	"github.com/dmitrymomot/vidkit/pkg/jobs"
	"github.com/dmitrymomot/vidkit/pkg/metrics"
	"github.com/dmitrymomot/vidkit/pkg/processing"
	"github.com/dmitrymomot/vidkit/pkg/redis"
	"github.com/dmitrymomot/vidkit/pkg/tenant"
	"github.com/dmitrymomot/vidkit/pkg/upload"
	"github.com/dmitrymomot/vidkit/svc/api"
	"github.com/dmitrymomot/vidkit/svc/billing"
)

const (
	storageMemory   = "memory"
	storagePostgres = "postgres"
)

// Config is the process configuration. pg.Config is loaded separately since
// its connection URL is required only for the postgres storage.
type Config struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	LogLevel     string `env:"LOG_LEVEL"`
	Storage      string `env:"STORAGE_BACKEND" envDefault:"memory"`
	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`

	HTTP       httpserver.Config
	Redis      redis.Config
	Tenant     tenant.Config
	Auth       auth.Config
	Upload     upload.Config
	Processing processing.Config
	Jobs       jobs.Config
	Billing    billing.Config
	Metrics    metrics.Config
	API        api.Config
}

package jobs

import "time"

type Config struct {
	Enabled       bool          `env:"JOBS_ENABLED" envDefault:"true"`
	CheckInterval time.Duration `env:"JOBS_CHECK_INTERVAL" envDefault:"15s"`
	LockTTL       time.Duration `env:"JOBS_LOCK_TTL" envDefault:"10m"`
	TenantTimeout time.Duration `env:"JOBS_TENANT_TIMEOUT" envDefault:"2m"`
}

package tenant

import "time"

type Config struct {
	BaseDomain     string        `env:"TENANT_BASE_DOMAIN" envDefault:"vidkit.localhost"`
	OverrideHeader string        `env:"TENANT_OVERRIDE_HEADER" envDefault:"X-Tenant-Slug"`
	ExemptPrefixes []string      `env:"TENANT_EXEMPT_PREFIXES" envSeparator:"," envDefault:"/health,/metrics,/docs,/webhooks/,/internal/"`
	CacheTTL       time.Duration `env:"TENANT_CACHE_TTL" envDefault:"1m"`
	CacheSize      int           `env:"TENANT_CACHE_SIZE" envDefault:"1000"`
	// SeedFile, when set, loads tenants into an in-memory directory instead of Postgres.
	SeedFile string `env:"TENANT_SEED_FILE"`
}

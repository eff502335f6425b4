package auth

import "time"

type Config struct {
	Secret   string        `env:"AUTH_JWT_SECRET"`
	Issuer   string        `env:"AUTH_JWT_ISSUER" envDefault:"vidkit"`
	TokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"1h"`
	Leeway   time.Duration `env:"AUTH_CLOCK_LEEWAY" envDefault:"30s"`
}
